// Package eclmap loads "!eclmap" mnemonic map files: the opcode-number to
// readable-name tables used to render disassembly with names like
// "ins_51(...)" as "playSound(...)" instead, grounded on thecl/eclmap.c.
package eclmap

import (
	"fmt"
	"io"

	"github.com/reimuhak/bultk/internal/seqmap"
)

// Map holds the six seqmap tables an eclmap file can populate, grounded on
// eclmap_t's six seqmap_t* members.
type Map struct {
	InsNames              *seqmap.Map
	InsSignatures         *seqmap.Map
	GvarNames             *seqmap.Map
	GvarTypes             *seqmap.Map
	TimelineInsNames      *seqmap.Map
	TimelineInsSignatures *seqmap.Map
}

// New returns an empty Map with every table allocated.
func New() *Map {
	return &Map{
		InsNames:              seqmap.New(),
		InsSignatures:         seqmap.New(),
		GvarNames:             seqmap.New(),
		GvarTypes:             seqmap.New(),
		TimelineInsNames:      seqmap.New(),
		TimelineInsSignatures: seqmap.New(),
	}
}

// InsName returns the mnemonic registered for opcode, if any.
func (m *Map) InsName(opcode int) (string, bool) {
	if m == nil || m.InsNames == nil {
		return "", false
	}
	return m.InsNames.Get(opcode)
}

// GvarName returns the mnemonic registered for a global variable's index.
func (m *Map) GvarName(index int) (string, bool) {
	if m == nil || m.GvarNames == nil {
		return "", false
	}
	return m.GvarNames.Get(index)
}

// Load reads an eclmap file from r into m, dispatching each "!section"
// control line to the matching table and validating identifier-shaped
// values the way eclmap_load's set() callback does. isPostTH10 disables the
// bare word "return" as a usable instruction name, since post-TH10 engines
// reserve it as a keyword.
func Load(r io.Reader, m *Map, isPostTH10 bool) error {
	var (
		dest  *seqmap.Map
		ident bool
	)
	// !ins_names is the implicit first section, per eclmap_load's default
	// control(&state, 0, "!ins_names") call before the scan begins.
	dest, ident = m.InsNames, true

	control := func(section string) error {
		switch section {
		case "!ins_names":
			dest, ident = m.InsNames, true
		case "!ins_signatures":
			dest, ident = m.InsSignatures, false
		case "!gvar_names":
			dest, ident = m.GvarNames, true
		case "!gvar_types":
			dest, ident = m.GvarTypes, false
		case "!timeline_ins_names":
			dest, ident = m.TimelineInsNames, true
		case "!timeline_ins_signatures":
			dest, ident = m.TimelineInsSignatures, false
		default:
			return fmt.Errorf("unknown control line %q", section)
		}
		return nil
	}

	set := func(ent seqmap.Entry) error {
		if ident {
			if err := validateIdent(ent.Value, isPostTH10); err != nil {
				return err
			}
		} else if dest == m.GvarTypes {
			if err := validateType(ent.Value); err != nil {
				return err
			}
		}
		dest.Set(ent.Key, ent.Value)
		return nil
	}

	return seqmap.Load(r, "!eclmap", control, set)
}

func validateIdent(s string, isPostTH10 bool) error {
	if s == "" {
		return fmt.Errorf("%q isn't a valid identifier", s)
	}
	if s[0] >= '0' && s[0] <= '9' {
		return fmt.Errorf("%q isn't a valid identifier", s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_') {
			return fmt.Errorf("%q isn't a valid identifier", s)
		}
	}
	if len(s) >= 4 && s[:4] == "ins_" {
		return fmt.Errorf("value can't start with 'ins_'")
	}
	if isPostTH10 && s == "return" {
		return fmt.Errorf("'return' is not a usable value, use as keyword instead")
	}
	return nil
}

func validateType(s string) error {
	if len(s) != 1 || (s[0] != '$' && s[0] != '%') {
		return fmt.Errorf("unknown type %q", s)
	}
	return nil
}
