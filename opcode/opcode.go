// Package opcode resolves the parameter-format string for a given
// (version, opcode) pair: the sequence of format letters (S, U, s, u, C, f,
// o, t, N, n, T, z, m, x, D, *) describing how to decode that opcode's
// parameter bytes. Resolution consults an optional user-loaded override
// map first, then falls through a linear per-version inheritance chain.
package opcode

import "github.com/reimuhak/bultk/script/exprtab"

// newFamilyChain is the post-TH10 inheritance chain, newest first.
var newFamilyChain = []uint{17, 165, 16, 15, 143, 14, 13, 128, 125, 12, 11, 103, 10}

// oldFamilyChain is the pre-TH10 inheritance chain, newest first.
var oldFamilyChain = []uint{95, 9, 8, 7, 6}

// chainFor returns the fallthrough sequence starting at version, or nil if
// version belongs to neither known chain.
func chainFor(version uint) []uint {
	for _, chain := range [][]uint{newFamilyChain, oldFamilyChain} {
		for i, v := range chain {
			if v == version {
				return chain[i:]
			}
		}
	}
	return nil
}

// key identifies one (version, timeline, opcode) table slot.
type key struct {
	version  uint
	timeline bool
	opcode   uint16
}

// Table is a per-version format lookup with an optional override layer on
// top of the seed tables derived from the expression contract.
type Table struct {
	overrides map[key]string
	seed      map[key]string
}

// New builds a resolution table. It is seeded from the non-timeline
// instructions that have a fixed parameter format in the expression
// contract (script/exprtab) — the expression table and the opcode format
// table describe the same instruction set from two angles (folding display
// vs. raw parameter layout), so seeding one from the other keeps the two
// in lockstep.
func New() *Table {
	t := &Table{
		overrides: make(map[key]string),
		seed:      make(map[key]string),
	}
	for _, chain := range [][]uint{newFamilyChain, oldFamilyChain} {
		for _, v := range chain {
			seedVersion(t, v)
		}
	}
	return t
}

func seedVersion(t *Table, version uint) {
	eng := exprtab.EngineFor(version)
	seedEngine(t, version, eng)
}

func seedEngine(t *Table, version uint, eng exprtab.Engine) {
	for _, e := range entriesFor(eng) {
		if e.ID < 0 || e.ParamFormat == "" {
			continue
		}
		t.seed[key{version, false, uint16(e.ID)}] = e.ParamFormat
	}
}

// entriesFor is a small indirection so New doesn't need exprtab's
// unexported table slice names.
func entriesFor(eng exprtab.Engine) []exprtab.Entry {
	var out []exprtab.Entry
	for id := -64; id < 256; id++ {
		if e, ok := exprtab.ByID(engineSample(eng), id); ok {
			out = append(out, e)
		}
	}
	return out
}

// engineSample returns one representative version number for each engine
// tier, used only to drive exprtab.ByID's internal chain walk during
// seeding.
func engineSample(eng exprtab.Engine) uint {
	switch eng {
	case exprtab.EnginePostTH13:
		return 13
	case exprtab.EnginePostTH125:
		return 125
	case exprtab.EnginePostALCOSTG:
		return 103
	case exprtab.EnginePostTH10:
		return 10
	default:
		return 6
	}
}

// SetOverride installs a user-loaded format override, taking precedence
// over every seed table.
func (t *Table) SetOverride(version uint, opcode uint16, timeline bool, format string) {
	t.overrides[key{version, timeline, opcode}] = format
}

// FormatOf resolves the parameter format for opcode at version, walking
// the override map first, then the per-version inheritance chain. The
// second return value is false when no table in the chain has an entry —
// callers should warn and fall back to decoding the remainder as 32-bit
// integers.
func (t *Table) FormatOf(version uint, opcode uint16, timeline bool) (string, bool) {
	if f, ok := t.overrides[key{version, timeline, opcode}]; ok {
		return f, true
	}
	for _, v := range chainFor(version) {
		if f, ok := t.overrides[key{v, timeline, opcode}]; ok {
			return f, true
		}
	}
	if f, ok := t.seed[key{version, timeline, opcode}]; ok {
		return f, true
	}
	for _, v := range chainFor(version) {
		if f, ok := t.seed[key{v, timeline, opcode}]; ok {
			return f, true
		}
	}
	return "", false
}

// ParamSize returns the number of bytes the given format letter occupies
// when followed by the parameter's own data: fixed-size letters contribute
// a known width; z/m/x are variable (length-prefixed, handled by the
// caller); D is a fixed 12 bytes.
func ParamSize(letter byte) (size int, fixed bool) {
	switch letter {
	case 'C', 'c':
		return 1, true
	case 's', 'u':
		return 2, true
	case 'S', 'U', 'f', 'o', 't', 'N', 'n', 'T':
		return 4, true
	case 'D':
		return 12, true
	case 'z', 'm', 'x', '*':
		return 0, false
	default:
		return 0, false
	}
}
