// Package script implements the instruction/subroutine/module data model
// shared by the lifter and lowerer, grounded on thecl.h's thecl_instr_t,
// thecl_sub_t and thecl_t. Where the original keeps this state behind a
// package-level parser_state_t, this module has no package-level state:
// the lifter and lowerer work on the *Sub they are given.
package script

import "github.com/reimuhak/bultk/value"

// Rank bits, named after RANK_EASY.. in thecl.h.
const (
	RankEasy      = 1 << 0
	RankNormal    = 1 << 1
	RankHard      = 1 << 2
	RankLunatic   = 1 << 3
	RankExtra     = 1 << 4
	RankOverdrive = 1 << 5
	RankAll       = RankEasy | RankNormal | RankHard | RankLunatic | RankExtra | RankOverdrive
)

// Param is one decoded or to-be-encoded instruction parameter.
type Param struct {
	Value    value.Value
	OnStack  bool // the "on stack" mask bit was set for this parameter
	IsExpr   bool // temporary: holds an unresolved expression during lowering
}

// Instruction is one opcode call within a subroutine.
type Instruction struct {
	Opcode uint16
	Time   uint32
	Rank   uint32 // bitmask, RankAll when unspecified
	Params []Param

	// Offset is this instruction's byte offset within its subroutine body,
	// populated by the lifter and consulted (then rewritten) during label
	// fixup in the lowerer's second pass.
	Offset uint32
	Size   uint32
}

// Label marks a named jump target at a byte offset within a subroutine,
// grounded on thecl_label_t.
type Label struct {
	Name   string
	Offset int32
	Time   int32
}

// Variable is a subroutine-local declared variable, grounded on
// thecl_variable_t.
type Variable struct {
	Name     string
	Type     value.Type
	Stack    int
	IsWritten bool
}

// Sub is one subroutine, grounded on thecl_sub_t.
type Sub struct {
	Name                string
	ReturnType          int
	ForwardDeclaration  bool
	Inline              bool
	Arity               int
	Format              string // declared parameter format, for call-site validation
	StackSize           int
	Vars                []*Variable
	Instrs              []*Instruction
	Labels              []*Label
	Offset              uint32
}

// LabelOffset returns the byte offset of the named label, or -1 if absent,
// grounded on label_offset.
func (s *Sub) LabelOffset(name string) int32 {
	for _, l := range s.Labels {
		if l.Name == name {
			return l.Offset
		}
	}
	return -1
}

// LabelTime returns the time value recorded for the named label, or -1 if
// absent, grounded on label_time.
func (s *Sub) LabelTime(name string) int32 {
	for _, l := range s.Labels {
		if l.Name == name {
			return l.Time
		}
	}
	return -1
}

// Timeline is a secondary sub-like construct (old-family ECL timelines)
// sharing the instruction model but with its own compact on-disk header.
type Timeline struct {
	Name   string
	Instrs []*Instruction
}

// Module is the top-level compiled/decompiled unit, grounded on thecl_t.
type Module struct {
	Version   uint
	Subs      []*Sub
	Timelines []*Timeline

	// AnimInclude and EcliInclude record the anim{}/ecli{} string-list
	// directives carried in the module header.
	AnimInclude []string
	EcliInclude []string
}

// SubByName looks up a subroutine by name for sub-call validation.
func (m *Module) SubByName(name string) (*Sub, bool) {
	for _, s := range m.Subs {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}
