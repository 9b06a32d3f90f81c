// Package exprtab holds the per-version expression contract: for each
// symbolic operator, the numeric opcode it lowers to, its result type, the
// parameter format it consumes when it has immediate operands, how many
// stack operands it pops, their types, a display template for the lifter,
// and whether the display template should be parenthesis-free at the top
// level.
package exprtab

// Engine identifies an inheritance tier in the version fallthrough chain,
// newest first. A lookup for a given version walks from its starting tier
// down through every older tier until a table has the symbol.
type Engine int

const (
	EnginePostTH13 Engine = iota
	EnginePostTH125
	EnginePostALCOSTG
	EnginePostTH10
	EnginePreTH10
)

// EngineFor maps a version number to its starting tier in the fallthrough
// chain, mirroring engine_version()'s classification.
func EngineFor(version uint) Engine {
	switch {
	case version == 125 || version == 128:
		return EnginePostTH125
	case version == 103: // Alcostg, the 10.3 spinoff release
		return EnginePostALCOSTG
	case version == 95 || version < 10:
		return EnginePreTH10
	case version >= 13:
		return EnginePostTH13
	default:
		return EnginePostTH10
	}
}

// Entry is one row of a version's expression contract table.
type Entry struct {
	Symbol      string
	ID          int
	ReturnType  byte   // 'S' int32, 'f' float32, 0 = no value (statement)
	ParamFormat string // non-empty when the op also takes immediate params
	StackArity  int
	StackTypes  string // one letter per popped stack operand, arity long
	Display     string // template using p0.. for params, s0.. for stack operands
	NoBrackets  bool   // lifter omits parentheses around this expression
}

func (e Entry) IsLeaf() bool {
	return e.StackArity == 0 && e.ReturnType != 0
}

// tables, verbatim from the per-version expression contract.
var (
	preTH10 = []Entry{
		{"LOADI", -1, 'S', "S", 0, "", "p0", false},
		{"LOADF", -2, 'f', "f", 0, "", "p0", false},
		{"ADDI", -3, 'S', "", 2, "SS", "s1 + s0", false},
		{"ADDF", -4, 'f', "", 2, "ff", "s1 + s0", false},
		{"SUBTRACTI", -5, 'S', "", 2, "SS", "s1 - s0", false},
		{"SUBTRACTF", -6, 'f', "", 2, "ff", "s1 - s0", false},
		{"MULTIPLYI", -7, 'S', "", 2, "SS", "s1 * s0", false},
		{"MULTIPLYF", -8, 'f', "", 2, "ff", "s1 * s0", false},
		{"DIVIDEI", -9, 'S', "", 2, "SS", "s1 / s0", false},
		{"DIVIDEF", -10, 'f', "", 2, "ff", "s1 / s0", false},
		{"MODULO", -11, 'S', "", 2, "SS", "s1 % s0", false},
		{"EQUALI", -12, 'S', "", 2, "SS", "s1 == s0", false},
		{"EQUALF", -13, 'S', "", 2, "ff", "s1 == s0", false},
		{"INEQUALI", -14, 'S', "", 2, "SS", "s1 != s0", false},
		{"INEQUALF", -15, 'S', "", 2, "ff", "s1 != s0", false},
		{"LTI", -16, 'S', "", 2, "SS", "s1 < s0", false},
		{"LTF", -17, 'S', "", 2, "ff", "s1 < s0", false},
		{"LTEQI", -18, 'S', "", 2, "SS", "s1 <= s0", false},
		{"LTEQF", -19, 'S', "", 2, "ff", "s1 <= s0", false},
		{"GTI", -20, 'S', "", 2, "SS", "s1 > s0", false},
		{"GTF", -21, 'S', "", 2, "ff", "s1 > s0", false},
		{"GTEQI", -22, 'S', "", 2, "SS", "s1 >= s0", false},
		{"GTEQF", -23, 'S', "", 2, "ff", "s1 >= s0", false},
		{"NOTI", -24, 'S', "", 1, "S", "!s0", false},
		{"NOTF", -25, 'S', "", 1, "f", "!s0", false},
		{"OR", -26, 'S', "", 2, "SS", "s1 || s0", false},
		{"AND", -27, 'S', "", 2, "SS", "s1 && s0", false},
		{"XOR", -28, 'S', "", 2, "SS", "s1 ^ s0", false},
		{"B_OR", -29, 'S', "", 2, "SS", "s1 | s0", false},
		{"B_AND", -30, 'S', "", 2, "SS", "s1 & s0", false},
		{"DEC", -31, 'S', "", 0, "", "p0--", false},
		{"SIN", -32, 'f', "", 1, "f", "sin(s0)", true},
		{"COS", -33, 'f', "", 1, "f", "cos(s0)", true},
		{"NEGI", -34, 'S', "", 1, "S", "-s0", false},
		{"NEGF", -35, 'f', "", 1, "f", "-s0", false},
		{"SQRT", -36, 'f', "", 1, "f", "sqrt(s0)", true},
	}

	postTH10 = []Entry{
		{"RETURN", 10, 0, "", 0, "", "return", false},
		{"GOTO", 12, 0, "ot", 0, "S", "goto p0 @ p1", false},
		{"UNLESS", 13, 0, "ot", 1, "S", "unless (s0) goto p0 @ p1", true},
		{"IF", 14, 0, "ot", 1, "S", "if (s0) goto p0 @ p1", true},
		{"LOADI", 42, 'S', "S", 0, "", "p0", false},
		{"ASSIGNI", 43, 0, "S", 1, "S", "p0 = s0", true},
		{"LOADF", 44, 'f', "f", 0, "", "p0", false},
		{"ASSIGNF", 45, 0, "f", 1, "f", "p0 = s0", true},
		{"ADDI", 50, 'S', "", 2, "SS", "s1 + s0", false},
		{"ADDF", 51, 'f', "", 2, "ff", "s1 + s0", false},
		{"SUBTRACTI", 52, 'S', "", 2, "SS", "s1 - s0", false},
		{"SUBTRACTF", 53, 'f', "", 2, "ff", "s1 - s0", false},
		{"MULTIPLYI", 54, 'S', "", 2, "SS", "s1 * s0", false},
		{"MULTIPLYF", 55, 'f', "", 2, "ff", "s1 * s0", false},
		{"DIVIDEI", 56, 'S', "", 2, "SS", "s1 / s0", false},
		{"DIVIDEF", 57, 'f', "", 2, "ff", "s1 / s0", false},
		{"MODULO", 58, 'S', "", 2, "SS", "s1 % s0", false},
		{"EQUALI", 59, 'S', "", 2, "SS", "s1 == s0", false},
		{"EQUALF", 60, 'S', "", 2, "ff", "s1 == s0", false},
		{"INEQUALI", 61, 'S', "", 2, "SS", "s1 != s0", false},
		{"INEQUALF", 62, 'S', "", 2, "ff", "s1 != s0", false},
		{"LTI", 63, 'S', "", 2, "SS", "s1 < s0", false},
		{"LTF", 64, 'S', "", 2, "ff", "s1 < s0", false},
		{"LTEQI", 65, 'S', "", 2, "SS", "s1 <= s0", false},
		{"LTEQF", 66, 'S', "", 2, "ff", "s1 <= s0", false},
		{"GTI", 67, 'S', "", 2, "SS", "s1 > s0", false},
		{"GTF", 68, 'S', "", 2, "ff", "s1 > s0", false},
		{"GTEQI", 69, 'S', "", 2, "SS", "s1 >= s0", false},
		{"GTEQF", 70, 'S', "", 2, "ff", "s1 >= s0", false},
		{"NOTI", 71, 'S', "", 1, "S", "!s0", false},
		{"NOTF", 72, 'S', "", 1, "f", "!s0", false},
		{"OR", 73, 'S', "", 2, "SS", "s1 || s0", false},
		{"AND", 74, 'S', "", 2, "SS", "s1 && s0", false},
		{"XOR", 75, 'S', "", 2, "SS", "s1 ^ s0", false},
		{"B_OR", 76, 'S', "", 2, "SS", "s1 | s0", false},
		{"B_AND", 77, 'S', "", 2, "SS", "s1 & s0", false},
		{"DEC", 78, 'S', "S", 0, "", "p0--", false},
		{"SIN", 79, 'f', "", 1, "f", "sin(s0)", true},
		{"COS", 80, 'f', "", 1, "f", "cos(s0)", true},
		{"NEGI", 84, 'S', "", 1, "S", "-s0", false},
		{"NEGF", -1, 'f', "", 1, "f", "-s0", false},
		{"SQRT", -2, 'f', "", 1, "f", "sqrt(s0)", true},
	}

	postALCOSTG = []Entry{
		{"SQRT", 88, 'f', "", 1, "f", "sqrt(s0)", true},
	}

	postTH125 = []Entry{
		{"NEGF", 85, 'f', "", 1, "f", "-s0", false},
	}

	postTH13 = []Entry{
		{"NEGI", 83, 'S', "", 1, "S", "-s0", false},
		{"NEGF", 84, 'f', "", 1, "f", "-s0", false},
	}
)

func tableFor(e Engine) []Entry {
	switch e {
	case EnginePostTH13:
		return postTH13
	case EnginePostTH125:
		return postTH125
	case EnginePostALCOSTG:
		return postALCOSTG
	case EnginePostTH10:
		return postTH10
	default:
		return preTH10
	}
}

// chain lists, for each starting engine, every tier to fall through in
// order, mirroring the switch-with-fallthrough in expr_get_by_symbol.
var chain = map[Engine][]Engine{
	EnginePostTH13:     {EnginePostTH13, EnginePostTH125, EnginePostALCOSTG, EnginePostTH10},
	EnginePostTH125:    {EnginePostTH125, EnginePostALCOSTG, EnginePostTH10},
	EnginePostALCOSTG:  {EnginePostALCOSTG, EnginePostTH10},
	EnginePostTH10:     {EnginePostTH10},
	EnginePreTH10:      {EnginePreTH10},
}

// BySymbol resolves symbol for version by walking the fallthrough chain
// starting at version's engine tier.
func BySymbol(version uint, symbol string) (Entry, bool) {
	for _, tier := range chain[EngineFor(version)] {
		for _, e := range tableFor(tier) {
			if e.Symbol == symbol {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// ByID resolves a numeric opcode id to its contract entry for version.
func ByID(version uint, id int) (Entry, bool) {
	for _, tier := range chain[EngineFor(version)] {
		for _, e := range tableFor(tier) {
			if e.ID == id {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// IsLeaf reports whether id is a leaf expression (no stack operands, but
// produces a value) for version.
func IsLeaf(version uint, id int) bool {
	e, ok := ByID(version, id)
	return ok && e.IsLeaf()
}
