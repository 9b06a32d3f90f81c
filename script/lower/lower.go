// Package lower turns DSL text back into a raw post-TH10 subroutine body.
// Expressions are lowered bottom-up against the same per-version
// expression contract the lifter folds with (script/exprtab): leaves emit
// a load instruction, internal nodes emit the matching binary/unary
// instruction with no params of their own (they consume the preceding
// stack results), grounded on thecl10.c's compile-side expr lowering.
package lower

import (
	"encoding/binary"
	"fmt"

	"github.com/reimuhak/bultk/script"
	"github.com/reimuhak/bultk/script/exprtab"
	"github.com/reimuhak/bultk/value"
)

const instrHeaderSize = 16
const sentinelTime = 0xFFFFFFFF

// Assemble parses src and lowers it into a *script.Sub ready for
// EncodeSub. Label offsets are left unresolved (the branch parameter's
// Value.Str holds the target name) until a second, explicit Fixup pass once every instruction has a
// final byte offset.
func Assemble(src string, version uint) (*script.Sub, error) {
	stmts, err := parseProgram(src)
	if err != nil {
		return nil, err
	}

	sub := &script.Sub{}
	lw := &lowerer{sub: sub, version: version, time: 0, rank: script.RankAll}

	for _, s := range stmts {
		if err := lw.stmt(s); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

type lowerer struct {
	sub     *script.Sub
	version uint
	time    uint32
	rank    uint32
}

func (lw *lowerer) emit(opcodeID int, params []script.Param) {
	lw.sub.Instrs = append(lw.sub.Instrs, &script.Instruction{
		Opcode: uint16(opcodeID),
		Time:   lw.time,
		Rank:   lw.rank,
		Params: params,
	})
}

func (lw *lowerer) stmt(s Stmt) error {
	switch st := s.(type) {
	case TimeMarker:
		if st.Relative {
			lw.time += st.Time
		} else {
			lw.time = st.Time
		}
	case RankMarker:
		lw.rank = rankMaskFromLetters(st.Letters)
	case LabelDecl:
		// Offset temporarily holds the index (not byte offset) of the
		// instruction that will follow this label; Fixup resolves it to
		// a real byte offset once every instruction's Offset is known.
		lw.sub.Labels = append(lw.sub.Labels, &script.Label{
			Name:   st.Name,
			Time:   int32(lw.time),
			Offset: int32(len(lw.sub.Instrs)),
		})
	case VarDecl:
		for _, n := range st.Names {
			lw.sub.Vars = append(lw.sub.Vars, &script.Variable{Name: n, Stack: len(lw.sub.Vars)})
		}
	case InsCall:
		var params []script.Param
		for _, a := range st.Args {
			v, err := lw.literalValue(a)
			if err != nil {
				return err
			}
			params = append(params, script.Param{Value: v})
		}
		lw.emit(int(st.Opcode), params)
	case Goto:
		lw.emit(mustID(lw.version, "GOTO"), []script.Param{labelRefParam(st.Label), {Value: value.Value{Type: value.TypeS32}}})
	case If:
		if _, err := lw.expr(st.Cond); err != nil {
			return err
		}
		lw.emit(mustID(lw.version, "IF"), []script.Param{labelRefParam(st.Label), {Value: value.Value{Type: value.TypeS32}}})
	case Unless:
		if _, err := lw.expr(st.Cond); err != nil {
			return err
		}
		lw.emit(mustID(lw.version, "UNLESS"), []script.Param{labelRefParam(st.Label), {Value: value.Value{Type: value.TypeS32}}})
	case Assign:
		typ, err := lw.expr(st.Value)
		if err != nil {
			return err
		}
		sym := "ASSIGNI"
		if typ == 'f' {
			sym = "ASSIGNF"
		}
		slot, err := lw.resolveSlot(st.Var)
		if err != nil {
			return err
		}
		lw.emit(mustID(lw.version, sym), []script.Param{{Value: value.Value{Type: value.TypeS32, I64: slot}}})
	default:
		return fmt.Errorf("lower: unhandled statement %T", s)
	}
	return nil
}

// literalValue evaluates a as a compile-time constant, used for raw
// ins_N(args) calls whose own parameters are immediates rather than
// stack-consuming sub-expressions.
func (lw *lowerer) literalValue(a Expr) (value.Value, error) {
	switch e := a.(type) {
	case IntLit:
		return value.Value{Type: value.TypeS32, I64: e.V}, nil
	case FloatLit:
		return value.Value{Type: value.TypeF32, F64: e.V}, nil
	case StackSlot:
		return value.Value{Type: value.TypeS32, I64: e.Offset}, nil
	case VarRef:
		slot, err := lw.resolveSlot(e.Name)
		if err != nil {
			return value.Value{}, err
		}
		return value.Value{Type: value.TypeS32, I64: slot}, nil
	default:
		return value.Value{}, fmt.Errorf("lower: %T is not a valid immediate argument", a)
	}
}

func (lw *lowerer) resolveSlot(name string) (int64, error) {
	for _, v := range lw.sub.Vars {
		if v.Name == name {
			return stackSlotImmediate(lw.version, v.Stack), nil
		}
	}
	return 0, fmt.Errorf("lower: undeclared variable %q", name)
}

// stackSlotImmediate encodes a declared variable's slot: pre-v13 versions
// always use -1 (top of stack); v13+ versions use -(depth+1).
func stackSlotImmediate(version uint, depth int) int64 {
	if version < 13 {
		return -1
	}
	return -(int64(depth) + 1)
}

// expr lowers e bottom-up, emitting instructions for every internal node,
// and returns the resulting value type ('S' or 'f').
func (lw *lowerer) expr(e Expr) (byte, error) {
	switch n := e.(type) {
	case IntLit:
		lw.emit(mustID(lw.version, "LOADI"), []script.Param{{Value: value.Value{Type: value.TypeS32, I64: n.V}}})
		return 'S', nil
	case FloatLit:
		lw.emit(mustID(lw.version, "LOADF"), []script.Param{{Value: value.Value{Type: value.TypeF32, F64: n.V}}})
		return 'f', nil
	case StackSlot:
		lw.emit(mustID(lw.version, "LOADI"), []script.Param{{Value: value.Value{Type: value.TypeS32, I64: n.Offset}}})
		return 'S', nil
	case VarRef:
		slot, err := lw.resolveSlot(n.Name)
		if err != nil {
			return 0, err
		}
		lw.emit(mustID(lw.version, "LOADI"), []script.Param{{Value: value.Value{Type: value.TypeS32, I64: slot}}})
		return 'S', nil
	case Unary:
		typ, err := lw.expr(n.X)
		if err != nil {
			return 0, err
		}
		sym, err := unarySymbol(n.Op, typ)
		if err != nil {
			return 0, err
		}
		lw.emit(mustID(lw.version, sym), nil)
		return typ, nil
	case Binary:
		lt, err := lw.expr(n.L)
		if err != nil {
			return 0, err
		}
		rt, err := lw.expr(n.R)
		if err != nil {
			return 0, err
		}
		typ := lt
		if lt != rt {
			// No cast instruction exists in the expression contract to bridge
			// mismatched operand types (see DESIGN.md); require same-typed
			// operands instead of fabricating an opcode that doesn't exist.
			return 0, fmt.Errorf("lower: mixed-type expression (%c vs %c) needs same-typed operands", lt, rt)
		}
		sym, resultIsBool, err := binarySymbol(n.Op, typ)
		if err != nil {
			return 0, err
		}
		lw.emit(mustID(lw.version, sym), nil)
		if resultIsBool {
			return 'S', nil
		}
		return typ, nil
	case Call:
		if len(n.Args) != 1 {
			return 0, fmt.Errorf("lower: %s takes exactly one argument", n.Name)
		}
		typ, err := lw.expr(n.Args[0])
		if err != nil {
			return 0, err
		}
		sym, ok := mathCallSymbol(n.Name)
		if !ok {
			return 0, fmt.Errorf("lower: unknown call %q", n.Name)
		}
		lw.emit(mustID(lw.version, sym), nil)
		return typ, nil
	default:
		return 0, fmt.Errorf("lower: unhandled expression %T", e)
	}
}

func mathCallSymbol(name string) (string, bool) {
	switch name {
	case "sin":
		return "SIN", true
	case "cos":
		return "COS", true
	case "sqrt":
		return "SQRT", true
	default:
		return "", false
	}
}

func unarySymbol(op string, typ byte) (string, error) {
	switch {
	case op == "-" && typ == 'S':
		return "NEGI", nil
	case op == "-" && typ == 'f':
		return "NEGF", nil
	case op == "!" && typ == 'S':
		return "NOTI", nil
	case op == "!" && typ == 'f':
		return "NOTF", nil
	}
	return "", fmt.Errorf("lower: no unary operator %q for type %c", op, typ)
}

func binarySymbol(op string, typ byte) (sym string, resultIsBool bool, err error) {
	isF := typ == 'f'
	switch op {
	case "+":
		return pick(isF, "ADDI", "ADDF"), false, nil
	case "-":
		return pick(isF, "SUBTRACTI", "SUBTRACTF"), false, nil
	case "*":
		return pick(isF, "MULTIPLYI", "MULTIPLYF"), false, nil
	case "/":
		return pick(isF, "DIVIDEI", "DIVIDEF"), false, nil
	case "%":
		if isF {
			return "", false, fmt.Errorf("lower: %% is integer-only")
		}
		return "MODULO", false, nil
	case "==":
		return pick(isF, "EQUALI", "EQUALF"), true, nil
	case "!=":
		return pick(isF, "INEQUALI", "INEQUALF"), true, nil
	case "<":
		return pick(isF, "LTI", "LTF"), true, nil
	case "<=":
		return pick(isF, "LTEQI", "LTEQF"), true, nil
	case ">":
		return pick(isF, "GTI", "GTF"), true, nil
	case ">=":
		return pick(isF, "GTEQI", "GTEQF"), true, nil
	case "||":
		return "OR", true, nil
	case "&&":
		return "AND", true, nil
	case "^":
		return "XOR", true, nil
	case "|":
		return "B_OR", true, nil
	case "&":
		return "B_AND", true, nil
	}
	return "", false, fmt.Errorf("lower: unknown binary operator %q", op)
}

func pick(isFloat bool, intSym, floatSym string) string {
	if isFloat {
		return floatSym
	}
	return intSym
}

func mustID(version uint, symbol string) int {
	e, ok := exprtab.BySymbol(version, symbol)
	if !ok {
		// Every symbol this package emits is a fixed name from the
		// contract tables; a miss here means the table doesn't cover
		// this version and is a programming error, not bad input.
		panic(fmt.Sprintf("lower: no contract entry for %s at version %d", symbol, version))
	}
	return e.ID
}

func rankMaskFromLetters(letters string) uint32 {
	if letters == "-" {
		return 0
	}
	var mask uint32
	for _, c := range letters {
		switch c {
		case 'E':
			mask |= script.RankEasy
		case 'N':
			mask |= script.RankNormal
		case 'H':
			mask |= script.RankHard
		case 'L':
			mask |= script.RankLunatic
		case 'X':
			mask |= script.RankExtra
		case 'D':
			mask |= script.RankOverdrive
		}
	}
	return mask
}

// labelRefParam encodes an unresolved branch target. The real numeric
// offset is filled in by Fixup once every instruction in the sub has a
// final Offset; until then the label name rides along in Value.Str so
// Fixup can find it.
func labelRefParam(label string) script.Param {
	return script.Param{Value: value.Value{Type: value.TypeS32, Str: label}}
}

// Fixup assigns final byte offsets to every instruction (and label) in sub,
// then rewrites each branch instruction's offset parameter to
// target_offset - source_offset.
func Fixup(sub *script.Sub) error {
	offset := uint32(0)
	for _, instr := range sub.Instrs {
		instr.Offset = offset
		instr.Size = uint32(instrHeaderSize + paramsSize(instr.Params))
		offset += instr.Size
	}

	labelOffset := map[string]int32{}
	labelTime := map[string]int32{}
	for _, l := range sub.Labels {
		idx := int(l.Offset) // instruction index stashed by the lowerer, see LabelDecl
		if idx < len(sub.Instrs) {
			labelOffset[l.Name] = int32(sub.Instrs[idx].Offset)
		} else {
			labelOffset[l.Name] = int32(offset) // label trails the last instruction
		}
		labelTime[l.Name] = l.Time
		l.Offset = labelOffset[l.Name] // leave the label holding its real byte offset
	}

	for _, instr := range sub.Instrs {
		if !isBranch(instr.Opcode) {
			continue
		}
		if len(instr.Params) < 1 {
			continue
		}
		labelName := instr.Params[0].Value.Str
		target, ok := labelOffset[labelName]
		if !ok {
			return fmt.Errorf("lower: undefined label %q", labelName)
		}
		rel := target - int32(instr.Offset)
		if len(instr.Params) > 1 {
			instr.Params[1].Value = value.Value{Type: value.TypeS32, I64: int64(labelTime[labelName])}
		}
		instr.Params[0].Value = value.Value{Type: value.TypeS32, I64: int64(rel)}
	}
	return nil
}

func isBranch(opcode uint16) bool {
	return opcode == 12 || opcode == 13 || opcode == 14
}

func paramsSize(params []script.Param) int {
	total := 0
	for _, p := range params {
		switch p.Value.Type {
		case value.TypeS8, value.TypeU8:
			total++
		case value.TypeS16, value.TypeU16:
			total += 2
		case value.TypeString:
			total += len(p.Value.Str) + 1
		case value.TypeBlob:
			total += 4 + len(p.Value.Blob)
		default:
			total += 4
		}
	}
	return total
}

// EncodeSub serialises sub's instructions into a raw post-TH10 body
// (header bytes only — the caller wraps this in the "ECLH" sub header),
// terminated by the sentinel instruction, grounded on th10_instr_t.
func EncodeSub(sub *script.Sub) ([]byte, error) {
	var out []byte
	for _, instr := range sub.Instrs {
		var paramBytes []byte
		mask := uint16(0)
		for i, p := range instr.Params {
			var err error
			paramBytes, err = value.ToData(paramBytes, p.Value)
			if err != nil {
				return nil, err
			}
			if p.OnStack {
				mask |= 1 << uint(i)
			}
		}

		var hdr [instrHeaderSize]byte
		binary.LittleEndian.PutUint32(hdr[0:4], instr.Time)
		binary.LittleEndian.PutUint16(hdr[4:6], instr.Opcode)
		binary.LittleEndian.PutUint16(hdr[6:8], uint16(instrHeaderSize+len(paramBytes)))
		binary.LittleEndian.PutUint16(hdr[8:10], mask)
		hdr[10] = byte(instr.Rank)
		hdr[11] = byte(len(instr.Params))
		out = append(out, hdr[:]...)
		out = append(out, paramBytes...)
	}

	var sentinel [instrHeaderSize]byte
	binary.LittleEndian.PutUint32(sentinel[0:4], sentinelTime)
	binary.LittleEndian.PutUint16(sentinel[6:8], instrHeaderSize)
	out = append(out, sentinel[:]...)

	return out, nil
}
