// Package lift turns a raw post-TH10 subroutine body into DSL text,
// grounded on thecl10.c's decompilation loop (the th10_instr_t walk that
// builds a thecl_sub_t's instruction list), using a two-pass shape: a first
// pass finds branch targets, the second pass decodes and emits text.
package lift

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/reimuhak/bultk/opcode"
	"github.com/reimuhak/bultk/script"
	"github.com/reimuhak/bultk/script/eclmap"
	"github.com/reimuhak/bultk/script/exprtab"
	"github.com/reimuhak/bultk/value"
)

const instrHeaderSize = 16
const sentinelTime = 0xFFFFFFFF

// DecodeSub decodes one subroutine's raw instruction stream (the bytes
// following its "ECLH" header) into a *script.Sub. Decoding stops at the
// sentinel instruction (time == 0xFFFFFFFF, size == instrHeaderSize).
func DecodeSub(data []byte, version uint, fmts *opcode.Table) (*script.Sub, error) {
	sub := &script.Sub{}
	pos := uint32(0)

	for {
		if int(pos)+instrHeaderSize > len(data) {
			return nil, fmt.Errorf("lift: truncated instruction header at offset %d", pos)
		}
		hdr := data[pos:]
		time := binary.LittleEndian.Uint32(hdr[0:4])
		id := binary.LittleEndian.Uint16(hdr[4:6])
		size := binary.LittleEndian.Uint16(hdr[6:8])
		paramMask := binary.LittleEndian.Uint16(hdr[8:10])
		rankMask := hdr[10]
		paramCount := hdr[11]

		if time == sentinelTime && size == instrHeaderSize {
			break
		}
		if int(pos)+int(size) > len(data) || size < instrHeaderSize {
			return nil, fmt.Errorf("lift: invalid instruction size %d at offset %d", size, pos)
		}

		instr := &script.Instruction{
			Opcode: id,
			Time:   time,
			Rank:   uint32(rankMask),
			Offset: pos,
			Size:   uint32(size),
		}

		format, _ := fmts.FormatOf(version, id, false)
		paramData := data[pos+instrHeaderSize : pos+uint32(size)]
		params, err := decodeParams(paramData, format, int(paramCount), paramMask)
		if err != nil {
			return nil, fmt.Errorf("lift: instruction %d at offset %d: %w", id, pos, err)
		}
		instr.Params = params

		sub.Instrs = append(sub.Instrs, instr)
		pos += uint32(size)
	}

	insertLabels(sub)
	return sub, nil
}

// decodeParams walks format letter by letter (falling back to raw 32-bit
// integers when format is empty) and reads paramCount values, tagging each
// "on stack" per bit i of mask.
func decodeParams(data []byte, format string, paramCount int, mask uint16) ([]script.Param, error) {
	var params []script.Param
	pos := 0
	letterAt := func(i int) byte {
		if i < len(format) {
			return format[i]
		}
		return 'S' // fallback: consume remaining bytes as 32-bit integers
	}

	for i := 0; i < paramCount; i++ {
		letter := letterAt(i)
		typ := letterToValueType(letter)
		v, n, err := value.FromData(data[pos:], typ)
		if err != nil {
			return nil, err
		}
		pos += n
		params = append(params, script.Param{
			Value:   v,
			OnStack: mask&(1<<uint(i)) != 0,
		})
	}
	return params, nil
}

func letterToValueType(letter byte) value.Type {
	switch letter {
	case 'c':
		return value.TypeS8
	case 'C':
		return value.TypeU8
	case 's':
		return value.TypeS16
	case 'u':
		return value.TypeU16
	case 'f':
		return value.TypeF32
	case 'z':
		return value.TypeString
	case 'm', 'x':
		return value.TypeBlob
	default: // S, U, o, t, N, n, T and the integer fallback all decode as S
		return value.TypeS32
	}
}

// insertLabels scans the decoded instruction list and inserts a label at
// every byte offset referenced by an o-typed (GOTO/IF/UNLESS) parameter's
// first argument.
func insertLabels(sub *script.Sub) {
	targets := map[int32]bool{}
	for _, instr := range sub.Instrs {
		if len(instr.Params) >= 2 && isBranchOpcode(instr.Opcode) {
			rel := int32(instr.Params[0].Value.I64)
			targets[int32(instr.Offset)+rel] = true
		}
	}
	var offsets []int32
	for off := range targets {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	for i, off := range offsets {
		sub.Labels = append(sub.Labels, &script.Label{
			Name:   fmt.Sprintf("label_%d", i),
			Offset: off,
		})
	}
}

// isBranchOpcode reports whether id is GOTO/IF/UNLESS at the post-th10
// engine tier; used only to decide which instructions carry label targets.
func isBranchOpcode(id uint16) bool {
	return id == 12 || id == 13 || id == 14
}

var moduleHeader = template.Must(template.New("module-header").Parse(
	`\ ------------------------------------------------------------------
\ decompiled ECL, engine version {{ .Version }}
\ ------------------------------------------------------------------
{{ if .AnimInclude }}{{ range .AnimInclude }}anim "{{ . }}";
{{ end }}{{ end -}}
{{ if .EcliInclude }}{{ range .EcliInclude }}ecli "{{ . }}";
{{ end }}{{ end -}}
{{ if .Timelines }}\ {{ len .Timelines }} timeline(s), {{ len .Subs }} sub(s)
{{ else }}\ {{ len .Subs }} sub(s)
{{ end -}}
`))

// EmitModuleHeader renders the banner comment that precedes a module's
// decompiled subroutines.
func EmitModuleHeader(m *script.Module) (string, error) {
	var b strings.Builder
	if err := moduleHeader.Execute(&b, m); err != nil {
		return "", err
	}
	return b.String(), nil
}

// EmitText renders sub as DSL text. Instructions recognised in the
// expression contract are folded into nested expressions; everything else
// falls back to the raw call form.
func EmitText(sub *script.Sub, version uint) string {
	return emitText(sub, version, nil)
}

// EmitTextNamed is EmitText, but substitutes an "!eclmap"-supplied mnemonic
// (names.InsName) for the raw "ins_N" call form wherever one is registered,
// grounded on thecl10.c's use of eclmap_t when printing disassembly.
func EmitTextNamed(sub *script.Sub, version uint, names *eclmap.Map) string {
	return emitText(sub, version, names)
}

// foldedValue is a pending expression built from a "leaf" (or already-folded)
// instruction, held on the lifter's virtual stack until something consumes it
// as an s0..sN operand or it is flushed unconsumed.
type foldedValue struct {
	text     string
	brackets bool // wrap in parens when substituted as an operand of another op
}

func emitText(sub *script.Sub, version uint, names *eclmap.Map) string {
	var b strings.Builder
	var lastTime uint32 = ^uint32(0)
	var lastRank uint32 = ^uint32(0)
	var stack []foldedValue

	labelAt := func(off int32) (string, bool) {
		for _, l := range sub.Labels {
			if l.Offset == off {
				return l.Name, true
			}
		}
		return "", false
	}

	// flush emits any values pushed onto the fold stack but never consumed by
	// a later op, as their own statements, before a boundary that would
	// otherwise lose them (label, time marker, rank marker, raw call form).
	flush := func() {
		for _, v := range stack {
			fmt.Fprintf(&b, "%s;\n", v.text)
		}
		stack = stack[:0]
	}
	emitRaw := func(instr *script.Instruction) {
		name := fmt.Sprintf("ins_%d", instr.Opcode)
		if mnemonic, ok := names.InsName(int(instr.Opcode)); ok {
			name = mnemonic
		}
		fmt.Fprintf(&b, "%s(%s);\n", name, joinParams(instr.Params))
	}

	for _, instr := range sub.Instrs {
		if name, ok := labelAt(int32(instr.Offset)); ok {
			flush()
			fmt.Fprintf(&b, "%s:\n", name)
		}
		if instr.Time != lastTime {
			flush()
			fmt.Fprintf(&b, "%d:\n", instr.Time)
			lastTime = instr.Time
		}
		if instr.Rank != lastRank {
			flush()
			fmt.Fprintf(&b, "!%s\n", rankLetters(instr.Rank))
			lastRank = instr.Rank
		}

		entry, ok := exprtab.ByID(version, int(instr.Opcode))
		if !ok || len(stack) < entry.StackArity {
			// Either this opcode has no expression-contract entry, or the
			// fold stack doesn't hold enough leaf operands to satisfy it
			// (e.g. a truncated/non-standard instruction stream) — fall
			// back to the raw call form.
			flush()
			emitRaw(instr)
			continue
		}

		operands := append([]foldedValue(nil), stack[len(stack)-entry.StackArity:]...)
		stack = stack[:len(stack)-entry.StackArity]
		text := substituteTemplate(entry, instr, operands, labelAt)

		if entry.ReturnType == 0 {
			fmt.Fprintf(&b, "%s;\n", text)
		} else {
			stack = append(stack, foldedValue{text: text, brackets: entry.StackArity > 0 && !entry.NoBrackets})
		}
	}
	flush()
	return b.String()
}

// substituteTemplate fills entry.Display's p0.. placeholders from instr's own
// parameters (branch targets resolve through labelAt) and its s0..sN
// placeholders from operands — s0 is the most recently pushed (top-of-stack)
// value, mirroring stack-machine evaluation order.
func substituteTemplate(entry exprtab.Entry, instr *script.Instruction, operands []foldedValue, labelAt func(int32) (string, bool)) string {
	out := entry.Display
	for i, p := range instr.Params {
		placeholder := fmt.Sprintf("p%d", i)
		var text string
		if isBranchOpcode(instr.Opcode) && i == 0 {
			rel := int32(p.Value.I64)
			if name, ok := labelAt(int32(instr.Offset) + rel); ok {
				text = name
			} else {
				text = value.ToText(p.Value)
			}
		} else {
			text = value.ToText(p.Value)
		}
		out = strings.ReplaceAll(out, placeholder, text)
	}
	for k := range operands {
		operand := operands[len(operands)-1-k] // s0 = last pushed = top of stack
		text := operand.text
		if operand.brackets {
			text = "(" + text + ")"
		}
		out = strings.ReplaceAll(out, fmt.Sprintf("s%d", k), text)
	}
	return out
}

func joinParams(params []script.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = value.ToText(p.Value)
	}
	return strings.Join(parts, ", ")
}

func rankLetters(mask uint32) string {
	letters := []struct {
		bit  uint32
		char string
	}{
		{script.RankEasy, "E"},
		{script.RankNormal, "N"},
		{script.RankHard, "H"},
		{script.RankLunatic, "L"},
		{script.RankExtra, "X"},
		{script.RankOverdrive, "D"},
	}
	var b strings.Builder
	for _, l := range letters {
		if mask&l.bit != 0 {
			b.WriteString(l.char)
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}
