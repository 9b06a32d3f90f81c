package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reimuhak/bultk/opcode"
	"github.com/reimuhak/bultk/script/lift"
)

func TestAssembleSimpleArithmetic(t *testing.T) {
	src := `
var $a;
0:
$a = 1 + 2 * 3;
`
	sub, err := Assemble(src, 13)
	require.NoError(t, err)
	require.NoError(t, Fixup(sub))

	// LOADI 1, LOADI 2, LOADI 3, MULTIPLYI, ADDI, ASSIGNI slot.
	require.Len(t, sub.Instrs, 6)
	assert.Equal(t, mustID(13, "ASSIGNI"), int(sub.Instrs[5].Opcode))
}

func TestAssembleGotoFixup(t *testing.T) {
	src := `
0:
goto done;
10:
done:
ins_10();
`
	sub, err := Assemble(src, 13)
	require.NoError(t, err)
	require.NoError(t, Fixup(sub))

	require.Len(t, sub.Instrs, 2)
	gotoInstr := sub.Instrs[0]
	assert.Equal(t, uint16(12), gotoInstr.Opcode)

	target := sub.Instrs[1]
	rel := int32(gotoInstr.Params[0].Value.I64)
	assert.Equal(t, int32(target.Offset)-int32(gotoInstr.Offset), rel)
	assert.Equal(t, int64(10), gotoInstr.Params[1].Value.I64)
}

func TestAssembleIfCondition(t *testing.T) {
	src := `
0:
if (1 == 1) goto skip;
ins_10();
skip:
ins_11();
`
	sub, err := Assemble(src, 13)
	require.NoError(t, err)
	require.NoError(t, Fixup(sub))

	var sawIf, sawSkip bool
	for _, instr := range sub.Instrs {
		if instr.Opcode == 14 {
			sawIf = true
		}
		if instr.Opcode == 11 {
			sawSkip = true
		}
	}
	assert.True(t, sawIf)
	assert.True(t, sawSkip)
}

func TestAssembleVarAssignment(t *testing.T) {
	src := `
var $a;
0:
$a = 5;
`
	sub, err := Assemble(src, 13)
	require.NoError(t, err)
	require.NoError(t, Fixup(sub))

	require.Len(t, sub.Vars, 1)
	assert.Equal(t, "$a", sub.Vars[0].Name)

	// LOADI 5, ASSIGNI slot.
	require.Len(t, sub.Instrs, 2)
	assert.Equal(t, int64(-1), sub.Instrs[1].Params[0].Value.I64)
}

func TestEncodeSubRoundTripsThroughLift(t *testing.T) {
	src := `
0:
ins_10(7);
`
	sub, err := Assemble(src, 13)
	require.NoError(t, err)
	require.NoError(t, Fixup(sub))

	raw, err := EncodeSub(sub)
	require.NoError(t, err)

	fmts := opcode.New()
	decoded, err := lift.DecodeSub(raw, 13, fmts)
	require.NoError(t, err)
	require.Len(t, decoded.Instrs, 1)
	assert.Equal(t, uint16(10), decoded.Instrs[0].Opcode)
}

func TestAssembleUnknownVariableErrors(t *testing.T) {
	_, err := Assemble("0:\n$missing = 1;\n", 13)
	assert.Error(t, err)
}

func TestAssembleUndefinedLabelErrors(t *testing.T) {
	sub, err := Assemble("0:\ngoto nowhere;\n", 13)
	require.NoError(t, err)
	assert.Error(t, Fixup(sub))
}
