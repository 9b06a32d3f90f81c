package lift

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reimuhak/bultk/opcode"
	"github.com/reimuhak/bultk/script"
	"github.com/reimuhak/bultk/script/lower"
)

func TestDecodeSubStopsAtSentinel(t *testing.T) {
	sub, err := lower.Assemble("0:\nins_10(1, 2);\n", 13)
	require.NoError(t, err)
	require.NoError(t, lower.Fixup(sub))

	raw, err := lower.EncodeSub(sub)
	require.NoError(t, err)

	fmts := opcode.New()
	decoded, err := DecodeSub(raw, 13, fmts)
	require.NoError(t, err)
	require.Len(t, decoded.Instrs, 1)
	assert.EqualValues(t, 10, decoded.Instrs[0].Opcode)
	assert.EqualValues(t, 0, decoded.Instrs[0].Offset)
}

func TestDecodeSubRejectsTruncatedHeader(t *testing.T) {
	fmts := opcode.New()
	_, err := DecodeSub([]byte{1, 2, 3}, 13, fmts)
	assert.Error(t, err)
}

func TestInsertLabelsFindsGotoTarget(t *testing.T) {
	sub, err := lower.Assemble("0:\ngoto done;\n10:\ndone:\nins_10();\n", 13)
	require.NoError(t, err)
	require.NoError(t, lower.Fixup(sub))

	raw, err := lower.EncodeSub(sub)
	require.NoError(t, err)

	fmts := opcode.New()
	decoded, err := DecodeSub(raw, 13, fmts)
	require.NoError(t, err)
	require.Len(t, decoded.Labels, 1)
	assert.Equal(t, decoded.Instrs[1].Offset, uint32(decoded.Labels[0].Offset))
}

func TestEmitTextFallsBackToRawCallForm(t *testing.T) {
	sub, err := lower.Assemble("0:\nins_99(5);\n", 13)
	require.NoError(t, err)
	require.NoError(t, lower.Fixup(sub))

	raw, err := lower.EncodeSub(sub)
	require.NoError(t, err)

	fmts := opcode.New()
	decoded, err := DecodeSub(raw, 13, fmts)
	require.NoError(t, err)

	text := EmitText(decoded, 13)
	assert.True(t, strings.Contains(text, "ins_99(5)"))
}

func TestEmitTextFoldsNestedArithmetic(t *testing.T) {
	src := `
var $a;
0:
$a = 1 + 2 * 3;
`
	sub, err := lower.Assemble(src, 13)
	require.NoError(t, err)
	require.NoError(t, lower.Fixup(sub))

	raw, err := lower.EncodeSub(sub)
	require.NoError(t, err)

	fmts := opcode.New()
	decoded, err := DecodeSub(raw, 13, fmts)
	require.NoError(t, err)

	text := EmitText(decoded, 13)
	assert.Contains(t, text, "1 + (2 * 3)")
	assert.NotContains(t, text, "s0")
	assert.NotContains(t, text, "s1")
}

func TestEmitTextFoldsUnaryAndCallForms(t *testing.T) {
	src := `
var $a;
0:
$a = -sin(1);
`
	sub, err := lower.Assemble(src, 13)
	require.NoError(t, err)
	require.NoError(t, lower.Fixup(sub))

	raw, err := lower.EncodeSub(sub)
	require.NoError(t, err)

	fmts := opcode.New()
	decoded, err := DecodeSub(raw, 13, fmts)
	require.NoError(t, err)

	text := EmitText(decoded, 13)
	assert.Contains(t, text, "-sin(1)")
}

func TestRankLettersRendersDash(t *testing.T) {
	assert.Equal(t, "-", rankLetters(0))
}

func TestEmitModuleHeaderIncludesVersionAndSubCount(t *testing.T) {
	m := &script.Module{
		Version: 13,
		Subs:    []*script.Sub{{Name: "MainBoss"}, {Name: "Bullet001"}},
	}
	header, err := EmitModuleHeader(m)
	require.NoError(t, err)
	assert.Contains(t, header, "engine version 13")
	assert.Contains(t, header, "2 sub(s)")
}
