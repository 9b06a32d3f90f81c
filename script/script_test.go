package script

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reimuhak/bultk/value"
)

func TestSubLabelLookup(t *testing.T) {
	sub := &Sub{
		Labels: []*Label{
			{Name: "loop_start", Offset: 16, Time: 30},
			{Name: "loop_end", Offset: 96, Time: 300},
		},
	}

	assert.EqualValues(t, 16, sub.LabelOffset("loop_start"))
	assert.EqualValues(t, 300, sub.LabelTime("loop_end"))
	assert.EqualValues(t, -1, sub.LabelOffset("nonexistent"))
	assert.EqualValues(t, -1, sub.LabelTime("nonexistent"))
}

func TestModuleSubByName(t *testing.T) {
	m := &Module{
		Version: 13,
		Subs: []*Sub{
			{Name: "MainBoss"},
			{Name: "Bullet001"},
		},
	}

	sub, ok := m.SubByName("Bullet001")
	assert.True(t, ok)
	assert.Equal(t, "Bullet001", sub.Name)

	_, ok = m.SubByName("NoSuchSub")
	assert.False(t, ok)
}

func TestRankAllCombinesEveryBit(t *testing.T) {
	assert.Equal(t, RankEasy|RankNormal|RankHard|RankLunatic|RankExtra|RankOverdrive, RankAll)
}

func TestParamCarriesOnStackFlag(t *testing.T) {
	p := Param{Value: value.Value{Type: value.TypeS32, I64: 7}, OnStack: true}
	assert.True(t, p.OnStack)
	assert.EqualValues(t, 7, p.Value.I64)
}
