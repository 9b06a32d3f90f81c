package eclmap

import (
	"strings"
	"testing"
)

func TestLoadPopulatesDefaultInsNamesSection(t *testing.T) {
	src := `!eclmap
51 playSound
52 stopSound
`
	m := New()
	if err := Load(strings.NewReader(src), m, true); err != nil {
		t.Fatal(err)
	}
	name, ok := m.InsName(51)
	if !ok || name != "playSound" {
		t.Fatalf("InsName(51) = %q, %v, want playSound", name, ok)
	}
}

func TestLoadSwitchesSectionsOnControlLines(t *testing.T) {
	src := `!eclmap
!gvar_names
0 flag_boss_active
!gvar_types
0 $
`
	m := New()
	if err := Load(strings.NewReader(src), m, true); err != nil {
		t.Fatal(err)
	}
	if v, ok := m.GvarName(0); !ok || v != "flag_boss_active" {
		t.Fatalf("GvarName(0) = %q, %v", v, ok)
	}
	if v, ok := m.GvarTypes.Get(0); !ok || v != "$" {
		t.Fatalf("gvar_types[0] = %q, %v", v, ok)
	}
}

func TestLoadRejectsNameStartingWithInsPrefix(t *testing.T) {
	src := `!eclmap
51 ins_51
`
	m := New()
	if err := Load(strings.NewReader(src), m, true); err == nil {
		t.Fatal("expected an error for a mnemonic starting with 'ins_'")
	}
}

func TestLoadRejectsReturnOnPostTH10(t *testing.T) {
	src := `!eclmap
1 return
`
	m := New()
	if err := Load(strings.NewReader(src), m, true); err == nil {
		t.Fatal("expected an error using 'return' as a mnemonic post-TH10")
	}
	if err := Load(strings.NewReader(src), New(), false); err != nil {
		t.Fatalf("pre-TH10 'return' should be accepted: %v", err)
	}
}

func TestInsNameOnNilMapIsSafe(t *testing.T) {
	var m *Map
	if _, ok := m.InsName(1); ok {
		t.Fatal("InsName on a nil *Map should report not-found, not panic")
	}
}
