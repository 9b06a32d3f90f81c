package seqmap

import (
	"strings"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	m := New()
	m.Set(5, "playSound")
	m.Set(6, "stopSound")
	m.Set(5, "playSoundOverwritten")

	got, ok := m.Get(5)
	if !ok || got != "playSoundOverwritten" {
		t.Fatalf("Get(5) = %q, %v, want overwritten value", got, ok)
	}
	if _, ok := m.Get(99); ok {
		t.Fatal("Get(99) reported found for an unset key")
	}
}

func TestFindReturnsFirstMatchingKey(t *testing.T) {
	m := New()
	m.Set(1, "alpha")
	m.Set(2, "beta")
	m.Set(3, "beta")

	key, ok := m.Find("beta")
	if !ok || key != 2 {
		t.Fatalf("Find(beta) = %d, %v, want 2, true", key, ok)
	}
	if _, ok := m.Find("missing"); ok {
		t.Fatal("Find(missing) reported found")
	}
}

func TestLoadParsesSectionsCommentsAndUnderscoreValue(t *testing.T) {
	src := `!eclmap
!ins_names
5 playSound # a comment
6 _
!gvar_names
0 flag_boss_active
`
	insNames := New()
	gvarNames := New()
	dest := insNames

	control := func(section string) error {
		switch section {
		case "!ins_names":
			dest = insNames
		case "!gvar_names":
			dest = gvarNames
		default:
			t.Fatalf("unexpected control line %q", section)
		}
		return nil
	}
	set := func(ent Entry) error {
		dest.Set(ent.Key, ent.Value)
		return nil
	}

	if err := Load(strings.NewReader(src), "!eclmap", control, set); err != nil {
		t.Fatal(err)
	}

	if v, ok := insNames.Get(5); !ok || v != "playSound" {
		t.Fatalf("ins_names[5] = %q, %v", v, ok)
	}
	if v, ok := insNames.Get(6); !ok || v != "" {
		t.Fatalf("ins_names[6] = %q, %v, want empty string from \"_\"", v, ok)
	}
	if v, ok := gvarNames.Get(0); !ok || v != "flag_boss_active" {
		t.Fatalf("gvar_names[0] = %q, %v", v, ok)
	}
}

func TestLoadRejectsWrongMagic(t *testing.T) {
	err := Load(strings.NewReader("!wrongmagic\n1 foo\n"), "!eclmap", nil, nil)
	if err == nil {
		t.Fatal("expected an error for mismatched magic")
	}
}
