package cp932

import "testing"

func TestRoundTripASCII(t *testing.T) {
	orig := "STAGE1_BOSS.ANM"
	enc, err := FromUTF8(orig)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ToUTF8(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got != orig {
		t.Fatalf("round trip = %q, want %q", got, orig)
	}
}

func TestRoundTripJapanese(t *testing.T) {
	orig := "博麗霊夢"
	enc, err := FromUTF8(orig)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ToUTF8(enc)
	if err != nil {
		t.Fatal(err)
	}
	if got != orig {
		t.Fatalf("round trip = %q, want %q", got, orig)
	}
}

func TestToUTF8RejectsInvalidBytes(t *testing.T) {
	// 0x81 0xFF is not a valid Shift-JIS lead/trail pair.
	if _, err := ToUTF8([]byte{0x81, 0xff}); err == nil {
		t.Fatal("expected an error decoding an invalid CP932 byte sequence")
	}
}
