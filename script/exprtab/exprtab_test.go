package exprtab

import "testing"

func TestBySymbolFallthrough(t *testing.T) {
	// ADDI only exists in the pre-th10 and post-th10 tables; a th13 lookup
	// must fall all the way through the chain to find it.
	e, ok := BySymbol(13, "ADDI")
	if !ok {
		t.Fatal("expected ADDI to resolve for version 13")
	}
	if e.ID != 50 {
		t.Errorf("got id %d, want 50", e.ID)
	}
}

func TestNEGFOverriddenPerVersion(t *testing.T) {
	// NEGF is present in postTH10 (id -1), postTH125 (id 85), and postTH13
	// (id 84); the nearest tier in the chain wins.
	if e, _ := BySymbol(10, "NEGF"); e.ID != -1 {
		t.Errorf("th10: got %d, want -1", e.ID)
	}
	if e, _ := BySymbol(125, "NEGF"); e.ID != 85 {
		t.Errorf("th125: got %d, want 85", e.ID)
	}
	if e, _ := BySymbol(13, "NEGF"); e.ID != 84 {
		t.Errorf("th13: got %d, want 84", e.ID)
	}
}

func TestByIDAndIsLeaf(t *testing.T) {
	e, ok := ByID(10, 42) // LOADI
	if !ok {
		t.Fatal("expected id 42 to resolve")
	}
	if e.Symbol != "LOADI" {
		t.Errorf("got %q, want LOADI", e.Symbol)
	}
	if !IsLeaf(10, 42) {
		t.Error("LOADI should be a leaf expression")
	}
	if IsLeaf(10, 50) { // ADDI, stack arity 2
		t.Error("ADDI should not be a leaf expression")
	}
}

func TestUnknownSymbol(t *testing.T) {
	if _, ok := BySymbol(10, "DOES_NOT_EXIST"); ok {
		t.Error("expected lookup miss")
	}
}

func TestPreTH10TableIsolated(t *testing.T) {
	// RETURN only exists post-th10; a th06-era lookup must not see it.
	if _, ok := BySymbol(6, "RETURN"); ok {
		t.Error("th06 should not resolve RETURN")
	}
	if _, ok := BySymbol(10, "RETURN"); !ok {
		t.Error("th10 should resolve RETURN")
	}
}
