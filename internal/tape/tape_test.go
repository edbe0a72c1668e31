package tape

import "testing"

func TestAddOrGetReusesExisting(t *testing.T) {
	s := NewRoot(8)
	v1, err := s.Add("x", 1)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := s.AddOrGet("x", 1)
	if err != nil {
		t.Fatal(err)
	}
	if v1.Start != v2.Start {
		t.Fatalf("AddOrGet returned a different cell: %d != %d", v1.Start, v2.Start)
	}
}

func TestAddDuplicateNameFails(t *testing.T) {
	s := NewRoot(8)
	if _, err := s.Add("x", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add("x", 1); err == nil {
		t.Fatal("expected an error re-declaring x in the same scope")
	}
}

func TestTempReuseAfterRelease(t *testing.T) {
	s := NewRoot(0)
	a := s.AddTemp(1)
	start := a.Start
	if err := a.Release(); err != nil {
		t.Fatal(err)
	}
	b := s.AddTemp(1)
	if b.Start != start {
		t.Fatalf("expected the released cell %d to be reused, got %d", start, b.Start)
	}
}

func TestArrayVariableKeepsItsSize(t *testing.T) {
	s := NewRoot(16)
	arr, err := s.Add("arr", 10)
	if err != nil {
		t.Fatal(err)
	}
	if arr.Size != 10 {
		t.Fatalf("expected Size 10, got %d", arr.Size)
	}

	got, err := s.Get("arr")
	if err != nil {
		t.Fatal(err)
	}
	if got.Size != 10 {
		t.Fatalf("Get lost the array's size: expected 10, got %d", got.Size)
	}
}

func TestPushInheritsNamedCellCounterNotResetToZero(t *testing.T) {
	parent := NewRoot(16)
	if _, err := parent.Add("outer", 2); err != nil {
		t.Fatal(err)
	}

	child := parent.Push()
	inner, err := child.Add("inner", 1)
	if err != nil {
		t.Fatal(err)
	}
	if inner.Start != 2 {
		t.Fatalf("expected the child's named variable to continue past the parent's, got start %d", inner.Start)
	}
}

func TestSiblingScopesReuseCellsAfterPop(t *testing.T) {
	parent := NewRoot(16)

	then := parent.Push()
	thenVar, err := then.Add("t", 1)
	if err != nil {
		t.Fatal(err)
	}
	then.Pop()

	elseScope := parent.Push()
	elseVar, err := elseScope.Add("e", 1)
	if err != nil {
		t.Fatal(err)
	}

	if thenVar.Start != elseVar.Start {
		t.Fatalf("sibling scopes should pack from the same starting offset: then=%d else=%d", thenVar.Start, elseVar.Start)
	}
}

func TestDoubleReleaseIsANoOp(t *testing.T) {
	s := NewRoot(0)
	a := s.AddTemp(1)
	if err := a.Release(); err != nil {
		t.Fatal(err)
	}
	if err := a.Release(); err != nil {
		t.Fatalf("a second Release on an already-released Variable must be a safe no-op, got error: %v", err)
	}
}

func TestBindFixedDoesNotTouchReservation(t *testing.T) {
	s := NewRoot(4)
	v, err := s.BindFixed("param0", -3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Start != -3 {
		t.Fatalf("expected BindFixed to keep the exact requested start, got %d", v.Start)
	}
	if s.NamedCellCounter() != 0 {
		t.Fatalf("BindFixed must not grow the reservation counter, got %d", s.NamedCellCounter())
	}
}
