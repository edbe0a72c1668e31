package bfspace

import (
	"bytes"
	"strings"
	"testing"

	"nbfc/internal/bfi"
	"nbfc/internal/emitter"
	"nbfc/internal/funcs"
)

func TestAddProducesSum(t *testing.T) {
	bf := New(emitter.New(), funcs.NewTable(), 16)
	bf.PushScope()

	x := bf.AddTempWithValue(5)
	y := bf.AddTempWithValue(7)
	result := bf.Add(x, y)
	bf.E.Var(result)
	bf.E.MustCode(".")

	var stdout bytes.Buffer
	interp, err := bfi.New(bf.E.String(), strings.NewReader(""), &stdout)
	if err != nil {
		t.Fatal(err)
	}
	if err := interp.Run(1_000_000); err != nil {
		t.Fatal(err)
	}
	if got := stdout.Bytes()[0]; got != 12 {
		t.Fatalf("Add(5,7) = %d, want 12", got)
	}
}

func TestMulPreservesY(t *testing.T) {
	bf := New(emitter.New(), funcs.NewTable(), 16)
	bf.PushScope()

	x := bf.AddTempWithValue(3)
	y := bf.AddTempWithValue(4)
	result := bf.Mul(x, y)
	bf.E.Var(result)
	bf.E.MustCode(".")
	bf.E.Var(y)
	bf.E.MustCode(".")

	var stdout bytes.Buffer
	interp, err := bfi.New(bf.E.String(), strings.NewReader(""), &stdout)
	if err != nil {
		t.Fatal(err)
	}
	if err := interp.Run(1_000_000); err != nil {
		t.Fatal(err)
	}
	got := stdout.Bytes()
	if len(got) != 2 || got[0] != 12 || got[1] != 4 {
		t.Fatalf("Mul(3,4) then y = %v, want [12 4] (y must survive Mul)", got)
	}
}

func TestDivAndModPreserveBothOperands(t *testing.T) {
	bf := New(emitter.New(), funcs.NewTable(), 16)
	bf.PushScope()

	x := bf.AddTempWithValue(17)
	y := bf.AddTempWithValue(5)

	xForDiv := bf.AddTemp(1)
	bf.Copy(x, xForDiv)
	yForDiv := bf.AddTemp(1)
	bf.Copy(y, yForDiv)
	quotient := bf.Div(xForDiv, yForDiv)

	xForMod := bf.AddTemp(1)
	bf.Copy(x, xForMod)
	yForMod := bf.AddTemp(1)
	bf.Copy(y, yForMod)
	remainder := bf.Mod(xForMod, yForMod)

	bf.E.Var(quotient)
	bf.E.MustCode(".")
	bf.E.Var(remainder)
	bf.E.MustCode(".")
	bf.E.Var(x)
	bf.E.MustCode(".")
	bf.E.Var(y)
	bf.E.MustCode(".")

	var stdout bytes.Buffer
	interp, err := bfi.New(bf.E.String(), strings.NewReader(""), &stdout)
	if err != nil {
		t.Fatal(err)
	}
	if err := interp.Run(1_000_000); err != nil {
		t.Fatal(err)
	}
	got := stdout.Bytes()
	want := []byte{3, 2, 17, 5}
	if !bytes.Equal(got, want) {
		t.Fatalf("Div/Mod(17,5) = %v, want %v (17,5 must survive both)", got, want)
	}
}

func TestComparisons(t *testing.T) {
	bf := New(emitter.New(), funcs.NewTable(), 16)
	bf.PushScope()

	three := bf.AddTempWithValue(3)
	five := bf.AddTempWithValue(5)
	lt := bf.Lt(three, five)
	bf.E.Var(lt)
	bf.E.MustCode(".")

	threeB := bf.AddTempWithValue(3)
	fiveB := bf.AddTempWithValue(5)
	eq := bf.Eq(threeB, fiveB)
	bf.E.Var(eq)
	bf.E.MustCode(".")

	var stdout bytes.Buffer
	interp, err := bfi.New(bf.E.String(), strings.NewReader(""), &stdout)
	if err != nil {
		t.Fatal(err)
	}
	if err := interp.Run(1_000_000); err != nil {
		t.Fatal(err)
	}
	got := stdout.Bytes()
	if len(got) != 2 || got[0] != 1 || got[1] != 0 {
		t.Fatalf("Lt(3,5), Eq(3,5) = %v, want [1 0]", got)
	}
}

func TestArrayReadWriteRoundTrip(t *testing.T) {
	bf := New(emitter.New(), funcs.NewTable(), 32)
	bf.PushScope()

	arr, err := bf.DeclareVar("arr", ArrayHeadSize+4)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []int{10, 20, 30, 40} {
		lit := bf.AddTempWithValue(v)
		bf.Copy(lit, arr.Successor(ArrayHeadSize+i))
		lit.Release()
	}

	idx := bf.AddTempWithValue(2)
	val := bf.ArrayRead(arr, idx)
	bf.E.Var(val)
	bf.E.MustCode(".")

	newVal := bf.AddTempWithValue(99)
	idx2 := bf.AddTempWithValue(1)
	bf.ArrayWrite(arr, idx2, newVal)

	readBack := bf.ArrayRead(arr, idx2)
	bf.E.Var(readBack)
	bf.E.MustCode(".")

	untouchedIdx := bf.AddTempWithValue(3)
	untouched := bf.ArrayRead(arr, untouchedIdx)
	bf.E.Var(untouched)
	bf.E.MustCode(".")

	var stdout bytes.Buffer
	interp, err := bfi.New(bf.E.String(), strings.NewReader(""), &stdout)
	if err != nil {
		t.Fatal(err)
	}
	if err := interp.Run(1_000_000); err != nil {
		t.Fatal(err)
	}
	got := stdout.Bytes()
	want := []byte{30, 99, 40}
	if !bytes.Equal(got, want) {
		t.Fatalf("array read/write round trip = %v, want %v", got, want)
	}
}

func TestSetValueZeroesFirst(t *testing.T) {
	bf := New(emitter.New(), funcs.NewTable(), 16)
	bf.PushScope()

	v := bf.AddTempWithValue(200)
	bf.SetValue(v, 3)
	bf.E.Var(v)
	bf.E.MustCode(".")

	var stdout bytes.Buffer
	interp, err := bfi.New(bf.E.String(), strings.NewReader(""), &stdout)
	if err != nil {
		t.Fatal(err)
	}
	if err := interp.Run(1_000_000); err != nil {
		t.Fatal(err)
	}
	if got := stdout.Bytes()[0]; got != 3 {
		t.Fatalf("SetValue(v,3) after v=200 = %d, want 3", got)
	}
}
