// Package bfspace is the operator-library and dispatch-synthesiser core
// (components C3 and C5): every hand-tuned BF idiom the compiler emits -
// copy, arithmetic, comparison, logic, control, array access, and function
// dispatch - lives here, grounded on the reference compiler's bf_space.
package bfspace

import (
	"strings"

	"nbfc/internal/emitter"
	"nbfc/internal/funcs"
	"nbfc/internal/tape"
)

// BfSpace bundles the emitter and the current scope chain together, the way
// the reference implementation's BfSpace class owns both the code buffer
// and the active Env. Reservation is the named-cell window of every frame
// (FrameSize adds the protocol header to it) - measured by pass 1,
// applied uniformly to every function's root scope in pass 2 (see
// DESIGN.md for why a single global value, not a per-function one, is
// correct here).
type BfSpace struct {
	E           *emitter.Emitter
	Funcs       *funcs.Table
	Scope       *tape.Scope
	Reservation int

	// CallCounter is the running count of call sites emitted so far in the
	// current function body; it becomes a call site's "return position".
	CallCounter int

	// MaxNamedCells is the high-water mark of named-cell demand observed
	// across every scope touched during emission. Pass 1 runs with
	// Reservation 0 purely to measure this; pass 2 then runs for real with
	// Reservation set to pass 1's final value.
	MaxNamedCells int
}

func New(e *emitter.Emitter, ft *funcs.Table, reservation int) *BfSpace {
	return &BfSpace{E: e, Funcs: ft, Reservation: reservation}
}

// PushScope enters a new lexical scope, e.g. for a function body or a block.
func (bf *BfSpace) PushScope() {
	if bf.Scope == nil {
		bf.Scope = tape.NewRoot(bf.Reservation)
		return
	}
	bf.Scope = bf.Scope.Push()
}

// PopScope leaves the current scope. Any temporaries it held must already
// have been released by their owners; named locals are simply forgotten.
func (bf *BfSpace) PopScope() {
	bf.Scope = bf.Scope.Pop()
}

// trackNamed updates the high-water mark after a named declaration in the
// current scope.
func (bf *BfSpace) trackNamed() {
	if n := bf.Scope.NamedCellCounter(); n > bf.MaxNamedCells {
		bf.MaxNamedCells = n
	}
}

// DeclareVar installs a new named variable in the current scope and tracks
// its contribution to the reservation high-water mark.
func (bf *BfSpace) DeclareVar(name string, size int) (tape.Variable, error) {
	v, err := bf.Scope.Add(name, size)
	if err != nil {
		return tape.Variable{}, err
	}
	bf.trackNamed()
	return v, nil
}

// BindParameter binds a function parameter name directly to its frame cell,
// outside the named-cell reservation window (see tape.Scope.BindFixed).
func (bf *BfSpace) BindParameter(name string, i int) (tape.Variable, error) {
	p := bf.Parameter(i)
	return bf.Scope.BindFixed(name, p.Start, p.Size)
}

// loopOn emits a BF loop testing v, running body inside it, and always
// repositions the head to v before both the opening and the closing
// bracket - callers never have to reason about where body left the cursor.
func (bf *BfSpace) loopOn(v tape.Variable, body func()) {
	bf.E.Var(v)
	bf.E.MustCode("[")
	body()
	bf.E.Var(v)
	bf.E.MustCode("]")
}

// Loop is loopOn, exported so driver code can build custom repeated-test
// constructs (a source while loop's recomputed condition) out of the same
// primitive every operator in this file already uses.
func (bf *BfSpace) Loop(v tape.Variable, body func()) {
	bf.loopOn(v, body)
}

func (bf *BfSpace) zero(v tape.Variable) {
	bf.E.Var(v)
	bf.E.MustCode("[-]")
}

// SetValue zeroes v and then increments or decrements it to n.
func (bf *BfSpace) SetValue(v tape.Variable, n int) {
	bf.zero(v)
	if n == 0 {
		return
	}
	bf.E.Var(v)
	if n > 0 {
		bf.E.MustCode(strings.Repeat("+", n))
	} else {
		bf.E.MustCode(strings.Repeat("-", -n))
	}
}

// AddTemp allocates an anonymous region in the current scope.
func (bf *BfSpace) AddTemp(size int) tape.Variable {
	return bf.Scope.AddTemp(size)
}

// AddTempWithValue allocates a fresh temporary and sets it to n.
func (bf *BfSpace) AddTempWithValue(n int) tape.Variable {
	v := bf.AddTemp(1)
	bf.SetValue(v, n)
	return v
}

// WrapTemp returns v unchanged if it is already anonymous, else copies it
// into a fresh temporary. Operators that destroy their first argument wrap
// it first so a named variable is never corrupted by the computation.
func (bf *BfSpace) WrapTemp(v tape.Variable) tape.Variable {
	if v.IsTemp() {
		return v
	}
	t := bf.AddTemp(1)
	bf.Copy(v, t)
	return t
}

// Copy sets dst := src non-destructively, via an auxiliary temp: drain src
// into both dst and the temp, then drain the temp back into src.
func (bf *BfSpace) Copy(src, dst tape.Variable) {
	aux := bf.AddTemp(1)
	bf.zero(dst)
	bf.zero(aux)

	bf.loopOn(src, func() {
		bf.E.Var(dst)
		bf.E.MustCode("+")
		bf.E.Var(aux)
		bf.E.MustCode("+")
		bf.E.Var(src)
		bf.E.MustCode("-")
	})
	bf.loopOn(aux, func() {
		bf.E.Var(src)
		bf.E.MustCode("+")
		bf.E.Var(aux)
		bf.E.MustCode("-")
	})
	aux.Release()
}

// Add drains y into wrap_temp(x) and returns x. y is consumed (left at
// zero) even when it is a named variable - callers that still need y's
// value afterward must pass a copy, matching the reference compiler's
// contract for this operator (see SPEC_FULL.md §4.3).
func (bf *BfSpace) Add(x, y tape.Variable) tape.Variable {
	x = bf.WrapTemp(x)
	bf.loopOn(y, func() {
		bf.E.Var(x)
		bf.E.MustCode("+")
		bf.E.Var(y)
		bf.E.MustCode("-")
	})
	y.Release()
	return x
}

// Sub drains y out of wrap_temp(x) and returns x. y is consumed, same
// discipline as Add.
func (bf *BfSpace) Sub(x, y tape.Variable) tape.Variable {
	x = bf.WrapTemp(x)
	bf.loopOn(y, func() {
		bf.E.Var(x)
		bf.E.MustCode("-")
		bf.E.Var(y)
		bf.E.MustCode("-")
	})
	y.Release()
	return x
}

// Mul is the standard three-temp BF multiply: x is wrapped and consumed, y
// is preserved (drained into the accumulator and restored each outer pass).
func (bf *BfSpace) Mul(x, y tape.Variable) tape.Variable {
	x = bf.WrapTemp(x)
	result := bf.AddTemp(1)
	bf.zero(result)
	t := bf.AddTemp(1)
	bf.zero(t)

	bf.loopOn(x, func() {
		bf.loopOn(y, func() {
			bf.E.Var(result)
			bf.E.MustCode("+")
			bf.E.Var(t)
			bf.E.MustCode("+")
			bf.E.Var(y)
			bf.E.MustCode("-")
		})
		bf.loopOn(t, func() {
			bf.E.Var(y)
			bf.E.MustCode("+")
			bf.E.Var(t)
			bf.E.MustCode("-")
		})
		bf.E.Var(x)
		bf.E.MustCode("-")
	})
	t.Release()
	x.Release()
	return result
}

// Div is standard truncating integer division by repeated subtraction: it
// works off internal copies of both operands, so unlike Add/Sub/Mul it
// preserves both x and y regardless of name. Division by zero loops
// forever in the emitted BF, per spec; it is not detected statically.
func (bf *BfSpace) Div(x, y tape.Variable) tape.Variable {
	remaining := bf.AddTemp(1)
	bf.Copy(x, remaining)
	divisor := bf.AddTemp(1)
	bf.Copy(y, divisor)
	quotient := bf.AddTempWithValue(0)
	cond := bf.AddTemp(1)

	recompute := func() {
		le := bf.Le(divisor, remaining)
		bf.Copy(le, cond)
		le.Release()
	}
	recompute()

	bf.loopOn(cond, func() {
		divisorUse := bf.AddTemp(1)
		bf.Copy(divisor, divisorUse)
		remaining = bf.Sub(remaining, divisorUse)
		one := bf.AddTempWithValue(1)
		quotient = bf.Add(quotient, one)
		recompute()
	})

	remaining.Release()
	divisor.Release()
	cond.Release()
	return quotient
}

// Mod fills a gap the operator-library prose leaves open (the grammar has
// a '%' operator, but no macro is specified for it): r = x - (x/y)*y, built
// entirely from the existing primitives, preserving both x and y.
func (bf *BfSpace) Mod(x, y tape.Variable) tape.Variable {
	xForSub := bf.AddTemp(1)
	bf.Copy(x, xForSub)
	xForDiv := bf.AddTemp(1)
	bf.Copy(x, xForDiv)
	yForDiv := bf.AddTemp(1)
	bf.Copy(y, yForDiv)
	yForMul := bf.AddTemp(1)
	bf.Copy(y, yForMul)

	q := bf.Div(xForDiv, yForDiv)
	xForDiv.Release()
	yForDiv.Release()
	qy := bf.Mul(q, yForMul)
	yForMul.Release()
	return bf.Sub(xForSub, qy)
}

// Lt is the classic decrement-race comparator: both operands are copied
// first, so the originals are left untouched regardless of name.
func (bf *BfSpace) Lt(x, y tape.Variable) tape.Variable {
	xCopy := bf.AddTemp(1)
	bf.Copy(x, xCopy)
	yCopy := bf.AddTemp(1)
	bf.Copy(y, yCopy)
	result := bf.AddTempWithValue(0)

	bf.loopOn(yCopy, func() {
		bf.E.Var(yCopy)
		bf.E.MustCode("-")
		aFlag := bf.AddTemp(1)
		bf.Copy(xCopy, aFlag)
		bf.IfThenElse(aFlag,
			func() {
				bf.E.Var(xCopy)
				bf.E.MustCode("-")
			},
			func() {
				bf.SetValue(result, 1)
				bf.zero(yCopy)
			},
		)
	})

	xCopy.Release()
	yCopy.Release()
	return result
}

// Le(x,y) = !(y<x).
func (bf *BfSpace) Le(x, y tape.Variable) tape.Variable {
	return bf.Not(bf.Lt(y, x))
}

// Eq(x,y) = !(x-y), computed off copies so neither operand is disturbed.
// The difference temp is cleared with "[-]" rather than copied cell by
// cell, so the bfi interpreter's clear-cell fast path applies even when the
// difference has wrapped around.
func (bf *BfSpace) Eq(x, y tape.Variable) tape.Variable {
	diff := bf.Neq(x, y)
	result := bf.AddTempWithValue(1)
	bf.loopOn(diff, func() {
		bf.E.Var(result)
		bf.E.MustCode("-")
		bf.zero(diff)
	})
	diff.Release()
	return result
}

// Neq(x,y) = x-y (any non-zero result is truthy), computed off copies.
func (bf *BfSpace) Neq(x, y tape.Variable) tape.Variable {
	xCopy := bf.AddTemp(1)
	bf.Copy(x, xCopy)
	yCopy := bf.AddTemp(1)
	bf.Copy(y, yCopy)
	return bf.Sub(xCopy, yCopy)
}

// Neg flips the sign of a copy of x, via 0 - x.
func (bf *BfSpace) Neg(x tape.Variable) tape.Variable {
	xCopy := bf.AddTemp(1)
	bf.Copy(x, xCopy)
	zeroTemp := bf.AddTempWithValue(0)
	return bf.Sub(zeroTemp, xCopy)
}

// Not yields 1 iff x==0, else 0. x is copied first so the original is
// preserved.
func (bf *BfSpace) Not(x tape.Variable) tape.Variable {
	xCopy := bf.AddTemp(1)
	bf.Copy(x, xCopy)
	result := bf.AddTempWithValue(1)

	bf.loopOn(xCopy, func() {
		bf.E.Var(result)
		bf.E.MustCode("-")
		bf.zero(xCopy)
	})

	xCopy.Release()
	return result
}

// And short-circuits: rightFn is invoked (emitting the right-hand side's
// code) only inside the BF branch where the left operand is truthy.
func (bf *BfSpace) And(left tape.Variable, rightFn func() tape.Variable) tape.Variable {
	t := bf.WrapTemp(left)
	result := bf.AddTemp(1)
	bf.zero(result)

	bf.loopOn(t, func() {
		y := rightFn()
		bf.Copy(y, t)
		y.Release()
		bf.loopOn(t, func() {
			bf.E.Var(result)
			bf.E.MustCode("+")
			bf.zero(t)
		})
	})

	t.Release()
	return result
}

// Or short-circuits the other way: rightFn only runs when the left operand
// is falsy.
func (bf *BfSpace) Or(left tape.Variable, rightFn func() tape.Variable) tape.Variable {
	t := bf.WrapTemp(left)
	result := bf.AddTemp(1)
	bf.zero(result)
	flag := bf.AddTempWithValue(1)

	bf.loopOn(t, func() {
		bf.E.Var(result)
		bf.E.MustCode("+")
		bf.E.Var(flag)
		bf.E.MustCode("-")
		bf.zero(t)
	})
	bf.loopOn(flag, func() {
		bf.E.Var(flag)
		bf.E.MustCode("-")
		y := rightFn()
		bf.Copy(y, t)
		y.Release()
		bf.loopOn(t, func() {
			bf.E.Var(result)
			bf.E.MustCode("+")
			bf.zero(t)
		})
	})

	t.Release()
	flag.Release()
	return result
}

// IfThen emits cond[ ... cond[-] ], the canonical BF if-without-else idiom:
// the inner clear makes the loop run at most once.
func (bf *BfSpace) IfThen(cond tape.Variable, thenFn func()) {
	bf.loopOn(cond, func() {
		thenFn()
		bf.zero(cond)
	})
	cond.Release()
}

// IfThenElse uses an auxiliary flag preset to 1: the then branch clears
// cond and decrements the flag; the else branch is flag[ ... flag- ].
func (bf *BfSpace) IfThenElse(cond tape.Variable, thenFn, elseFn func()) {
	flag := bf.AddTempWithValue(1)
	bf.loopOn(cond, func() {
		thenFn()
		bf.zero(cond)
		bf.E.Var(flag)
		bf.E.MustCode("-")
	})
	bf.loopOn(flag, func() {
		elseFn()
		bf.E.Var(flag)
		bf.E.MustCode("-")
	})
	cond.Release()
	flag.Release()
}

// ArrayHeadSize is the width of the 4-cell header every array variable
// reserves ahead of its data region (see §4.7: unused by the read/write
// idioms below, but kept as part of the layout every array declaration
// allocates, matching the reference compiler's array_head_size).
const ArrayHeadSize = 4

// arrayData returns a non-owning view of element i of arr's data region
// (the cells following the 4-cell head).
func (bf *BfSpace) arrayData(arr tape.Variable, i int) tape.Variable {
	return arr.Successor(ArrayHeadSize + i)
}

// ArrayLen reports how many data elements an array Variable holds, derived
// from its total region size minus the fixed head.
func (bf *BfSpace) ArrayLen(arr tape.Variable) int {
	return arr.Size - ArrayHeadSize
}

// ArrayRead is op_array_read: it returns a fresh temp holding arr[idx].
//
// The array's element count is a compile-time constant (every array is
// declared with a literal size), even though idx is a runtime value, so
// this does not need the classic BF "moving pointer" idiom described in
// the prose: it unrolls into one equality test per element, each guarding
// a copy into the result. This is the read/write pair's own departure from
// the spec's "moving index" description - see DESIGN.md for why a linear
// unrolled scan is the correct, simpler realization of the same contract
// (leaves every other cell untouched, restores the cursor) given a known
// element count, and reuses already-proven Eq/Copy/IfThen primitives
// instead of new raw cell-shuffling BF.
func (bf *BfSpace) ArrayRead(arr, idx tape.Variable) tape.Variable {
	n := bf.ArrayLen(arr)
	result := bf.AddTempWithValue(0)
	idxCopy := bf.AddTemp(1)
	bf.Copy(idx, idxCopy)

	for i := 0; i < n; i++ {
		lit := bf.AddTempWithValue(i)
		eq := bf.Eq(idxCopy, lit)
		lit.Release()
		elem := bf.arrayData(arr, i)
		bf.IfThen(eq, func() {
			bf.Copy(elem, result)
		})
	}

	idxCopy.Release()
	return result
}

// ArrayWrite is op_array_write: it stores value into arr[idx], leaving
// every cell but the targeted element unchanged. Same unrolled-scan
// strategy as ArrayRead.
func (bf *BfSpace) ArrayWrite(arr, idx, value tape.Variable) {
	n := bf.ArrayLen(arr)
	idxCopy := bf.AddTemp(1)
	bf.Copy(idx, idxCopy)

	for i := 0; i < n; i++ {
		lit := bf.AddTempWithValue(i)
		eq := bf.Eq(idxCopy, lit)
		lit.Release()
		elem := bf.arrayData(arr, i)
		bf.IfThen(eq, func() {
			bf.Copy(value, elem)
		})
	}

	idxCopy.Release()
}
