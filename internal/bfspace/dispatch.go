package bfspace

import (
	"strings"

	"nbfc/internal/tape"
)

// Frame layout, in true tape-offset order within a frame:
//
//	0                      __CalledFunctionIndex
//	1                      __ReturnPosition
//	2                      __CallNotPending
//	3 .. 3+maxArity-1      __PreCallParameter_0 .. _{maxArity-1}
//	3+maxArity .. header-1 __Parameter_0 .. _{maxArity-1}
//	header ..              user locals and temps (the measured reservation)
//
// PreCallParameter slots are placed in the frame header: every call
// argument, temporary or named, is hoisted there before the frame shift,
// then read back into the callee's Parameter slots once the head lands in
// the new frame.
const (
	offsetCalledFunctionIndex = 0
	offsetReturnPosition      = 1
	offsetCallNotPending      = 2
	offsetPreCallParameters   = 3
)

// HeaderSize is the number of protocol cells preceding the named-local
// reservation window in every frame.
func (bf *BfSpace) HeaderSize() int {
	return offsetPreCallParameters + 2*bf.Funcs.MaxArity()
}

// FrameSize is the total width of one frame: protocol header plus the
// globally uniform named-cell reservation.
func (bf *BfSpace) FrameSize() int {
	return bf.HeaderSize() + bf.Reservation
}

// frameCell builds a non-owning view of a protocol cell at trueOffset
// (measured from the frame's own origin), expressed in the coordinate space
// where the named-local reservation window starts at 0 - i.e. the
// coordinate space every Scope created by PushScope actually uses.
func (bf *BfSpace) frameCell(trueOffset int) tape.Variable {
	return tape.Variable{Name: "frame", Start: trueOffset - bf.HeaderSize(), Size: 1}
}

func (bf *BfSpace) CalledFunctionIndex() tape.Variable {
	return bf.frameCell(offsetCalledFunctionIndex)
}

func (bf *BfSpace) ReturnPosition() tape.Variable {
	return bf.frameCell(offsetReturnPosition)
}

func (bf *BfSpace) CallNotPending() tape.Variable {
	return bf.frameCell(offsetCallNotPending)
}

func (bf *BfSpace) PreCallParameter(i int) tape.Variable {
	return bf.frameCell(offsetPreCallParameters + i)
}

func (bf *BfSpace) Parameter(i int) tape.Variable {
	return bf.frameCell(offsetPreCallParameters + bf.Funcs.MaxArity() + i)
}

// moveFrames moves the head to coordinate 0 of the current frame, emits a
// raw, direction-signed run of frame-shift moves, and re-anchors the
// emitter's coordinate system so the cell the head lands on is coordinate 0
// of the new frame.
func (bf *BfSpace) moveFrames(frames int) {
	if frames == 0 {
		return
	}
	bf.E.Var(tape.Variable{Name: "origin", Start: 0, Size: 1})
	ch := ">"
	n := frames
	if frames < 0 {
		ch = "<"
		n = -frames
	}
	bf.E.MustCode(strings.Repeat(ch, n*bf.FrameSize()))
	bf.E.ResetOrigin()
}

// CallFunction is op_call_function: it records a fresh return position,
// hoists every argument across the frame shift, and arms the callee's
// control cells. Arguments are released (temps only; a no-op for named
// variables) once safely copied into their pre-call slot.
func (bf *BfSpace) CallFunction(name string, args []tape.Variable, callPosition int) error {
	callee, err := bf.Funcs.Lookup(name, len(args))
	if err != nil {
		return err
	}

	bf.SetValue(bf.ReturnPosition(), callPosition)
	for i := range args {
		bf.Copy(args[i], bf.PreCallParameter(i))
		args[i].Release()
	}

	bf.moveFrames(1)

	for i := range args {
		src := bf.PreCallParameter(i).Predecessor(bf.FrameSize())
		bf.Copy(src, bf.Parameter(i))
	}

	bf.SetValue(bf.CalledFunctionIndex(), callee.Index)
	bf.SetValue(bf.ReturnPosition(), 0)
	bf.SetValue(bf.CallNotPending(), 0)
	return nil
}

// FinishFunctionCall is finish_function_call: unwind the frame shift and
// mark the caller as no longer waiting on a nested call.
func (bf *BfSpace) FinishFunctionCall() {
	bf.moveFrames(-1)
	bf.SetValue(bf.CallNotPending(), 1)
}

// SeedInitialCall arms frame 0 with the entry function before the dispatch
// loop starts, equivalent to a call_function("main", []) with no caller.
func (bf *BfSpace) SeedInitialCall(name string) error {
	entry, err := bf.Funcs.Lookup(name, 0)
	if err != nil {
		return err
	}
	bf.SetValue(bf.CalledFunctionIndex(), entry.Index)
	bf.SetValue(bf.ReturnPosition(), 0)
	bf.SetValue(bf.CallNotPending(), 1)
	return nil
}
