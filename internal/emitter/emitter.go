// Package emitter implements the cursor-aware BF text emitter (component
// C2): it tracks the tape head position so callers never write a raw `<`/`>`
// move by hand, and it rejects anything that isn't legal BF or comment text.
package emitter

import (
	"fmt"
	"strings"

	"nbfc/internal/tape"
)

// Emitter accumulates BF source text while tracking the (conceptual) tape
// head position. It has no notion of NBF semantics; it is purely a
// validated, cursor-aware string builder.
type Emitter struct {
	out         strings.Builder
	head        int
	indentLevel int
	atLineStart bool
}

func New() *Emitter {
	return &Emitter{atLineStart: true}
}

// Head reports the emitter's current believed tape position.
func (e *Emitter) Head() int { return e.head }

// ResetOrigin declares the emitter's current physical position to be the new
// local coordinate 0, without emitting any motion. The dispatch synthesiser
// uses this immediately after a raw frame-shift move: every Variable in the
// callee's frame is addressed relative to that frame's own origin, which is
// only known at the moment the jump lands, never as an absolute tape index.
func (e *Emitter) ResetOrigin() { e.head = 0 }

// String returns the accumulated BF source.
func (e *Emitter) String() string { return e.out.String() }

// Var emits the minimal `<`/`>` run to move the head to v's start index,
// followed by a human-readable tag in comment form. A negative start is
// written as "m<n>" so the tag never contains a BF instruction character.
// This is the only way the head position changes across Variable
// boundaries.
func (e *Emitter) Var(v tape.Variable) *Emitter {
	delta := v.Start - e.head
	switch {
	case delta > 0:
		e.writeRaw(strings.Repeat(">", delta))
	case delta < 0:
		e.writeRaw(strings.Repeat("<", -delta))
	}
	e.head = v.Start
	tag := v.Name
	if tag == "" {
		tag = "tmp"
	}
	pos := fmt.Sprintf("%d", v.Start)
	if v.Start < 0 {
		pos = fmt.Sprintf("m%d", -v.Start)
	}
	e.writeRaw(fmt.Sprintf("#%s@%s", tag, pos))
	e.Line()
	return e
}

// Code appends literal BF instructions. Any `<`/`>` it contains is tracked
// against the head position, same as Var, so subsequent Var calls still
// compute the correct minimal move. The operator macros position the head
// with Var and write only non-moving instructions here; the dispatch
// synthesiser's frame shift is the one raw move written through Code.
func (e *Emitter) Code(s string) error {
	for i := 0; i < len(s); i++ {
		if !isBFChar(s[i]) {
			return fmt.Errorf("emitter: non-BF character %q written to code stream", s[i])
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '>':
			e.head++
		case '<':
			e.head--
		}
	}
	e.writeRaw(s)
	return nil
}

// MustCode is Code, panicking on validation failure. Only safe to call with
// literal constant idiom strings.
func (e *Emitter) MustCode(s string) *Emitter {
	if err := e.Code(s); err != nil {
		panic(err)
	}
	return e
}

// Comment appends free text that must not contain a BF instruction
// character. A comment containing one is a bug in the generator, not in the
// user's program, so it aborts compilation.
func (e *Emitter) Comment(text string) error {
	for i := 0; i < len(text); i++ {
		if isBFInstructionChar(text[i]) {
			return fmt.Errorf("emitter: comment %q contains BF instruction character %q", text, text[i])
		}
	}
	e.writeRaw("# " + text)
	e.Line()
	return nil
}

// Verbatim appends free text without any validation, for debug annotations
// the generator trusts by construction.
func (e *Emitter) Verbatim(text string) {
	e.writeRaw(text)
}

// Indent returns a closure that dedents when called; intended for
// `defer e.Indent()()` around a nested emission, replacing the C++ RAII
// indent guard with Go's defer mechanism.
func (e *Emitter) Indent() func() {
	e.indentLevel++
	return func() {
		e.indentLevel--
	}
}

// Line terminates the current logical write-sequence and starts a fresh,
// indented line. Purely cosmetic: it has no effect on the program the
// emitted text represents.
func (e *Emitter) Line() {
	e.out.WriteByte('\n')
	e.atLineStart = true
}

func (e *Emitter) writeRaw(s string) {
	if s == "" {
		return
	}
	if e.atLineStart {
		e.out.WriteString(strings.Repeat("  ", e.indentLevel))
		e.atLineStart = false
	}
	e.out.WriteString(s)
}

func isBFInstructionChar(ch byte) bool {
	switch ch {
	case '+', '-', '<', '>', '[', ']', ',', '.':
		return true
	}
	return false
}

func isBFChar(ch byte) bool {
	if isBFInstructionChar(ch) {
		return true
	}
	return ch == ' ' || ch == '\n' || ch == '\t'
}
