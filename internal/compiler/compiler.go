// Package compiler is the lowering pass and two-pass driver (components C6
// and C7): it walks the NBF AST, emits BF through the operator library and
// the dispatch synthesiser, and runs the whole program twice so the second
// pass can size every frame with the first pass's measured reservation.
package compiler

import (
	"fmt"

	"nbfc/internal/ast"
	"nbfc/internal/bfspace"
	"nbfc/internal/emitter"
	"nbfc/internal/funcs"
)

// Compile lowers a parsed program to BF source text.
func Compile(program *ast.Program) (string, error) {
	table, err := buildTable(program)
	if err != nil {
		return "", err
	}

	// Pass 1: measure. Reservation starts at 0, so every named declaration
	// immediately overflows into the ordinary temp allocator; namedCellCounter
	// still grows by the right amount regardless, since Add() increments it
	// unconditionally before deciding where cells physically land.
	pass1 := bfspace.New(emitter.New(), table, 0)
	d1 := &driver{bf: pass1}
	if err := d1.run(); err != nil {
		return "", fmt.Errorf("compiler: measurement pass: %w", err)
	}

	reservation := pass1.MaxNamedCells
	pass2 := bfspace.New(emitter.New(), table, reservation)
	d2 := &driver{bf: pass2}
	if err := d2.run(); err != nil {
		return "", fmt.Errorf("compiler: emission pass: %w", err)
	}

	if pass2.MaxNamedCells != reservation {
		return "", fmt.Errorf("compiler: internal error: reservation sizing did not reach a fixed point (pass 1 measured %d, pass 2 measured %d)", reservation, pass2.MaxNamedCells)
	}

	return pass2.E.String(), nil
}

// buildTable registers the standard library, then every user function, then
// checks that main exists and takes no arguments.
func buildTable(program *ast.Program) (*funcs.Table, error) {
	table := funcs.NewTable()
	if err := funcs.RegisterStandardLibrary(table); err != nil {
		return nil, err
	}

	for _, fn := range program.Functions {
		if err := table.Define(&funcs.Function{Name: fn.Name, Parameters: fn.Parameters, Body: fn.Body}); err != nil {
			return nil, err
		}
	}

	if _, err := table.Lookup("main", 0); err != nil {
		return nil, fmt.Errorf("compiler: program has no zero-argument main function")
	}

	return table, nil
}

// driver walks the AST and drives one emission pass (measurement or real).
type driver struct {
	bf *bfspace.BfSpace
}

// run synthesises the dispatch loop (component C5): seed the entry call,
// then loop testing the current frame's called-function index, trying each
// registered function's body in definition order.
func (d *driver) run() error {
	bf := d.bf
	if err := bf.SeedInitialCall("main"); err != nil {
		return err
	}

	idx := bf.CalledFunctionIndex()
	bf.E.Var(idx)
	bf.E.MustCode("[")
	dedent := bf.E.Indent()

	bf.SetValue(bf.CallNotPending(), 1)

	// The dispatch loop itself needs a live root scope before the first
	// iteration's AddTempWithValue below ever runs - each function body then
	// pushes its own child scope on top of this one.
	bf.PushScope()

	for _, fn := range bf.Funcs.Functions() {
		lit := bf.AddTempWithValue(fn.Index)
		current := bf.CalledFunctionIndex()
		matched := bf.Eq(current, lit)
		lit.Release()

		var branchErr error
		bf.IfThen(matched, func() {
			bf.PushScope()
			bf.CallCounter = 0

			for i, param := range fn.Parameters {
				if _, err := bf.BindParameter(param, i); err != nil {
					branchErr = err
					return
				}
			}

			if err := d.lowerBody(fn.Body); err != nil {
				branchErr = err
				return
			}

			pendingCopy := bf.AddTemp(1)
			bf.Copy(bf.CallNotPending(), pendingCopy)
			bf.IfThen(pendingCopy, func() {
				bf.FinishFunctionCall()
			})

			bf.PopScope()
		})
		if branchErr != nil {
			return fmt.Errorf("compiler: in function %q: %w", fn.Name, branchErr)
		}
	}

	bf.PopScope()

	dedent()
	bf.E.Var(bf.CalledFunctionIndex())
	bf.E.MustCode("]")
	return nil
}

// lowerBody lowers every statement of a block in order - a function's
// top-level body, or a nested block reached through emitStatementBody. No
// guard wraps the block as a whole (for a function body the dispatch branch
// above is already the guard); each statement gets its own from
// lowerStatement.
func (d *driver) lowerBody(body *ast.Block) error {
	for _, stmt := range body.Statements {
		if err := d.lowerStatement(stmt); err != nil {
			return err
		}
	}
	return nil
}
