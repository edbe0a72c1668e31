package compiler

import (
	"fmt"

	"nbfc/internal/ast"
	"nbfc/internal/bfspace"
	"nbfc/internal/tape"
)

// guard builds the standard resumption condition for a statement whose call
// count ends at p (the compile-time count of call sites lowered so far,
// including the statement itself): CallNotPending and ReturnPosition <= p.
// ReturnPosition starts at 0, so on an ordinary (non-resuming) pass this is
// always true; after a nested call returns, it is true only for statements
// at or past the point execution was suspended.
func (d *driver) guard(p int) tape.Variable {
	bf := d.bf
	pending := bf.WrapTemp(bf.CallNotPending())
	lit := bf.AddTempWithValue(p)
	le := bf.Le(bf.ReturnPosition(), lit)
	lit.Release()
	combined := bf.Mul(pending, le)
	le.Release()
	return combined
}

// wrap runs body inside an IfThen gated by guard(CallCounter+numCalls), the
// shape every statement except a bare call, if, or while uses directly.
func (d *driver) wrap(numCalls int, body func() error) error {
	bf := d.bf
	cond := d.guard(bf.CallCounter + numCalls)
	var err error
	bf.IfThen(cond, func() {
		err = body()
	})
	return err
}

// lowerStatement lowers one statement appearing directly in a function body
// or block. Call, if, and while statements manage their own guarding; every
// other kind is wrapped uniformly by wrap.
func (d *driver) lowerStatement(stmt ast.Statement) error {
	switch st := stmt.(type) {
	case *ast.CallStatement:
		return d.lowerCallStatement(st, nil)
	case *ast.If:
		return d.lowerIf(st)
	case *ast.While:
		return d.lowerWhile(st)
	default:
		return d.wrap(ast.NumCallsOf(stmt), func() error {
			return d.emitStatementBody(stmt)
		})
	}
}

// emitStatementBody emits a statement's own BF with no guard of its own -
// the caller (wrap, or an if-branch's combined guard) has already arranged
// that. If and while are the exception: they always manage their own
// guarding internally, however they are reached.
func (d *driver) emitStatementBody(stmt ast.Statement) error {
	bf := d.bf
	switch st := stmt.(type) {
	case *ast.VarDeclaration:
		return d.lowerVarDecl(st)
	case *ast.Putc:
		return d.lowerPutc(st)
	case *ast.ExpressionStatement:
		v, err := d.lowerExpr(st.Expression)
		if err != nil {
			return err
		}
		if v.IsTemp() {
			v.Release()
		}
		return nil
	case *ast.Block:
		bf.PushScope()
		err := d.lowerBody(st)
		bf.PopScope()
		return err
	case *ast.If:
		return d.lowerIf(st)
	case *ast.While:
		return d.lowerWhile(st)
	case *ast.CallStatement:
		return d.lowerCallStatement(st, nil)
	default:
		return fmt.Errorf("compiler: unhandled statement type %T", stmt)
	}
}

func (d *driver) lowerVarDecl(decl *ast.VarDeclaration) error {
	bf := d.bf
	headSize := 0
	if decl.Size > 1 {
		headSize = bfspace.ArrayHeadSize
	}
	v, err := bf.DeclareVar(decl.Name, decl.Size+headSize)
	if err != nil {
		return err
	}
	for i, initExpr := range decl.Initializer {
		val, err := d.lowerExpr(initExpr)
		if err != nil {
			return err
		}
		bf.Copy(val, v.Successor(headSize+i))
		if val.IsTemp() {
			val.Release()
		}
	}
	return nil
}

func (d *driver) lowerPutc(p *ast.Putc) error {
	bf := d.bf
	v, err := d.lowerExpr(p.Value)
	if err != nil {
		return err
	}
	bf.E.Var(v)
	bf.E.MustCode(".")
	if v.IsTemp() {
		v.Release()
	}
	return nil
}

// lowerCallStatement is op_call_function's call site: it issues the call
// only the first time the enclosing body reaches this point (gated by
// guard(pBefore), optionally ANDed with extra - the branch flag of an
// enclosing if), then unconditionally emits the follow-up check that resets
// ReturnPosition once the call has genuinely returned, so a call inside a
// while is free to fire again on the loop's next iteration instead of being
// gated off forever.
func (d *driver) lowerCallStatement(cs *ast.CallStatement, extra *tape.Variable) error {
	bf := d.bf
	pBefore := bf.CallCounter
	callPos := pBefore + 1

	mainGuard := d.guard(pBefore)
	if extra != nil {
		factorCopy := bf.AddTemp(1)
		bf.Copy(*extra, factorCopy)
		combined := bf.Mul(factorCopy, mainGuard)
		mainGuard.Release()
		mainGuard = combined
	}

	var err error
	bf.IfThen(mainGuard, func() {
		args := make([]tape.Variable, len(cs.Arguments))
		for i, a := range cs.Arguments {
			v, aerr := d.lowerExpr(a)
			if aerr != nil {
				err = aerr
				return
			}
			args[i] = v
		}
		if err != nil {
			return
		}
		bf.SetValue(bf.CallNotPending(), 0)
		if cerr := bf.CallFunction(cs.Callee, args, callPos); cerr != nil {
			err = cerr
		}
	})
	if err != nil {
		return err
	}
	bf.CallCounter = callPos

	lit := bf.AddTempWithValue(callPos)
	atPos := bf.Eq(bf.ReturnPosition(), lit)
	lit.Release()
	pending := bf.WrapTemp(bf.CallNotPending())
	justReturned := bf.Mul(pending, atPos)
	atPos.Release()

	bf.IfThen(justReturned, func() {
		one := bf.AddTempWithValue(1)
		decremented := bf.Sub(bf.WrapTemp(bf.ReturnPosition()), one)
		bf.Copy(decremented, bf.ReturnPosition())
		decremented.Release()
	})
	return nil
}

// lowerAsBranch lowers stmt as one arm of an if, combining condFactor (the
// arm's own truth value - the condition itself, or its negation) with the
// ordinary resumption-range guard ending at pEnd, so the arm can be
// re-entered on a resumption pass even though a plain leaf-statement guard
// based on the if's own starting position would say "already done".
func (d *driver) lowerAsBranch(stmt ast.Statement, condFactor tape.Variable, pEnd int) error {
	bf := d.bf
	if cs, ok := stmt.(*ast.CallStatement); ok {
		return d.lowerCallStatement(cs, &condFactor)
	}

	rangeGuard := d.guard(pEnd)
	factorCopy := bf.AddTemp(1)
	bf.Copy(condFactor, factorCopy)
	combined := bf.Mul(factorCopy, rangeGuard)
	rangeGuard.Release()

	var err error
	bf.IfThen(combined, func() {
		err = d.emitStatementBody(stmt)
	})
	return err
}

// lowerIf emits the two branches as independently guarded ifs (see
// lowerAsBranch) rather than a single BF if/else, so whichever branch a
// nested call suspended inside can be re-entered on its own, without
// re-running the branch that was not taken.
func (d *driver) lowerIf(ifs *ast.If) error {
	bf := d.bf
	pStart := bf.CallCounter

	condVal, err := d.lowerExpr(ifs.Condition)
	if err != nil {
		return err
	}
	condFlag := bf.AddTemp(1)
	bf.Copy(condVal, condFlag)
	if condVal.IsTemp() {
		condVal.Release()
	}

	thenCalls := ast.NumCallsOf(ifs.Then)
	if err := d.lowerAsBranch(ifs.Then, condFlag, pStart+thenCalls); err != nil {
		condFlag.Release()
		return err
	}
	bf.CallCounter = pStart + thenCalls

	notFlag := bf.Not(condFlag)
	condFlag.Release()

	if ifs.Else != nil {
		elseCalls := ast.NumCallsOf(ifs.Else)
		if err := d.lowerAsBranch(ifs.Else, notFlag, pStart+thenCalls+elseCalls); err != nil {
			notFlag.Release()
			return err
		}
		bf.CallCounter = pStart + thenCalls + elseCalls
	}
	notFlag.Release()
	return nil
}

// lowerWhile emits a native BF loop whose flag cell holds the condition,
// recomputed fresh both before the loop and at the end of every body pass.
// CallNotPending is folded into the same flag: the moment a nested call
// fires, the flag clears regardless of the source condition, so the loop
// exits immediately and control falls through to the dispatch machinery;
// resuming re-evaluates the (pure, side-effect-free) condition from scratch,
// which gives the same answer it would have on the suspended pass, and the
// body's own per-statement guards pick up exactly where they left off.
func (d *driver) lowerWhile(ws *ast.While) error {
	bf := d.bf
	bodyStart := bf.CallCounter
	bodyCalls := ast.NumCallsOf(ws.Body)

	flag := bf.AddTemp(1)
	var err error
	recompute := func() {
		condVal, cerr := d.lowerExpr(ws.Condition)
		if cerr != nil {
			err = cerr
			return
		}
		bf.Copy(condVal, flag)
		if condVal.IsTemp() {
			condVal.Release()
		}
		pending := bf.WrapTemp(bf.CallNotPending())
		gated := bf.Mul(pending, flag)
		bf.Copy(gated, flag)
		gated.Release()
	}

	recompute()
	if err != nil {
		flag.Release()
		return err
	}

	bf.Loop(flag, func() {
		if berr := d.emitStatementBody(ws.Body); berr != nil {
			err = berr
			return
		}
		recompute()
	})
	flag.Release()
	if err != nil {
		return err
	}
	bf.CallCounter = bodyStart + bodyCalls
	return nil
}
