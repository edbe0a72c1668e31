package compiler

import (
	"fmt"

	"nbfc/internal/ast"
	"nbfc/internal/tape"
	"nbfc/internal/token"
)

// releaseIfTemp releases v if it is an anonymous temporary; a no-op for
// named variables. Used after operators (Div, Mod, Lt/Le/Eq/Neq, Neg/Not)
// that preserve both of their operands instead of consuming one, leaving
// the release to the caller.
func releaseIfTemp(v tape.Variable) {
	if v.IsTemp() {
		v.Release()
	}
}

// lowerExpr lowers expr to a Variable holding its value - a fresh temp for
// any computed result, or the named variable itself for a bare reference.
func (d *driver) lowerExpr(expr ast.Expression) (tape.Variable, error) {
	bf := d.bf
	switch e := expr.(type) {
	case *ast.Literal:
		return bf.AddTempWithValue(e.Value), nil

	case *ast.VariableExpression:
		v, err := bf.Scope.Get(e.Name)
		if err != nil {
			return tape.Variable{}, err
		}
		if e.Index == nil {
			return v, nil
		}
		idx, err := d.lowerExpr(e.Index)
		if err != nil {
			return tape.Variable{}, err
		}
		result := bf.ArrayRead(v, idx)
		releaseIfTemp(idx)
		return result, nil

	case *ast.Assignment:
		return d.lowerAssignment(e)

	case *ast.Unary:
		right, err := d.lowerExpr(e.Right)
		if err != nil {
			return tape.Variable{}, err
		}
		switch e.Operator {
		case token.MINUS:
			result := bf.Neg(right)
			releaseIfTemp(right)
			return result, nil
		case token.BANG:
			result := bf.Not(right)
			releaseIfTemp(right)
			return result, nil
		default:
			releaseIfTemp(right)
			return tape.Variable{}, fmt.Errorf("compiler: unsupported unary operator %s", e.Token.Literal)
		}

	case *ast.Binary:
		left, err := d.lowerExpr(e.Left)
		if err != nil {
			return tape.Variable{}, err
		}
		right, err := d.lowerExpr(e.Right)
		if err != nil {
			releaseIfTemp(left)
			return tape.Variable{}, err
		}
		return d.lowerBinary(e.Operator, left, right)

	case *ast.Logical:
		left, err := d.lowerExpr(e.Left)
		if err != nil {
			return tape.Variable{}, err
		}
		leftFlag := bf.WrapTemp(left)

		var rightErr error
		rightFn := func() tape.Variable {
			r, err := d.lowerExpr(e.Right)
			if err != nil {
				rightErr = err
				return bf.AddTempWithValue(0)
			}
			return r
		}

		var result tape.Variable
		switch e.Operator {
		case token.AND:
			result = bf.And(leftFlag, rightFn)
		case token.OR:
			result = bf.Or(leftFlag, rightFn)
		default:
			leftFlag.Release()
			return tape.Variable{}, fmt.Errorf("compiler: unsupported logical operator %s", e.Token.Literal)
		}
		if rightErr != nil {
			return tape.Variable{}, rightErr
		}
		return result, nil

	default:
		return tape.Variable{}, fmt.Errorf("compiler: unhandled expression type %T", expr)
	}
}

// lowerBinary dispatches to the matching bfspace operator, observing each
// one's own consume/preserve contract for its operands (see SPEC_FULL.md
// §4.3): Add/Sub drain their right side, so it is passed as a temp copy
// when named, and the left side becomes the result; Mul consumes its left
// side and the right must be released by us; Div/Mod and every comparison
// preserve both sides, so both must be released here once the result is
// captured.
func (d *driver) lowerBinary(op token.TokenType, left, right tape.Variable) (tape.Variable, error) {
	bf := d.bf
	switch op {
	case token.PLUS:
		return bf.Add(left, bf.WrapTemp(right)), nil
	case token.MINUS:
		return bf.Sub(left, bf.WrapTemp(right)), nil
	case token.STAR:
		result := bf.Mul(left, right)
		releaseIfTemp(right)
		return result, nil
	case token.SLASH:
		result := bf.Div(left, right)
		releaseIfTemp(left)
		releaseIfTemp(right)
		return result, nil
	case token.PERCENT:
		result := bf.Mod(left, right)
		releaseIfTemp(left)
		releaseIfTemp(right)
		return result, nil
	case token.LESS:
		result := bf.Lt(left, right)
		releaseIfTemp(left)
		releaseIfTemp(right)
		return result, nil
	case token.LESS_EQUAL:
		result := bf.Le(left, right)
		releaseIfTemp(left)
		releaseIfTemp(right)
		return result, nil
	case token.GREATER:
		result := bf.Lt(right, left)
		releaseIfTemp(left)
		releaseIfTemp(right)
		return result, nil
	case token.GREATER_EQUAL:
		result := bf.Le(right, left)
		releaseIfTemp(left)
		releaseIfTemp(right)
		return result, nil
	case token.EQUAL_EQUAL:
		result := bf.Eq(left, right)
		releaseIfTemp(left)
		releaseIfTemp(right)
		return result, nil
	case token.BANG_EQUAL:
		result := bf.Neq(left, right)
		releaseIfTemp(left)
		releaseIfTemp(right)
		return result, nil
	default:
		releaseIfTemp(left)
		releaseIfTemp(right)
		return tape.Variable{}, fmt.Errorf("compiler: unsupported binary operator %v", op)
	}
}

// lowerAssignment evaluates the right-hand side, stores it (directly, or
// via ArrayWrite for an indexed target), and yields a fresh copy as the
// expression's own value, so `x = y = 1;` and `putc (x = 'a');` both work.
func (d *driver) lowerAssignment(a *ast.Assignment) (tape.Variable, error) {
	bf := d.bf
	val, err := d.lowerExpr(a.Value)
	if err != nil {
		return tape.Variable{}, err
	}

	target, err := bf.Scope.Get(a.Name)
	if err != nil {
		releaseIfTemp(val)
		return tape.Variable{}, err
	}

	if a.Index == nil {
		bf.Copy(val, target)
	} else {
		idx, err := d.lowerExpr(a.Index)
		if err != nil {
			releaseIfTemp(val)
			return tape.Variable{}, err
		}
		bf.ArrayWrite(target, idx, val)
		releaseIfTemp(idx)
	}

	result := bf.AddTemp(1)
	bf.Copy(val, result)
	releaseIfTemp(val)
	return result, nil
}
