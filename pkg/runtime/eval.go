package runtime

import (
	"fmt"

	"github.com/lemonberrylabs/cfpl/pkg/syntax"
	"github.com/lemonberrylabs/cfpl/pkg/types"
)

// evaluate evaluates an expression node against the engine's store.
func (e *Engine) evaluate(expr syntax.Expr) (types.Value, error) {
	switch n := expr.(type) {
	case *syntax.LiteralExpr:
		return n.Value, nil
	case *syntax.VariableExpr:
		v, ok := e.scope.Get(n.Name.Lexeme)
		if !ok {
			return types.Null, runtimeError(n.Name, fmt.Sprintf("Undefined variable '%s'.", n.Name.Lexeme))
		}
		return v, nil
	case *syntax.GroupingExpr:
		return e.evaluate(n.Inner)
	case *syntax.UnaryExpr:
		return e.evalUnary(n)
	case *syntax.BinaryExpr:
		return e.evalBinary(n)
	case *syntax.LogicalExpr:
		return e.evalLogical(n)
	case *syntax.AssignExpr:
		return e.evalAssign(n)
	default:
		return types.Null, fmt.Errorf("unsupported expression node type: %T", expr)
	}
}

func (e *Engine) evalUnary(n *syntax.UnaryExpr) (types.Value, error) {
	right, err := e.evaluate(n.Right)
	if err != nil {
		return types.Null, err
	}

	switch n.Op.Type {
	case syntax.TokenNot:
		if right.Kind() != types.KindBool {
			return types.Null, runtimeError(n.Op, "Expected 'BOOL' evaluation result.")
		}
		return types.NewBool(!right.AsBool()), nil
	case syntax.TokenMinus:
		switch right.Kind() {
		case types.KindInt:
			return types.NewInt(-right.AsInt()), nil
		case types.KindFloat:
			return types.NewFloat(-right.AsFloat()), nil
		}
	case syntax.TokenPlus:
		if right.IsNumber() {
			return right, nil
		}
	}
	return types.Null, runtimeError(n.Op, "Operand must be a number.")
}

func (e *Engine) evalBinary(n *syntax.BinaryExpr) (types.Value, error) {
	left, err := e.evaluate(n.Left)
	if err != nil {
		return types.Null, err
	}
	right, err := e.evaluate(n.Right)
	if err != nil {
		return types.Null, err
	}

	switch n.Op.Type {
	case syntax.TokenAmpersand:
		return types.NewString(left.String() + right.String()), nil
	case syntax.TokenPlus, syntax.TokenMinus, syntax.TokenStar, syntax.TokenSlash:
		return evalArith(n.Op, left, right)
	case syntax.TokenPercent:
		return evalModulo(n.Op, left, right)
	case syntax.TokenEq:
		return types.NewBool(left.Equal(right)), nil
	case syntax.TokenNe:
		return types.NewBool(!left.Equal(right)), nil
	case syntax.TokenGt, syntax.TokenGe, syntax.TokenLt, syntax.TokenLe:
		return evalCompare(n.Op, left, right)
	default:
		return types.Null, runtimeError(n.Op, fmt.Sprintf("Unsupported binary operator '%s'.", n.Op.Lexeme))
	}
}

// evalArith applies + - * /. Two ints stay int with 32-bit wrap-around;
// anything involving a float is computed in float64.
func evalArith(op syntax.Token, left, right types.Value) (types.Value, error) {
	if !left.IsNumber() || !right.IsNumber() {
		return types.Null, runtimeError(op, "Operands must be numbers.")
	}

	if left.Kind() == types.KindInt && right.Kind() == types.KindInt {
		a, b := left.AsInt(), right.AsInt()
		switch op.Type {
		case syntax.TokenPlus:
			return types.NewInt(a + b), nil
		case syntax.TokenMinus:
			return types.NewInt(a - b), nil
		case syntax.TokenStar:
			return types.NewInt(a * b), nil
		default:
			if b == 0 {
				return types.Null, runtimeError(op, "Division by zero.")
			}
			return types.NewInt(a / b), nil
		}
	}

	a, _ := left.AsNumber()
	b, _ := right.AsNumber()
	switch op.Type {
	case syntax.TokenPlus:
		return types.NewFloat(a + b), nil
	case syntax.TokenMinus:
		return types.NewFloat(a - b), nil
	case syntax.TokenStar:
		return types.NewFloat(a * b), nil
	default:
		return types.NewFloat(a / b), nil
	}
}

func evalModulo(op syntax.Token, left, right types.Value) (types.Value, error) {
	if left.Kind() != types.KindInt || right.Kind() != types.KindInt {
		return types.Null, runtimeError(op, "Operands must be integers.")
	}
	b := right.AsInt()
	if b == 0 {
		return types.Null, runtimeError(op, "Division by zero.")
	}
	return types.NewInt(left.AsInt() % b), nil
}

func evalCompare(op syntax.Token, left, right types.Value) (types.Value, error) {
	a, okA := left.AsNumber()
	b, okB := right.AsNumber()
	if !okA || !okB {
		return types.Null, runtimeError(op, "Operands must be numbers.")
	}

	switch op.Type {
	case syntax.TokenGt:
		return types.NewBool(a > b), nil
	case syntax.TokenGe:
		return types.NewBool(a >= b), nil
	case syntax.TokenLt:
		return types.NewBool(a < b), nil
	default:
		return types.NewBool(a <= b), nil
	}
}

// evalLogical evaluates AND and OR. The right operand is skipped when the
// left one decides the result, and the left value is returned.
func (e *Engine) evalLogical(n *syntax.LogicalExpr) (types.Value, error) {
	left, err := e.evaluate(n.Left)
	if err != nil {
		return types.Null, err
	}
	if left.Kind() != types.KindBool {
		return types.Null, runtimeError(n.Op, "Expected 'BOOL' evaluation result.")
	}

	if n.Op.Type == syntax.TokenOr && left.AsBool() {
		return left, nil
	}
	if n.Op.Type == syntax.TokenAnd && !left.AsBool() {
		return left, nil
	}

	right, err := e.evaluate(n.Right)
	if err != nil {
		return types.Null, err
	}
	if right.Kind() != types.KindBool {
		return types.Null, runtimeError(n.Op, "Expected 'BOOL' evaluation result.")
	}
	return right, nil
}

func (e *Engine) evalAssign(n *syntax.AssignExpr) (types.Value, error) {
	v, err := e.evaluate(n.Value)
	if err != nil {
		return types.Null, err
	}

	typ, ok := e.scope.Type(n.Name.Lexeme)
	if !ok {
		return types.Null, runtimeError(n.Name, fmt.Sprintf("Undefined variable '%s'.", n.Name.Lexeme))
	}
	coerced, ok := typ.Coerce(v)
	if !ok {
		return types.Null, runtimeError(n.Name, fmt.Sprintf("Expected '%s' type.", typ))
	}
	e.scope.Set(n.Name.Lexeme, coerced)
	return coerced, nil
}
