package spl

import (
	"math"
	"unicode/utf8"
)

func (in *Interpreter) evalExpression(expr Expression) (Value, error) {
	switch e := expr.(type) {
	case *IntegerLiteral:
		return &Integer{Value: e.Value}, nil
	case *BooleanLiteral:
		return nativeBool(e.Value), nil
	case *StringLiteral:
		return &String{Value: e.Value}, nil
	case *Identifier:
		v, ok := in.env.Get(e.Name)
		if !ok {
			return nil, positioned(nameError(e.Name, "undefined variable %s", e.Name), e.Token)
		}
		return v, nil
	case *ListLiteral:
		elems := make([]Value, len(e.Elements))
		for i, el := range e.Elements {
			v, err := in.evalExpression(el)
			if err != nil {
				return nil, err
			}
			elems[i] = copyValue(v)
		}
		return &List{Elements: elems}, nil
	case *InfixExpression:
		left, err := in.evalExpression(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := in.evalExpression(e.Right)
		if err != nil {
			return nil, err
		}
		return evalInfix(e.Operator, left, right)
	case *CallExpression:
		return in.evalCall(e)
	}
	return nil, runtimeError("unsupported expression %T", expr)
}

// evalCall evaluates the arguments, then tries the builtin registry and
// falls back to user-defined functions.
func (in *Interpreter) evalCall(call *CallExpression) (Value, error) {
	args := make([]Value, len(call.Arguments))
	for i, arg := range call.Arguments {
		v, err := in.evalExpression(arg)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	ctx := &CallContext{Name: call.Function, Out: in.out, Logger: in.logger}
	result, ok, err := in.registry.Call(ctx, call.Function, args)
	if err != nil {
		return nil, positioned(err, call.Token)
	}
	if ok {
		return result, nil
	}
	fn, ok := in.functions[call.Function]
	if !ok {
		return nil, positioned(nameError(call.Function, "unknown function %s", call.Function), call.Token)
	}
	return in.callFunction(fn, args, call.Token)
}

func (in *Interpreter) callFunction(fn *Function, args []Value, at Token) (Value, error) {
	if len(args) != len(fn.Parameters) {
		return nil, positioned(runtimeError("%s() expects %d argument(s), got %d", fn.Name, len(fn.Parameters), len(args)), at)
	}
	if in.config.TraceCalls {
		in.logger.Debug().Str("run_id", in.runID).Str("function", fn.Name).Int("args", len(args)).Msg("call")
	}
	params := make(map[string]Value, len(args))
	for i, p := range fn.Parameters {
		params[p.Name] = copyValue(args[i])
	}
	in.env.EnterCall(params)
	defer in.env.LeaveCall()
	ret, err := in.execStatements(fn.Body.Statements)
	if err != nil {
		return nil, err
	}
	if ret == nil {
		return UnitValue, nil
	}
	return ret, nil
}

// positioned attaches the call site to errors that carry no position yet.
func positioned(err error, at Token) error {
	splErr, ok := err.(*SPLError)
	if !ok || splErr.Line > 0 || at.Line == 0 {
		return err
	}
	splErr.Line, splErr.Column = at.Line, at.Column
	return splErr
}

func evalInfix(op TokenType, left, right Value) (Value, error) {
	switch l := left.(type) {
	case *Integer:
		if r, ok := right.(*Integer); ok {
			return evalIntegerInfix(op, l.Value, r.Value)
		}
	case *String:
		if r, ok := right.(*String); ok {
			return evalStringInfix(op, l.Value, r.Value)
		}
	case *Boolean:
		if r, ok := right.(*Boolean); ok {
			switch op {
			case EQ:
				return nativeBool(l.Value == r.Value), nil
			case NOT_EQ:
				return nativeBool(l.Value != r.Value), nil
			}
		}
	}
	return nil, typeError("unsupported operand types for %s: %s and %s", op, left.Type(), right.Type())
}

func evalIntegerInfix(op TokenType, a, b int64) (Value, error) {
	switch op {
	case PLUS:
		if c, ok := addInt64(a, b); ok {
			return &Integer{Value: c}, nil
		}
		return nil, runtimeError("integer overflow: %d + %d", a, b)
	case MINUS:
		if c, ok := subInt64(a, b); ok {
			return &Integer{Value: c}, nil
		}
		return nil, runtimeError("integer overflow: %d - %d", a, b)
	case ASTERISK:
		if c, ok := mulInt64(a, b); ok {
			return &Integer{Value: c}, nil
		}
		return nil, runtimeError("integer overflow: %d * %d", a, b)
	case SLASH:
		if b == 0 {
			return nil, runtimeError("division by zero")
		}
		if a == math.MinInt64 && b == -1 {
			return nil, runtimeError("integer overflow: %d / %d", a, b)
		}
		return &Integer{Value: a / b}, nil
	case EQ:
		return nativeBool(a == b), nil
	case NOT_EQ:
		return nativeBool(a != b), nil
	case LT:
		return nativeBool(a < b), nil
	case LTE:
		return nativeBool(a <= b), nil
	case GT:
		return nativeBool(a > b), nil
	case GTE:
		return nativeBool(a >= b), nil
	}
	return nil, typeError("unsupported operator %s for int", op)
}

// addInt64, subInt64 and mulInt64 report false when the result does not
// fit in an int64.
func addInt64(a, b int64) (int64, bool) {
	c := a + b
	return c, (c > a) == (b > 0)
}

func subInt64(a, b int64) (int64, bool) {
	c := a - b
	return c, (c < a) == (b > 0)
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || c/b != a {
		return c, false
	}
	return c, true
}

// evalStringInfix compares strings by length for the ordering operators;
// equality compares contents.
func evalStringInfix(op TokenType, a, b string) (Value, error) {
	switch op {
	case PLUS:
		return &String{Value: a + b}, nil
	case EQ:
		return nativeBool(a == b), nil
	case NOT_EQ:
		return nativeBool(a != b), nil
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	switch op {
	case LT:
		return nativeBool(la < lb), nil
	case LTE:
		return nativeBool(la <= lb), nil
	case GT:
		return nativeBool(la > lb), nil
	case GTE:
		return nativeBool(la >= lb), nil
	}
	return nil, typeError("unsupported operator %s for str", op)
}

// valuesEqual is structural equality used by builtins; values of different
// types are never equal.
func valuesEqual(a, b Value) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch x := a.(type) {
	case *Integer:
		return x.Value == b.(*Integer).Value
	case *Boolean:
		return x.Value == b.(*Boolean).Value
	case *String:
		return x.Value == b.(*String).Value
	case *List:
		y := b.(*List)
		if len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if !valuesEqual(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	}
	return true
}
