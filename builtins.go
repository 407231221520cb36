package spl

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/oarkflow/convert"
	"github.com/oarkflow/date"
)

// maxRangeLen caps the list range() materialises.
const maxRangeLen = 1 << 24

func registerDefaultBuiltins(r *Registry) {
	_ = r.register("print", func(ctx *CallContext, args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = arg.Inspect()
		}
		if _, err := fmt.Fprintln(ctx.Out, strings.Join(parts, " ")); err != nil {
			return nil, &SPLError{Code: ErrCodeRuntime, Message: "print: write failed", Cause: err}
		}
		return UnitValue, nil
	}, true)
	_ = r.register("len", func(ctx *CallContext, args []Value) (Value, error) {
		if err := expectArgs(ctx, args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case *String:
			return &Integer{Value: int64(utf8.RuneCountInString(v.Value))}, nil
		case *List:
			return &Integer{Value: int64(len(v.Elements))}, nil
		}
		return nil, argTypeError(ctx, "str or list", args[0])
	}, true)
	_ = r.register("sum", func(ctx *CallContext, args []Value) (Value, error) {
		if err := expectArgs(ctx, args, 1); err != nil {
			return nil, err
		}
		list, ok := args[0].(*List)
		if !ok {
			return nil, argTypeError(ctx, "list", args[0])
		}
		var total int64
		for _, el := range list.Elements {
			n, ok := el.(*Integer)
			if !ok {
				return nil, typeError("sum() expects a list of int, found element %s of type %s", el.Inspect(), el.Type())
			}
			next, ok := addInt64(total, n.Value)
			if !ok {
				return nil, runtimeError("integer overflow in sum()")
			}
			total = next
		}
		return &Integer{Value: total}, nil
	}, true)
	_ = r.register("range", func(ctx *CallContext, args []Value) (Value, error) {
		if len(args) != 1 && len(args) != 2 {
			return nil, runtimeError("range() expects 1 or 2 arguments, got %d", len(args))
		}
		bounds := make([]int64, len(args))
		for i, arg := range args {
			n, ok := arg.(*Integer)
			if !ok {
				return nil, argTypeError(ctx, "int", arg)
			}
			bounds[i] = n.Value
		}
		var lo, hi int64
		if len(bounds) == 1 {
			if bounds[0] < 0 {
				return nil, runtimeError("range(n) requires n >= 0, got %d", bounds[0])
			}
			hi = bounds[0]
		} else {
			lo, hi = bounds[0], bounds[1]
			if lo > hi {
				return nil, runtimeError("range(a, b) requires a <= b, got %d > %d", lo, hi)
			}
		}
		// lo <= hi, so the unsigned difference is the exact span even when
		// hi-lo overflows int64.
		span := uint64(hi) - uint64(lo)
		if span > maxRangeLen {
			return nil, runtimeError("range() of %d elements exceeds the limit of %d", span, maxRangeLen)
		}
		elems := make([]Value, 0, span)
		for i := lo; i < hi; i++ {
			elems = append(elems, &Integer{Value: i})
		}
		return &List{Elements: elems}, nil
	}, true)
	_ = r.register("str", func(ctx *CallContext, args []Value) (Value, error) {
		if err := expectArgs(ctx, args, 1); err != nil {
			return nil, err
		}
		return &String{Value: args[0].Inspect()}, nil
	}, true)
	_ = r.register("push", func(ctx *CallContext, args []Value) (Value, error) {
		if err := expectArgs(ctx, args, 2); err != nil {
			return nil, err
		}
		list, ok := args[0].(*List)
		if !ok {
			return nil, argTypeError(ctx, "list", args[0])
		}
		elems := make([]Value, len(list.Elements), len(list.Elements)+1)
		copy(elems, list.Elements)
		return &List{Elements: append(elems, args[1])}, nil
	}, true)
	_ = r.register("head", func(ctx *CallContext, args []Value) (Value, error) {
		list, err := nonEmptyList(ctx, args)
		if err != nil {
			return nil, err
		}
		return list.Elements[0], nil
	}, true)
	_ = r.register("tail", func(ctx *CallContext, args []Value) (Value, error) {
		list, err := nonEmptyList(ctx, args)
		if err != nil {
			return nil, err
		}
		elems := make([]Value, len(list.Elements)-1)
		copy(elems, list.Elements[1:])
		return &List{Elements: elems}, nil
	}, true)
	_ = r.register("type", func(ctx *CallContext, args []Value) (Value, error) {
		if err := expectArgs(ctx, args, 1); err != nil {
			return nil, err
		}
		return &String{Value: string(args[0].Type())}, nil
	}, true)
	_ = r.register("int", func(ctx *CallContext, args []Value) (Value, error) {
		if err := expectArgs(ctx, args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case *Integer:
			return v, nil
		case *Boolean:
			if v.Value {
				return &Integer{Value: 1}, nil
			}
			return &Integer{Value: 0}, nil
		case *String:
			f, ok := convert.ToFloat64(strings.TrimSpace(v.Value))
			if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
				return nil, runtimeError("int() cannot convert %q", v.Value)
			}
			return &Integer{Value: int64(f)}, nil
		}
		return nil, argTypeError(ctx, "int, bool or str", args[0])
	}, true)
	_ = r.register("upper", stringMapper(strings.ToUpper), true)
	_ = r.register("lower", stringMapper(strings.ToLower), true)
	_ = r.register("split", func(ctx *CallContext, args []Value) (Value, error) {
		strs, err := stringArgs(ctx, args, 2)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(strs[0], strs[1])
		elems := make([]Value, len(parts))
		for i, p := range parts {
			elems[i] = &String{Value: p}
		}
		return &List{Elements: elems}, nil
	}, true)
	_ = r.register("join", func(ctx *CallContext, args []Value) (Value, error) {
		if err := expectArgs(ctx, args, 2); err != nil {
			return nil, err
		}
		list, ok := args[0].(*List)
		if !ok {
			return nil, argTypeError(ctx, "list", args[0])
		}
		sep, ok := args[1].(*String)
		if !ok {
			return nil, argTypeError(ctx, "str", args[1])
		}
		parts := make([]string, len(list.Elements))
		for i, el := range list.Elements {
			parts[i] = el.Inspect()
		}
		return &String{Value: strings.Join(parts, sep.Value)}, nil
	}, true)
	_ = r.register("abs", func(ctx *CallContext, args []Value) (Value, error) {
		if err := expectArgs(ctx, args, 1); err != nil {
			return nil, err
		}
		n, ok := args[0].(*Integer)
		if !ok {
			return nil, argTypeError(ctx, "int", args[0])
		}
		if n.Value == math.MinInt64 {
			return nil, runtimeError("integer overflow in abs(%d)", n.Value)
		}
		if n.Value < 0 {
			return &Integer{Value: -n.Value}, nil
		}
		return n, nil
	}, true)
	_ = r.register("min", integerFold(func(a, b int64) bool { return a < b }), true)
	_ = r.register("max", integerFold(func(a, b int64) bool { return a > b }), true)
	_ = r.register("contains", func(ctx *CallContext, args []Value) (Value, error) {
		if err := expectArgs(ctx, args, 2); err != nil {
			return nil, err
		}
		switch haystack := args[0].(type) {
		case *String:
			needle, ok := args[1].(*String)
			if !ok {
				return nil, argTypeError(ctx, "str", args[1])
			}
			return nativeBool(strings.Contains(haystack.Value, needle.Value)), nil
		case *List:
			for _, el := range haystack.Elements {
				if valuesEqual(el, args[1]) {
					return trueValue, nil
				}
			}
			return falseValue, nil
		}
		return nil, argTypeError(ctx, "str or list", args[0])
	}, true)
	// date normalizes a free-form date string, by default to YYYY-MM-DD.
	_ = r.register("date", func(ctx *CallContext, args []Value) (Value, error) {
		layout := "2006-01-02"
		if len(args) == 2 {
			strs, err := stringArgs(ctx, args, 2)
			if err != nil {
				return nil, err
			}
			layout = strs[1]
			args = args[:1]
		}
		strs, err := stringArgs(ctx, args, 1)
		if err != nil {
			return nil, err
		}
		t, err := date.Parse(strs[0])
		if err != nil {
			return nil, &SPLError{Code: ErrCodeRuntime, Message: fmt.Sprintf("date(): cannot parse %q", strs[0]), Cause: err}
		}
		return &String{Value: t.Format(layout)}, nil
	}, true)
}

func expectArgs(ctx *CallContext, args []Value, n int) error {
	if len(args) != n {
		return runtimeError("%s() expects %d argument(s), got %d", ctx.Name, n, len(args))
	}
	return nil
}

func argTypeError(ctx *CallContext, want string, got Value) error {
	return typeError("%s() expects %s, got %s of type %s", ctx.Name, want, got.Inspect(), got.Type())
}

func nonEmptyList(ctx *CallContext, args []Value) (*List, error) {
	if err := expectArgs(ctx, args, 1); err != nil {
		return nil, err
	}
	list, ok := args[0].(*List)
	if !ok {
		return nil, argTypeError(ctx, "list", args[0])
	}
	if len(list.Elements) == 0 {
		return nil, runtimeError("%s() of empty list", ctx.Name)
	}
	return list, nil
}

func stringArgs(ctx *CallContext, args []Value, n int) ([]string, error) {
	if err := expectArgs(ctx, args, n); err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i, arg := range args {
		s, ok := arg.(*String)
		if !ok {
			return nil, argTypeError(ctx, "str", arg)
		}
		out[i] = s.Value
	}
	return out, nil
}

func stringMapper(fn func(string) string) BuiltinHandler {
	return func(ctx *CallContext, args []Value) (Value, error) {
		strs, err := stringArgs(ctx, args, 1)
		if err != nil {
			return nil, err
		}
		return &String{Value: fn(strs[0])}, nil
	}
}

// integerFold accepts either int arguments or a single list of ints and
// keeps the element for which better reports true.
func integerFold(better func(a, b int64) bool) BuiltinHandler {
	return func(ctx *CallContext, args []Value) (Value, error) {
		items := args
		if len(args) == 1 {
			if list, ok := args[0].(*List); ok {
				items = list.Elements
			}
		}
		if len(items) == 0 {
			return nil, runtimeError("%s() of no values", ctx.Name)
		}
		var best *Integer
		for _, item := range items {
			n, ok := item.(*Integer)
			if !ok {
				return nil, argTypeError(ctx, "int", item)
			}
			if best == nil || better(n.Value, best.Value) {
				best = n
			}
		}
		return best, nil
	}
}
