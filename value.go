package spl

import (
	"math"
	"strconv"
	"strings"
)

type ValueType string

const (
	INTEGER_VAL = "int"
	BOOLEAN_VAL = "bool"
	STRING_VAL  = "str"
	LIST_VAL    = "list"
	UNIT_VAL    = "unit"
)

// Value is a runtime value. Values are never mutated after construction;
// list helpers always build a new List.
type Value interface {
	Type() ValueType
	Inspect() string
}

type Integer struct {
	Value int64
}

func (i *Integer) Type() ValueType { return INTEGER_VAL }
func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ValueType { return BOOLEAN_VAL }
func (b *Boolean) Inspect() string  { return strconv.FormatBool(b.Value) }

type String struct {
	Value string
}

func (s *String) Type() ValueType { return STRING_VAL }
func (s *String) Inspect() string  { return s.Value }

type List struct {
	Elements []Value
}

func (l *List) Type() ValueType { return LIST_VAL }
func (l *List) Inspect() string {
	var out strings.Builder
	out.WriteString("[")
	for i, el := range l.Elements {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(el.Inspect())
	}
	out.WriteString("]")
	return out.String()
}

type Unit struct{}

func (u *Unit) Type() ValueType { return UNIT_VAL }
func (u *Unit) Inspect() string  { return "()" }

var (
	UnitValue  = &Unit{}
	trueValue  = &Boolean{Value: true}
	falseValue = &Boolean{Value: false}
)

func nativeBool(b bool) *Boolean {
	if b {
		return trueValue
	}
	return falseValue
}

// copyValue returns a value that shares no list storage with v.
func copyValue(v Value) Value {
	list, ok := v.(*List)
	if !ok {
		return v
	}
	elems := make([]Value, len(list.Elements))
	for i, el := range list.Elements {
		elems[i] = copyValue(el)
	}
	return &List{Elements: elems}
}

func matchesType(t Type, v Value) bool {
	switch t {
	case TypeInt:
		return v.Type() == INTEGER_VAL
	case TypeBool:
		return v.Type() == BOOLEAN_VAL
	case TypeStr:
		return v.Type() == STRING_VAL
	case TypeList:
		return v.Type() == LIST_VAL
	}
	return false
}

// FromNative converts Go scalars and slices into runtime values. It is used
// by embedders that hand data to builtins and by the HTTP layer.
func FromNative(v any) (Value, bool) {
	switch x := v.(type) {
	case nil:
		return UnitValue, true
	case Value:
		return x, true
	case int:
		return &Integer{Value: int64(x)}, true
	case int64:
		return &Integer{Value: x}, true
	case float64:
		if x != math.Trunc(x) {
			return nil, false
		}
		return &Integer{Value: int64(x)}, true
	case bool:
		return nativeBool(x), true
	case string:
		return &String{Value: x}, true
	case []string:
		elems := make([]Value, len(x))
		for i, item := range x {
			elems[i] = &String{Value: item}
		}
		return &List{Elements: elems}, true
	case []any:
		elems := make([]Value, 0, len(x))
		for _, item := range x {
			el, ok := FromNative(item)
			if !ok {
				return nil, false
			}
			elems = append(elems, el)
		}
		return &List{Elements: elems}, true
	}
	return nil, false
}

// ToNative is the inverse of FromNative; Unit becomes nil.
func ToNative(v Value) any {
	switch x := v.(type) {
	case *Integer:
		return x.Value
	case *Boolean:
		return x.Value
	case *String:
		return x.Value
	case *List:
		out := make([]any, len(x.Elements))
		for i, el := range x.Elements {
			out[i] = ToNative(el)
		}
		return out
	}
	return nil
}
