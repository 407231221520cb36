package spl

import (
	"unicode/utf8"
)

// execStatement runs one statement. A non-nil Value means a return is
// propagating; every construct that owns a frame pops it before passing the
// value up.
func (in *Interpreter) execStatement(stmt Statement) (Value, error) {
	switch s := stmt.(type) {
	case *VarStatement:
		v, err := in.evalExpression(s.Value)
		if err != nil {
			return nil, err
		}
		if !matchesType(s.Type, v) {
			return nil, positioned(typeError("cannot initialize %s: %s with %s of type %s", s.Name, s.Type, v.Inspect(), v.Type()), s.Token)
		}
		in.env.Define(s.Name, copyValue(v))
		return nil, nil
	case *AssignStatement:
		v, err := in.evalExpression(s.Value)
		if err != nil {
			return nil, err
		}
		if !in.env.Assign(s.Name, copyValue(v)) {
			return nil, positioned(nameError(s.Name, "assignment to undeclared variable %s", s.Name), s.Token)
		}
		return nil, nil
	case *ExpressionStatement:
		_, err := in.evalExpression(s.Expression)
		return nil, err
	case *ReturnStatement:
		if s.ReturnValue == nil {
			return UnitValue, nil
		}
		return in.evalExpression(s.ReturnValue)
	case *IfStatement:
		return in.execIf(s)
	case *WhileStatement:
		return in.execWhile(s)
	case *ForStatement:
		return in.execFor(s)
	case *ForEachStatement:
		return in.execForEach(s)
	case *BlockStatement:
		return in.execBlock(s)
	}
	return nil, runtimeError("unsupported statement %T", stmt)
}

func (in *Interpreter) execBlock(block *BlockStatement) (Value, error) {
	in.env.Push()
	defer in.env.Pop()
	return in.execStatements(block.Statements)
}

func (in *Interpreter) execStatements(stmts []Statement) (Value, error) {
	for _, stmt := range stmts {
		ret, err := in.execStatement(stmt)
		if err != nil || ret != nil {
			return ret, err
		}
	}
	return nil, nil
}

func (in *Interpreter) evalCondition(expr Expression, construct string) (bool, error) {
	v, err := in.evalExpression(expr)
	if err != nil {
		return false, err
	}
	b, ok := v.(*Boolean)
	if !ok {
		return false, typeError("%s condition must be bool, got %s of type %s", construct, v.Inspect(), v.Type())
	}
	return b.Value, nil
}

func (in *Interpreter) execIf(s *IfStatement) (Value, error) {
	ok, err := in.evalCondition(s.Condition, "if")
	if err != nil {
		return nil, err
	}
	if ok {
		return in.execBlock(s.Consequence)
	}
	for _, branch := range s.Elifs {
		ok, err := in.evalCondition(branch.Condition, "elif")
		if err != nil {
			return nil, err
		}
		if ok {
			return in.execBlock(branch.Body)
		}
	}
	if s.Alternative != nil {
		return in.execBlock(s.Alternative)
	}
	return nil, nil
}

func (in *Interpreter) execWhile(s *WhileStatement) (Value, error) {
	for {
		ok, err := in.evalCondition(s.Condition, "while")
		if err != nil || !ok {
			return nil, err
		}
		ret, err := in.execBlock(s.Body)
		if err != nil || ret != nil {
			return ret, err
		}
	}
}

// execFor runs the three-clause loop. Init, condition, step and body all
// share one frame that is popped once when the loop ends.
func (in *Interpreter) execFor(s *ForStatement) (Value, error) {
	in.env.Push()
	defer in.env.Pop()
	if s.Init != nil {
		if _, err := in.execStatement(s.Init); err != nil {
			return nil, err
		}
	}
	for {
		if s.Condition != nil {
			ok, err := in.evalCondition(s.Condition, "for")
			if err != nil || !ok {
				return nil, err
			}
		}
		ret, err := in.execBlock(s.Body)
		if err != nil || ret != nil {
			return ret, err
		}
		if s.Post != nil {
			if _, err := in.execStatement(s.Post); err != nil {
				return nil, err
			}
		}
	}
}

func (in *Interpreter) execForEach(s *ForEachStatement) (Value, error) {
	iterable, err := in.evalExpression(s.Iterable)
	if err != nil {
		return nil, err
	}
	var next func(i int) (Value, bool)
	switch it := iterable.(type) {
	case *Integer:
		if it.Value < 0 {
			return nil, runtimeError("cannot iterate over negative int %d", it.Value)
		}
		next = func(i int) (Value, bool) {
			if int64(i) >= it.Value {
				return nil, false
			}
			return &Integer{Value: int64(i)}, true
		}
	case *String:
		rest := it.Value
		next = func(int) (Value, bool) {
			if rest == "" {
				return nil, false
			}
			r, width := utf8.DecodeRuneInString(rest)
			rest = rest[width:]
			return &String{Value: string(r)}, true
		}
	case *List:
		elems := it.Elements
		next = func(i int) (Value, bool) {
			if i >= len(elems) {
				return nil, false
			}
			return copyValue(elems[i]), true
		}
	default:
		return nil, runtimeError("cannot iterate over %s of type %s", iterable.Inspect(), iterable.Type())
	}

	in.env.Push()
	defer in.env.Pop()
	for i := 0; ; i++ {
		v, ok := next(i)
		if !ok {
			return nil, nil
		}
		in.env.Define(s.Name, v)
		ret, err := in.execBlock(s.Body)
		if err != nil || ret != nil {
			return ret, err
		}
	}
}
