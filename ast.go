package spl

import (
	"fmt"
	"strings"
)

// Type is a static annotation on declarations and parameters.
type Type int

const (
	TypeInt Type = iota
	TypeBool
	TypeStr
	TypeList
)

var typeNames = map[string]Type{
	"int":  TypeInt,
	"bool": TypeBool,
	"str":  TypeStr,
	"list": TypeList,
}

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeStr:
		return "str"
	case TypeList:
		return "list"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

type Node interface {
	String() string
}

type Expression interface {
	Node
	expressionNode()
}

type Statement interface {
	Node
	statementNode()
}

type Program struct {
	Functions  []*Function
	Statements []Statement
}

func (p *Program) String() string {
	var out strings.Builder
	for _, fn := range p.Functions {
		out.WriteString(fn.String())
		out.WriteString("\n")
	}
	for _, s := range p.Statements {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

type Parameter struct {
	Name string
	Type Type
}

type Function struct {
	Name       string
	Parameters []Parameter
	Body       *BlockStatement
}

func (f *Function) String() string {
	params := make([]string, len(f.Parameters))
	for i, p := range f.Parameters {
		params[i] = p.Name + ": " + p.Type.String()
	}
	return fmt.Sprintf("func %s(%s) %s", f.Name, strings.Join(params, ", "), f.Body.String())
}

type IntegerLiteral struct {
	Value int64
}

func (il *IntegerLiteral) expressionNode() {}
func (il *IntegerLiteral) String() string  { return fmt.Sprintf("%d", il.Value) }

type StringLiteral struct {
	Value string
}

func (sl *StringLiteral) expressionNode() {}
func (sl *StringLiteral) String() string  { return fmt.Sprintf("%q", sl.Value) }

type BooleanLiteral struct {
	Value bool
}

func (bl *BooleanLiteral) expressionNode() {}
func (bl *BooleanLiteral) String() string  { return fmt.Sprintf("%t", bl.Value) }

type Identifier struct {
	Name  string
	Token Token
}

func (i *Identifier) expressionNode() {}
func (i *Identifier) String() string  { return i.Name }

type ListLiteral struct {
	Elements []Expression
}

func (ll *ListLiteral) expressionNode() {}
func (ll *ListLiteral) String() string {
	elems := make([]string, len(ll.Elements))
	for i, el := range ll.Elements {
		elems[i] = el.String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

type InfixExpression struct {
	Left     Expression
	Operator TokenType
	Right    Expression
}

func (ie *InfixExpression) expressionNode() {}
func (ie *InfixExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", ie.Left.String(), ie.Operator, ie.Right.String())
}

// CallExpression names its callee directly; calling the result of an
// arbitrary expression is not part of the language.
type CallExpression struct {
	Function  string
	Arguments []Expression
	Token     Token
}

func (ce *CallExpression) expressionNode() {}
func (ce *CallExpression) String() string {
	args := make([]string, len(ce.Arguments))
	for i, a := range ce.Arguments {
		args[i] = a.String()
	}
	return ce.Function + "(" + strings.Join(args, ", ") + ")"
}

type VarStatement struct {
	Name  string
	Type  Type
	Value Expression
	Token Token
}

func (vs *VarStatement) statementNode() {}
func (vs *VarStatement) String() string {
	return fmt.Sprintf("var %s: %s = %s", vs.Name, vs.Type, vs.Value.String())
}

type AssignStatement struct {
	Name  string
	Value Expression
	Token Token
}

func (as *AssignStatement) statementNode() {}
func (as *AssignStatement) String() string {
	return fmt.Sprintf("%s = %s", as.Name, as.Value.String())
}

type ExpressionStatement struct {
	Expression Expression
}

func (es *ExpressionStatement) statementNode() {}
func (es *ExpressionStatement) String() string { return es.Expression.String() }

type ReturnStatement struct {
	ReturnValue Expression
}

func (rs *ReturnStatement) statementNode() {}
func (rs *ReturnStatement) String() string {
	if rs.ReturnValue != nil {
		return "return " + rs.ReturnValue.String()
	}
	return "return"
}

type BlockStatement struct {
	Statements []Statement
}

func (bs *BlockStatement) statementNode() {}
func (bs *BlockStatement) String() string {
	var out strings.Builder
	out.WriteString("{ ")
	for _, s := range bs.Statements {
		out.WriteString(s.String())
		out.WriteString("; ")
	}
	out.WriteString("}")
	return out.String()
}

type ElifBranch struct {
	Condition Expression
	Body      *BlockStatement
}

type IfStatement struct {
	Condition   Expression
	Consequence *BlockStatement
	Elifs       []ElifBranch
	Alternative *BlockStatement
}

func (is *IfStatement) statementNode() {}
func (is *IfStatement) String() string {
	var out strings.Builder
	fmt.Fprintf(&out, "if %s %s", is.Condition.String(), is.Consequence.String())
	for _, e := range is.Elifs {
		fmt.Fprintf(&out, " elif %s %s", e.Condition.String(), e.Body.String())
	}
	if is.Alternative != nil {
		out.WriteString(" else ")
		out.WriteString(is.Alternative.String())
	}
	return out.String()
}

type WhileStatement struct {
	Condition Expression
	Body      *BlockStatement
}

func (ws *WhileStatement) statementNode() {}
func (ws *WhileStatement) String() string {
	return fmt.Sprintf("while %s %s", ws.Condition.String(), ws.Body.String())
}

// ForStatement is the three-clause loop; every clause is optional.
type ForStatement struct {
	Init      Statement
	Condition Expression
	Post      Statement
	Body      *BlockStatement
}

func (fs *ForStatement) statementNode() {}
func (fs *ForStatement) String() string {
	var out strings.Builder
	out.WriteString("for (")
	if fs.Init != nil {
		out.WriteString(fs.Init.String())
	}
	out.WriteString("; ")
	if fs.Condition != nil {
		out.WriteString(fs.Condition.String())
	}
	out.WriteString("; ")
	if fs.Post != nil {
		out.WriteString(fs.Post.String())
	}
	out.WriteString(") ")
	out.WriteString(fs.Body.String())
	return out.String()
}

type ForEachStatement struct {
	Name     string
	Iterable Expression
	Body     *BlockStatement
}

func (fe *ForEachStatement) statementNode() {}
func (fe *ForEachStatement) String() string {
	return fmt.Sprintf("for %s in %s %s", fe.Name, fe.Iterable.String(), fe.Body.String())
}
