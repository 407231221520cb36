package spl

import (
	"strconv"
)

// Parser is a recursive-descent parser with a single token of lookahead.
// Errors unwind through a panic carrying *SPLError which ParseProgram
// recovers; nothing panics out of the package.
type Parser struct {
	l   *Lexer
	cur Token
}

func NewParser(l *Lexer) *Parser {
	return &Parser{l: l}
}

// Parse scans and parses a complete source text.
func Parse(input string) (*Program, error) {
	return NewParser(NewLexer(input)).ParseProgram()
}

func (p *Parser) ParseProgram() (program *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			splErr, ok := r.(*SPLError)
			if !ok {
				panic(r)
			}
			program, err = nil, splErr
		}
	}()
	p.bump()
	program = &Program{}
	for {
		p.skipNewlines()
		if p.cur.Type == EOF {
			return program, nil
		}
		if p.cur.Type == FUNC {
			program.Functions = append(program.Functions, p.parseFunction())
			continue
		}
		program.Statements = append(program.Statements, p.parseStatement())
	}
}

func (p *Parser) bump() {
	tok, err := p.l.NextToken()
	if err != nil {
		panic(err)
	}
	p.cur = tok
}

// peekIsAssign reports whether the token after cur is '='. It scans a copy
// of the lexer so the real stream is left untouched.
func (p *Parser) peekIsAssign() bool {
	tok, err := p.l.Clone().NextToken()
	return err == nil && tok.Type == ASSIGN
}

// peekPastNewlines returns the type of the first token at or after cur that
// is not a newline, without consuming anything.
func (p *Parser) peekPastNewlines() TokenType {
	if p.cur.Type != NEWLINE {
		return p.cur.Type
	}
	l := p.l.Clone()
	for {
		tok, err := l.NextToken()
		if err != nil {
			return EOF
		}
		if tok.Type != NEWLINE {
			return tok.Type
		}
	}
}

func (p *Parser) errorf(format string, args ...any) {
	panic(syntaxError(p.cur, format, args...))
}

func (p *Parser) expect(t TokenType, what string) {
	if p.cur.Type != t {
		p.errorf("expected %s, found %s", what, p.cur)
	}
	p.bump()
}

func (p *Parser) expectIdent(what string) string {
	if p.cur.Type != IDENT {
		p.errorf("expected %s, found %s", what, p.cur)
	}
	name := p.cur.Literal
	p.bump()
	return name
}

func (p *Parser) skipNewlines() {
	for p.cur.Type == NEWLINE {
		p.bump()
	}
}

func (p *Parser) parseFunction() *Function {
	p.bump()
	fn := &Function{Name: p.expectIdent("function name")}
	p.expect(LPAREN, "'(' after function name")
	seen := make(map[string]bool)
	for p.cur.Type != RPAREN {
		tok := p.cur
		name := p.expectIdent("parameter name")
		if seen[name] {
			panic(syntaxError(tok, "duplicate parameter %s in function %s", name, fn.Name))
		}
		seen[name] = true
		p.expect(COLON, "':' after parameter name")
		fn.Parameters = append(fn.Parameters, Parameter{Name: name, Type: p.parseType()})
		if p.cur.Type != COMMA {
			break
		}
		p.bump()
	}
	p.expect(RPAREN, "')' after parameters")
	fn.Body = p.parseBlock()
	p.endStatement()
	return fn
}

func (p *Parser) parseType() Type {
	if p.cur.Type == IDENT {
		if t, ok := typeNames[p.cur.Literal]; ok {
			p.bump()
			return t
		}
	}
	p.errorf("expected type (int, bool, str or list), found %s", p.cur)
	return 0
}

func (p *Parser) parseStatement() Statement {
	var stmt Statement
	switch p.cur.Type {
	case FUNC:
		p.errorf("functions may only be defined at top level")
	case VAR:
		stmt = p.parseVarStatement()
	case RETURN:
		stmt = p.parseReturnStatement()
	case IF:
		stmt = p.parseIfStatement()
	case WHILE:
		stmt = p.parseWhileStatement()
	case FOR:
		stmt = p.parseForStatement()
	default:
		stmt = p.parseSimpleStatement()
	}
	p.endStatement()
	return stmt
}

// endStatement consumes the newline that ends a statement. A closing brace
// or EOF also ends one and is left in place for the caller.
func (p *Parser) endStatement() {
	switch p.cur.Type {
	case NEWLINE:
		p.bump()
	case RBRACE, EOF:
	default:
		p.errorf("expected newline or '}' after statement, found %s", p.cur)
	}
}

// parseSimpleStatement handles assignment and bare expressions, the only
// forms allowed in a for-loop header besides var.
func (p *Parser) parseSimpleStatement() Statement {
	if p.cur.Type == IDENT && p.peekIsAssign() {
		tok := p.cur
		p.bump()
		p.bump()
		return &AssignStatement{Name: tok.Literal, Value: p.parseExpression(), Token: tok}
	}
	return &ExpressionStatement{Expression: p.parseExpression()}
}

func (p *Parser) parseVarStatement() *VarStatement {
	stmt := &VarStatement{Token: p.cur}
	p.bump()
	stmt.Name = p.expectIdent("variable name")
	p.expect(COLON, "':' after variable name")
	stmt.Type = p.parseType()
	p.expect(ASSIGN, "'=' in declaration")
	stmt.Value = p.parseExpression()
	return stmt
}

func (p *Parser) parseReturnStatement() *ReturnStatement {
	p.bump()
	switch p.cur.Type {
	case NEWLINE, RBRACE, EOF:
		return &ReturnStatement{}
	}
	return &ReturnStatement{ReturnValue: p.parseExpression()}
}

func (p *Parser) parseBlock() *BlockStatement {
	p.expect(LBRACE, "'{'")
	block := &BlockStatement{}
	p.skipNewlines()
	for p.cur.Type != RBRACE {
		if p.cur.Type == EOF {
			p.errorf("unterminated block, expected '}'")
		}
		block.Statements = append(block.Statements, p.parseStatement())
		p.skipNewlines()
	}
	p.bump()
	return block
}

func (p *Parser) parseIfStatement() *IfStatement {
	p.bump()
	stmt := &IfStatement{Condition: p.parseExpression()}
	stmt.Consequence = p.parseBlock()
	for {
		if t := p.peekPastNewlines(); t != ELIF && t != ELSE {
			return stmt
		}
		p.skipNewlines()
		switch p.cur.Type {
		case ELIF:
			p.bump()
			cond := p.parseExpression()
			stmt.Elifs = append(stmt.Elifs, ElifBranch{Condition: cond, Body: p.parseBlock()})
		case ELSE:
			p.bump()
			stmt.Alternative = p.parseBlock()
			return stmt
		default:
			return stmt
		}
	}
}

func (p *Parser) parseWhileStatement() *WhileStatement {
	p.bump()
	stmt := &WhileStatement{Condition: p.parseExpression()}
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseForStatement() Statement {
	p.bump()
	switch p.cur.Type {
	case LPAREN:
		return p.parseThreeClauseFor()
	case IDENT:
		stmt := &ForEachStatement{Name: p.cur.Literal}
		p.bump()
		p.expect(IN, "'in' in for loop")
		stmt.Iterable = p.parseExpression()
		stmt.Body = p.parseBlock()
		return stmt
	}
	p.errorf("expected '(' or loop variable after 'for', found %s", p.cur)
	return nil
}

func (p *Parser) parseThreeClauseFor() *ForStatement {
	p.bump()
	stmt := &ForStatement{}
	if p.cur.Type != SEMICOLON {
		stmt.Init = p.parseForClause()
	}
	p.expect(SEMICOLON, "';' after for-loop initializer")
	if p.cur.Type != SEMICOLON {
		stmt.Condition = p.parseExpression()
	}
	p.expect(SEMICOLON, "';' after for-loop condition")
	if p.cur.Type != RPAREN {
		stmt.Post = p.parseForClause()
	}
	p.expect(RPAREN, "')' after for-loop clauses")
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseForClause() Statement {
	switch p.cur.Type {
	case VAR:
		return p.parseVarStatement()
	case FUNC, RETURN, IF, WHILE, FOR, LBRACE:
		p.errorf("malformed for-loop clause at %s", p.cur)
	}
	return p.parseSimpleStatement()
}

func isExpressionOperator(t TokenType) bool {
	switch t {
	case PLUS, MINUS, EQ, NOT_EQ, LT, LTE, GT, GTE:
		return true
	}
	return false
}

// parseExpression handles the loosest level: additive and comparison
// operators share one left-associative precedence.
func (p *Parser) parseExpression() Expression {
	left := p.parseTerm()
	for isExpressionOperator(p.cur.Type) {
		op := p.cur.Type
		p.bump()
		left = &InfixExpression{Left: left, Operator: op, Right: p.parseTerm()}
	}
	return left
}

func (p *Parser) parseTerm() Expression {
	left := p.parseCall()
	for p.cur.Type == ASTERISK || p.cur.Type == SLASH {
		op := p.cur.Type
		p.bump()
		left = &InfixExpression{Left: left, Operator: op, Right: p.parseCall()}
	}
	return left
}

func (p *Parser) parseCall() Expression {
	start := p.cur
	expr := p.parsePrimary()
	for p.cur.Type == LPAREN {
		ident, ok := expr.(*Identifier)
		if !ok || start.Type == LPAREN {
			p.errorf("cannot call (%s), only bare function names are callable", expr.String())
		}
		expr = &CallExpression{Function: ident.Name, Arguments: p.parseArguments(), Token: start}
	}
	return expr
}

func (p *Parser) parseArguments() []Expression {
	p.bump()
	var args []Expression
	for p.cur.Type != RPAREN {
		args = append(args, p.parseExpression())
		if p.cur.Type != COMMA {
			break
		}
		p.bump()
	}
	p.expect(RPAREN, "')' after arguments")
	return args
}

func (p *Parser) parsePrimary() Expression {
	tok := p.cur
	switch tok.Type {
	case INT:
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errorf("invalid integer literal %s", tok.Literal)
		}
		p.bump()
		return &IntegerLiteral{Value: v}
	case STRING:
		p.bump()
		return &StringLiteral{Value: tok.Literal}
	case TRUE, FALSE:
		p.bump()
		return &BooleanLiteral{Value: tok.Type == TRUE}
	case IDENT:
		p.bump()
		return &Identifier{Name: tok.Literal, Token: tok}
	case LPAREN:
		p.bump()
		expr := p.parseExpression()
		p.expect(RPAREN, "')'")
		return expr
	case LBRACKET:
		return p.parseListLiteral()
	}
	p.errorf("unexpected %s in expression", tok)
	return nil
}

func (p *Parser) parseListLiteral() *ListLiteral {
	p.bump()
	list := &ListLiteral{}
	p.skipNewlines()
	for p.cur.Type != RBRACKET {
		list.Elements = append(list.Elements, p.parseExpression())
		p.skipNewlines()
		if p.cur.Type != COMMA {
			break
		}
		p.bump()
		p.skipNewlines()
	}
	p.expect(RBRACKET, "']' to close list")
	return list
}
