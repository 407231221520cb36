package spl

import (
	"errors"
	"testing"
)

func TestNextTokenSequence(t *testing.T) {
	input := `var total: int = 10
total == 3 != 4 <= >= < > = + - * / %
{ } ( ) [ ] : ; , "hi" func return if elif else while for in true false x_1`
	expected := []struct {
		typ     TokenType
		literal string
	}{
		{VAR, "var"}, {IDENT, "total"}, {COLON, ":"}, {IDENT, "int"}, {ASSIGN, "="}, {INT, "10"}, {NEWLINE, "\n"},
		{IDENT, "total"}, {EQ, "=="}, {INT, "3"}, {NOT_EQ, "!="}, {INT, "4"}, {LTE, "<="}, {GTE, ">="},
		{LT, "<"}, {GT, ">"}, {ASSIGN, "="}, {PLUS, "+"}, {MINUS, "-"}, {ASTERISK, "*"}, {SLASH, "/"},
		{PERCENT, "%"}, {NEWLINE, "\n"},
		{LBRACE, "{"}, {RBRACE, "}"}, {LPAREN, "("}, {RPAREN, ")"}, {LBRACKET, "["}, {RBRACKET, "]"},
		{COLON, ":"}, {SEMICOLON, ";"}, {COMMA, ","}, {STRING, "hi"}, {FUNC, "func"}, {RETURN, "return"},
		{IF, "if"}, {ELIF, "elif"}, {ELSE, "else"}, {WHILE, "while"}, {FOR, "for"}, {IN, "in"},
		{TRUE, "true"}, {FALSE, "false"}, {IDENT, "x_1"}, {EOF, ""},
	}
	l := NewLexer(input)
	for i, want := range expected {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("token %d: unexpected error %v", i, err)
		}
		if tok.Type != want.typ || tok.Literal != want.literal {
			t.Fatalf("token %d: expected %s %q, got %s %q", i, want.typ, want.literal, tok.Type, tok.Literal)
		}
	}
}

func TestNextTokenIsIdempotentAtEOF(t *testing.T) {
	l := NewLexer("x")
	if tok, _ := l.NextToken(); tok.Type != IDENT {
		t.Fatalf("expected IDENT, got %s", tok.Type)
	}
	for i := 0; i < 3; i++ {
		tok, err := l.NextToken()
		if err != nil || tok.Type != EOF {
			t.Fatalf("call %d: expected EOF, got %s (%v)", i, tok.Type, err)
		}
	}
}

func TestTokenPositions(t *testing.T) {
	tokens, err := Tokenize("var x\n  y")
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	want := [][2]int{{1, 1}, {1, 5}, {1, 6}, {2, 3}}
	for i, pos := range want {
		if tokens[i].Line != pos[0] || tokens[i].Column != pos[1] {
			t.Fatalf("token %d (%s): expected %d:%d, got %d:%d", i, tokens[i].Literal, pos[0], pos[1], tokens[i].Line, tokens[i].Column)
		}
	}
}

func TestStringEscapesAndComments(t *testing.T) {
	tokens, err := Tokenize(`"a\"b\\c\nd\q" // trailing comment
héllo`)
	if err == nil {
		t.Fatalf("expected error for non-ASCII identifier")
	}
	if tokens[0].Type != STRING || tokens[0].Literal != "a\"b\\c\nd\\q" {
		t.Fatalf("unexpected string token %#v", tokens[0])
	}
	if tokens[1].Type != NEWLINE {
		t.Fatalf("expected comment to be skipped up to newline, got %s", tokens[1].Type)
	}

	tokens, err = Tokenize(`"héllo" // ok`)
	if err != nil {
		t.Fatalf("tokenize failed: %v", err)
	}
	if tokens[0].Literal != "héllo" || tokens[1].Type != EOF {
		t.Fatalf("unexpected tokens %#v", tokens)
	}
}

func TestLexicalErrors(t *testing.T) {
	cases := map[string]string{
		"bang":         "x = !y",
		"newline":      "\"abc\ndef\"",
		"unterminated": "\"abc",
		"illegal":      "x @ y",
		"overflow":     "99999999999999999999",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Tokenize(input)
			var splErr *SPLError
			if !errors.As(err, &splErr) {
				t.Fatalf("expected SPLError, got %T (%v)", err, err)
			}
			if splErr.Code != ErrCodeLexical {
				t.Fatalf("expected %s, got %s", ErrCodeLexical, splErr.Code)
			}
			if splErr.Line == 0 {
				t.Fatalf("expected a source position in %v", splErr)
			}
		})
	}
}

func TestCloneDoesNotAdvanceOriginal(t *testing.T) {
	l := NewLexer("a = 1")
	if _, err := l.NextToken(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	peek, _ := l.Clone().NextToken()
	next, _ := l.NextToken()
	if peek != next || next.Type != ASSIGN {
		t.Fatalf("expected clone and original to agree on '=', got %#v and %#v", peek, next)
	}
}
