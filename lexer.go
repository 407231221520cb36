package spl

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const eof rune = -1

// Lexer is a pull scanner over source text. It holds no references besides
// the input string, so copying the struct snapshots the scan position.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           rune
	line         int
	column       int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

// Clone returns an independent scanner positioned where l is.
func (l *Lexer) Clone() *Lexer {
	c := *l
	return &c
}

func (l *Lexer) NextToken() (Token, error) {
	l.skipBlanksAndComments()
	tok := Token{Line: l.line, Column: l.column}
	switch l.ch {
	case eof:
		tok.Type = EOF
		return tok, nil
	case '\n':
		tok.Type, tok.Literal = NEWLINE, "\n"
	case '=':
		tok.Type, tok.Literal = l.twoChar(ASSIGN, EQ)
	case '<':
		tok.Type, tok.Literal = l.twoChar(LT, LTE)
	case '>':
		tok.Type, tok.Literal = l.twoChar(GT, GTE)
	case '!':
		if l.peekChar() != '=' {
			return tok, lexicalError(tok.Line, tok.Column, "unexpected character '!' (only '!=' is valid)")
		}
		l.readChar()
		tok.Type, tok.Literal = NOT_EQ, "!="
	case '+':
		tok.Type, tok.Literal = PLUS, "+"
	case '-':
		tok.Type, tok.Literal = MINUS, "-"
	case '*':
		tok.Type, tok.Literal = ASTERISK, "*"
	case '/':
		tok.Type, tok.Literal = SLASH, "/"
	case '%':
		tok.Type, tok.Literal = PERCENT, "%"
	case '{':
		tok.Type, tok.Literal = LBRACE, "{"
	case '}':
		tok.Type, tok.Literal = RBRACE, "}"
	case '(':
		tok.Type, tok.Literal = LPAREN, "("
	case ')':
		tok.Type, tok.Literal = RPAREN, ")"
	case '[':
		tok.Type, tok.Literal = LBRACKET, "["
	case ']':
		tok.Type, tok.Literal = RBRACKET, "]"
	case ':':
		tok.Type, tok.Literal = COLON, ":"
	case ';':
		tok.Type, tok.Literal = SEMICOLON, ";"
	case ',':
		tok.Type, tok.Literal = COMMA, ","
	case '"':
		s, err := l.readString()
		if err != nil {
			return tok, err
		}
		tok.Type, tok.Literal = STRING, s
		return tok, nil
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = lookupIdent(tok.Literal)
			return tok, nil
		}
		if isDigit(l.ch) {
			tok.Literal = l.readNumber()
			if _, err := strconv.ParseInt(tok.Literal, 10, 64); err != nil {
				return tok, lexicalError(tok.Line, tok.Column, "integer literal %s out of range", tok.Literal)
			}
			tok.Type = INT
			return tok, nil
		}
		return tok, lexicalError(tok.Line, tok.Column, "illegal character %q", l.ch)
	}
	l.readChar()
	return tok, nil
}

// Tokenize scans the whole input, including the trailing EOF token.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) twoChar(single, double TokenType) (TokenType, string) {
	if l.peekChar() == '=' {
		first := l.ch
		l.readChar()
		return double, string(first) + "="
	}
	return single, string(l.ch)
}

func (l *Lexer) skipBlanksAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != eof {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readString() (string, error) {
	line, column := l.line, l.column
	var sb strings.Builder
	l.readChar()
	for {
		switch l.ch {
		case eof:
			return "", lexicalError(line, column, "unterminated string literal")
		case '\n':
			return "", lexicalError(line, column, "newline in string literal")
		case '"':
			l.readChar()
			return sb.String(), nil
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case eof, '\n':
				continue
			default:
				sb.WriteByte('\\')
				sb.WriteRune(l.ch)
			}
		default:
			sb.WriteRune(l.ch)
		}
		l.readChar()
	}
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		if l.ch != eof {
			l.column++
		}
		l.position = len(l.input)
		l.ch = eof
		return
	}
	r, width := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += width
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}
