// parser.go - recursive descent parser for the py67 subset
// Completion: 95%
//
// The subset is deliberately small: top-level function definitions whose
// bodies are assignments, augmented assignments, returns, if/else, while,
// and expression statements. Expressions cover integer constants, names,
// calls, arithmetic, comparisons, list and dict literals, and attribute
// access. The code generator consumes the resulting tree read-only.
package main

import (
	"fmt"
	"strconv"
)

const maxParseRecursion = 1000 // guards against pathological nesting

type Parser struct {
	tokens []Token
	pos    int
	depth  int
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseSource tokenizes and parses a whole source file.
func ParseSource(src string) (*Program, error) {
	lexer := NewLexer(stripShebang(src))
	tokens, err := lexer.Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).ParseProgram()
}

func (p *Parser) cur() Token  { return p.tokens[p.pos] }
func (p *Parser) next() Token { t := p.tokens[p.pos]; p.pos++; return t }

func (p *Parser) accept(tt TokenType) bool {
	if p.cur().Type == tt {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) expect(tt TokenType) (Token, error) {
	if p.cur().Type != tt {
		return Token{}, fmt.Errorf("line %d: expected %v, got %v %q",
			p.cur().Line, tt, p.cur().Type, p.cur().Value)
	}
	return p.next(), nil
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxParseRecursion {
		return fmt.Errorf("line %d: expression too deeply nested", p.cur().Line)
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

// ParseProgram parses an ordered sequence of top-level function definitions.
func (p *Parser) ParseProgram() (*Program, error) {
	program := &Program{}
	for p.cur().Type != TOKEN_EOF {
		if p.accept(TOKEN_NEWLINE) {
			continue
		}
		fn, err := p.parseFunctionDef()
		if err != nil {
			return nil, err
		}
		program.Functions = append(program.Functions, fn)
	}
	return program, nil
}

func (p *Parser) parseFunctionDef() (*FunctionDef, error) {
	if _, err := p.expect(TOKEN_DEF); err != nil {
		return nil, err
	}
	name, err := p.expect(TOKEN_IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}
	var params []string
	for p.cur().Type != TOKEN_RPAREN {
		param, err := p.expect(TOKEN_IDENT)
		if err != nil {
			return nil, err
		}
		params = append(params, param.Value)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	if _, err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionDef{Name: name.Value, Params: params, Body: body}, nil
}

// parseBlock parses `: NEWLINE INDENT stmt... DEDENT`.
func (p *Parser) parseBlock() ([]Statement, error) {
	if _, err := p.expect(TOKEN_COLON); err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_NEWLINE); err != nil {
		return nil, err
	}
	if _, err := p.expect(TOKEN_INDENT); err != nil {
		return nil, err
	}
	var stmts []Statement
	for p.cur().Type != TOKEN_DEDENT && p.cur().Type != TOKEN_EOF {
		if p.accept(TOKEN_NEWLINE) {
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	p.accept(TOKEN_DEDENT)
	return stmts, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch p.cur().Type {
	case TOKEN_RETURN:
		p.next()
		if p.cur().Type == TOKEN_NEWLINE {
			p.next()
			return &ReturnStmt{}, nil
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TOKEN_NEWLINE); err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: value}, nil

	case TOKEN_IF:
		p.next()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		thenBody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		var elseBody []Statement
		if p.cur().Type == TOKEN_ELSE {
			p.next()
			elseBody, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
		return &IfStmt{Cond: cond, Then: thenBody, Else: elseBody}, nil

	case TOKEN_WHILE:
		p.next()
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Cond: cond, Body: body}, nil

	case TOKEN_IDENT:
		// Could be assignment, augmented assignment, or a bare expression.
		if p.tokens[p.pos+1].Type == TOKEN_EQUALS {
			name := p.next()
			p.next() // =
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TOKEN_NEWLINE); err != nil {
				return nil, err
			}
			return &AssignStmt{Name: name.Value, Value: value}, nil
		}
		if p.tokens[p.pos+1].Type == TOKEN_PLUS_EQUALS || p.tokens[p.pos+1].Type == TOKEN_MINUS_EQUALS {
			name := p.next()
			op := "+"
			if p.next().Type == TOKEN_MINUS_EQUALS {
				op = "-"
			}
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TOKEN_NEWLINE); err != nil {
				return nil, err
			}
			// x += e desugars to x = x + e
			return &AssignStmt{
				Name:  name.Value,
				Value: &BinaryExpr{Op: op, Left: &NameExpr{Name: name.Value}, Right: value},
			}, nil
		}
		fallthrough

	default:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TOKEN_NEWLINE); err != nil {
			return nil, err
		}
		return &ExprStmt{Expr: expr}, nil
	}
}

// parseExpression handles comparisons, the lowest precedence tier.
func (p *Parser) parseExpression() (Expression, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Type {
		case TOKEN_GT:
			op = ">"
		case TOKEN_LT:
			op = "<"
		case TOKEN_EQ:
			op = "=="
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		left = &CompareExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseArith() (Expression, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == TOKEN_PLUS || p.cur().Type == TOKEN_MINUS {
		op := p.next().Value
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTerm() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Type == TOKEN_STAR || p.cur().Type == TOKEN_SLASH || p.cur().Type == TOKEN_PERCENT {
		op := p.next().Value
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expression, error) {
	if p.cur().Type == TOKEN_MINUS {
		p.next()
		// Fold -<number>; anything else becomes 0 - operand.
		if p.cur().Type == TOKEN_NUMBER {
			tok := p.next()
			n, err := strconv.ParseInt(tok.Value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad number literal %q", tok.Line, tok.Value)
			}
			return p.parsePostfix(&ConstantExpr{Value: -n})
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: "-", Left: &ConstantExpr{Value: 0}, Right: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expression, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	switch p.cur().Type {
	case TOKEN_NUMBER:
		tok := p.next()
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad number literal %q", tok.Line, tok.Value)
		}
		return p.parsePostfix(&ConstantExpr{Value: n})

	case TOKEN_STRING:
		tok := p.next()
		return p.parsePostfix(&StringExpr{Value: tok.Value})

	case TOKEN_IDENT:
		tok := p.next()
		if p.cur().Type == TOKEN_LPAREN {
			p.next()
			var args []Expression
			for p.cur().Type != TOKEN_RPAREN {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !p.accept(TOKEN_COMMA) {
					break
				}
			}
			if _, err := p.expect(TOKEN_RPAREN); err != nil {
				return nil, err
			}
			return p.parsePostfix(&CallExpr{Func: tok.Value, Args: args})
		}
		return p.parsePostfix(&NameExpr{Name: tok.Value})

	case TOKEN_LPAREN:
		p.next()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TOKEN_RPAREN); err != nil {
			return nil, err
		}
		return p.parsePostfix(expr)

	case TOKEN_LBRACKET:
		p.next()
		list := &ListExpr{}
		for p.cur().Type != TOKEN_RBRACKET {
			elem, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			list.Elems = append(list.Elems, elem)
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
		if _, err := p.expect(TOKEN_RBRACKET); err != nil {
			return nil, err
		}
		return p.parsePostfix(list)

	case TOKEN_LBRACE:
		p.next()
		dict := &DictExpr{}
		for p.cur().Type != TOKEN_RBRACE {
			key, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TOKEN_COLON); err != nil {
				return nil, err
			}
			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			dict.Pairs = append(dict.Pairs, DictPair{Key: key, Value: value})
			if !p.accept(TOKEN_COMMA) {
				break
			}
		}
		if _, err := p.expect(TOKEN_RBRACE); err != nil {
			return nil, err
		}
		return p.parsePostfix(dict)

	default:
		return nil, fmt.Errorf("line %d: unexpected token %v %q",
			p.cur().Line, p.cur().Type, p.cur().Value)
	}
}

// parsePostfix handles `.attr` chains on any primary expression.
func (p *Parser) parsePostfix(expr Expression) (Expression, error) {
	for p.accept(TOKEN_DOT) {
		attr, err := p.expect(TOKEN_IDENT)
		if err != nil {
			return nil, err
		}
		expr = &AttributeExpr{Object: expr, Attr: attr.Value}
	}
	return expr, nil
}
