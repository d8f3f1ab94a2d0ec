package main

import (
	"testing"
)

func TestParseFactorial(t *testing.T) {
	program, err := ParseSource(factorialSrc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(program.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(program.Functions))
	}
	fn := program.Functions[0]
	if fn.Name != "factorial" || len(fn.Params) != 1 || fn.Params[0] != "n" {
		t.Fatalf("unexpected signature: %s(%v)", fn.Name, fn.Params)
	}
	ifStmt, ok := fn.Body[0].(*IfStmt)
	if !ok {
		t.Fatalf("body[0] is %T, want *IfStmt", fn.Body[0])
	}
	cmp, ok := ifStmt.Cond.(*CompareExpr)
	if !ok || cmp.Op != "==" {
		t.Fatalf("condition is %v, want n == 0", ifStmt.Cond)
	}
	ret, ok := ifStmt.Else[0].(*ReturnStmt)
	if !ok {
		t.Fatalf("else branch is %T, want *ReturnStmt", ifStmt.Else[0])
	}
	mul, ok := ret.Value.(*BinaryExpr)
	if !ok || mul.Op != "*" {
		t.Fatalf("else return is %v, want a multiplication", ret.Value)
	}
	call, ok := mul.Right.(*CallExpr)
	if !ok || call.Func != "factorial" || len(call.Args) != 1 {
		t.Fatalf("right operand is %v, want factorial(n - 1)", mul.Right)
	}
}

func TestParseAugmentedAssignDesugars(t *testing.T) {
	program, err := ParseSource("def f():\n    x = 1\n    x += 2\n    return x\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	assign, ok := program.Functions[0].Body[1].(*AssignStmt)
	if !ok {
		t.Fatalf("body[1] is %T, want *AssignStmt", program.Functions[0].Body[1])
	}
	bin, ok := assign.Value.(*BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("x += 2 desugared to %v, want x = x + 2", assign.Value)
	}
	if name, ok := bin.Left.(*NameExpr); !ok || name.Name != "x" {
		t.Fatalf("left of desugared += is %v, want x", bin.Left)
	}
}

func TestParsePrecedence(t *testing.T) {
	program, err := ParseSource("def f(a, b, c):\n    return a + b * c\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ret := program.Functions[0].Body[0].(*ReturnStmt)
	add, ok := ret.Value.(*BinaryExpr)
	if !ok || add.Op != "+" {
		t.Fatalf("top operator is %v, want +", ret.Value)
	}
	if mul, ok := add.Right.(*BinaryExpr); !ok || mul.Op != "*" {
		t.Fatalf("right of + is %v, want b * c", add.Right)
	}
}

func TestParseAggregates(t *testing.T) {
	src := `
def f():
    xs = [1, 2, 3]
    d = {'a': 1, 'b': 2}
    return xs
`
	program, err := ParseSource(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	body := program.Functions[0].Body
	list, ok := body[0].(*AssignStmt).Value.(*ListExpr)
	if !ok || len(list.Elems) != 3 {
		t.Fatalf("xs is %v, want a 3-element list", body[0].(*AssignStmt).Value)
	}
	dict, ok := body[1].(*AssignStmt).Value.(*DictExpr)
	if !ok || len(dict.Pairs) != 2 {
		t.Fatalf("d is %v, want a 2-pair dict", body[1].(*AssignStmt).Value)
	}
	if key, ok := dict.Pairs[1].Key.(*StringExpr); !ok || key.Value != "b" {
		t.Fatalf("second key is %v, want 'b'", dict.Pairs[1].Key)
	}
}

func TestParseAttributeChain(t *testing.T) {
	program, err := ParseSource("def f(o):\n    return o.a.b\n")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ret := program.Functions[0].Body[0].(*ReturnStmt)
	outer, ok := ret.Value.(*AttributeExpr)
	if !ok || outer.Attr != "b" {
		t.Fatalf("value is %v, want o.a.b", ret.Value)
	}
	if inner, ok := outer.Object.(*AttributeExpr); !ok || inner.Attr != "a" {
		t.Fatalf("inner object is %v, want o.a", outer.Object)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"missing colon", "def f()\n    return 1\n"},
		{"bad token", "def f():\n    return 1 ? 2\n"},
		{"unterminated string", "def f():\n    return {'a: 1}\n"},
		{"inconsistent dedent", "def f():\n        x = 1\n      y = 2\n"},
		{"statement outside function", "x = 1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSource(tc.src); err == nil {
				t.Errorf("no error for %q", tc.src)
			}
		})
	}
}

func TestShebangIsIgnored(t *testing.T) {
	src := "#!/usr/bin/py67\ndef f():\n    return 7\n"
	program, err := ParseSource(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(program.Functions) != 1 || program.Functions[0].Name != "f" {
		t.Fatal("shebang line broke parsing")
	}
}

func TestLexerIndentTracking(t *testing.T) {
	tokens, err := NewLexer("def f():\n    x = 1\n    if x > 0:\n        return x\n    return 0\n").Tokenize()
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	indents, dedents := 0, 0
	for _, tok := range tokens {
		switch tok.Type {
		case TOKEN_INDENT:
			indents++
		case TOKEN_DEDENT:
			dedents++
		}
	}
	if indents != 2 || dedents != 2 {
		t.Errorf("got %d INDENT / %d DEDENT, want 2 / 2", indents, dedents)
	}
	if tokens[len(tokens)-1].Type != TOKEN_EOF {
		t.Error("token stream does not end with EOF")
	}
}

func TestLexerSkipsBlankAndCommentLines(t *testing.T) {
	tokens, err := NewLexer("def f():\n\n    # a comment\n    return 1\n").Tokenize()
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	for _, tok := range tokens {
		if tok.Type == TOKEN_INDENT {
			return
		}
	}
	t.Error("comment line swallowed the block indent")
}
