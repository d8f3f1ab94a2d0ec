// context.go - shared state for one compilation unit
package main

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// CompilationContext carries the state shared by every function lowering in
// one compilation unit: the global identifier set, the interned string
// table, and the label counter. It is passed explicitly instead of living in
// package globals so independent units never interfere, and so functions of
// one unit can be lowered concurrently: the maps are serialized by a mutex
// and labels come from an atomic counter.
type CompilationContext struct {
	mu        sync.Mutex
	globals   map[string]bool
	strings   map[string]int
	strOrder  []string
	labelID   atomic.Int64
	funcNames map[string]bool
}

func NewCompilationContext() *CompilationContext {
	return &CompilationContext{
		globals:   make(map[string]bool),
		strings:   make(map[string]int),
		funcNames: make(map[string]bool),
	}
}

// NextLabelID returns a fresh value from the unit-wide label counter. The
// counter is monotonic for the whole unit and never reset per function, so
// no two control-flow constructs can ever share a label.
func (ctx *CompilationContext) NextLabelID() int64 {
	return ctx.labelID.Add(1)
}

// NextLabel returns a fresh label with the given prefix.
func (ctx *CompilationContext) NextLabel(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, ctx.NextLabelID())
}

// DefineGlobal records an identifier as living in global storage.
func (ctx *CompilationContext) DefineGlobal(name string) {
	ctx.mu.Lock()
	ctx.globals[name] = true
	ctx.mu.Unlock()
}

func (ctx *CompilationContext) IsGlobal(name string) bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.globals[name]
}

// Globals returns the global identifiers in deterministic order for the
// data-section rendering.
func (ctx *CompilationContext) Globals() []string {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	names := make([]string, 0, len(ctx.globals))
	for name := range ctx.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InternString returns a stable id for a string literal, interning it on
// first use. The rendered listing emits one rodata entry per id.
func (ctx *CompilationContext) InternString(s string) int {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	if id, ok := ctx.strings[s]; ok {
		return id
	}
	id := len(ctx.strOrder)
	ctx.strings[s] = id
	ctx.strOrder = append(ctx.strOrder, s)
	return id
}

// Strings returns the interned string literals indexed by id.
func (ctx *CompilationContext) Strings() []string {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	out := make([]string, len(ctx.strOrder))
	copy(out, ctx.strOrder)
	return out
}

// RegisterFunction records a top-level function name so calls can be told
// apart from undefined names during lowering.
func (ctx *CompilationContext) RegisterFunction(name string) {
	ctx.mu.Lock()
	ctx.funcNames[name] = true
	ctx.mu.Unlock()
}

func (ctx *CompilationContext) IsFunction(name string) bool {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.funcNames[name]
}
