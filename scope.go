// scope.go - per-function symbol scope and name classification
package main

// NameKind classifies a name reference for the code generator.
type NameKind int

const (
	BuiltinConstant NameKind = iota
	Local
	Global
)

func (k NameKind) String() string {
	switch k {
	case BuiltinConstant:
		return "builtin"
	case Local:
		return "local"
	case Global:
		return "global"
	default:
		return "unknown"
	}
}

// builtinValues maps the fixed built-in constant names to the value loaded
// into the accumulator. No storage is ever emitted for these.
var builtinValues = map[string]int64{
	"True":  1,
	"False": 0,
	"None":  0,
}

// Scope is the set of identifiers treated as local storage within one
// function's lowering. Every function starts with a fresh empty scope;
// scopes never persist across functions. Each local owns one stack slot,
// assigned in first-seen order.
type Scope struct {
	function string
	slots    map[string]int
	order    []string
}

func NewScope(function string) *Scope {
	return &Scope{
		function: function,
		slots:    make(map[string]int),
	}
}

// Bind inserts a name into the local set with the given stack slot. Binding
// an existing local is a no-op, so reassignment keeps the same storage. Slots
// are handed out by the compiler, which owns the whole frame layout (named
// locals share the frame with aggregate literal regions).
func (s *Scope) Bind(name string, slot int) {
	if _, ok := s.slots[name]; ok {
		return
	}
	s.slots[name] = slot
	s.order = append(s.order, name)
}

func (s *Scope) IsLocal(name string) bool {
	_, ok := s.slots[name]
	return ok
}

// Slot returns the stack slot of a local. Only valid after Bind or a true
// IsLocal check.
func (s *Scope) Slot(name string) int {
	return s.slots[name]
}

// Len returns the number of named locals in the scope.
func (s *Scope) Len() int {
	return len(s.order)
}

// Resolve classifies a name reference against this scope and the unit-wide
// context. An identifier that is neither a builtin, a local, nor a known
// global is inserted into the global set and classified Global. The
// auto-promotion is deliberate, inherited policy: an unresolved name is not
// a compile error.
func (s *Scope) Resolve(ctx *CompilationContext, name string) NameKind {
	if _, ok := builtinValues[name]; ok {
		return BuiltinConstant
	}
	if s.IsLocal(name) {
		return Local
	}
	if ctx.IsGlobal(name) {
		return Global
	}
	ctx.DefineGlobal(name)
	return Global
}
