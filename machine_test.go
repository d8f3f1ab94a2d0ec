package main

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
)

// A small interpreter over the lowered instruction sequences. It exists so
// the tests can check observable behavior (return values, aggregate region
// contents) of compiled programs, including that the optimizer preserves it,
// without depending on nasm and ld being installed.

const (
	stackTop   = int64(1 << 20)
	globalBase = int64(1 << 30)
	stringBase = int64(1 << 28)
	maxSteps   = 1_000_000
)

type machine struct {
	instrs  []Instruction
	labels  map[string]int
	regs    map[string]int64
	mem     map[int64]int64
	globals map[string]int64
	strs    map[int]int64

	cmpL, cmpR int64
	zeroFlag   bool
}

func newMachine(ctx *CompilationContext, units []*CompiledUnit) *machine {
	m := &machine{
		labels:  make(map[string]int),
		regs:    make(map[string]int64),
		mem:     make(map[int64]int64),
		globals: make(map[string]int64),
		strs:    make(map[int]int64),
	}
	for _, unit := range units {
		for _, in := range unit.Instructions {
			if in.Label != "" {
				m.labels[in.Label] = len(m.instrs)
			}
			m.instrs = append(m.instrs, in)
		}
	}
	for i, name := range ctx.Globals() {
		m.globals[name] = globalBase + int64(8*i)
	}
	for i := range ctx.Strings() {
		m.strs[i] = stringBase + int64(8*i)
	}
	return m
}

// call runs one function to completion and returns the accumulator.
func (m *machine) call(fn string, args ...int64) (int64, error) {
	start, ok := m.labels[fn]
	if !ok {
		return 0, fmt.Errorf("no such label: %s", fn)
	}
	for i, arg := range args {
		m.regs[argRegisters[i]] = arg
	}
	m.regs["rsp"] = stackTop
	m.pushValue(-1) // sentinel return address

	pc := start
	for steps := 0; steps < maxSteps; steps++ {
		if pc < 0 || pc >= len(m.instrs) {
			return 0, fmt.Errorf("pc out of range: %d", pc)
		}
		in := m.instrs[pc]
		if in.Mnemonic == "" {
			pc++
			continue
		}
		next, done, err := m.step(in, pc)
		if err != nil {
			return 0, err
		}
		if done {
			return m.regs["rax"], nil
		}
		pc = next
	}
	return 0, fmt.Errorf("step limit exceeded (likely an infinite loop)")
}

func (m *machine) pushValue(v int64) {
	m.regs["rsp"] -= 8
	m.mem[m.regs["rsp"]] = v
}

func (m *machine) popValue() int64 {
	v := m.mem[m.regs["rsp"]]
	m.regs["rsp"] += 8
	return v
}

func (m *machine) step(in Instruction, pc int) (next int, done bool, err error) {
	next = pc + 1
	ops := in.Operands

	switch in.Mnemonic {
	case "mov":
		v, err := m.value(ops[1])
		if err != nil {
			return 0, false, err
		}
		if err := m.write(ops[0], v); err != nil {
			return 0, false, err
		}
	case "lea":
		addr, err := m.address(ops[1])
		if err != nil {
			return 0, false, err
		}
		m.regs[ops[0]] = addr
	case "add", "sub", "imul":
		a, err := m.value(ops[0])
		if err != nil {
			return 0, false, err
		}
		b, err := m.value(ops[1])
		if err != nil {
			return 0, false, err
		}
		var r int64
		switch in.Mnemonic {
		case "add":
			r = a + b
		case "sub":
			r = a - b
		case "imul":
			r = a * b
		}
		if err := m.write(ops[0], r); err != nil {
			return 0, false, err
		}
	case "xor":
		a, _ := m.value(ops[0])
		b, _ := m.value(ops[1])
		if err := m.write(ops[0], a^b); err != nil {
			return 0, false, err
		}
	case "cqo":
		if m.regs["rax"] < 0 {
			m.regs["rdx"] = -1
		} else {
			m.regs["rdx"] = 0
		}
	case "idiv":
		d, err := m.value(ops[0])
		if err != nil {
			return 0, false, err
		}
		if d == 0 {
			return 0, false, fmt.Errorf("division fault")
		}
		a := m.regs["rax"]
		m.regs["rax"] = a / d
		m.regs["rdx"] = a % d
	case "cmp":
		m.cmpL, err = m.value(ops[0])
		if err != nil {
			return 0, false, err
		}
		m.cmpR, err = m.value(ops[1])
		if err != nil {
			return 0, false, err
		}
		m.zeroFlag = m.cmpL == m.cmpR
	case "test":
		a, _ := m.value(ops[0])
		b, _ := m.value(ops[1])
		m.zeroFlag = a&b == 0
	case "jmp":
		return m.jump(ops[0])
	case "jz":
		if m.zeroFlag {
			return m.jump(ops[0])
		}
	case "jg":
		if m.cmpL > m.cmpR {
			return m.jump(ops[0])
		}
	case "jl":
		if m.cmpL < m.cmpR {
			return m.jump(ops[0])
		}
	case "je":
		if m.zeroFlag {
			return m.jump(ops[0])
		}
	case "push":
		v, err := m.value(ops[0])
		if err != nil {
			return 0, false, err
		}
		m.pushValue(v)
	case "pop":
		m.regs[ops[0]] = m.popValue()
	case "call":
		target, ok := m.labels[ops[0]]
		if !ok {
			return 0, false, fmt.Errorf("call to unknown label: %s", ops[0])
		}
		m.pushValue(int64(pc + 1))
		return target, false, nil
	case "ret":
		addr := m.popValue()
		if addr == -1 {
			return 0, true, nil
		}
		return int(addr), false, nil
	default:
		return 0, false, fmt.Errorf("machine: unknown mnemonic %q", in.Mnemonic)
	}
	return next, false, nil
}

func (m *machine) jump(label string) (int, bool, error) {
	target, ok := m.labels[label]
	if !ok {
		return 0, false, fmt.Errorf("jump to unknown label: %s", label)
	}
	return target, false, nil
}

func isRegister(op string) bool {
	switch op {
	case "rax", "rbx", "rcx", "rdx", "rdi", "rsi", "rbp", "rsp", "r8", "r9":
		return true
	}
	return false
}

// address resolves a memory operand like "qword [rbp-16]" or
// "qword [rel glob_x]" to a virtual address.
func (m *machine) address(op string) (int64, error) {
	inner := op
	inner = strings.TrimPrefix(inner, "qword ")
	if !strings.HasPrefix(inner, "[") || !strings.HasSuffix(inner, "]") {
		return 0, fmt.Errorf("bad memory operand: %q", op)
	}
	inner = inner[1 : len(inner)-1]

	if rest, ok := strings.CutPrefix(inner, "rel "); ok {
		if name, ok := strings.CutPrefix(rest, "glob_"); ok {
			addr, ok := m.globals[name]
			if !ok {
				return 0, fmt.Errorf("unknown global: %s", name)
			}
			return addr, nil
		}
		if idStr, ok := strings.CutPrefix(rest, "str_"); ok {
			id, err := strconv.Atoi(idStr)
			if err != nil {
				return 0, fmt.Errorf("bad string id in %q", op)
			}
			return m.strs[id], nil
		}
		return 0, fmt.Errorf("bad rel operand: %q", op)
	}

	base := inner
	offset := int64(0)
	if i := strings.IndexAny(inner, "+-"); i > 0 {
		base = inner[:i]
		n, err := strconv.ParseInt(inner[i+1:], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad offset in %q", op)
		}
		if inner[i] == '-' {
			n = -n
		}
		offset = n
	}
	if !isRegister(base) {
		return 0, fmt.Errorf("bad base register in %q", op)
	}
	return m.regs[base] + offset, nil
}

func (m *machine) value(op string) (int64, error) {
	if isRegister(op) {
		return m.regs[op], nil
	}
	if n, err := strconv.ParseInt(op, 10, 64); err == nil {
		return n, nil
	}
	addr, err := m.address(op)
	if err != nil {
		return 0, err
	}
	return m.mem[addr], nil
}

func (m *machine) write(op string, v int64) error {
	if isRegister(op) {
		m.regs[op] = v
		return nil
	}
	addr, err := m.address(op)
	if err != nil {
		return err
	}
	m.mem[addr] = v
	return nil
}

// readRegion reads n qwords starting at a region address, following the
// frame layout where consecutive slots sit at descending addresses.
func (m *machine) readRegion(addr int64, n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = m.mem[addr-int64(8*i)]
	}
	return out
}

// compileForTest parses and lowers a source snippet, failing the test on any
// error.
func compileForTest(t *testing.T, src string, optimize bool) (*CompilationContext, []*CompiledUnit) {
	t.Helper()
	program, err := ParseSource(src)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	ctx := NewCompilationContext()
	units, err := CompileProgram(ctx, program, CompileOptions{Optimize: optimize})
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return ctx, units
}

// runFunction compiles src and executes fn with the given arguments.
func runFunction(t *testing.T, src string, optimize bool, fn string, args ...int64) int64 {
	t.Helper()
	ctx, units := compileForTest(t, src, optimize)
	m := newMachine(ctx, units)
	result, err := m.call(fn, args...)
	if err != nil {
		t.Fatalf("executing %s: %v", fn, err)
	}
	return result
}
