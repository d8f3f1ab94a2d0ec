// optimizer.go - semantics-preserving passes over the lowered instructions
// Completion: 100% - dead-store elimination and peephole rewriting working
//
// Each pass is a pure []Instruction -> []Instruction transform. The pipeline
// contract is that the optimized listing executes identically to the input,
// not that any pass changes anything: either pass may be the identity on a
// given sequence. Passes run in order and can be toggled independently.
package main

import "strings"

type OptimizationPass struct {
	Name      string
	Transform func([]Instruction) []Instruction
}

// DefaultPasses returns the standard pipeline order: dead stores first so
// the peephole pass sees the smaller sequence.
func DefaultPasses() []OptimizationPass {
	return []OptimizationPass{
		{Name: "dead-store-elimination", Transform: eliminateDeadStores},
		{Name: "peephole", Transform: peephole},
	}
}

// Optimize applies the passes to a unit's instruction sequence. After this
// returns the unit is considered immutable.
func Optimize(unit *CompiledUnit, passes []OptimizationPass) {
	for _, pass := range passes {
		unit.Instructions = pass.Transform(unit.Instructions)
	}
}

// isMemOperand reports whether an operand names variable storage (a frame
// slot or a global cell).
func isMemOperand(op string) bool {
	return strings.HasPrefix(op, "qword [")
}

// isStore reports a plain store of a register or immediate into variable
// storage, returning the storage operand.
func isStore(in Instruction) (string, bool) {
	if in.Mnemonic != "mov" || len(in.Operands) != 2 {
		return "", false
	}
	if !isMemOperand(in.Operands[0]) || isMemOperand(in.Operands[1]) {
		return "", false
	}
	return in.Operands[0], true
}

// readsFrom reports whether the instruction reads the given storage operand.
// Only the source position of a mov ever reads variable storage in the
// lowered code, but a frame teardown or any control transfer is treated as a
// potential read to stay conservative.
func readsFrom(in Instruction, mem string) bool {
	for i, op := range in.Operands {
		if op != mem {
			continue
		}
		if in.Mnemonic == "mov" && i == 0 {
			continue // destination position, a write
		}
		return true
	}
	return false
}

// eliminateDeadStores removes a store to a variable when that variable is
// certainly overwritten before any read and before any point where control
// could leave the straight-line window. Labels, jumps, calls and returns all
// end the window, so a store that might be observed elsewhere is kept.
func eliminateDeadStores(ins []Instruction) []Instruction {
	dead := make([]bool, len(ins))
	for i, in := range ins {
		mem, ok := isStore(in)
		if !ok || in.Label != "" {
			continue
		}
	scan:
		for j := i + 1; j < len(ins); j++ {
			next := ins[j]
			if next.Label != "" || next.IsJump() {
				break scan
			}
			if readsFrom(next, mem) {
				break scan
			}
			if overwritten, ok := isStore(next); ok && overwritten == mem {
				dead[i] = true
				break scan
			}
		}
	}

	out := make([]Instruction, 0, len(ins))
	for i, in := range ins {
		if !dead[i] {
			out = append(out, in)
		}
	}
	return out
}

// peephole rewrites recognized short windows with shorter equivalents:
//
//	mov X, X                  -> removed
//	sub rsp, 0                -> removed (empty frame)
//	add/sub rax, 0            -> removed
//	mov A, B ; mov B, A       -> second mov removed (value already there)
//	push rax ; pop rax        -> both removed
//	push rax ; pop R          -> mov R, rax
//	jmp L ; L:                -> jmp removed
//
// Rewrites only fire when the second instruction carries no label, so no
// jump target can observe the difference. The pass loops until a fixpoint.
func peephole(ins []Instruction) []Instruction {
	for {
		out, changed := peepholeOnce(ins)
		if !changed {
			return out
		}
		ins = out
	}
}

func peepholeOnce(ins []Instruction) ([]Instruction, bool) {
	out := make([]Instruction, 0, len(ins))
	changed := false

	for i := 0; i < len(ins); i++ {
		in := ins[i]

		if in.Label == "" {
			if in.Mnemonic == "mov" && len(in.Operands) == 2 && in.Operands[0] == in.Operands[1] {
				changed = true
				continue
			}
			if (in.Mnemonic == "sub" || in.Mnemonic == "add") &&
				len(in.Operands) == 2 && in.Operands[1] == "0" {
				changed = true
				continue
			}
		}

		if i+1 < len(ins) {
			next := ins[i+1]
			if next.Label == "" {
				// mov A, B followed by mov B, A: the reload is redundant.
				if in.Mnemonic == "mov" && next.Mnemonic == "mov" &&
					len(in.Operands) == 2 && len(next.Operands) == 2 &&
					in.Operands[0] == next.Operands[1] && in.Operands[1] == next.Operands[0] {
					out = append(out, in)
					i++
					changed = true
					continue
				}
				if in.Mnemonic == "push" && next.Mnemonic == "pop" &&
					in.Label == "" && len(in.Operands) == 1 && len(next.Operands) == 1 &&
					in.Operands[0] == "rax" {
					if next.Operands[0] == "rax" {
						i++
						changed = true
						continue
					}
					out = append(out, Ins("mov", next.Operands[0], "rax"))
					i++
					changed = true
					continue
				}
			}
			// A jump to the label that immediately follows is a no-op.
			if in.Mnemonic == "jmp" && in.Label == "" && len(in.Operands) == 1 &&
				next.Label == in.Operands[0] {
				changed = true
				continue
			}
		}

		out = append(out, in)
	}
	return out, changed
}
