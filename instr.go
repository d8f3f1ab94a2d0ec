// instr.go - flat instruction records and listing text rendering
package main

import (
	"fmt"
	"strings"
)

// Instruction is one line of the lowered listing: an optional label anchored
// before the instruction, a mnemonic, and its operands. A record may carry
// only a label (a jump target with no instruction attached yet) or only a
// comment.
type Instruction struct {
	Label    string
	Mnemonic string
	Operands []string
	Comment  string
}

func Ins(mnemonic string, operands ...string) Instruction {
	return Instruction{Mnemonic: mnemonic, Operands: operands}
}

func LabelIns(label string) Instruction {
	return Instruction{Label: label}
}

func CommentIns(text string) Instruction {
	return Instruction{Comment: text}
}

func (in Instruction) String() string {
	var out strings.Builder
	if in.Label != "" {
		out.WriteString(in.Label)
		out.WriteString(":")
	}
	if in.Mnemonic != "" {
		if in.Label != "" {
			out.WriteString("\n")
		}
		out.WriteString("    ")
		out.WriteString(in.Mnemonic)
		if len(in.Operands) > 0 {
			out.WriteString(" ")
			out.WriteString(strings.Join(in.Operands, ", "))
		}
	}
	if in.Comment != "" {
		if in.Label != "" || in.Mnemonic != "" {
			out.WriteString("\n")
		}
		out.WriteString("    ; ")
		out.WriteString(in.Comment)
	}
	return out.String()
}

// IsJump reports whether the instruction transfers control, which bounds the
// windows the optimizer may reason about.
func (in Instruction) IsJump() bool {
	switch in.Mnemonic {
	case "jmp", "jz", "jnz", "je", "jne", "jg", "jl", "call", "ret", "syscall":
		return true
	}
	return false
}

// CompiledUnit is the finished instruction sequence for one function. The
// sequence is mutable while lowering and optimization run, and is treated as
// immutable once handed to the renderer.
type CompiledUnit struct {
	Name         string
	LocalCount   int // stack slots reserved in the frame (locals + literal regions)
	Instructions []Instruction
}

// RenderProgram assembles the final NASM listing: the text section with one
// global label per function, an entry stub when a main function exists, and
// data/bss sections for interned strings and global variables.
func RenderProgram(ctx *CompilationContext, units []*CompiledUnit) string {
	var out strings.Builder
	out.WriteString("section .text\n")

	hasMain := false
	for _, unit := range units {
		out.WriteString("global " + unit.Name + "\n")
		if unit.Name == "main" {
			hasMain = true
		}
	}
	if hasMain {
		out.WriteString("global _start\n")
	}
	out.WriteString("\n")

	if hasMain {
		// Process entry point: run main and hand its result to exit(2).
		out.WriteString("_start:\n")
		out.WriteString("    call main\n")
		out.WriteString("    mov rdi, rax\n")
		out.WriteString("    mov rax, 60\n")
		out.WriteString("    syscall\n")
		out.WriteString("\n")
	}

	for _, unit := range units {
		for _, in := range unit.Instructions {
			line := in.String()
			if line == "" {
				continue
			}
			out.WriteString(line)
			out.WriteString("\n")
		}
		out.WriteString("\n")
	}

	if strs := ctx.Strings(); len(strs) > 0 {
		out.WriteString("section .data\n")
		for id, s := range strs {
			out.WriteString(fmt.Sprintf("str_%d: db %s, 0\n", id, nasmString(s)))
		}
		out.WriteString("\n")
	}

	if globals := ctx.Globals(); len(globals) > 0 {
		out.WriteString("section .bss\n")
		for _, name := range globals {
			out.WriteString(fmt.Sprintf("glob_%s: resq 1\n", name))
		}
	}

	return out.String()
}

// nasmString quotes a string literal for a db directive. Single quotes in
// the value are emitted as separate character codes since NASM single-quoted
// strings have no escapes.
func nasmString(s string) string {
	if !strings.ContainsAny(s, "'\n") {
		return "'" + s + "'"
	}
	parts := []string{}
	plain := ""
	flush := func() {
		if plain != "" {
			parts = append(parts, "'"+plain+"'")
			plain = ""
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '\n':
			flush()
			parts = append(parts, fmt.Sprintf("%d", s[i]))
		default:
			plain += string(s[i])
		}
	}
	flush()
	if len(parts) == 0 {
		return "''"
	}
	return strings.Join(parts, ", ")
}
