package main

import (
	"fmt"
	"strings"
)

// UnsupportedConstructError aborts the whole compilation unit when the tree
// walk reaches a node kind with no lowering rule. Path is the chain of node
// kinds from the enclosing function down to the offending node.
type UnsupportedConstructError struct {
	NodeKind string
	Path     []string
}

func (e *UnsupportedConstructError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("unsupported construct: %s", e.NodeKind)
	}
	return fmt.Sprintf("unsupported construct: %s (at %s)", e.NodeKind, strings.Join(e.Path, "/"))
}

// ToolchainError reports a non-zero exit from the external assembler or
// linker, with whatever diagnostics the tool printed. Toolchain failures are
// assumed deterministic for a given listing, so there is no retry.
type ToolchainError struct {
	Command string
	Output  string
	Err     error
}

func (e *ToolchainError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s failed: %v\n%s", e.Command, e.Err, out)
}

func (e *ToolchainError) Unwrap() error { return e.Err }
