// toolchain.go - external assembler/linker invocation
// Completion: 100%
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/xyproto/env/v2"
)

// The assembler and linker commands can be overridden through the
// environment, which is also how the tests point the pipeline at fakes.
func assemblerCommand() string {
	return env.Str("PY67_NASM", "nasm")
}

func linkerCommand() string {
	return env.Str("PY67_LD", "ld")
}

// AssembleAndLink writes the listing to a temporary file and runs the
// external assembler and linker over it. The exit codes of those commands
// are the sole success signal; on a non-zero exit the captured diagnostics
// come back inside a ToolchainError and nothing is retried. The temporary
// listing and object file are removed on success and failure alike; only
// the final executable survives.
func AssembleAndLink(listing, outputPath string, options CompileOptions) error {
	tmpDir, err := os.MkdirTemp("", "py67-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	asmPath := filepath.Join(tmpDir, "out.asm")
	objPath := filepath.Join(tmpDir, "out.o")

	if err := os.WriteFile(asmPath, []byte(listing), 0o644); err != nil {
		return fmt.Errorf("writing listing: %w", err)
	}

	nasm := assemblerCommand()
	if output, err := runTool(nasm, "-f", "elf64", asmPath, "-o", objPath); err != nil {
		return &ToolchainError{Command: nasm, Output: output, Err: err}
	}

	ld := linkerCommand()
	if output, err := runTool(ld, "-o", outputPath, objPath); err != nil {
		// A failed link may leave a partial executable behind.
		os.Remove(outputPath)
		return &ToolchainError{Command: ld, Output: output, Err: err}
	}

	return nil
}

func runTool(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// ToolchainAvailable reports whether the external commands exist in PATH,
// so callers can degrade to listing-only output with a clear message.
func ToolchainAvailable() bool {
	if _, err := exec.LookPath(assemblerCommand()); err != nil {
		return false
	}
	if _, err := exec.LookPath(linkerCommand()); err != nil {
		return false
	}
	return true
}
