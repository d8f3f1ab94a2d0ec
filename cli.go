// Completion: 100% - all subcommands working
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// cli.go - command-line interface for py67
//
// Subcommands, Go style:
// - py67 build <file.py67> [-o output]
// - py67 run <file.py67> [args...]   (compile to a temp binary and run it)
// - py67 asm <file.py67>             (print the NASM listing)
// - py67 watch <file.py67>           (recompile on every change)
// - py67 <file.py67>                 (shorthand for build)
// Shebang execution (#!/usr/bin/py67) is also supported.

// CommandContext holds the execution context for a CLI command.
type CommandContext struct {
	Options    CompileOptions
	OutputPath string
}

// RunCLI dispatches to the subcommand named by the first argument.
func RunCLI(args []string, options CompileOptions, outputPath string) error {
	ctx := &CommandContext{Options: options, OutputPath: outputPath}

	if len(args) == 0 {
		return cmdHelp()
	}

	// Shebang mode: the kernel invokes us with the script path first.
	if strings.HasSuffix(args[0], ".py67") {
		content, err := os.ReadFile(args[0])
		if err == nil && len(content) > 2 && content[0] == '#' && content[1] == '!' {
			return cmdRun(ctx, args)
		}
	}

	switch args[0] {
	case "build":
		if len(args) < 2 {
			return fmt.Errorf("usage: py67 build <file.py67> [-o output]")
		}
		return cmdBuild(ctx, args[1:])

	case "run":
		if len(args) < 2 {
			return fmt.Errorf("usage: py67 run <file.py67> [args...]")
		}
		return cmdRun(ctx, args[1:])

	case "asm":
		if len(args) < 2 {
			return fmt.Errorf("usage: py67 asm <file.py67>")
		}
		return cmdAsm(ctx, args[1])

	case "watch":
		if len(args) < 2 {
			return fmt.Errorf("usage: py67 watch <file.py67> [-o output]")
		}
		return cmdWatch(ctx, args[1:])

	case "help", "--help", "-h":
		return cmdHelp()

	case "version", "--version":
		fmt.Println(versionString)
		return nil

	default:
		if strings.HasSuffix(args[0], ".py67") {
			return cmdBuild(ctx, args)
		}
		return fmt.Errorf("unknown command: %s\n\nRun 'py67 help' for usage information", args[0])
	}
}

// splitBuildArgs separates source files from a trailing -o flag.
func splitBuildArgs(args []string) (inputFiles []string, outputPath string) {
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" && i+1 < len(args) {
			outputPath = args[i+1]
			i++
		} else if !strings.HasPrefix(args[i], "-") {
			inputFiles = append(inputFiles, args[i])
		}
	}
	return inputFiles, outputPath
}

func cmdBuild(ctx *CommandContext, args []string) error {
	inputFiles, outputPath := splitBuildArgs(args)
	if len(inputFiles) == 0 {
		return fmt.Errorf("no input files specified")
	}
	if len(inputFiles) > 1 {
		return fmt.Errorf("one source file per build, got %d", len(inputFiles))
	}
	inputFile := inputFiles[0]
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputFile)
	}

	if outputPath == "" {
		outputPath = ctx.OutputPath
	}
	if outputPath == "" {
		outputPath = strings.TrimSuffix(filepath.Base(inputFile), ".py67")
	}

	return CompileFile(inputFile, outputPath, ctx.Options)
}

// cmdRun compiles to a temporary executable and runs it, propagating the
// program's exit code.
func cmdRun(ctx *CommandContext, args []string) error {
	inputFile := args[0]
	programArgs := args[1:]

	// Prefer the RAM disk for the throwaway binary when it exists.
	tmpDir := "/dev/shm"
	if _, err := os.Stat(tmpDir); os.IsNotExist(err) {
		tmpDir = os.TempDir()
	}
	baseName := strings.TrimSuffix(filepath.Base(inputFile), ".py67")
	tmpExec := filepath.Join(tmpDir, fmt.Sprintf("py67_run_%s_%d", baseName, os.Getpid()))

	if err := CompileFile(inputFile, tmpExec, ctx.Options); err != nil {
		return err
	}
	defer os.Remove(tmpExec)

	if ctx.Options.Verbose {
		fmt.Fprintf(os.Stderr, "running %s\n", tmpExec)
	}

	cmd := exec.Command(tmpExec, programArgs...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Remove(tmpExec)
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("execution failed: %w", err)
	}
	return nil
}

// cmdAsm prints the generated listing without touching the toolchain.
func cmdAsm(ctx *CommandContext, inputFile string) error {
	src, err := os.ReadFile(inputFile)
	if err != nil {
		return err
	}
	listing, err := CompileSource(string(src), ctx.Options)
	if err != nil {
		return fmt.Errorf("%s: %w", inputFile, err)
	}
	fmt.Print(listing)
	return nil
}

// cmdWatch rebuilds the file on every change until interrupted.
func cmdWatch(ctx *CommandContext, args []string) error {
	inputFiles, outputPath := splitBuildArgs(args)
	if len(inputFiles) != 1 {
		return fmt.Errorf("usage: py67 watch <file.py67> [-o output]")
	}
	inputFile := inputFiles[0]
	if outputPath == "" {
		outputPath = strings.TrimSuffix(filepath.Base(inputFile), ".py67")
	}

	rebuild := func(path string) {
		if err := CompileFile(path, outputPath, ctx.Options); err != nil {
			fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
			return
		}
		fmt.Fprintf(os.Stderr, "rebuilt %s -> %s\n", path, outputPath)
	}

	// Initial build, then block in the watcher.
	rebuild(inputFile)

	watcher, err := NewFileWatcher(rebuild)
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.AddFile(inputFile); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "watching %s\n", inputFile)
	watcher.Watch()
	return nil
}

func cmdHelp() error {
	fmt.Print(`py67 - a Python-subset to x86-64 compiler

Usage:
  py67 build <file.py67> [-o output]   Compile to an executable
  py67 run <file.py67> [args...]       Compile and run immediately
  py67 asm <file.py67>                 Print the generated NASM listing
  py67 watch <file.py67> [-o output]   Recompile on every change
  py67 <file.py67>                     Shorthand for build
  py67 version                         Print version

Flags (before the subcommand):
  -o <path>   Output executable path
  -v          Verbose output
  -no-opt     Disable the optimization passes
  -V          Print version and exit

Environment:
  PY67_NASM     Assembler command (default: nasm)
  PY67_LD       Linker command (default: ld)
  PY67_VERBOSE  Enable verbose output
`)
	return nil
}
