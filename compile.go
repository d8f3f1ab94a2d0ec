// compile.go - whole-program compilation driver
package main

import (
	"fmt"
	"os"
	"sync"
)

// CompileOptions configures one compilation run.
type CompileOptions struct {
	Optimize bool
	Verbose  bool
}

// CompileProgram lowers every function of the program, runs the optimizer,
// and returns the units in source order. Functions are lowered concurrently:
// each one has a privately owned Compiler and Scope, while the global set is
// mutex-guarded and labels come from an atomic counter, so the only
// cross-run difference is label numbering. Any hard error discards all
// in-progress units; no partial output is produced.
func CompileProgram(ctx *CompilationContext, program *Program, options CompileOptions) ([]*CompiledUnit, error) {
	for _, fn := range program.Functions {
		ctx.RegisterFunction(fn.Name)
	}

	units := make([]*CompiledUnit, len(program.Functions))
	errs := make([]error, len(program.Functions))

	var wg sync.WaitGroup
	for i, fn := range program.Functions {
		wg.Add(1)
		go func(i int, fn *FunctionDef) {
			defer wg.Done()
			units[i], errs[i] = NewCompiler(ctx).CompileFunction(fn)
		}(i, fn)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	if options.Optimize {
		passes := DefaultPasses()
		for _, unit := range units {
			before := len(unit.Instructions)
			Optimize(unit, passes)
			if options.Verbose && len(unit.Instructions) != before {
				fmt.Fprintf(os.Stderr, "optimized %s: %d -> %d instructions\n",
					unit.Name, before, len(unit.Instructions))
			}
		}
	}

	return units, nil
}

// CompileSource is the whole front half of the pipeline: source text to
// final NASM listing.
func CompileSource(src string, options CompileOptions) (string, error) {
	program, err := ParseSource(src)
	if err != nil {
		return "", err
	}
	ctx := NewCompilationContext()
	units, err := CompileProgram(ctx, program, options)
	if err != nil {
		return "", err
	}
	return RenderProgram(ctx, units), nil
}

// CompileFile compiles a source file into an executable at outputPath via
// the external toolchain.
func CompileFile(inputPath, outputPath string, options CompileOptions) error {
	src, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	listing, err := CompileSource(string(src), options)
	if err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}
	if options.Verbose {
		fmt.Fprintf(os.Stderr, "compiled %s, assembling with %s\n", inputPath, assemblerCommand())
	}
	return AssembleAndLink(listing, outputPath, options)
}
