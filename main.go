// Completion: 100% - CLI entry point
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
)

// A small compiler that lowers a Python-subset language to x86-64 NASM
// assembly and hands the listing to the external assembler and linker.

const versionString = "py67 1.0.0"

// VerboseMode gates progress output on stderr. The flag wins over the
// environment.
var VerboseMode = env.Bool("PY67_VERBOSE")

func main() {
	var (
		outputPath  = flag.String("o", "", "output executable path")
		verbose     = flag.Bool("v", false, "verbose output")
		noOptimize  = flag.Bool("no-opt", false, "disable the optimization passes")
		showVersion = flag.Bool("V", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(versionString)
		return
	}
	if *verbose {
		VerboseMode = true
	}

	options := CompileOptions{
		Optimize: !*noOptimize,
		Verbose:  VerboseMode,
	}

	if err := RunCLI(flag.Args(), options, *outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
