// slatec compiles slate programs to a listing, Go source or an object file.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/slate/manifest"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, for tests.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("slatec", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var cfg config
	flags.StringVar(&cfg.output, "o", "", "Output file (default: standard output)")
	flags.StringVar(&cfg.format, "format", manifest.FormatListing, "Output format: listing, go or object")
	flags.IntVar(&cfg.registers, "regs", 0, "Number of machine registers (default 8)")
	flags.IntVar(&cfg.argRegisters, "argregs", 0, "Number of argument registers (default 4)")
	flags.StringVar(&cfg.pkg, "pkg", "main", "Package name for -format go")
	flags.StringVar(&cfg.runtime, "runtime", "", "Runtime import path for -format go")
	flags.Var(&cfg.lookups, "lookup", "Report which method selector:tag runs (repeatable)")
	flags.IntVar(&cfg.verbosity, "v", 0, "Log verbosity: 1 info, 2 debug")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: slatec [options] [files...]\n\n")
		fmt.Fprintf(stderr, "Compiles the given .slate files as one program. Without files, the\n")
		fmt.Fprintf(stderr, "nearest slate.toml names the sources and supplies defaults.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		flags.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  slatec main.slate                  # listing on stdout\n")
		fmt.Fprintf(stderr, "  slatec -format object -o app.obj   # build the project in this directory\n")
		fmt.Fprintf(stderr, "  slatec -lookup printString:2 main.slate\n")
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}
	cfg.set = make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { cfg.set[f.Name] = true })
	cfg.files = flags.Args()

	if len(cfg.files) == 0 {
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(stderr, "Error loading manifest: %v\n", err)
			return 1
		}
		if m == nil {
			fmt.Fprintf(stderr, "Error: no source files and no %s found\n", manifest.FileName)
			flags.Usage()
			return 2
		}
		if err := cfg.apply(m); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	commonlog.Configure(cfg.verbosity, nil)

	if err := build(&cfg, stdout, stderr); err != nil {
		if d, ok := err.(diagnostic); ok {
			fmt.Fprintln(stderr, d)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}
