package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/slate/codegen"
	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/manifest"
	"github.com/chazu/slate/opt"
	"github.com/chazu/slate/program"
	"github.com/chazu/slate/value"
)

type config struct {
	files        []string
	output       string
	format       string
	registers    int
	argRegisters int
	pkg          string
	runtime      string
	lookups      lookupList
	verbosity    int

	// flags given on the command line, which win over the manifest
	set map[string]bool
}

// apply fills in settings from a project manifest.
func (c *config) apply(m *manifest.Manifest) error {
	files, err := manifest.NewResolver(m).Sources()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return compiler.ConfigError.New("%s: no source files", m.Path())
	}
	c.files = files

	if !c.set["o"] {
		c.output = m.OutputPath()
	}
	if !c.set["format"] {
		c.format = m.Output.Format
	}
	mach := m.Machine()
	if !c.set["regs"] {
		c.registers = mach.Registers
	}
	if !c.set["argregs"] {
		c.argRegisters = mach.ArgRegisters
	}
	if !c.set["v"] {
		c.verbosity = m.Log.Verbosity
	}
	return nil
}

func (c *config) machine() opt.Machine {
	m := opt.DefaultMachine
	if c.registers != 0 {
		m.Registers = c.registers
	}
	if c.argRegisters != 0 {
		m.ArgRegisters = c.argRegisters
	}
	return m
}

// lookup is a -lookup request: which method does tag run for sel.
type lookup struct {
	sel value.Selector
	tag value.Tag
}

type lookupList []lookup

func (l *lookupList) String() string {
	parts := make([]string, len(*l))
	for i, q := range *l {
		parts[i] = fmt.Sprintf("%s:%d", q.sel, q.tag)
	}
	return strings.Join(parts, ",")
}

// Set parses selector:tag. The tag follows the last colon, so keyword
// selectors work: at:put::257.
func (l *lookupList) Set(s string) error {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return fmt.Errorf("want selector:tag, got %q", s)
	}
	tag, err := strconv.ParseUint(s[i+1:], 10, 16)
	if err != nil || tag > uint64(value.MaxTag) {
		return fmt.Errorf("bad tag in %q", s)
	}
	*l = append(*l, lookup{sel: value.ParseSelector(s[:i]), tag: value.Tag(tag)})
	return nil
}

// diagnostic is a compile error rendered with its source line.
type diagnostic string

func (d diagnostic) Error() string { return string(d) }

// build compiles the configured files and writes the requested output.
// Warnings go to stderr.
func build(c *config, stdout, stderr io.Writer) error {
	u := program.NewUnit(program.Options{Machine: c.machine()})
	for _, path := range c.files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := u.Parse(program.Source{File: path, Text: string(data)}); err != nil {
			return diagnostic(compiler.Describe(err, u.Tree))
		}
	}
	table, err := u.Compile()
	if err != nil {
		return diagnostic(compiler.Describe(err, u.Tree))
	}
	for _, w := range table.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}

	if len(c.lookups) > 0 {
		for _, q := range c.lookups {
			fmt.Fprintln(stdout, describeLookup(table, q))
		}
		return nil
	}

	return write(c, table, stdout)
}

func describeLookup(t *program.CodeTable, q lookup) string {
	if d, ok := t.Dispatcher(q.sel); ok {
		if label, ok := d.Lookup.Resolve(q.tag); ok {
			return fmt.Sprintf("%s:%d -> %s", q.sel, q.tag, label)
		}
		return fmt.Sprintf("%s:%d -> not understood", q.sel, q.tag)
	}
	if impl, ok := t.Lookup(q.sel, q.tag); ok {
		return fmt.Sprintf("%s:%d -> %s (static)", q.sel, q.tag, impl.Label)
	}
	return fmt.Sprintf("%s:%d -> not understood", q.sel, q.tag)
}

func write(c *config, table *program.CodeTable, stdout io.Writer) (err error) {
	w := stdout
	if c.output != "" {
		f, ferr := os.Create(c.output)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	switch c.format {
	case manifest.FormatListing:
		err = codegen.Emit(table, codegen.NewListing(w))
	case manifest.FormatGo:
		err = codegen.Emit(table, codegen.NewGo(w, codegen.GoOptions{Package: c.pkg, Runtime: c.runtime}))
	case manifest.FormatObject:
		var obj *program.Object
		obj, err = program.NewObject(table)
		if err != nil {
			break
		}
		var data []byte
		data, err = program.MarshalObject(obj)
		if err != nil {
			break
		}
		_, err = w.Write(data)
	default:
		err = compiler.ConfigError.New("unknown output format %q", c.format)
	}
	return err
}
