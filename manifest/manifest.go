// Package manifest handles slate.toml project configuration.
package manifest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/chazu/slate/compiler"
	"github.com/chazu/slate/opt"
)

// FileName is the manifest file looked up in project directories.
const FileName = "slate.toml"

// SourceExt is the extension of source files found in source directories.
const SourceExt = ".slate"

// Output formats.
const (
	FormatListing = "listing"
	FormatGo      = "go"
	FormatObject  = "object"
)

// Manifest represents a slate.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Source       Source                `toml:"source"`
	Dependencies map[string]Dependency `toml:"dependencies"`
	Target       Target                `toml:"target"`
	Output       Output                `toml:"output"`
	Log          Log                   `toml:"log"`

	// Dir is the directory containing the slate.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations. Files are compiled in the order
// given, followed by every .slate file of Dirs in lexical order.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

// Dependency is another project whose sources are compiled into this one.
type Dependency struct {
	Path string `toml:"path"`
}

// Target describes the register machine code is allocated for.
type Target struct {
	Registers    int `toml:"registers"`
	ArgRegisters int `toml:"arg-registers"`
}

// Output configures what slatec writes.
type Output struct {
	Path   string `toml:"path"`
	Format string `toml:"format"`
}

// Log configures diagnostics.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Load parses a slate.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, compiler.ConfigError.Wrap(err, "cannot read %s", path)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, compiler.ConfigError.Wrap(err, "parse error in %s", path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, compiler.ConfigError.Wrap(err, "cannot resolve path %s", dir)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 && len(m.Source.Files) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Output.Format == "" {
		m.Output.Format = FormatListing
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	switch m.Output.Format {
	case FormatListing, FormatGo, FormatObject:
	default:
		return compiler.ConfigError.New("%s: unknown output format %q", m.Path(), m.Output.Format)
	}
	if m.Target != (Target{}) {
		if err := m.Machine().Validate(); err != nil {
			return compiler.ConfigError.Wrap(err, "%s: [target]", m.Path())
		}
	}
	for name, dep := range m.Dependencies {
		if dep.Path == "" {
			return compiler.ConfigError.New("%s: dependency %q has no path", m.Path(), name)
		}
	}
	return nil
}

// FindAndLoad walks up from startDir to find a slate.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.Dir, FileName)
}

// Machine returns the target machine, with opt.DefaultMachine filling in
// fields left unset.
func (m *Manifest) Machine() opt.Machine {
	mach := opt.DefaultMachine
	if m.Target.Registers != 0 {
		mach.Registers = m.Target.Registers
	}
	if m.Target.ArgRegisters != 0 {
		mach.ArgRegisters = m.Target.ArgRegisters
	}
	return mach
}

// OutputPath returns the absolute output path, or "" for standard output.
func (m *Manifest) OutputPath() string {
	if m.Output.Path == "" {
		return ""
	}
	return m.abs(m.Output.Path)
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.abs(d))
	}
	return paths
}

// SourceFiles returns the absolute paths of the project's own source files.
// Configured source directories must exist.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, f := range m.Source.Files {
		add(m.abs(f))
	}
	for _, dir := range m.SourceDirPaths() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, compiler.ConfigError.Wrap(err, "%s: cannot read source directory", m.Path())
		}
		var names []string
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == SourceExt {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			add(filepath.Join(dir, name))
		}
	}
	return files, nil
}

func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
