package manifest

import (
	"os"
	"sort"

	"github.com/tliron/commonlog"

	"github.com/chazu/slate/compiler"
)

var log = commonlog.GetLogger("slate.manifest")

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Manifest  *Manifest // the dependency's own manifest
}

// Resolver manages dependency resolution. A program is compiled as a whole,
// so dependencies contribute source files rather than prebuilt code.
type Resolver struct {
	manifest *Manifest

	// directories being resolved, for cycle detection
	active map[string]bool
	done   map[string]bool
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{
		manifest: m,
		active:   make(map[string]bool),
		done:     make(map[string]bool),
	}
}

// Resolve resolves all dependencies and returns them in load order
// (topologically sorted: dependencies before dependents). Each project
// appears once even when several dependents name it.
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	r.active[r.manifest.Dir] = true
	defer delete(r.active, r.manifest.Dir)
	return r.resolveAll(r.manifest)
}

// resolveAll resolves the dependencies of m recursively, in name order.
func (r *Resolver) resolveAll(m *Manifest) ([]ResolvedDep, error) {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		rd, err := r.resolveOne(m, name, m.Dependencies[name])
		if err != nil {
			return nil, err
		}
		if r.done[rd.LocalPath] {
			continue
		}
		if r.active[rd.LocalPath] {
			return nil, compiler.ConfigError.New("dependency cycle through %q at %s", name, rd.LocalPath)
		}

		r.active[rd.LocalPath] = true
		transitive, err := r.resolveAll(rd.Manifest)
		delete(r.active, rd.LocalPath)
		if err != nil {
			return nil, err
		}
		order = append(order, transitive...)

		r.done[rd.LocalPath] = true
		order = append(order, *rd)
		log.Debugf("resolved %s at %s", name, rd.LocalPath)
	}
	return order, nil
}

// resolveOne resolves a single dependency of m.
func (r *Resolver) resolveOne(m *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	localPath := m.abs(dep.Path)

	// Verify it exists
	if _, err := os.Stat(localPath); err != nil {
		return nil, compiler.ConfigError.Wrap(err, "dependency %q not found at %s", name, localPath)
	}

	depManifest, err := Load(localPath)
	if err != nil {
		return nil, compiler.ConfigError.Wrap(err, "resolving %s", name)
	}

	return &ResolvedDep{
		Name:      name,
		LocalPath: depManifest.Dir,
		Manifest:  depManifest,
	}, nil
}

// Sources returns every source file of the project: dependencies first, in
// load order, then the project's own files.
func (r *Resolver) Sources() ([]string, error) {
	deps, err := r.Resolve()
	if err != nil {
		return nil, err
	}
	var files []string
	for _, d := range deps {
		fs, err := d.Manifest.SourceFiles()
		if err != nil {
			return nil, err
		}
		files = append(files, fs...)
	}
	own, err := r.manifest.SourceFiles()
	if err != nil {
		return nil, err
	}
	return append(files, own...), nil
}
