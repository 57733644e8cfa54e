// Package projectloader is the default ProjectLoader collaborator: it
// reads on-disk project manifests (TOML) and turns them into
// project.Options. It does not handle script files (project.Graph
// derives their Options from the Analyzer) and does not walk the
// workspace (project.Graph.AddWorkspaceRoot does). Grounded on the teacher's
// internal/config package, which already parses per-language project
// manifests (package.json, Cargo.toml, tsconfig.json, ...) to size
// build output directories — generalized here into the sole manifest
// format this server needs.
package projectloader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/standardbeagle/fsharp-ls/internal/project"
)

// Manifest is the on-disk TOML shape of a project file.
type Manifest struct {
	Sources    []string `toml:"sources"`
	Flags      []string `toml:"flags"`
	References []string `toml:"references"` // paths to other project files, relative to this one
}

// Loader is the default project.Loader: TOML manifests on disk.
type Loader struct{}

// New creates a default Loader.
func New() *Loader { return &Loader{} }

// LoadProjectFile implements project.Loader.
func (l *Loader) LoadProjectFile(path string, resolve func(string) (*project.Options, bool)) (*project.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project file %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing project file %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	opt := &project.Options{
		ProjectFile: path,
		Sources:     absolutize(dir, m.Sources),
		Flags:       m.Flags,
	}

	for _, ref := range m.References {
		refPath := ref
		if !filepath.IsAbs(refPath) {
			refPath = filepath.Join(dir, refPath)
		}
		if dep, ok := resolve(refPath); ok {
			opt.References = append(opt.References, dep)
		}
		// A reference not yet loaded is dropped rather than
		// recursively loaded here: project.Graph.AddWorkspaceRoot is
		// expected to load every *.fsproj in the workspace, so a
		// missing resolve() only happens for references outside the
		// workspace, which the graph correctly treats as absent.
	}

	return opt, nil
}

func absolutize(dir string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(dir, p)
		}
	}
	return out
}
