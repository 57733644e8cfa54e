package project

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// WatchedFilePatterns are the glob patterns the fsnotify-backed
// Watcher (watcher.go) uses to decide whether a changed
// file is project-relevant, grounded on the teacher's
// indexing.FileScanner/BuildArtifactDetector glob-driven discovery.
var WatchedFilePatterns = []string{"**/*.fsproj", "**/*.fsx", "**/project.assets.json"}

// Graph is the copy-on-write-queried ProjectGraph. Queries return
// snapshots; mutators take the exclusive lock.
type Graph struct {
	mu sync.RWMutex

	loader        Loader
	scripts       ScriptOptionsProvider
	fileToProject map[string]*Options
	projects      map[string]*Options // keyed by ProjectFile
}

// NewGraph creates an empty ProjectGraph backed by loader for project
// files and scripts for script-file options.
func NewGraph(loader Loader, scripts ScriptOptionsProvider) *Graph {
	return &Graph{
		loader:        loader,
		scripts:       scripts,
		fileToProject: make(map[string]*Options),
		projects:      make(map[string]*Options),
	}
}

// Find returns the Options owning file, or *NotInWorkspaceError.
func (g *Graph) Find(file string) (*Options, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	opt, ok := g.fileToProject[file]
	if !ok {
		return nil, &NotInWorkspaceError{Path: file}
	}
	return opt, nil
}

// TransitiveDeps returns project's dependency closure in topological
// order (dependencies before dependents), with project itself last.
func (g *Graph) TransitiveDeps(proj *Options) []*Options {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return topoSort(proj)
}

func topoSort(proj *Options) []*Options {
	var out []*Options
	visited := make(map[*Options]bool)
	var visit func(p *Options)
	visit = func(p *Options) {
		if visited[p] {
			return
		}
		visited[p] = true
		for _, dep := range p.References {
			visit(dep)
		}
		out = append(out, p)
	}
	visit(proj)
	return out
}

// combinedSources returns the dependency-ordered concatenation of
// source lists across proj's transitive dependency closure.
func combinedSources(proj *Options) []string {
	var out []string
	for _, p := range topoSort(proj) {
		out = append(out, p.Sources...)
	}
	return out
}

// Visible reports whether declFile is visible from fromFile: same file,
// or declFile precedes fromFile in the combined dependency-ordered
// source list.
func (g *Graph) Visible(declFile, fromFile string) bool {
	if declFile == fromFile {
		return true
	}
	fromProj, err := g.Find(fromFile)
	if err != nil {
		return false
	}
	g.mu.RLock()
	sources := combinedSources(fromProj)
	g.mu.RUnlock()

	declIdx, fromIdx := -1, -1
	for i, s := range sources {
		if s == declFile && declIdx == -1 {
			declIdx = i
		}
		if s == fromFile && fromIdx == -1 {
			fromIdx = i
		}
	}
	if declIdx == -1 || fromIdx == -1 {
		return false
	}
	return declIdx <= fromIdx
}

// OpenProjects returns every project currently tracked by the graph.
// "Open" here means loaded/active in the workspace (the graph has no
// separate notion of a project being closed short of deletion) — this
// resolves an ambiguity in spec.md §4.2/§4.6 deliberately.
func (g *Graph) OpenProjects() []*Options {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Options, 0, len(g.projects))
	for _, p := range g.projects {
		out = append(out, p)
	}
	return out
}

// AddWorkspaceRoot scans dir for project (*.fsproj) and script (*.fsx)
// files and loads them, scripts as single-file projects via
// AddScriptFile. Idempotent: already-loaded files are reloaded in place
// rather than duplicated.
func (g *Graph) AddWorkspaceRoot(dir string) error {
	var projectFiles, scriptFiles []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		if matched, _ := doublestar.Match("**/*.fsproj", rel); matched {
			projectFiles = append(projectFiles, path)
		} else if matched, _ := doublestar.Match("**/*.fsx", rel); matched {
			scriptFiles = append(scriptFiles, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// Two passes: the first load order is arbitrary (filesystem walk
	// order), so a project whose dependency hasn't been loaded yet
	// would resolve an empty reference list. The second pass re-loads
	// every manifest once all projects are known, fixing up references.
	for pass := 0; pass < 2; pass++ {
		for _, pf := range projectFiles {
			if err := g.PutProjectFile(pf); err != nil {
				return err
			}
		}
	}
	for _, sf := range scriptFiles {
		info, err := os.Stat(sf)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(sf)
		if err != nil {
			continue
		}
		if _, err := g.AddScriptFile(sf, string(data), info.ModTime()); err != nil {
			return err
		}
	}
	return nil
}

// PutProjectFile (re)loads a single project file and points every
// dependent's References entry for it at the reloaded Options.
func (g *Graph) PutProjectFile(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	resolve := func(projectFile string) (*Options, bool) {
		opt, ok := g.projects[projectFile]
		return opt, ok
	}
	opt, err := g.loader.LoadProjectFile(path, resolve)
	if err != nil {
		return err
	}

	// Remove this project's previous file ownership before re-adding.
	if old, ok := g.projects[path]; ok {
		for _, src := range old.Sources {
			if g.fileToProject[src] == old {
				delete(g.fileToProject, src)
			}
		}
		for _, p := range g.projects {
			for i, ref := range p.References {
				if ref == old {
					p.References[i] = opt
				}
			}
		}
	}

	g.projects[path] = opt
	for _, src := range opt.Sources {
		g.fileToProject[src] = opt
	}
	return nil
}

// DeleteProjectFile removes a project and its files. Files it uniquely
// contributed become NotInWorkspace; files also owned by another
// project (shouldn't normally happen) are left alone.
func (g *Graph) DeleteProjectFile(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	opt, ok := g.projects[path]
	if !ok {
		return
	}
	for _, src := range opt.Sources {
		if g.fileToProject[src] == opt {
			delete(g.fileToProject, src)
		}
	}
	delete(g.projects, path)
}

// UpdateAssetsJson signals that restored dependency assets for the
// project containing dir have changed; the graph re-consults the
// loader for that project.
func (g *Graph) UpdateAssetsJson(assetsPath string) error {
	projectDir := filepath.Dir(assetsPath)
	g.mu.RLock()
	var target string
	for pf := range g.projects {
		if filepath.Dir(pf) == projectDir {
			target = pf
			break
		}
	}
	g.mu.RUnlock()
	if target == "" {
		return nil
	}
	return g.PutProjectFile(target)
}

// AddScriptFile registers file as a single-file project, deriving its
// Options from the ScriptOptionsProvider (the Analyzer).
func (g *Graph) AddScriptFile(file, text string, mtime time.Time) ([]Diagnostic, error) {
	opt, diags, err := g.scripts.ScriptOptions(file, text, mtime.UnixNano())
	if err != nil {
		return diags, err
	}
	opt.IsScript = true
	opt.ProjectFile = file
	opt.Sources = []string{file}

	g.mu.Lock()
	g.projects[file] = &opt
	g.fileToProject[file] = &opt
	g.mu.Unlock()
	return diags, nil
}
