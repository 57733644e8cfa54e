// Package project holds the ProjectGraph: the mapping from a source
// file to its owning ProjectOptions, and the project-to-project
// dependency DAG those ProjectOptions live in.
package project

import (
	"fmt"

	"github.com/standardbeagle/fsharp-ls/internal/document"
)

// Options is the opaque compilation context the Analyzer needs to
// parse/check one file. It is produced by a Loader for on-disk project
// files, or by the Analyzer itself for script files (see ScriptOptionsProvider).
type Options struct {
	ProjectFile string
	Sources     []string // ordered; earlier files are visible to later ones
	Flags       []string
	References  []*Options // direct project dependencies
	IsScript    bool
}

// Diagnostic is a single compiler-reported issue, independent of which
// phase (parse or check) produced it.
type Diagnostic struct {
	Range    document.Range
	Severity Severity
	Message  string
	Code     string
}

// Severity mirrors LSP's DiagnosticSeverity levels.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// NotInWorkspaceError is returned by Find when a file belongs to no
// known project.
type NotInWorkspaceError struct {
	Path string
}

func (e *NotInWorkspaceError) Error() string {
	return fmt.Sprintf("%s is not in the workspace", e.Path)
}

// Loader resolves on-disk project manifests into Options. It is the
// ProjectLoader collaborator from the spec — contracted only by this
// interface; see internal/projectloader for the default implementation.
type Loader interface {
	// LoadProjectFile parses a project manifest at path into Options,
	// resolving its References against already-loaded projects via
	// resolve.
	LoadProjectFile(path string, resolve func(projectFile string) (*Options, bool)) (*Options, error)
}

// ScriptOptionsProvider derives Options for a single script file. In
// production this is the Analyzer (spec §4.3's scriptOptions), kept as
// a narrow interface here to avoid a project->analyzer import cycle.
type ScriptOptionsProvider interface {
	ScriptOptions(file, text string, mtimeUnixNano int64) (Options, []Diagnostic, error)
}
