// Package analyzer defines the AnalyzerGateway contract (spec.md §4.3):
// the thin adapter around the pluggable compiler front end. Gateway is
// the interface every orchestrator/dispatcher call goes through; the
// compiler itself is out of scope of this core and is treated as a
// black box. TreeSitterGateway is a reference implementation good
// enough to exercise every operation in tests and local runs.
package analyzer

import (
	"github.com/standardbeagle/fsharp-ls/internal/project"
)

// Location is a position in a specific file.
type Location struct {
	File string
	Line int // 1-based
	Col  int // 0-based
}

// SymbolUse is one occurrence of a resolved symbol: its declaration
// site plus metadata needed for accessibility/visibility decisions and
// rename refinement. Treated as an immutable value shared across tasks
// (spec.md §9).
type SymbolUse struct {
	DisplayName string
	Declaration Location
	UseRange    Range
	IsPrivate   bool
	IsInternal  bool
}

// Range mirrors document.Range without importing the document package,
// keeping analyzer's public surface self-contained for Gateway
// implementers that have nothing to do with our Document type.
type Range struct {
	StartLine, StartCol int
	EndLine, EndCol     int
}

// ParseResult is the syntactic analysis of one file.
type ParseResult struct {
	File        string
	Diagnostics []project.Diagnostic
	Nav         []NavDeclaration
}

// NavDeclaration is one entry of the navigable declaration tree used by
// DocumentSymbols/WorkspaceSymbols.
type NavDeclaration struct {
	Name     string
	Kind     DeclKind
	Range    Range
	Nested   []NavDeclaration
}

// DeclKind is the compiler's declaration-kind vocabulary (spec.md
// §4.6's kind-mapping table; FeatureDispatcher maps these to LSP kinds).
type DeclKind int

const (
	DeclNamespace DeclKind = iota
	DeclModule
	DeclModuleFile
	DeclType
	DeclException
	DeclMethod
	DeclProperty
	DeclField
	DeclOther
	// DeclArgument and DeclEvent only appear on completion Declarations
	// (the Analyzer's declarations() result), never on NavDeclaration.
	DeclArgument
	DeclEvent
)

// CheckResult is the semantic analysis of one file.
type CheckResult struct {
	File        string
	Version     int
	Diagnostics []project.Diagnostic
}

// Outcome is the result of a check() call: either it succeeded with a
// CheckResult, or it was aborted mid-way.
type Outcome struct {
	Check   *CheckResult
	Aborted bool
}

// ToolTip is the hover content for one position: one or more grouped
// text segments (signature group, documentation group, ...).
type ToolTip struct {
	Groups [][]string
}

// DeclarationList is a completion result.
type DeclarationList struct {
	Items []Declaration
}

// Declaration is one completion candidate.
type Declaration struct {
	Name        string
	FullName    string
	Kind        DeclKind
	IsExtension bool
	Description string
}

// MethodGroup is a signature-help result: one entry per overload.
type MethodGroup struct {
	Overloads []MethodOverload
}

// MethodOverload is one method signature.
type MethodOverload struct {
	Name          string
	Parameters    []Parameter
	Documentation string
}

// Parameter is one method parameter.
type Parameter struct {
	Name string
	Type string
}

// ParsingOptions is the subset of project.Options Parse actually needs
// (compiler flags that affect tokenization/conditional compilation),
// derived via Gateway.ParsingOptionsOf so Parse never requires a full
// project load just to re-tokenize one file.
type ParsingOptions struct {
	Flags    []string
	IsScript bool
}
