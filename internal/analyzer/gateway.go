package analyzer

import (
	"context"

	"github.com/standardbeagle/fsharp-ls/internal/project"
)

// Gateway abstracts the compiler front end (spec.md §4.3). All
// operations may be long-running and must be safe to call from
// multiple goroutines concurrently; calls for the same file may be
// serialized internally (e.g. via single-flight) and that is
// acceptable — callers must not assume concurrent calls for one file
// run in parallel.
type Gateway interface {
	// Parse runs the syntactic analysis only.
	Parse(ctx context.Context, file, text string, opts ParsingOptions) (ParseResult, error)

	// ParsingOptionsOf derives the ParsingOptions for opts.
	ParsingOptionsOf(opts project.Options) ParsingOptions

	// Check runs the full syntactic+semantic analysis at the given
	// version. Returns Outcome.Aborted true if the compiler gave up
	// mid-check; ParseResult is always populated even on abort.
	Check(ctx context.Context, file string, version int, text string, opts project.Options) (ParseResult, Outcome, error)

	// TryCached returns the most recent cached (parse, check, version)
	// for file under opts, if any. It never triggers a compile.
	TryCached(file string, opts project.Options) (ParseResult, CheckResult, int, bool)

	// ScriptOptions derives ProjectOptions for a single-file script,
	// given its content and on-disk modification time.
	ScriptOptions(file, text string, mtimeUnixNano int64) (project.Options, []project.Diagnostic, error)

	// UsesInFile returns every occurrence of symbol within one already
	// checked file.
	UsesInFile(check CheckResult, symbol SymbolUse) ([]SymbolUse, error)

	// SymbolAt resolves the symbol at a cursor position, given the
	// identifier chain CursorParser extracted.
	SymbolAt(check CheckResult, line1, endCol0 int, lineText string, names []string) (*SymbolUse, error)

	// Declarations returns completion candidates for a partial name at
	// a position.
	Declarations(parse ParseResult, line1 int, lineText, partialName string) (DeclarationList, error)

	// Methods returns the overload group applicable to a call site.
	Methods(check CheckResult, line1, endCol0 int, lineText string, names []string) (MethodGroup, error)

	// Tooltip renders hover content for a position.
	Tooltip(check CheckResult, line1, col1 int, lineText string, names []string) (ToolTip, error)

	// OnBeforeBackgroundCheck registers a callback invoked just before
	// the Analyzer begins a background (non-foreground) check of file;
	// the callback must not block.
	OnBeforeBackgroundCheck(cb func(file string))

	// OnMaxMemory registers a callback invoked when the Analyzer
	// detects it is approaching a memory ceiling; the callback must not
	// block.
	OnMaxMemory(cb func())
}
