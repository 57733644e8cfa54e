package dispatcher

import (
	"context"
	"os"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/standardbeagle/fsharp-ls/internal/analyzer"
	"github.com/standardbeagle/fsharp-ls/internal/cursor"
	"github.com/standardbeagle/fsharp-ls/internal/document"
	"github.com/standardbeagle/fsharp-ls/internal/orchestrator"
	"github.com/standardbeagle/fsharp-ls/internal/progress"
	"github.com/standardbeagle/fsharp-ls/internal/project"
)

// Dispatcher is the FeatureDispatcher: it composes DocumentStore,
// ProjectGraph, AnalyzerGateway, and CheckOrchestrator into each LSP
// feature response.
type Dispatcher struct {
	docs  *document.Store
	graph *project.Graph
	gw    analyzer.Gateway
	orch  *orchestrator.Orchestrator
	sink  progress.Sink

	// ExcludeGlobs filters files out of WorkspaceSymbols the way the
	// teacher's BuildArtifactDetector strips generated output from
	// indexing (bin/, obj/, vendor-equivalents).
	ExcludeGlobs []string

	lastCompletionMu sync.Mutex
	lastCompletion   map[string]analyzer.Declaration // fullName -> Declaration
}

// New creates a Dispatcher.
func New(docs *document.Store, graph *project.Graph, gw analyzer.Gateway, orch *orchestrator.Orchestrator, sink progress.Sink) *Dispatcher {
	return &Dispatcher{docs: docs, graph: graph, gw: gw, orch: orch, sink: sink}
}

func (d *Dispatcher) textOf(uri string) (string, bool) {
	if t, ok := d.docs.GetText(uri); ok {
		return t, true
	}
	data, err := os.ReadFile(uri)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// lineNumbered returns the 0-based line of text. It walks UTF-16 units
// to find where that line starts and hands the rest of the work to
// document.LineOf (spec.md §4.1's lineOf helper), rather than keeping
// a second line-extraction algorithm here.
func lineNumbered(text string, line int) string {
	if line < 0 {
		return ""
	}
	units := utf16.Encode([]rune(text))
	idx, seen := 0, 0
	for idx < len(units) && seen < line {
		if units[idx] == '\n' {
			seen++
		}
		idx++
	}
	if seen < line {
		return ""
	}
	return document.LineOf(text, idx)
}

// symbolAt resolves the symbol under pos in uri, per spec.md §4.6.
func (d *Dispatcher) symbolAt(ctx context.Context, uri string, pos Position) (*analyzer.SymbolUse, analyzer.CheckResult, bool) {
	out := d.orch.Check(ctx, uri)
	if !out.OK {
		return nil, analyzer.CheckResult{}, false
	}
	text, ok := d.textOf(uri)
	if !ok {
		return nil, out.Check, false
	}
	line := lineNumbered(text, pos.Line)
	endCol, ok := cursor.FindEndOfIdentifierUnderCursor(line, pos.Character)
	if !ok {
		return nil, out.Check, false
	}
	names := cursor.FindNamesUnderCursor(line, endCol-1)
	sym, err := d.gw.SymbolAt(out.Check, pos.Line+1, endCol, line, names)
	if err != nil || sym == nil {
		return nil, out.Check, false
	}
	return sym, out.Check, true
}

// Hover implements spec.md §4.6's Hover feature.
func (d *Dispatcher) Hover(ctx context.Context, uri string, pos Position) *Hover {
	out := d.orch.Check(ctx, uri)
	if !out.OK {
		return nil
	}
	text, ok := d.textOf(uri)
	if !ok {
		return nil
	}
	line := lineNumbered(text, pos.Line)
	names := cursor.FindNamesUnderCursor(line, pos.Character)
	if len(names) == 0 {
		return nil
	}
	tip, err := d.gw.Tooltip(out.Check, pos.Line+1, pos.Character+1, line, names)
	if err != nil || len(tip.Groups) == 0 {
		return nil
	}
	var contents []string
	for _, g := range tip.Groups {
		contents = append(contents, strings.Join(g, "\n"))
	}
	return &Hover{Contents: contents}
}
