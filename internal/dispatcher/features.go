package dispatcher

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/fsharp-ls/internal/analyzer"
	"github.com/standardbeagle/fsharp-ls/internal/cursor"
	"github.com/standardbeagle/fsharp-ls/internal/progress"
	"github.com/standardbeagle/fsharp-ls/internal/project"
)

func toRange(r analyzer.Range) Range {
	return Range{
		Start: Position{Line: r.StartLine, Character: r.StartCol},
		End:   Position{Line: r.EndLine, Character: r.EndCol},
	}
}

// Completion implements spec.md §4.6's Completion feature: a "quick"
// check for responsiveness, a PartialLongName derived from the
// identifier chain under the cursor, and the resulting declarations
// retained as LastCompletion for a following ResolveCompletionItem.
func (d *Dispatcher) Completion(ctx context.Context, uri string, pos Position) *CompletionList {
	out := d.orch.Quick(ctx, uri)
	if !out.OK {
		return nil
	}
	text, ok := d.textOf(uri)
	if !ok {
		return nil
	}
	line := lineNumbered(text, pos.Line)
	names := cursor.FindNamesUnderCursor(line, pos.Character)
	partial := strings.Join(names, ".")

	decls, err := d.gw.Declarations(out.Parse, pos.Line+1, line, partial)
	if err != nil {
		return nil
	}

	d.lastCompletionMu.Lock()
	d.lastCompletion = make(map[string]analyzer.Declaration, len(decls.Items))
	for _, it := range decls.Items {
		d.lastCompletion[it.FullName] = it
	}
	d.lastCompletionMu.Unlock()

	items := make([]CompletionItem, 0, len(decls.Items))
	for _, it := range decls.Items {
		items = append(items, CompletionItem{
			Label:  it.Name,
			Kind:   completionKindOf(it.Kind),
			Detail: it.FullName,
			Data:   CompletionItemData{FullName: it.FullName},
		})
	}
	return &CompletionList{IsIncomplete: false, Items: items}
}

// ResolveCompletionItem implements spec.md §4.6: if LastCompletion has
// an entry matching item.Data.FullName, its description is attached as
// documentation; otherwise item is returned unchanged.
func (d *Dispatcher) ResolveCompletionItem(item CompletionItem) CompletionItem {
	d.lastCompletionMu.Lock()
	decl, ok := d.lastCompletion[item.Data.FullName]
	d.lastCompletionMu.Unlock()
	if ok {
		item.Documentation = decl.Description
	}
	return item
}

// SignatureHelp implements spec.md §4.6's SignatureHelp feature.
func (d *Dispatcher) SignatureHelp(ctx context.Context, uri string, pos Position) *SignatureHelp {
	out := d.orch.Quick(ctx, uri)
	if !out.OK {
		return nil
	}
	text, ok := d.textOf(uri)
	if !ok {
		return nil
	}
	line := lineNumbered(text, pos.Line)

	endOfName, ok := cursor.FindMethodCallBeforeCursor(line, pos.Character)
	if !ok {
		return nil
	}
	names := cursor.FindNamesUnderCursor(line, endOfName-1)

	group, err := d.gw.Methods(out.Check, pos.Line+1, endOfName, line, names)
	if err != nil {
		return nil
	}

	sigs := make([]SignatureInformation, 0, len(group.Overloads))
	for _, ov := range group.Overloads {
		params := make([]ParameterInformation, 0, len(ov.Parameters))
		labels := make([]string, 0, len(ov.Parameters))
		for _, p := range ov.Parameters {
			lbl := p.Name
			if p.Type != "" {
				lbl = p.Name + ": " + p.Type
			}
			params = append(params, ParameterInformation{Label: lbl})
			labels = append(labels, lbl)
		}
		doc := ""
		if len(group.Overloads) == 1 {
			doc = ov.Documentation
		}
		sigs = append(sigs, SignatureInformation{
			Label:         ov.Name + "(" + strings.Join(labels, ", ") + ")",
			Documentation: doc,
			Parameters:    params,
		})
	}

	activeParam := cursor.CountCommas(line, endOfName, pos.Character)
	return &SignatureHelp{
		Signatures:      sigs,
		ActiveSignature: findCompatibleOverload(activeParam, group.Overloads),
		ActiveParameter: activeParam,
	}
}

// findCompatibleOverload is spec.md §4.6's activeSignature rule: the
// first overload index whose parameter count can accept activeParam.
func findCompatibleOverload(activeParam int, overloads []analyzer.MethodOverload) *int {
	for i, ov := range overloads {
		if activeParam == 0 || activeParam < len(ov.Parameters) {
			v := i
			return &v
		}
	}
	return nil
}

// GotoDefinition implements spec.md §4.6's GotoDefinition feature.
func (d *Dispatcher) GotoDefinition(ctx context.Context, uri string, pos Position) []Location {
	sym, _, ok := d.symbolAt(ctx, uri, pos)
	if !ok {
		return nil
	}
	return []Location{{
		URI: sym.Declaration.File,
		Range: Range{
			Start: Position{Line: sym.Declaration.Line - 1, Character: sym.Declaration.Col},
			End:   Position{Line: sym.Declaration.Line - 1, Character: sym.Declaration.Col},
		},
	}}
}

// FindReferences implements spec.md §4.6's FindReferences feature.
func (d *Dispatcher) FindReferences(ctx context.Context, uri string, pos Position) []Location {
	sym, _, ok := d.symbolAt(ctx, uri, pos)
	if !ok {
		return nil
	}
	occs := d.findAllSymbolUses(ctx, *sym)
	locs := make([]Location, 0, len(occs))
	for _, o := range occs {
		locs = append(locs, Location{URI: o.File, Range: o.Range})
	}
	return locs
}

// occurrence is one use of a symbol in a specific file.
type occurrence struct {
	File        string
	Range       Range
	DisplayName string
}

// findAllSymbolUses implements spec.md §4.6's accessibility-aware
// cross-file reference scan. Its incompleteness (implicit privates
// missed) is an acknowledged source behavior, not a bug: see
// DESIGN.md's Open-question decisions.
func (d *Dispatcher) findAllSymbolUses(ctx context.Context, sym analyzer.SymbolUse) []occurrence {
	declFile := sym.Declaration.File
	var declProject *project.Options
	if declFile != "" {
		declProject, _ = d.graph.Find(declFile)
	}

	visible := func(f string) bool {
		switch {
		case sym.IsPrivate:
			return f == declFile
		case sym.IsInternal:
			p, err := d.graph.Find(f)
			return err == nil && declProject != nil && p == declProject && d.graph.Visible(declFile, f)
		default:
			return declFile == "" || d.graph.Visible(declFile, f)
		}
	}

	var survivors []string
	for _, p := range d.graph.OpenProjects() {
		for _, f := range p.Sources {
			if !visible(f) {
				continue
			}
			text, ok := d.textOf(f)
			if !ok || !strings.Contains(text, sym.DisplayName) {
				continue
			}
			survivors = append(survivors, f)
		}
	}

	r := progress.Start(d.sink, "Finding references to "+sym.DisplayName, len(survivors))
	defer r.End()

	var out []occurrence
	for _, f := range survivors {
		checkOut := d.orch.Check(ctx, f)
		if checkOut.OK {
			if uses, err := d.gw.UsesInFile(checkOut.Check, sym); err == nil {
				for _, u := range uses {
					out = append(out, occurrence{File: f, Range: toRange(u.UseRange), DisplayName: u.DisplayName})
				}
			}
		}
		r.Increment(f)
	}
	return out
}

// DocumentSymbols implements spec.md §4.6's DocumentSymbols feature.
func (d *Dispatcher) DocumentSymbols(ctx context.Context, uri string) []SymbolInformation {
	text, ok := d.textOf(uri)
	if !ok {
		return nil
	}
	var popts analyzer.ParsingOptions
	if opts, err := d.graph.Find(uri); err == nil {
		popts = d.gw.ParsingOptionsOf(*opts)
	}
	parse, err := d.gw.Parse(ctx, uri, text, popts)
	if err != nil {
		return nil
	}

	var out []SymbolInformation
	var walk func(decl analyzer.NavDeclaration, container string)
	walk = func(decl analyzer.NavDeclaration, container string) {
		out = append(out, SymbolInformation{
			Name:          decl.Name,
			Kind:          symbolKindOf(decl.Kind),
			Location:      Location{URI: uri, Range: toRange(decl.Range)},
			ContainerName: container,
		})
		for _, n := range decl.Nested {
			walk(n, decl.Name)
		}
	}
	for _, top := range parse.Nav {
		walk(top, "")
	}
	return out
}

// WorkspaceSymbols implements spec.md §4.6's WorkspaceSymbols feature,
// scanning open projects' source files, pre-filtering by a cheap
// identifier-token title-case test before parsing, and capping at 50
// accumulated matches.
func (d *Dispatcher) WorkspaceSymbols(ctx context.Context, query string) []SymbolInformation {
	const limit = 50
	var out []SymbolInformation

scan:
	for _, p := range d.graph.OpenProjects() {
		for _, f := range p.Sources {
			if len(out) >= limit {
				break scan
			}
			if d.excluded(f) {
				continue
			}
			text, ok := d.textOf(f)
			if !ok || !anyTokenMatchesTitleCase(query, text) {
				continue
			}
			popts := d.gw.ParsingOptionsOf(*p)
			parse, err := d.gw.Parse(ctx, f, text, popts)
			if err != nil {
				continue
			}
			var walk func(decl analyzer.NavDeclaration, container string)
			walk = func(decl analyzer.NavDeclaration, container string) {
				if len(out) >= limit {
					return
				}
				if cursor.MatchesTitleCase(query, decl.Name) {
					out = append(out, SymbolInformation{
						Name:          decl.Name,
						Kind:          symbolKindOf(decl.Kind),
						Location:      Location{URI: f, Range: toRange(decl.Range)},
						ContainerName: container,
					})
				}
				for _, n := range decl.Nested {
					walk(n, decl.Name)
				}
			}
			for _, top := range parse.Nav {
				walk(top, "")
			}
		}
	}

	return rankSymbols(query, out)
}

func anyTokenMatchesTitleCase(query, text string) bool {
	for _, tok := range cursor.IdentifierTokens(text) {
		if cursor.MatchesTitleCase(query, tok) {
			return true
		}
	}
	return false
}

// rankSymbols orders accumulated WorkspaceSymbols matches by
// cursor.RankTitleCaseMatches' Levenshtein tie-break, preserving
// duplicate names' relative (stable) order.
func rankSymbols(query string, items []SymbolInformation) []SymbolInformation {
	if len(items) == 0 {
		return items
	}
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	ranked := cursor.RankTitleCaseMatches(query, names)

	byName := make(map[string][]SymbolInformation, len(items))
	for _, it := range items {
		byName[it.Name] = append(byName[it.Name], it)
	}
	out := make([]SymbolInformation, 0, len(items))
	for _, s := range ranked {
		queue := byName[s.Name]
		if len(queue) == 0 {
			continue
		}
		out = append(out, queue[0])
		byName[s.Name] = queue[1:]
	}
	return out
}

func (d *Dispatcher) excluded(file string) bool {
	for _, g := range d.ExcludeGlobs {
		if matched, _ := doublestar.Match(g, file); matched {
			return true
		}
	}
	return false
}

// Rename implements spec.md §4.6's Rename feature: find the symbol,
// collect every use, group by file, and replace each use's *refined*
// range (the last occurrence of the display name on the use's last
// line, constrained to the range's start column) with newName.
func (d *Dispatcher) Rename(ctx context.Context, uri string, pos Position, newName string) *WorkspaceEdit {
	sym, _, ok := d.symbolAt(ctx, uri, pos)
	if !ok {
		return nil
	}
	occs := d.findAllSymbolUses(ctx, *sym)
	if len(occs) == 0 {
		return &WorkspaceEdit{}
	}

	var order []string
	byFile := make(map[string][]occurrence)
	for _, o := range occs {
		if _, seen := byFile[o.File]; !seen {
			order = append(order, o.File)
		}
		byFile[o.File] = append(byFile[o.File], o)
	}

	changes := make([]VersionedTextDocumentEdit, 0, len(order))
	for _, f := range order {
		version := 0
		if v, ok := d.docs.GetVersion(f); ok {
			version = v
		}
		text, _ := d.textOf(f)
		edits := make([]TextEdit, 0, len(byFile[f]))
		for _, o := range byFile[f] {
			edits = append(edits, TextEdit{
				Range:   refineRange(text, o.Range, sym.DisplayName),
				NewText: newName,
			})
		}
		changes = append(changes, VersionedTextDocumentEdit{URI: f, Version: version, Edits: edits})
	}
	return &WorkspaceEdit{DocumentChanges: changes}
}

// refineRange narrows a compiler-reported use range to the last
// occurrence of displayName on the range's last line, at or after the
// range's start column (when start and end share a line) or from
// column 0 otherwise. Falls back to the full range if not found.
func refineRange(text string, rng Range, displayName string) Range {
	if displayName == "" {
		return rng
	}
	lastLine := lineNumbered(text, rng.End.Line)
	lineRunes := []rune(lastLine)
	nameRunes := []rune(displayName)

	searchFrom := 0
	if rng.Start.Line == rng.End.Line {
		searchFrom = rng.Start.Character
	}
	if searchFrom < 0 {
		searchFrom = 0
	}
	if searchFrom > len(lineRunes) {
		return rng
	}

	lastIdx := -1
	for i := searchFrom; i+len(nameRunes) <= len(lineRunes); i++ {
		if string(lineRunes[i:i+len(nameRunes)]) == displayName {
			lastIdx = i
		}
	}
	if lastIdx == -1 {
		return rng
	}
	return Range{
		Start: Position{Line: rng.End.Line, Character: lastIdx},
		End:   Position{Line: rng.End.Line, Character: lastIdx + len(nameRunes)},
	}
}
