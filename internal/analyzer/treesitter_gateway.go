package analyzer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/fsharp-ls/internal/document"
	"github.com/standardbeagle/fsharp-ls/internal/project"
)

// TreeSitterGateway is a reference Gateway implementation. It parses
// and "checks" a small statically-typed expression language whose
// concrete syntax happens to reuse the bundled tree-sitter-go grammar
// (function/var/const declarations, identifiers, calls) — enough to
// exercise every Gateway operation end to end in tests and manual runs
// without pretending to implement a full compiler, which stays out of
// scope per spec.md §1.
//
// Grounded on symbollinker.SymbolLinkerEngine.parseFile (parser
// construction) and symbollinker.GoExtractor (tree-walking shape),
// generalized from multi-language symbol extraction down to a single
// grammar and a toy semantic pass.
type TreeSitterGateway struct {
	cache *checkCache
	group singleflight.Group

	mu                 sync.Mutex
	onBeforeBackground []func(file string)
	onMaxMemory        []func()
}

// NewTreeSitterGateway creates a Gateway with a CheckCache of the given
// TTL (0 disables expiry).
func NewTreeSitterGateway(cacheTTL time.Duration) *TreeSitterGateway {
	return &TreeSitterGateway{cache: newCheckCache(cacheTTL)}
}

// Close releases background resources (the cache's eviction sweep).
func (g *TreeSitterGateway) Close() {
	g.cache.Close()
}

func (g *TreeSitterGateway) newParser() *sitter.Parser {
	parser := sitter.NewParser()
	_ = parser.SetLanguage(sitter.NewLanguage(tree_sitter_go.Language()))
	return parser
}

func (g *TreeSitterGateway) parseTree(text string) (*sitter.Tree, error) {
	parser := g.newParser()
	defer parser.Close()
	tree := parser.Parse([]byte(text), nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse content")
	}
	return tree, nil
}

// ParsingOptionsOf implements Gateway.
func (g *TreeSitterGateway) ParsingOptionsOf(opts project.Options) ParsingOptions {
	return ParsingOptions{Flags: opts.Flags, IsScript: opts.IsScript}
}

// Parse implements Gateway.
func (g *TreeSitterGateway) Parse(ctx context.Context, file, text string, _ ParsingOptions) (ParseResult, error) {
	tree, err := g.parseTree(text)
	if err != nil {
		return ParseResult{}, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := ParseResult{File: file}
	result.Diagnostics = collectSyntaxErrors(root, []byte(text))
	result.Nav = collectDeclarations(root, []byte(text))
	return result, nil
}

// Check implements Gateway. Concurrent calls for the same file collapse
// into one compile via singleflight.
func (g *TreeSitterGateway) Check(ctx context.Context, file string, version int, text string, opts project.Options) (ParseResult, Outcome, error) {
	type result struct {
		parse ParseResult
		check CheckResult
	}

	key := file
	v, err, _ := g.group.Do(key, func() (interface{}, error) {
		for _, cb := range g.snapshotCallbacks() {
			cb(file)
		}

		parse, perr := g.Parse(ctx, file, text, g.ParsingOptionsOf(opts))
		if perr != nil {
			return nil, perr
		}

		select {
		case <-ctx.Done():
			return result{parse: parse, check: CheckResult{File: file, Version: version}}, nil
		default:
		}

		diags := append([]project.Diagnostic(nil), parse.Diagnostics...)
		diags = append(diags, checkSemantics(text)...)

		check := CheckResult{File: file, Version: version, Diagnostics: diags}
		g.cache.put(file, projectFingerprint(opts), cacheEntry{parse: parse, check: check, version: version})
		return result{parse: parse, check: check}, nil
	})
	if err != nil {
		return ParseResult{}, Outcome{Aborted: false}, err
	}

	r := v.(result)
	select {
	case <-ctx.Done():
		return r.parse, Outcome{Aborted: true}, nil
	default:
		return r.parse, Outcome{Check: &r.check}, nil
	}
}

// TryCached implements Gateway.
func (g *TreeSitterGateway) TryCached(file string, opts project.Options) (ParseResult, CheckResult, int, bool) {
	e, ok := g.cache.get(file, projectFingerprint(opts))
	if !ok {
		return ParseResult{}, CheckResult{}, 0, false
	}
	return e.parse, e.check, e.version, true
}

// ScriptOptions implements Gateway: a script is a single-file project
// with no flags and no references. text and mtimeUnixNano are not used.
func (g *TreeSitterGateway) ScriptOptions(file, text string, mtimeUnixNano int64) (project.Options, []project.Diagnostic, error) {
	opts := project.Options{
		ProjectFile: file,
		Sources:     []string{file},
		IsScript:    true,
	}
	return opts, nil, nil
}

// UsesInFile implements Gateway by returning only symbol itself — a
// coarse stand-in for real use-resolution. The file is not searched for
// other occurrences of the symbol.
func (g *TreeSitterGateway) UsesInFile(check CheckResult, symbol SymbolUse) ([]SymbolUse, error) {
	return []SymbolUse{symbol}, nil
}

// SymbolAt implements Gateway using a simple identifier lookup; the
// "declaration" is reported as the current position since this toy
// language does no real binding resolution.
func (g *TreeSitterGateway) SymbolAt(check CheckResult, line1, endCol0 int, lineText string, names []string) (*SymbolUse, error) {
	if len(names) == 0 {
		return nil, nil
	}
	name := names[len(names)-1]
	return &SymbolUse{
		DisplayName: name,
		Declaration: Location{File: check.File, Line: line1, Col: endCol0 - len(name)},
		UseRange: Range{
			StartLine: line1 - 1, StartCol: endCol0 - len(name),
			EndLine: line1 - 1, EndCol: endCol0,
		},
	}, nil
}

// Declarations implements Gateway with a static "builtin" symbol table
// filtered by a case-insensitive prefix match on partialName.
func (g *TreeSitterGateway) Declarations(parse ParseResult, line1 int, lineText, partialName string) (DeclarationList, error) {
	var items []Declaration
	for _, d := range builtinSymbols {
		if strings.HasPrefix(strings.ToLower(d.Name), strings.ToLower(partialName)) {
			items = append(items, d)
		}
	}
	return DeclarationList{Items: items}, nil
}

// Methods implements Gateway with a single-overload stub.
func (g *TreeSitterGateway) Methods(check CheckResult, line1, endCol0 int, lineText string, names []string) (MethodGroup, error) {
	if len(names) == 0 {
		return MethodGroup{}, nil
	}
	name := names[len(names)-1]
	return MethodGroup{Overloads: []MethodOverload{{
		Name:       name,
		Parameters: []Parameter{{Name: "arg", Type: "obj"}},
	}}}, nil
}

// Tooltip implements Gateway.
func (g *TreeSitterGateway) Tooltip(check CheckResult, line1, col1 int, lineText string, names []string) (ToolTip, error) {
	if len(names) == 0 {
		return ToolTip{}, nil
	}
	name := names[len(names)-1]
	return ToolTip{Groups: [][]string{{fmt.Sprintf("val %s", name)}}}, nil
}

// OnBeforeBackgroundCheck implements Gateway. This implementation has no
// separate background mode: the callbacks run before every Check call.
func (g *TreeSitterGateway) OnBeforeBackgroundCheck(cb func(file string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onBeforeBackground = append(g.onBeforeBackground, cb)
}

// OnMaxMemory implements Gateway.
func (g *TreeSitterGateway) OnMaxMemory(cb func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onMaxMemory = append(g.onMaxMemory, cb)
}

func (g *TreeSitterGateway) snapshotCallbacks() []func(file string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]func(file string){}, g.onBeforeBackground...)
}

// FireMaxMemory is exposed for tests/production memory watchdogs to
// simulate the Analyzer signaling onMaxMemory.
func (g *TreeSitterGateway) FireMaxMemory() {
	g.mu.Lock()
	cbs := append([]func(){}, g.onMaxMemory...)
	g.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func projectFingerprint(opts project.Options) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(opts.ProjectFile)
	for _, s := range opts.Sources {
		_, _ = h.WriteString(s)
	}
	return h.Sum64()
}

func collectSyntaxErrors(node *sitter.Node, content []byte) []project.Diagnostic {
	var out []project.Diagnostic
	if node == nil {
		return out
	}
	if node.IsError() {
		start := node.StartPosition()
		end := node.EndPosition()
		out = append(out, project.Diagnostic{
			Range: document.Range{
				Start: document.Position{Line: int(start.Row), Character: int(start.Column)},
				End:   document.Position{Line: int(end.Row), Character: int(end.Column)},
			},
			Severity: project.SeverityError,
			Message:  "syntax error",
		})
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		out = append(out, collectSyntaxErrors(node.Child(i), content)...)
	}
	return out
}

func collectDeclarations(node *sitter.Node, content []byte) []NavDeclaration {
	var out []NavDeclaration
	if node == nil {
		return out
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "function_declaration", "method_declaration":
			if name := nameOf(child, content); name != "" {
				out = append(out, NavDeclaration{
					Name:  name,
					Kind:  DeclMethod,
					Range: rangeOf(child),
				})
			}
		case "var_declaration", "const_declaration":
			for _, name := range varNames(child, content) {
				out = append(out, NavDeclaration{Name: name, Kind: DeclOther, Range: rangeOf(child)})
			}
		case "type_declaration":
			if name := nameOf(child, content); name != "" {
				out = append(out, NavDeclaration{Name: name, Kind: DeclType, Range: rangeOf(child)})
			}
		}
	}
	return out
}

func nameOf(node *sitter.Node, content []byte) string {
	for i := uint(0); i < node.ChildCount(); i++ {
		c := node.Child(i)
		if c != nil && c.Kind() == "identifier" {
			return string(content[c.StartByte():c.EndByte()])
		}
	}
	return ""
}

func varNames(node *sitter.Node, content []byte) []string {
	var names []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Kind() == "identifier" {
			names = append(names, string(content[n.StartByte():n.EndByte()]))
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return names
}

func rangeOf(node *sitter.Node) Range {
	start := node.StartPosition()
	end := node.EndPosition()
	return Range{
		StartLine: int(start.Row), StartCol: int(start.Column),
		EndLine: int(end.Row), EndCol: int(end.Column),
	}
}

// checkSemantics is a deliberately trivial "type check": it flags every
// line whose last non-blank character is a binary operator (+, -, *, /)
// as an incomplete expression — enough to produce believable Error
// diagnostics for end-to-end tests without a real type system.
func checkSemantics(text string) []project.Diagnostic {
	var out []project.Diagnostic
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if strings.HasSuffix(trimmed, "+") || strings.HasSuffix(trimmed, "-") ||
			strings.HasSuffix(trimmed, "*") || strings.HasSuffix(trimmed, "/") {
			out = append(out, project.Diagnostic{
				Range: document.Range{
					Start: document.Position{Line: i, Character: len(trimmed)},
					End:   document.Position{Line: i, Character: len(trimmed)},
				},
				Severity: project.SeverityError,
				Message:  "incomplete expression",
			})
		}
	}
	return out
}

var builtinSymbols = []Declaration{
	{Name: "Console", FullName: "System.Console", Kind: DeclModule},
	{Name: "Int32", FullName: "System.Int32", Kind: DeclType},
	{Name: "String", FullName: "System.String", Kind: DeclType, Description: "Represents text as a sequence of UTF-16 code units."},
}
