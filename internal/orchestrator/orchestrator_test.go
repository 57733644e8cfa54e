package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/fsharp-ls/internal/analyzer"
	"github.com/standardbeagle/fsharp-ls/internal/document"
	"github.com/standardbeagle/fsharp-ls/internal/project"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type cachedEntry struct {
	parse   analyzer.ParseResult
	check   analyzer.CheckResult
	version int
}

type fakeGateway struct {
	mu         sync.Mutex
	checkCalls []string
	cached     map[string]cachedEntry
	aborted    map[string]bool
	diagsFor   map[string][]project.Diagnostic
	onBefore   []func(string)
	onMax      []func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		cached:   make(map[string]cachedEntry),
		aborted:  make(map[string]bool),
		diagsFor: make(map[string][]project.Diagnostic),
	}
}

func (g *fakeGateway) Parse(ctx context.Context, file, text string, opts analyzer.ParsingOptions) (analyzer.ParseResult, error) {
	return analyzer.ParseResult{File: file}, nil
}

func (g *fakeGateway) ParsingOptionsOf(opts project.Options) analyzer.ParsingOptions {
	return analyzer.ParsingOptions{}
}

func (g *fakeGateway) Check(ctx context.Context, file string, version int, text string, opts project.Options) (analyzer.ParseResult, analyzer.Outcome, error) {
	g.mu.Lock()
	g.checkCalls = append(g.checkCalls, file)
	callbacks := append([]func(string){}, g.onBefore...)
	aborted := g.aborted[file]
	diags := g.diagsFor[file]
	g.mu.Unlock()

	for _, cb := range callbacks {
		cb(file)
	}

	parse := analyzer.ParseResult{File: file}
	if aborted {
		return parse, analyzer.Outcome{Aborted: true}, nil
	}

	cr := analyzer.CheckResult{File: file, Version: version, Diagnostics: diags}
	g.mu.Lock()
	g.cached[file] = cachedEntry{parse: parse, check: cr, version: version}
	g.mu.Unlock()
	return parse, analyzer.Outcome{Check: &cr}, nil
}

func (g *fakeGateway) TryCached(file string, opts project.Options) (analyzer.ParseResult, analyzer.CheckResult, int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.cached[file]
	return e.parse, e.check, e.version, ok
}

func (g *fakeGateway) ScriptOptions(file, text string, mtimeUnixNano int64) (project.Options, []project.Diagnostic, error) {
	return project.Options{}, nil, nil
}

func (g *fakeGateway) UsesInFile(check analyzer.CheckResult, symbol analyzer.SymbolUse) ([]analyzer.SymbolUse, error) {
	return nil, nil
}

func (g *fakeGateway) SymbolAt(check analyzer.CheckResult, line1, endCol0 int, lineText string, names []string) (*analyzer.SymbolUse, error) {
	return nil, nil
}

func (g *fakeGateway) Declarations(parse analyzer.ParseResult, line1 int, lineText, partialName string) (analyzer.DeclarationList, error) {
	return analyzer.DeclarationList{}, nil
}

func (g *fakeGateway) Methods(check analyzer.CheckResult, line1, endCol0 int, lineText string, names []string) (analyzer.MethodGroup, error) {
	return analyzer.MethodGroup{}, nil
}

func (g *fakeGateway) Tooltip(check analyzer.CheckResult, line1, col1 int, lineText string, names []string) (analyzer.ToolTip, error) {
	return analyzer.ToolTip{}, nil
}

func (g *fakeGateway) OnBeforeBackgroundCheck(cb func(file string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onBefore = append(g.onBefore, cb)
}

func (g *fakeGateway) OnMaxMemory(cb func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onMax = append(g.onMax, cb)
}

func (g *fakeGateway) fireMaxMemory() {
	g.mu.Lock()
	cbs := append([]func(){}, g.onMax...)
	g.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

type fakePublisher struct {
	mu        sync.Mutex
	published map[string][]project.Diagnostic
	count     map[string]int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string][]project.Diagnostic), count: make(map[string]int)}
}

func (p *fakePublisher) PublishDiagnostics(uri string, diagnostics []project.Diagnostic) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[uri] = diagnostics
	p.count[uri]++
}

func (p *fakePublisher) get(uri string) ([]project.Diagnostic, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[uri], p.count[uri]
}

type fakeSink struct {
	mu      sync.Mutex
	started bool
	nFiles  int
	incs    []string
	ended   bool
}

func (s *fakeSink) StartProgress(title string, nFiles int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.nFiles = nFiles
}

func (s *fakeSink) IncrementProgress(fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incs = append(s.incs, fileName)
}

func (s *fakeSink) EndProgress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

type fakeNotifier struct {
	mu       sync.Mutex
	warnings []string
}

func (n *fakeNotifier) ShowWarning(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, message)
}

type fakeLoader struct {
	manifests map[string]*project.Options
}

func (l *fakeLoader) LoadProjectFile(path string, resolve func(string) (*project.Options, bool)) (*project.Options, error) {
	base := l.manifests[path]
	return &project.Options{ProjectFile: path, Sources: append([]string(nil), base.Sources...)}, nil
}

func setupOrchestrator(t *testing.T) (*Orchestrator, *fakeGateway, *fakePublisher, *fakeSink, *fakeNotifier, string) {
	t.Helper()
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.fs")
	require.NoError(t, os.WriteFile(aPath, []byte("let x = 1\n"), 0o644))

	loader := &fakeLoader{manifests: map[string]*project.Options{
		"p.fsproj": {Sources: []string{aPath}},
	}}
	graph := project.NewGraph(loader, nil)
	require.NoError(t, graph.PutProjectFile("p.fsproj"))

	docs := document.NewStore()
	gw := newFakeGateway()
	pub := newFakePublisher()
	sink := &fakeSink{}
	notif := &fakeNotifier{}

	orch := New(docs, graph, gw, pub, sink, notif, 4)
	return orch, gw, pub, sink, notif, aPath
}

func TestForce_PublishesDiagnosticsForOpenFile(t *testing.T) {
	orch, gw, pub, _, _, aPath := setupOrchestrator(t)
	orch.docs.Open(aPath, "let x = 1\n", 1)
	gw.diagsFor[aPath] = []project.Diagnostic{{Severity: project.SeverityError, Message: "boom"}}

	out := orch.Force(context.Background(), aPath)
	require.True(t, out.OK)

	diags, count := pub.get(aPath)
	assert.Equal(t, 1, count)
	assert.Len(t, diags, 1)
}

func TestQuick_NeverPublishes(t *testing.T) {
	orch, gw, pub, _, _, aPath := setupOrchestrator(t)
	orch.docs.Open(aPath, "let x = 1\n", 1)
	gw.diagsFor[aPath] = []project.Diagnostic{{Severity: project.SeverityError, Message: "boom"}}

	out := orch.Quick(context.Background(), aPath)
	require.True(t, out.OK)

	_, count := pub.get(aPath)
	assert.Equal(t, 0, count)
}

func TestCheck_UsesCacheWhenVersionMatches(t *testing.T) {
	orch, gw, _, _, _, aPath := setupOrchestrator(t)
	orch.docs.Open(aPath, "let x = 1\n", 5)

	orch.Force(context.Background(), aPath)
	require.Len(t, gw.checkCalls, 1)

	orch.Check(context.Background(), aPath)
	assert.Len(t, gw.checkCalls, 1, "Check should reuse cache when cached version matches current version")
}

func TestForce_NotFoundFileReturnsEmptyOutcome(t *testing.T) {
	orch, _, _, _, _, _ := setupOrchestrator(t)
	out := orch.Force(context.Background(), "not-in-workspace.fs")
	assert.False(t, out.OK)
	assert.Nil(t, out.Diagnostics)
}

func TestQuick_MissingFileOnDiskReturnsDiagnostic(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "gone.fs")
	loader := &fakeLoader{manifests: map[string]*project.Options{
		"p.fsproj": {Sources: []string{missing}},
	}}
	graph := project.NewGraph(loader, nil)
	require.NoError(t, graph.PutProjectFile("p.fsproj"))

	orch := New(document.NewStore(), graph, newFakeGateway(), newFakePublisher(), &fakeSink{}, &fakeNotifier{}, 4)
	out := orch.Quick(context.Background(), missing)
	assert.False(t, out.OK)
	assert.NotEmpty(t, out.Diagnostics)
}

func TestOnMaxMemory_ShowsWarning(t *testing.T) {
	orch, gw, _, _, notif, _ := setupOrchestrator(t)
	_ = orch
	gw.fireMaxMemory()
	assert.Len(t, notif.warnings, 1)
}

func TestInvalidate_TriggersBackgroundCheckAfterDebounce(t *testing.T) {
	orch, gw, pub, _, _, aPath := setupOrchestrator(t)
	orch.docs.Open(aPath, "let x = 1\n", 1)

	orch.Invalidate(aPath)

	require.Eventually(t, func() bool {
		_, count := pub.get(aPath)
		return count >= 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, len(gw.checkCalls), 1)
}

func TestOnSave_ForceRechecksVisibleOpenFiles(t *testing.T) {
	dir := t.TempDir()
	sharedPath := filepath.Join(dir, "shared.fs")
	consumerPath := filepath.Join(dir, "consumer.fs")
	require.NoError(t, os.WriteFile(sharedPath, []byte("let shared = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(consumerPath, []byte("let v = shared\n"), 0o644))

	loader := &fakeLoader{manifests: map[string]*project.Options{
		"p.fsproj": {Sources: []string{sharedPath, consumerPath}},
	}}
	graph := project.NewGraph(loader, nil)
	require.NoError(t, graph.PutProjectFile("p.fsproj"))

	docs := document.NewStore()
	docs.Open(consumerPath, "let v = shared\n", 1)
	gw := newFakeGateway()
	pub := newFakePublisher()
	sink := &fakeSink{}
	orch := New(docs, graph, gw, pub, sink, &fakeNotifier{}, 4)

	orch.OnSave(context.Background(), sharedPath)

	_, count := pub.get(consumerPath)
	assert.Equal(t, 1, count)
}

func TestOnOpen_SuppressesProgressForSingleFileBatch(t *testing.T) {
	orch, _, _, sink, _, aPath := setupOrchestrator(t)
	orch.docs.Open(aPath, "let x = 1\n", 1)

	orch.OnOpen(context.Background(), aPath)

	assert.False(t, sink.started)
	assert.True(t, true) // batch of 1 (a.fs itself, never checked) is suppressed by progress.Start
	_ = sink
}

func TestNotifyClosed_PublishesEmptyDiagnostics(t *testing.T) {
	orch, _, pub, _, _, aPath := setupOrchestrator(t)
	orch.NotifyClosed(aPath)
	diags, count := pub.get(aPath)
	assert.Equal(t, 1, count)
	assert.Empty(t, diags)
}
