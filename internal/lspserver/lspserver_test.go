package lspserver

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/fsharp-ls/internal/analyzer"
	"github.com/standardbeagle/fsharp-ls/internal/dispatcher"
	"github.com/standardbeagle/fsharp-ls/internal/document"
	"github.com/standardbeagle/fsharp-ls/internal/orchestrator"
	"github.com/standardbeagle/fsharp-ls/internal/project"
	"github.com/standardbeagle/fsharp-ls/internal/transport"
)

// fakeGateway is a minimal analyzer.Gateway stand-in, just enough to
// drive the Server's request handlers end to end without a real
// compiler backend.
type fakeGateway struct{}

func (fakeGateway) Parse(ctx context.Context, file, text string, opts analyzer.ParsingOptions) (analyzer.ParseResult, error) {
	return analyzer.ParseResult{File: file}, nil
}
func (fakeGateway) ParsingOptionsOf(opts project.Options) analyzer.ParsingOptions {
	return analyzer.ParsingOptions{}
}
func (fakeGateway) Check(ctx context.Context, file string, version int, text string, opts project.Options) (analyzer.ParseResult, analyzer.Outcome, error) {
	cr := analyzer.CheckResult{File: file, Version: version}
	return analyzer.ParseResult{File: file}, analyzer.Outcome{Check: &cr}, nil
}
func (fakeGateway) TryCached(file string, opts project.Options) (analyzer.ParseResult, analyzer.CheckResult, int, bool) {
	return analyzer.ParseResult{}, analyzer.CheckResult{}, 0, false
}
func (fakeGateway) ScriptOptions(file, text string, mtimeUnixNano int64) (project.Options, []project.Diagnostic, error) {
	return project.Options{}, nil, nil
}
func (fakeGateway) UsesInFile(check analyzer.CheckResult, symbol analyzer.SymbolUse) ([]analyzer.SymbolUse, error) {
	return nil, nil
}
func (fakeGateway) SymbolAt(check analyzer.CheckResult, line1, endCol0 int, lineText string, names []string) (*analyzer.SymbolUse, error) {
	return nil, nil
}
func (fakeGateway) Declarations(parse analyzer.ParseResult, line1 int, lineText, partialName string) (analyzer.DeclarationList, error) {
	return analyzer.DeclarationList{}, nil
}
func (fakeGateway) Methods(check analyzer.CheckResult, line1, endCol0 int, lineText string, names []string) (analyzer.MethodGroup, error) {
	return analyzer.MethodGroup{}, nil
}
func (fakeGateway) Tooltip(check analyzer.CheckResult, line1, col1 int, lineText string, names []string) (analyzer.ToolTip, error) {
	return analyzer.ToolTip{Groups: [][]string{{"val x: int"}}}, nil
}
func (fakeGateway) OnBeforeBackgroundCheck(cb func(file string)) {}
func (fakeGateway) OnMaxMemory(cb func())                        {}

type fakeLoader struct{}

func (fakeLoader) LoadProjectFile(path string, resolve func(string) (*project.Options, bool)) (*project.Options, error) {
	return &project.Options{ProjectFile: path}, nil
}

func newTestServer() (*Server, *bytes.Buffer) {
	var buf bytes.Buffer
	writer := transport.NewWriter(&buf)
	docs := document.NewStore()
	gw := fakeGateway{}
	graph := project.NewGraph(fakeLoader{}, gw)
	orch := orchestrator.New(docs, graph, gw, noopPublisher{}, noopSink{}, noopNotifier{}, 0)
	disp := dispatcher.New(docs, graph, gw, orch, noopSink{})
	return New(writer, docs, graph, orch, disp), &buf
}

type noopPublisher struct{}

func (noopPublisher) PublishDiagnostics(uri string, diagnostics []project.Diagnostic) {}

type noopNotifier struct{}

func (noopNotifier) ShowWarning(message string) {}

type noopSink struct{}

func (noopSink) StartProgress(title string, nFiles int) {}
func (noopSink) IncrementProgress(fileName string)      {}
func (noopSink) EndProgress()                           {}

// readAllFrames decodes every framed message currently in buf.
func readAllFrames(t *testing.T, buf *bytes.Buffer) []transport.Message {
	t.Helper()
	r := transport.NewReader(bytes.NewReader(buf.Bytes()))
	var msgs []transport.Message
	for {
		msg, err := r.Read()
		if err != nil {
			break
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func requestMsg(id int, method string, params any) transport.Message {
	raw, _ := json.Marshal(params)
	idRaw, _ := json.Marshal(id)
	return transport.Message{JSONRPC: "2.0", ID: idRaw, Method: method, Params: raw}
}

func notificationMsg(method string, params any) transport.Message {
	raw, _ := json.Marshal(params)
	return transport.Message{JSONRPC: "2.0", Method: method, Params: raw}
}

func TestInitialize_AdvertisesCapabilities(t *testing.T) {
	srv, buf := newTestServer()
	srv.Handle(context.Background(), requestMsg(1, "initialize", map[string]any{}))

	msgs := readAllFrames(t, buf)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Result)

	var result initializeResult
	require.NoError(t, json.Unmarshal(msgs[0].Result, &result))
	assert.True(t, result.Capabilities.HoverProvider)
	assert.True(t, result.Capabilities.CompletionProvider.ResolveProvider)
	assert.Equal(t, []string{"."}, result.Capabilities.CompletionProvider.TriggerCharacters)
}

func TestUnsupportedMethod_RespondsMethodNotFound(t *testing.T) {
	srv, buf := newTestServer()
	srv.Handle(context.Background(), requestMsg(1, "textDocument/codeAction", map[string]any{}))

	msgs := readAllFrames(t, buf)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, transport.ErrMethodNotFound, msgs[0].Error.Code)
}

func TestUnknownMethod_RespondsMethodNotFound(t *testing.T) {
	srv, buf := newTestServer()
	srv.Handle(context.Background(), requestMsg(1, "textDocument/somethingMadeUp", map[string]any{}))

	msgs := readAllFrames(t, buf)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, transport.ErrMethodNotFound, msgs[0].Error.Code)
}

func TestShutdownThenExit_StopsTheLoop(t *testing.T) {
	srv, buf := newTestServer()
	srv.Handle(context.Background(), requestMsg(1, "shutdown", nil))

	msgs := readAllFrames(t, buf)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].Error)
	assert.True(t, srv.Running())

	// Once shutdown, non-exit requests are rejected.
	srv.Handle(context.Background(), requestMsg(2, "textDocument/hover", map[string]any{}))
	msgs = readAllFrames(t, buf)
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[1].Error)
	assert.Equal(t, transport.ErrInvalidRequest, msgs[1].Error.Code)

	srv.Handle(context.Background(), notificationMsg("exit", nil))
	assert.False(t, srv.Running())
	assert.Equal(t, 0, srv.ExitCode())
}

func TestExitWithoutShutdown_ReportsNonZeroExitCode(t *testing.T) {
	srv, _ := newTestServer()
	srv.Handle(context.Background(), notificationMsg("exit", nil))
	assert.False(t, srv.Running())
	assert.Equal(t, 1, srv.ExitCode())
}

func TestHoverRequest_RoundTripsThroughDispatcher(t *testing.T) {
	srv, buf := newTestServer()
	ctx := context.Background()

	srv.Handle(ctx, notificationMsg("textDocument/didOpen", didOpenParams{
		TextDocument: textDocumentItem{URI: "file:///a.fsx", Text: "let x = 1", Version: 1},
	}))
	buf.Reset()

	srv.Handle(ctx, requestMsg(2, "textDocument/hover", textDocumentPositionParams{
		TextDocument: textDocumentIdentifier{URI: "file:///a.fsx"},
		Position:     positionWire{Line: 0, Character: 4},
	}))

	msgs := readAllFrames(t, buf)
	require.Len(t, msgs, 1)
	require.Nil(t, msgs[0].Error)

	var hover hoverResult
	require.NoError(t, json.Unmarshal(msgs[0].Result, &hover))
	assert.Equal(t, []string{"val x: int"}, hover.Contents)
}

// TestDispatch_SerializesSameURIWritesInOrder drives thirty-nine
// didChange notifications (versions 2 through 40) for one URI through
// Dispatch (each on its own worker
// task, per spec.md §5) and asserts the document still ends up with the
// version and text of the *last* change applied in receipt order —
// §5's ordering guarantee (1) that same-document writes apply strictly
// in the order received, even though Dispatch never blocks the caller.
func TestDispatch_SerializesSameURIWritesInOrder(t *testing.T) {
	srv, _ := newTestServer()
	ctx := context.Background()
	const uri = "file:///b.fsx"

	srv.Dispatch(ctx, notificationMsg("textDocument/didOpen", didOpenParams{
		TextDocument: textDocumentItem{URI: uri, Text: "0", Version: 1},
	}))

	const last = 40
	for v := 2; v <= last; v++ {
		srv.Dispatch(ctx, notificationMsg("textDocument/didChange", didChangeParams{
			TextDocument:   versionedTextDocumentIdentifier{URI: uri, Version: v},
			ContentChanges: []contentChangeEvent{{Text: strconv.Itoa(v)}},
		}))
	}

	require.Eventually(t, func() bool {
		v, ok := srv.docs.GetVersion(uriToPath(uri))
		return ok && v == last
	}, time.Second, time.Millisecond)

	text, ok := srv.docs.GetText(uriToPath(uri))
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(last), text)
}

// TestDispatch_DifferentURIsRunConcurrently proves didOpen for one URI
// does not have to wait behind the per-URI queue of an unrelated URI:
// each file's queue only serializes writes to that same file (spec.md
// §5), so both opens complete independently.
func TestDispatch_DifferentURIsRunConcurrently(t *testing.T) {
	srv, _ := newTestServer()
	ctx := context.Background()

	srv.Dispatch(ctx, notificationMsg("textDocument/didOpen", didOpenParams{
		TextDocument: textDocumentItem{URI: "file:///one.fsx", Text: "let x = 1", Version: 1},
	}))
	srv.Dispatch(ctx, notificationMsg("textDocument/didOpen", didOpenParams{
		TextDocument: textDocumentItem{URI: "file:///two.fsx", Text: "let y = 2", Version: 1},
	}))

	require.Eventually(t, func() bool {
		_, oneOK := srv.docs.GetText(uriToPath("file:///one.fsx"))
		_, twoOK := srv.docs.GetText(uriToPath("file:///two.fsx"))
		return oneOK && twoOK
	}, time.Second, time.Millisecond)
}

func TestHoverRequest_InvalidParamsRespondsInvalidParamsError(t *testing.T) {
	srv, buf := newTestServer()
	srv.Handle(context.Background(), requestMsg(1, "textDocument/hover", []int{1, 2, 3}))

	msgs := readAllFrames(t, buf)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Error)
	assert.Equal(t, transport.ErrInvalidParams, msgs[0].Error.Code)
}
