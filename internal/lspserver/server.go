// Package lspserver implements the ServerLoop: it holds the server's
// state, routes incoming LSP requests/notifications to the
// FeatureDispatcher and DocumentStore, serializes outgoing messages,
// and recovers per-request panics so one bad request never crashes the
// loop. Grounded on the teacher's server.IndexServer (sync.RWMutex-
// guarded running state, start/stop shutdown channel) and
// mcp.Server's per-operation panic-recovery wrapper.
package lspserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"github.com/standardbeagle/fsharp-ls/internal/dispatcher"
	"github.com/standardbeagle/fsharp-ls/internal/document"
	"github.com/standardbeagle/fsharp-ls/internal/orchestrator"
	"github.com/standardbeagle/fsharp-ls/internal/project"
	"github.com/standardbeagle/fsharp-ls/internal/transport"
)

// unsupportedMethods is the §6 stub list: requests the core explicitly
// does not implement. They must fail with a MethodNotFound-equivalent
// error rather than being silently dropped or half-implemented.
var unsupportedMethods = map[string]bool{
	"textDocument/willSave":            true,
	"textDocument/willSaveWaitUntil":   true,
	"textDocument/documentHighlight":   true,
	"textDocument/codeAction":          true,
	"textDocument/codeLens":            true,
	"codeLens/resolve":                 true,
	"textDocument/documentLink":        true,
	"documentLink/resolve":             true,
	"textDocument/formatting":          true,
	"textDocument/rangeFormatting":     true,
	"textDocument/onTypeFormatting":    true,
	"workspace/executeCommand":         true,
	"textDocument/semanticTokens/full": true,
}

// Server is the ServerLoop: it owns the DocumentStore, ProjectGraph,
// CheckOrchestrator and FeatureDispatcher, and drives them from decoded
// transport messages.
type Server struct {
	writer *transport.Writer
	docs   *document.Store
	graph  *project.Graph
	orch   *orchestrator.Orchestrator
	disp   *dispatcher.Dispatcher

	mu          sync.RWMutex
	running     bool
	shutdown    bool
	openVersion map[string]int

	docQueuesMu sync.Mutex
	docQueues   map[string]*uriQueue
}

// New creates a Server that writes responses/notifications through w.
func New(w *transport.Writer, docs *document.Store, graph *project.Graph, orch *orchestrator.Orchestrator, disp *dispatcher.Dispatcher) *Server {
	return &Server{
		writer:      w,
		docs:        docs,
		graph:       graph,
		orch:        orch,
		disp:        disp,
		running:     true,
		openVersion: make(map[string]int),
		docQueues:   make(map[string]*uriQueue),
	}
}

// uriQueue is a per-document FIFO active object: tasks enqueued for the
// same URI run strictly in arrival order on a single worker, while
// different URIs' queues run concurrently with each other and with
// everything else. Its worker goroutine runs only while it has work: an
// empty queue exits its worker, and the next enqueue starts a new one.
type uriQueue struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
}

// enqueueForURI serializes task behind every other task already queued
// for path, satisfying spec.md §5's ordering guarantee (1): writes to
// the same Document (open/change/close) are applied strictly in the
// order received, even though Dispatch itself never blocks the read
// loop to get that ordering.
func (s *Server) enqueueForURI(path string, task func()) {
	s.docQueuesMu.Lock()
	q, ok := s.docQueues[path]
	if !ok {
		q = &uriQueue{}
		s.docQueues[path] = q
	}
	s.docQueuesMu.Unlock()

	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	start := !q.running
	q.running = true
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

func (q *uriQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()
		task()
	}
}

// documentURI extracts the document URI from a message whose method
// writes to the DocumentStore (open/change/close), or reports false for
// everything else.
func documentURI(msg transport.Message) (string, bool) {
	switch msg.Method {
	case "textDocument/didOpen":
		if p, ok := decodeParams[didOpenParams](msg.Params); ok {
			return p.TextDocument.URI, true
		}
	case "textDocument/didChange":
		if p, ok := decodeParams[didChangeParams](msg.Params); ok {
			return p.TextDocument.URI, true
		}
	case "textDocument/didClose":
		if p, ok := decodeParams[didCloseParams](msg.Params); ok {
			return p.TextDocument.URI, true
		}
	}
	return "", false
}

// Dispatch routes one decoded message onto a worker task per spec.md
// §5: "notifications are dispatched fire-and-forget on worker tasks;
// requests are dispatched on worker tasks... multiple tasks may execute
// concurrently." The read loop in cmd/lsp-server calls this instead of
// Handle so a slow handler (e.g. the on-open check batch) never blocks
// it from reading the next message. Document-write notifications
// (didOpen/didChange/didClose) for the same URI are serialized through
// enqueueForURI to preserve §5's ordering guarantee (1); everything
// else dispatches immediately on its own goroutine.
func (s *Server) Dispatch(ctx context.Context, msg transport.Message) {
	if uri, ok := documentURI(msg); ok {
		path := uriToPath(uri)
		s.enqueueForURI(path, func() { s.Handle(ctx, msg) })
		return
	}
	go s.Handle(ctx, msg)
}

// PublishDiagnostics implements orchestrator.Publisher.
func (s *Server) PublishDiagnostics(uri string, diagnostics []project.Diagnostic) {
	items := make([]diagnosticWire, 0, len(diagnostics))
	for _, d := range diagnostics {
		items = append(items, toDiagnosticWire(d))
	}
	_ = s.writer.Notify("textDocument/publishDiagnostics", publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: items,
	})
}

// ShowWarning implements orchestrator.Notifier.
func (s *Server) ShowWarning(message string) {
	_ = s.writer.Notify("window/showMessage", showMessageParams{Type: 2, Message: message})
}

// StartProgress implements progress.Sink.
func (s *Server) StartProgress(title string, nFiles int) {
	_ = s.writer.Notify("fsharp/startProgress", startProgressParams{Title: title, NFiles: nFiles})
}

// IncrementProgress implements progress.Sink.
func (s *Server) IncrementProgress(fileName string) {
	_ = s.writer.Notify("fsharp/incrementProgress", fileName)
}

// EndProgress implements progress.Sink.
func (s *Server) EndProgress() {
	_ = s.writer.Notify("fsharp/endProgress", nil)
}

// isShutdown reports whether the client has sent `shutdown`; after
// that point only `exit` may be processed.
func (s *Server) isShutdown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shutdown
}

func (s *Server) markShutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

// Handle dispatches one decoded message. Requests get a response
// written back (success or error); notifications are fire-and-forget.
// A panic during handling is recovered, logged, and turned into an
// internal-error response (or swallowed, for notifications) so it
// never takes down the loop (spec.md §6/§7).
func (s *Server) Handle(ctx context.Context, msg transport.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC RECOVERED in %s: %v\n%s", msg.Method, r, debug.Stack())
			if !msg.IsNotification() {
				_ = s.writer.RespondError(msg.ID, transport.ErrInternalError, fmt.Sprintf("internal error in %s", msg.Method))
			}
		}
	}()

	if msg.IsNotification() {
		s.handleNotification(ctx, msg)
		return
	}
	s.handleRequest(ctx, msg)
}

func (s *Server) handleRequest(ctx context.Context, msg transport.Message) {
	if s.isShutdown() && msg.Method != "exit" {
		_ = s.writer.RespondError(msg.ID, transport.ErrInvalidRequest, "server is shutting down")
		return
	}

	if unsupportedMethods[msg.Method] {
		_ = s.writer.RespondError(msg.ID, transport.ErrMethodNotFound, "method not implemented: "+msg.Method)
		return
	}

	switch msg.Method {
	case "initialize":
		s.replyInitialize(msg.ID)
	case "shutdown":
		s.markShutdown()
		_ = s.writer.Respond(msg.ID, nil)
	case "textDocument/hover":
		s.replyHover(ctx, msg)
	case "textDocument/completion":
		s.replyCompletion(ctx, msg)
	case "completionItem/resolve":
		s.replyResolveCompletion(msg)
	case "textDocument/signatureHelp":
		s.replySignatureHelp(ctx, msg)
	case "textDocument/definition":
		s.replyDefinition(ctx, msg)
	case "textDocument/references":
		s.replyReferences(ctx, msg)
	case "textDocument/documentSymbol":
		s.replyDocumentSymbol(ctx, msg)
	case "workspace/symbol":
		s.replyWorkspaceSymbol(ctx, msg)
	case "textDocument/rename":
		s.replyRename(ctx, msg)
	default:
		_ = s.writer.RespondError(msg.ID, transport.ErrMethodNotFound, "method not found: "+msg.Method)
	}
}

func (s *Server) handleNotification(ctx context.Context, msg transport.Message) {
	switch msg.Method {
	case "initialized":
		// No-op: nothing to do until the client opens documents.
	case "exit":
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	case "textDocument/didOpen":
		s.onDidOpen(ctx, msg)
	case "textDocument/didChange":
		s.onDidChange(ctx, msg)
	case "textDocument/didClose":
		s.onDidClose(msg)
	case "textDocument/didSave":
		s.onDidSave(ctx, msg)
	case "workspace/didChangeWatchedFiles":
		s.onDidChangeWatchedFiles(msg)
	}
}

// Running reports whether the loop should keep reading messages (false
// after `exit`).
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// ExitCode returns the process exit code per spec.md §6: 0 if shutdown
// was requested before exit, 1 otherwise (an unexpected exit).
func (s *Server) ExitCode() int {
	if s.isShutdown() {
		return 0
	}
	return 1
}

func decodeParams[T any](raw json.RawMessage) (T, bool) {
	var v T
	if len(raw) == 0 {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}
