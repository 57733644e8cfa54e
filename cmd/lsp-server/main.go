// Command lsp-server runs the language server core's ServerLoop over
// stdio: it reads Content-Length framed JSON-RPC requests/notifications
// from stdin, dispatches them through the FeatureDispatcher and
// CheckOrchestrator, and writes framed responses/notifications to
// stdout. Grounded on the teacher's cmd/lci/main.go (urfave/cli
// flag/command wiring, context-cancellation + signal-based graceful
// shutdown shape), adapted from an MCP-over-stdio loop to a raw
// LSP-over-stdio loop.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/fsharp-ls/internal/analyzer"
	"github.com/standardbeagle/fsharp-ls/internal/config"
	"github.com/standardbeagle/fsharp-ls/internal/dispatcher"
	"github.com/standardbeagle/fsharp-ls/internal/document"
	"github.com/standardbeagle/fsharp-ls/internal/lsperrors"
	"github.com/standardbeagle/fsharp-ls/internal/lspserver"
	"github.com/standardbeagle/fsharp-ls/internal/orchestrator"
	"github.com/standardbeagle/fsharp-ls/internal/project"
	"github.com/standardbeagle/fsharp-ls/internal/projectloader"
	"github.com/standardbeagle/fsharp-ls/internal/transport"
	"github.com/standardbeagle/fsharp-ls/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "lsp-server",
		Usage:   "Language Server Protocol core for F#-like projects",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".fsharp-ls.toml",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Workspace root directory (overrides config)",
			},
			&cli.DurationFlag{
				Name:  "analysis-cache-ttl",
				Usage: "How long the Analyzer's parse/check cache retains an entry after it was stored",
				Value: 5 * time.Minute,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Printf("lsp-server: %v", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if root := c.String("root"); root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolving root %q: %w", root, err)
		}
		cfg.WorkspaceRoot = abs
	} else if abs, err := filepath.Abs(cfg.WorkspaceRoot); err == nil {
		cfg.WorkspaceRoot = abs
	}

	gw := analyzer.NewTreeSitterGateway(c.Duration("analysis-cache-ttl"))
	docs := document.NewStore()
	graph := project.NewGraph(projectloader.New(), gw)

	if err := graph.AddWorkspaceRoot(cfg.WorkspaceRoot); err != nil {
		log.Printf("lsp-server: AddWorkspaceRoot(%s): %v", cfg.WorkspaceRoot, err)
	}

	writer := transport.NewWriter(os.Stdout)

	// Orchestrator and Dispatcher need a Publisher/Notifier/Sink before
	// the Server that implements them exists (Server itself needs the
	// Orchestrator and Dispatcher). forward breaks the cycle: it's
	// handed to New below and pointed at the real Server once built.
	fwd := &forward{}

	orch := orchestrator.New(docs, graph, gw, fwd, fwd, fwd, cfg.BackgroundCheckConcurrency)
	disp := dispatcher.New(docs, graph, gw, orch, fwd)

	srv := lspserver.New(writer, docs, graph, orch, disp)
	fwd.target = srv

	watcher, err := project.NewWorkspaceWatcher(graph, cfg.DebounceDuration())
	if err != nil {
		return fmt.Errorf("creating workspace watcher: %w", err)
	}
	watcher.OnChanged = orch.OnWorkspaceFilesChanged
	if err := watcher.Start(cfg.WorkspaceRoot); err != nil {
		log.Printf("lsp-server: starting workspace watcher: %v", err)
	}
	defer watcher.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() { errChan <- serve(ctx, srv) }()

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Printf("lsp-server: received signal %v, shutting down", sig)
		cancel()
		select {
		case <-errChan:
		case <-time.After(2 * time.Second):
			os.Stdin.Close()
			<-errChan
		}
	}
	return nil
}

// forward implements orchestrator.Publisher, orchestrator.Notifier, and
// progress.Sink by relaying every call to target, set once the Server
// is constructed. Nothing invokes these methods before then: they fire
// from srv.Handle and from the background checks and workspace watcher
// it or run start, none of which begins before fwd.target is set.
type forward struct {
	target *lspserver.Server
}

func (f *forward) PublishDiagnostics(uri string, diagnostics []project.Diagnostic) {
	f.target.PublishDiagnostics(uri, diagnostics)
}

func (f *forward) ShowWarning(message string) {
	f.target.ShowWarning(message)
}

func (f *forward) StartProgress(title string, nFiles int) {
	f.target.StartProgress(title, nFiles)
}

func (f *forward) IncrementProgress(fileName string) {
	f.target.IncrementProgress(fileName)
}

func (f *forward) EndProgress() {
	f.target.EndProgress()
}

// serve is the read loop: it frames each incoming message and hands it
// to srv.Dispatch, which runs it on a worker task per spec.md §5
// ("notifications are dispatched fire-and-forget on worker tasks;
// requests are dispatched on worker tasks... multiple tasks may
// execute concurrently"). The loop itself never blocks on a handler —
// an on-open check batch or a slow hover must not stall reading the
// next didChange/didClose/exit.
func serve(ctx context.Context, srv *lspserver.Server) error {
	reader := transport.NewReader(os.Stdin)
	for srv.Running() {
		msg, err := reader.Read()
		if err != nil {
			return lsperrors.NewTransportFatalError(err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		srv.Dispatch(ctx, msg)
	}
	return nil
}
