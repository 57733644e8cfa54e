// Package orchestrator implements the CheckOrchestrator: it decides how
// to obtain a (ParseResult, CheckResult) for a file under latency and
// freshness goals, publishes diagnostics, debounces background
// re-checks, and reports progress for batch operations. Grounded on
// the teacher's indexing.DebouncedRebuilder (timer-reset debounce
// shape) and indexing.PipelineProgress (batch progress reporting),
// generalized from file-indexing batches to compiler check batches.
package orchestrator

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/standardbeagle/fsharp-ls/internal/analyzer"
	"github.com/standardbeagle/fsharp-ls/internal/document"
	"github.com/standardbeagle/fsharp-ls/internal/lsperrors"
	"github.com/standardbeagle/fsharp-ls/internal/progress"
	"github.com/standardbeagle/fsharp-ls/internal/project"
)

// DebounceDelay is the fixed background re-check debounce window; not
// configurable in the core (spec.md §9).
const DebounceDelay = 1000 * time.Millisecond

// Publisher sends a publishDiagnostics notification for uri.
type Publisher interface {
	PublishDiagnostics(uri string, diagnostics []project.Diagnostic)
}

// Notifier sends a client-visible warning message (showMessage).
type Notifier interface {
	ShowWarning(message string)
}

// Outcome is the result of a tiered check: either OK with fresh
// (parse, check) results, or a failure carrying whatever diagnostics
// should be surfaced (possibly none).
type Outcome struct {
	OK          bool
	Parse       analyzer.ParseResult
	Check       analyzer.CheckResult
	Diagnostics []project.Diagnostic
}

type tierKind int

const (
	tierForce tierKind = iota
	tierCheck
	tierQuick
)

// Orchestrator is the CheckOrchestrator. It owns the PendingBackgroundSet
// and CheckedOnDiskMap named in spec.md §3; DocumentStore and
// ProjectGraph remain owned by their own packages.
type Orchestrator struct {
	docs  *document.Store
	graph *project.Graph
	gw    analyzer.Gateway
	pub   Publisher
	sink  progress.Sink
	notif Notifier

	backgroundLimit int

	pendingMu sync.Mutex
	pending   map[string]struct{}
	timer     *time.Timer

	diskMu      sync.Mutex
	checkedDisk map[string]time.Time

	reporterMu sync.Mutex
	reporter   *progress.Reporter
}

// New creates an Orchestrator wired to its collaborators. backgroundLimit
// bounds concurrent background re-checks (0 means unlimited).
func New(docs *document.Store, graph *project.Graph, gw analyzer.Gateway, pub Publisher, sink progress.Sink, notif Notifier, backgroundLimit int) *Orchestrator {
	o := &Orchestrator{
		docs:            docs,
		graph:           graph,
		gw:              gw,
		pub:             pub,
		sink:            sink,
		notif:           notif,
		backgroundLimit: backgroundLimit,
		pending:         make(map[string]struct{}),
		checkedDisk:     make(map[string]time.Time),
	}
	gw.OnBeforeBackgroundCheck(o.onBeforeBackgroundCheck)
	gw.OnMaxMemory(o.onMaxMemory)
	return o
}

func (o *Orchestrator) onBeforeBackgroundCheck(file string) {
	o.reporterMu.Lock()
	r := o.reporter
	o.reporterMu.Unlock()
	if r != nil {
		r.Increment(file)
	}
}

func (o *Orchestrator) onMaxMemory() {
	o.notif.ShowWarning("the compiler is approaching a memory limit; analysis may slow down or be skipped")
}

func (o *Orchestrator) setReporter(r *progress.Reporter) {
	o.reporterMu.Lock()
	o.reporter = r
	o.reporterMu.Unlock()
}

// Force always re-checks at the file's current version, ignoring any
// cached result.
func (o *Orchestrator) Force(ctx context.Context, file string) Outcome {
	return o.runTier(ctx, file, tierForce)
}

// Check uses the cache only if its checked version matches the file's
// current version; otherwise it forces a re-check.
func (o *Orchestrator) Check(ctx context.Context, file string) Outcome {
	return o.runTier(ctx, file, tierCheck)
}

// Quick accepts any cached result, however stale, preferring
// responsiveness over freshness.
func (o *Orchestrator) Quick(ctx context.Context, file string) Outcome {
	return o.runTier(ctx, file, tierQuick)
}

func (o *Orchestrator) runTier(ctx context.Context, file string, tier tierKind) Outcome {
	opts, err := o.graph.Find(file)
	if err != nil {
		resErr := lsperrors.NewProjectResolutionError(file, err)
		diags := []project.Diagnostic{projectResolutionDiagnostic(resErr)}
		if tier != tierQuick {
			diags = nil
		}
		return Outcome{OK: false, Diagnostics: diags}
	}

	text, version, exists := o.resolveText(file)
	if !exists {
		if tier == tierQuick {
			return Outcome{OK: false, Diagnostics: []project.Diagnostic{noSourceFileDiagnostic()}}
		}
		return Outcome{OK: false}
	}

	// Every foreground operation (force/check/quick alike) cancels the
	// pending debounce before running and re-arms it only if work
	// remains, per spec.md §4.5.
	o.cancelTimer()
	defer o.rearmIfPending()

	if tier != tierForce {
		if parse, check, cachedVersion, ok := o.gw.TryCached(file, *opts); ok {
			if tier == tierQuick || cachedVersion == version {
				return Outcome{OK: true, Parse: parse, Check: check}
			}
		}
	}

	parse, checkOutcome, err := o.gw.Check(ctx, file, version, text, *opts)
	o.recordChecked(file)

	var out Outcome
	switch {
	case err != nil:
		log.Print(lsperrors.NewAnalyzerException("check", file, err))
		out = Outcome{OK: false, Diagnostics: parse.Diagnostics}
	case checkOutcome.Aborted:
		log.Print(lsperrors.NewAnalyzerAbortedError(file))
		out = Outcome{OK: false, Diagnostics: parse.Diagnostics}
	default:
		out = Outcome{OK: true, Parse: parse, Check: *checkOutcome.Check}
	}

	if tier != tierQuick {
		o.publishIfOpen(file, combinedDiagnostics(out))
	}
	return out
}

func combinedDiagnostics(out Outcome) []project.Diagnostic {
	if out.OK {
		return append(append([]project.Diagnostic(nil), out.Parse.Diagnostics...), out.Check.Diagnostics...)
	}
	return out.Diagnostics
}

func (o *Orchestrator) publishIfOpen(file string, diags []project.Diagnostic) {
	if _, ok := o.docs.GetText(file); ok {
		o.pub.PublishDiagnostics(file, diags)
	}
}

// NotifyClosed clears diagnostics for file and drops any pending
// background work for it, per spec.md §4.5's close behavior.
func (o *Orchestrator) NotifyClosed(file string) {
	o.pendingMu.Lock()
	delete(o.pending, file)
	o.pendingMu.Unlock()
	o.pub.PublishDiagnostics(file, nil)
}

func (o *Orchestrator) resolveText(file string) (text string, version int, exists bool) {
	if t, ok := o.docs.GetText(file); ok {
		v, _ := o.docs.GetVersion(file)
		return t, v, true
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", 0, false
	}
	return string(data), 0, true
}

func (o *Orchestrator) recordChecked(file string) {
	o.diskMu.Lock()
	defer o.diskMu.Unlock()
	if info, err := os.Stat(file); err == nil {
		o.checkedDisk[file] = info.ModTime()
	} else {
		o.checkedDisk[file] = time.Now()
	}
}

func (o *Orchestrator) lastChecked(file string) (time.Time, bool) {
	o.diskMu.Lock()
	defer o.diskMu.Unlock()
	t, ok := o.checkedDisk[file]
	return t, ok
}

func projectResolutionDiagnostic(err *lsperrors.ProjectResolutionError) project.Diagnostic {
	return project.Diagnostic{Severity: project.SeverityError, Message: err.Error()}
}

func noSourceFileDiagnostic() project.Diagnostic {
	return project.Diagnostic{Severity: project.SeverityError, Message: "no source file on disk"}
}
