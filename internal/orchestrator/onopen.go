package orchestrator

import (
	"context"
	"os"

	"github.com/standardbeagle/fsharp-ls/internal/progress"
)

// OnOpen computes the on-open batch for file per spec.md §4.5: the
// dependency-ordered source list up to and including file, restricted
// to files that are stale (never checked, or modified since last
// checked) plus every file after the first stale one in that order.
// It then checks each batch file under a progress bar.
func (o *Orchestrator) OnOpen(ctx context.Context, file string) {
	opts, err := o.graph.Find(file)
	if err != nil {
		return
	}

	var ordered []string
	for _, p := range o.graph.TransitiveDeps(opts) {
		ordered = append(ordered, p.Sources...)
	}

	endIdx := len(ordered)
	for i, f := range ordered {
		if f == file {
			endIdx = i + 1
			break
		}
	}

	var batch []string
	pastFirstStale := false
	for i := 0; i < endIdx; i++ {
		f := ordered[i]
		if pastFirstStale || o.isStale(f) {
			pastFirstStale = true
			batch = append(batch, f)
		}
	}

	r := progress.Start(o.sink, "Checking "+file, len(batch))
	o.setReporter(r)
	for _, f := range batch {
		o.Check(ctx, f)
	}
	o.setReporter(nil)
	r.End()
}

func (o *Orchestrator) isStale(file string) bool {
	lastChecked, known := o.lastChecked(file)
	if !known {
		return true
	}
	info, err := os.Stat(file)
	if err != nil {
		return true
	}
	return info.ModTime().After(lastChecked)
}
