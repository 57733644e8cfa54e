package orchestrator

import (
	"context"

	"github.com/standardbeagle/fsharp-ls/internal/progress"
)

// OnSave force-rechecks every open file visible from the saved file,
// per spec.md §4.5.
func (o *Orchestrator) OnSave(ctx context.Context, file string) {
	var targets []string
	for _, g := range o.docs.OpenFiles() {
		if o.graph.Visible(file, g) {
			targets = append(targets, g)
		}
	}

	r := progress.Start(o.sink, "Checking dependents of "+file, len(targets))
	for _, g := range targets {
		o.Force(ctx, g)
		r.Increment(g)
	}
	r.End()
}
