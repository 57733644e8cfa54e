package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Invalidate adds file to the PendingBackgroundSet and (re)arms the
// 1000ms debounce timer. If a background check for file is already in
// flight when this is called, file is simply re-queued for the next
// sweep once the timer fires again.
func (o *Orchestrator) Invalidate(file string) {
	o.pendingMu.Lock()
	o.pending[file] = struct{}{}
	o.armTimerLocked()
	o.pendingMu.Unlock()
}

func (o *Orchestrator) armTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(DebounceDelay, o.runBackgroundSweep)
}

func (o *Orchestrator) cancelTimer() {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
	}
}

func (o *Orchestrator) rearmIfPending() {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()
	if len(o.pending) > 0 {
		o.armTimerLocked()
	}
}

// runBackgroundSweep fires when the debounce timer elapses. It takes a
// snapshot of PendingBackgroundSet, checks each file with bounded
// concurrency, and publishes diagnostics for each as it completes.
func (o *Orchestrator) runBackgroundSweep() {
	o.pendingMu.Lock()
	snapshot := make([]string, 0, len(o.pending))
	for f := range o.pending {
		snapshot = append(snapshot, f)
		delete(o.pending, f)
	}
	o.pendingMu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	g := new(errgroup.Group)
	if o.backgroundLimit > 0 {
		g.SetLimit(o.backgroundLimit)
	}
	for _, f := range snapshot {
		file := f
		g.Go(func() error {
			o.Check(context.Background(), file)
			return nil
		})
	}
	_ = g.Wait()
}
