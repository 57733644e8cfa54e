// Package progress reports long-running batch operations to the LSP
// client via the server's custom fsharp/startProgress,
// fsharp/incrementProgress, and fsharp/endProgress notifications.
// Grounded on the teacher's indexing.ProgressTracker, scaled down from
// sharded atomic counters (built for indexing-scale file counts) to a
// single atomic counter sized for editor-batch-scale file counts.
package progress

import "sync/atomic"

// Sink is the notification-emitting side; ServerLoop implements it by
// writing framed notifications back to the client.
type Sink interface {
	StartProgress(title string, nFiles int)
	IncrementProgress(fileName string)
	EndProgress()
}

// Reporter scopes one progress batch: Start pairs with End via defer at
// the call site, per the "scoped acquisition" rule. A batch of size <=
// 1 is suppressed — no notifications are sent at all.
type Reporter struct {
	sink      Sink
	suppress  bool
	remaining int64
}

// Start begins a batch of nFiles total files. If nFiles <= 1 the
// returned Reporter is a no-op (suppressed) per spec.
func Start(sink Sink, title string, nFiles int) *Reporter {
	r := &Reporter{sink: sink, suppress: nFiles <= 1, remaining: int64(nFiles)}
	if !r.suppress {
		sink.StartProgress(title, nFiles)
	}
	return r
}

// Increment reports one file's worth of progress.
func (r *Reporter) Increment(fileName string) {
	if r == nil || r.suppress {
		return
	}
	atomic.AddInt64(&r.remaining, -1)
	r.sink.IncrementProgress(fileName)
}

// End closes the batch. Safe to call multiple times; only the first
// call has effect.
func (r *Reporter) End() {
	if r == nil || r.suppress {
		return
	}
	r.suppress = true
	r.sink.EndProgress()
}
