package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"asset-downloader/pkg/models"
)

// Aggregator collects task outcomes from the worker pool and serves
// consistent progress snapshots. Counter updates are lock-free; only
// the current-file label takes a mutex.
type Aggregator struct {
	total               int64
	successful          atomic.Int64
	failed              atomic.Int64
	cancelled           atomic.Int64
	backgroundProcessed atomic.Int64

	started time.Time
	now     func() time.Time

	mu          sync.Mutex
	currentFile string
}

// NewAggregator starts the run clock for a run of total tasks.
func NewAggregator(total int) *Aggregator {
	return newAggregatorAt(total, time.Now)
}

func newAggregatorAt(total int, now func() time.Time) *Aggregator {
	return &Aggregator{total: int64(total), now: now, started: now()}
}

func (a *Aggregator) TaskSucceeded(processed bool) {
	a.successful.Add(1)
	if processed {
		a.backgroundProcessed.Add(1)
	}
}

func (a *Aggregator) TaskFailed() {
	a.failed.Add(1)
}

func (a *Aggregator) TaskCancelled() {
	a.cancelled.Add(1)
}

// SetCurrentFile records the label of the task a worker just picked up.
// With several workers the label is a best-effort indicator, not a
// strict ordering.
func (a *Aggregator) SetCurrentFile(label string) {
	a.mu.Lock()
	a.currentFile = label
	a.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the run's progress. The
// estimate assumes remaining tasks cost what completed ones averaged,
// and stays zero until the first task completes.
func (a *Aggregator) Snapshot() models.DownloadProgress {
	succ := a.successful.Load()
	fail := a.failed.Load()
	canc := a.cancelled.Load()
	// Cancelled tasks do not advance the bar or feed the throughput
	// estimate; only finished work does.
	completed := succ + fail

	elapsed := a.now().Sub(a.started)

	var pct float64
	var remaining time.Duration
	if a.total > 0 {
		pct = float64(completed) / float64(a.total) * 100
		if completed > 0 {
			perTask := elapsed / time.Duration(completed)
			remaining = perTask * time.Duration(a.total-completed)
		}
	}

	a.mu.Lock()
	current := a.currentFile
	a.mu.Unlock()

	return models.DownloadProgress{
		Total:               int(a.total),
		Successful:          int(succ),
		Failed:              int(fail),
		Cancelled:           int(canc),
		BackgroundProcessed: int(a.backgroundProcessed.Load()),
		Percentage:          pct,
		Elapsed:             elapsed,
		EstimatedRemaining:  remaining,
		CurrentFile:         current,
	}
}
