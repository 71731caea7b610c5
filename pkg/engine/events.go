package engine

import "asset-downloader/pkg/models"

// EventKind discriminates the events a run publishes on the engine's
// event channel.
type EventKind string

const (
	// EventProgress carries a progress snapshot. Published on task
	// pickup and completion; stale snapshots are dropped when the
	// consumer lags.
	EventProgress EventKind = "progress"

	// EventComplete is the terminal event of a run that was not
	// cancelled. Carries the final summary.
	EventComplete EventKind = "complete"

	// EventCancelled is the terminal event of a cancelled run. Carries
	// the summary accumulated up to cancellation.
	EventCancelled EventKind = "cancelled"

	// EventError reports a run-level failure. Per-task failures are
	// not errors; they show up in progress counts and task records.
	EventError EventKind = "error"
)

// Event is one message on the engine's event channel. Exactly one of
// Progress, Summary, Err is meaningful depending on Kind.
type Event struct {
	Kind     EventKind
	Progress models.DownloadProgress
	Summary  models.RunSummary
	Err      error
}

// IsTerminal reports whether this event ends a run
func (e Event) IsTerminal() bool {
	return e.Kind == EventComplete || e.Kind == EventCancelled || e.Kind == EventError
}
