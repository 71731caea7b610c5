package engine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"asset-downloader/pkg/config"
	"asset-downloader/pkg/fetch"
	"asset-downloader/pkg/models"
	"asset-downloader/pkg/plan"
	"asset-downloader/pkg/process"
	"asset-downloader/pkg/progress"
	"asset-downloader/pkg/report"
	"asset-downloader/pkg/resolve"
	"asset-downloader/pkg/utils"
)

const eventBuffer = 64

// Engine owns the download run lifecycle: planning, the worker pool,
// cancellation, progress publication, and per-task record collection.
// One run at a time; a second StartDownloads while a run is active
// (including while its workers drain after cancellation) returns
// ErrRunActive.
type Engine struct {
	log *logrus.Logger

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	events    chan Event
	agg       *progress.Aggregator
	lastSnap  models.DownloadProgress
	collector *report.Collector
}

// New creates an idle engine. The event channel exists from the start
// so a consumer can range over Events() before the first run.
func New(log *logrus.Logger) *Engine {
	return &Engine{
		log:       log,
		events:    make(chan Event, eventBuffer),
		collector: report.NewCollector(),
	}
}

// Events returns the channel run events are published on. The channel
// is never closed; consumers stop on a terminal event.
func (e *Engine) Events() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events
}

// ResetListeners abandons the current event channel and arms a fresh
// one. Consumers of the old channel stop receiving events; publishes
// in flight go to the new channel.
func (e *Engine) ResetListeners() {
	e.mu.Lock()
	e.events = make(chan Event, eventBuffer)
	e.mu.Unlock()
}

// GetProgress returns the latest progress snapshot. Before any run it
// is the zero snapshot; after a run it is the run's final state.
func (e *Engine) GetProgress() models.DownloadProgress {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.agg != nil {
		return e.agg.Snapshot()
	}
	return e.lastSnap
}

// CancelDownloads requests cancellation of the active run. In-flight
// requests abort, queued tasks drain as cancelled, finished tasks are
// untouched. Safe to call repeatedly; a no-op with no active run.
func (e *Engine) CancelDownloads() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Records returns the task records collected by the most recent run
func (e *Engine) Records() []models.TaskReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collector.Records()
}

// StartDownloads validates the config, plans tasks from the rows, and
// launches the run asynchronously. Validation and planning failures are
// returned synchronously and publish no events. A nil error means the
// run is underway and will end with exactly one terminal event.
func (e *Engine) StartDownloads(ctx context.Context, cfg *config.DownloadConfig, rows []models.RowData) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return utils.ErrRunActive
	}
	e.mu.Unlock()

	warnings, err := cfg.Validate()
	if err != nil {
		return err
	}
	for _, w := range warnings {
		e.log.Warn(w)
	}

	planner := plan.NewPlanner(e.log)
	tasks, err := planner.BuildTasks(cfg, rows)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		cancel()
		return utils.ErrRunActive
	}
	e.running = true
	e.cancel = cancel
	agg := progress.NewAggregator(len(tasks))
	collector := report.NewCollector()
	e.agg = agg
	e.collector = collector
	e.mu.Unlock()

	client := fetch.NewClient(cfg.Fetch, cfg.HTTPClientSettings, e.log)
	fetcher := fetch.NewFetcher(client, cfg.Fetch, e.log)
	r := &run{
		engine:     e,
		cfg:        cfg,
		tasks:      tasks,
		downloader: fetch.NewDownloader(fetcher, e.log),
		resolver:   resolve.NewResolver(cfg.SourceImageFolder, e.log),
		processor:  process.NewProcessor(cfg.Background, e.log),
		agg:        agg,
		collector:  collector,
		log:        e.log,
	}

	go r.execute(runCtx)
	return nil
}

// finishRun records terminal state and publishes the terminal event
func (e *Engine) finishRun(snap models.DownloadProgress, kind EventKind, runErr error) {
	summary := models.RunSummary{
		Total:               snap.Total,
		Successful:          snap.Successful,
		Failed:              snap.Failed,
		Cancelled:           snap.Cancelled,
		BackgroundProcessed: snap.BackgroundProcessed,
		Duration:            snap.Elapsed,
	}

	e.mu.Lock()
	e.lastSnap = snap
	e.running = false
	e.cancel = nil
	e.agg = nil
	e.mu.Unlock()

	e.publishTerminal(Event{Kind: kind, Progress: snap, Summary: summary, Err: runErr})
}

// publishProgress is a best-effort send: when the buffer is full the
// oldest event is discarded to make room, so a slow consumer sees the
// freshest snapshot rather than a backlog
func (e *Engine) publishProgress(snap models.DownloadProgress) {
	e.mu.Lock()
	e.lastSnap = snap
	ch := e.events
	e.mu.Unlock()

	ev := Event{Kind: EventProgress, Progress: snap}
	select {
	case ch <- ev:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// publishTerminal always lands in the buffer, evicting stale events if
// it must. Every run ends with exactly one terminal event.
func (e *Engine) publishTerminal(ev Event) {
	e.mu.Lock()
	ch := e.events
	e.mu.Unlock()

	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
