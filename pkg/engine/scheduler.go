package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"asset-downloader/pkg/config"
	"asset-downloader/pkg/fetch"
	"asset-downloader/pkg/models"
	"asset-downloader/pkg/process"
	"asset-downloader/pkg/progress"
	"asset-downloader/pkg/report"
	"asset-downloader/pkg/utils"
)

// sourceResolver is the slice of the resolver the scheduler needs
type sourceResolver interface {
	Resolve(*models.DownloadTask) (bool, error)
}

// run is the per-run state: the planned tasks plus the collaborators
// built for this run's config
type run struct {
	engine     *Engine
	cfg        *config.DownloadConfig
	tasks      []*models.DownloadTask
	downloader *fetch.Downloader
	resolver   sourceResolver
	processor  *process.Processor
	agg        *progress.Aggregator
	collector  *report.Collector
	log        *logrus.Logger
}

// execute drives the whole run: queue population, the fixed worker
// pool, and the terminal event
func (r *run) execute(ctx context.Context) {
	// A panic out of the pool (errgroup re-raises worker panics in Wait)
	// is a run-level fault: the run still ends with a terminal event so
	// consumers are not left hanging.
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("Run aborted by internal fault: %v", rec)
			r.engine.finishRun(r.agg.Snapshot(), EventError, fmt.Errorf("internal fault: %v", rec))
		}
	}()

	r.engine.publishProgress(r.agg.Snapshot())

	queue := make(chan *models.DownloadTask, len(r.tasks))
	for _, task := range r.tasks {
		queue <- task
	}
	close(queue)

	g := new(errgroup.Group)
	for i := 0; i < r.cfg.Workers; i++ {
		workerID := i + 1
		g.Go(func() error {
			r.worker(ctx, workerID, queue)
			return nil
		})
	}
	g.Wait()

	snap := r.agg.Snapshot()
	if ctx.Err() != nil {
		r.log.WithFields(logrus.Fields{
			"successful": snap.Successful,
			"cancelled":  snap.Cancelled,
		}).Info("Run cancelled")
		r.engine.finishRun(snap, EventCancelled, nil)
		return
	}
	r.log.WithFields(logrus.Fields{
		"successful": snap.Successful,
		"failed":     snap.Failed,
		"processed":  snap.BackgroundProcessed,
	}).Info("Run complete")
	r.engine.finishRun(snap, EventComplete, nil)
}

// worker pulls tasks until the queue closes. Once the run context is
// cancelled the remaining queue drains as cancelled without touching
// the network.
func (r *run) worker(ctx context.Context, id int, queue <-chan *models.DownloadTask) {
	wlog := r.log.WithField("worker_id", id)
	for task := range queue {
		if ctx.Err() != nil {
			r.finishCancelled(task)
			continue
		}
		r.processTask(ctx, wlog, task)
	}
}

// processTask runs one task through the pipeline: invalid-check,
// source-folder resolution, network fetch, background processing,
// record. Every exit path leaves the task terminal and counted exactly
// once.
func (r *run) processTask(ctx context.Context, wlog *logrus.Entry, task *models.DownloadTask) {
	tlog := wlog.WithFields(logrus.Fields{
		"part_no": task.PartNumber,
		"type":    task.AssetType,
		"row":     task.RowIndex,
	})

	r.agg.SetCurrentFile(task.Label())
	r.engine.publishProgress(r.agg.Snapshot())
	task.Transition(models.TaskStatusRunning)

	if task.InvalidURL != nil {
		tlog.WithField("url", task.SourceURL).Warn("Invalid URL, failing without fetch")
		r.finishFailed(task, task.InvalidURL)
		return
	}

	hit, err := r.resolver.Resolve(task)
	if err != nil {
		r.finishFailed(task, err)
		return
	}
	if hit {
		task.ResolvedLocally = true
		task.LocalPath = task.DestPath()
		tlog.Debug("Resolved from source folder")
		r.finishSucceeded(task)
		return
	}

	// The hook's attempt index is zero-based; AttemptCount is a count
	onAttempt := func(attempt int) {
		task.AttemptCount = attempt + 1
		r.agg.SetCurrentFile(task.Label())
	}
	result, err := r.downloader.Download(ctx, task.SourceURL, task.DestFolder, task.Filename, onAttempt)
	task.StatusCode = result.StatusCode
	task.ContentType = result.ContentType
	task.BytesWritten = result.Bytes
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			r.finishCancelled(task)
			return
		}
		tlog.WithFields(logrus.Fields{
			"category": utils.CategorizeError(err),
			"attempts": task.AttemptCount,
		}).Warn("Download failed")
		r.finishFailed(task, err)
		return
	}

	task.LocalPath = task.DestPath()
	tlog.WithField("bytes", result.Bytes).Debug("Download complete")
	r.finishSucceeded(task)
}

// finishSucceeded applies background processing when enabled, then
// records the task. Processing failure keeps the task successful and
// surfaces as a warning.
func (r *run) finishSucceeded(task *models.DownloadTask) {
	if r.processor.Enabled() && task.AssetType == models.AssetTypeImage {
		if err := r.processor.Process(task); err != nil {
			task.Warning = fmt.Sprintf("downloaded but background processing failed: %v", err)
			r.log.WithField("part_no", task.PartNumber).Warn(task.Warning)
		} else {
			task.Processed = true
		}
	}
	task.Transition(models.TaskStatusSucceeded)
	r.agg.TaskSucceeded(task.Processed)
	r.record(task)
}

func (r *run) finishFailed(task *models.DownloadTask, err error) {
	task.LastError = err.Error()
	task.Transition(models.TaskStatusFailed)
	r.agg.TaskFailed()
	r.record(task)
}

func (r *run) finishCancelled(task *models.DownloadTask) {
	task.LastError = utils.ErrCancelled.Error()
	task.Transition(models.TaskStatusCancelled)
	r.agg.TaskCancelled()
	r.record(task)
}

func (r *run) record(task *models.DownloadTask) {
	r.collector.Record(models.ReportFromTask(task))
	r.engine.publishProgress(r.agg.Snapshot())
}
