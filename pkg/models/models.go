package models

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RowData is one spreadsheet row as a mapping from column name to cell value.
// Row parsing itself happens outside the engine; the engine only consumes
// the named-column form.
type RowData map[string]string

// DownloadTask is one unit of work: fetch or locate one asset for one row.
// A task is created by the planner and owned by exactly one worker at a time;
// fields are not safe for concurrent mutation.
type DownloadTask struct {
	ID         uuid.UUID
	PartNumber string
	AssetType  AssetType
	SourceURL  string
	Column     string // Source column the URL came from
	RowIndex   int    // Spreadsheet row number (header is row 1, first data row is 2)

	DestFolder  string
	Filename    string // Final file name including extension
	NetworkPath string // Network location string recorded for reporting only
	SearchTerm  string // Source-folder search term (filename override, else part number)

	// InvalidURL is set by the planner when the URL cell failed syntactic
	// validation. Such a task is failed immediately with zero fetch attempts.
	InvalidURL error

	AttemptCount int
	Status       TaskStatus
	LastError    string

	// Outcome details retained for the report collaborator
	LocalPath       string
	BytesWritten    int64
	StatusCode      int
	ContentType     string
	ResolvedLocally bool   // Satisfied from the source folder, no network call
	Processed       bool   // Background processing completed on the image
	Warning         string // Non-fatal processing warning
}

// DestPath returns the final on-disk destination for the asset
func (t *DownloadTask) DestPath() string {
	return filepath.Join(t.DestFolder, t.Filename)
}

// Label returns a short human-readable identifier used as the
// aggregator's current-file hint
func (t *DownloadTask) Label() string {
	return fmt.Sprintf("%s (%s)", t.PartNumber, t.AssetType)
}

// Transition moves the task to a new status, enforcing forward-only
// movement: pending -> running -> terminal, exactly once. Returns false
// if the transition is not allowed.
func (t *DownloadTask) Transition(to TaskStatus) bool {
	if t.Status.IsTerminal() {
		return false
	}
	switch to {
	case TaskStatusRunning:
		if t.Status != TaskStatusPending {
			return false
		}
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		// Terminal states are reachable from pending (cancelled before
		// start, invalid URL) as well as from running
	default:
		return false
	}
	t.Status = to
	return true
}

// DownloadProgress is an immutable point-in-time view of aggregate run
// progress. A fresh value is built on every publish so consumers never
// observe torn reads.
type DownloadProgress struct {
	Total               int
	Successful          int
	Failed              int
	Cancelled           int
	BackgroundProcessed int
	Percentage          float64       // (successful+failed) / total * 100, 0 when total is 0
	Elapsed             time.Duration // Since run start
	EstimatedRemaining  time.Duration // Throughput extrapolation, 0 before first completion
	CurrentFile         string        // Best-effort label of the most recently started task
}

// Completed returns the number of terminally succeeded or failed tasks
func (p DownloadProgress) Completed() int {
	return p.Successful + p.Failed
}

// RunSummary is the terminal accounting for one run
type RunSummary struct {
	Total               int
	Successful          int
	Failed              int
	Cancelled           int
	BackgroundProcessed int
	Duration            time.Duration
}

// TaskReport is the per-task record handed to the reporting collaborator
// (CSV log builder). The column set mirrors the download log the
// surrounding application writes.
type TaskReport struct {
	RowIndex            int
	PartNumber          string
	AssetType           AssetType
	URL                 string
	Status              TaskStatus
	StatusCode          int
	ContentType         string
	Bytes               int64
	Message             string
	LocalPath           string
	NetworkPath         string
	BackgroundProcessed bool
}

// ReportFromTask builds the report record for a finished task
func ReportFromTask(t *DownloadTask) TaskReport {
	r := TaskReport{
		RowIndex:            t.RowIndex,
		PartNumber:          t.PartNumber,
		AssetType:           t.AssetType,
		URL:                 t.SourceURL,
		Status:              t.Status,
		StatusCode:          t.StatusCode,
		ContentType:         t.ContentType,
		Bytes:               t.BytesWritten,
		Message:             t.LastError,
		NetworkPath:         t.NetworkPath,
		BackgroundProcessed: t.Processed,
	}
	if t.Status == TaskStatusSucceeded {
		r.LocalPath = t.LocalPath
		if r.Message == "" {
			r.Message = "Success"
		}
	}
	if t.Warning != "" {
		r.Message = t.Warning
	}
	return r
}
