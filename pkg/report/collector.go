package report

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"asset-downloader/pkg/models"
)

// Header is the column order of the download log
var Header = []string{
	"row", "part_number", "asset_type", "url", "status",
	"http_status", "content_type", "bytes", "message",
	"local_path", "network_path", "background_processed",
}

// Collector accumulates per-task records across the worker pool and
// renders them into download-log rows. Safe for concurrent Record calls.
type Collector struct {
	mu      sync.Mutex
	records []models.TaskReport
}

func NewCollector() *Collector {
	return &Collector{}
}

// Record stores the record for one finished task
func (c *Collector) Record(r models.TaskReport) {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
}

// Records returns a copy of everything collected so far, ordered by
// spreadsheet row then part number so the log reads like the source
// sheet regardless of worker completion order
func (c *Collector) Records() []models.TaskReport {
	c.mu.Lock()
	out := make([]models.TaskReport, len(c.records))
	copy(out, c.records)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RowIndex != out[j].RowIndex {
			return out[i].RowIndex < out[j].RowIndex
		}
		return out[i].PartNumber < out[j].PartNumber
	})
	return out
}

// Len returns the number of records collected so far
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Row renders one record in Header order, ready for a CSV writer
func Row(r models.TaskReport) []string {
	httpStatus := ""
	if r.StatusCode != 0 {
		httpStatus = strconv.Itoa(r.StatusCode)
	}
	return []string{
		strconv.Itoa(r.RowIndex),
		r.PartNumber,
		string(r.AssetType),
		r.URL,
		r.Status.String(),
		httpStatus,
		r.ContentType,
		strconv.FormatInt(r.Bytes, 10),
		r.Message,
		r.LocalPath,
		r.NetworkPath,
		fmt.Sprintf("%t", r.BackgroundProcessed),
	}
}
