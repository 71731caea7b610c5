package plan

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"asset-downloader/pkg/config"
	"asset-downloader/pkg/models"
	"asset-downloader/pkg/utils"
)

// Planner converts a validated configuration plus row data into the
// fixed task list for one run. Planning is all-or-nothing: any
// configuration problem fails before a single task exists.
type Planner struct {
	log *logrus.Logger
}

// NewPlanner creates a new Planner instance
func NewPlanner(log *logrus.Logger) *Planner {
	return &Planner{log: log}
}

// BuildTasks validates the configuration against the row schema and
// emits one task per (row, selected asset column) pair with a non-empty
// URL cell. Rows without a part number are skipped entirely.
// Syntactically invalid URLs still produce a task, pre-flagged so the
// scheduler fails it immediately without any fetch attempt.
func (p *Planner) BuildTasks(cfg *config.DownloadConfig, rows []models.RowData) ([]*models.DownloadTask, error) {
	if err := p.validate(cfg, rows); err != nil {
		return nil, err
	}

	if err := ensureFolders(cfg); err != nil {
		return nil, err
	}

	var tasks []*models.DownloadTask
	skippedRows := 0

	for i, row := range rows {
		rowIndex := i + 2 // Header occupies spreadsheet row 1

		partRaw := strings.TrimSpace(row[cfg.PartNumberColumn])
		stem := utils.SanitizeFilename(partRaw)
		if partRaw == "" || stem == "" {
			skippedRows++
			continue
		}

		// Filename override, when present, drives both the destination
		// name and the source-folder search term
		searchTerm := partRaw
		if cfg.FilenameColumn != "" {
			if override := strings.TrimSpace(row[cfg.FilenameColumn]); override != "" {
				searchTerm = override
				if s := utils.SanitizeFilename(override); s != "" {
					stem = s
				}
			}
		}

		for _, col := range cfg.ImageColumns {
			if col == "" {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			task := p.newTask(cfg, models.AssetTypeImage, partRaw, cell, col, rowIndex, stem+".jpg", searchTerm)
			tasks = append(tasks, task)
		}

		if cfg.PDFColumn != "" {
			cell := strings.TrimSpace(row[cfg.PDFColumn])
			if cell != "" {
				task := p.newTask(cfg, models.AssetTypePDF, partRaw, cell, cfg.PDFColumn, rowIndex, stem+".pdf", searchTerm)
				tasks = append(tasks, task)
			}
		}
	}

	p.log.WithFields(logrus.Fields{
		"rows":         len(rows),
		"tasks":        len(tasks),
		"skipped_rows": skippedRows,
	}).Info("Task planning complete")

	return tasks, nil
}

// newTask builds a single task, applying URL validation and the
// per-asset-type destination and network-path settings
func (p *Planner) newTask(cfg *config.DownloadConfig, assetType models.AssetType, partNo, rawURL, column string, rowIndex int, filename, searchTerm string) *models.DownloadTask {
	task := &models.DownloadTask{
		ID:         uuid.New(),
		PartNumber: partNo,
		AssetType:  assetType,
		SourceURL:  rawURL,
		Column:     column,
		RowIndex:   rowIndex,
		Filename:   filename,
		SearchTerm: searchTerm,
		Status:     models.TaskStatusPending,
	}

	switch assetType {
	case models.AssetTypeImage:
		task.DestFolder = cfg.ImageFolder
		task.NetworkPath = joinNetworkPath(cfg.ImageNetworkPath, filename)
	case models.AssetTypePDF:
		task.DestFolder = cfg.PDFFolder
		task.NetworkPath = joinNetworkPath(cfg.PDFNetworkPath, filename)
	}

	task.InvalidURL = validateURL(rawURL)
	return task
}

// validate enforces the fail-fast configuration requirements:
// a part-number column that exists in the row schema, at least one
// selected asset column, and a destination folder for each selected
// asset type.
func (p *Planner) validate(cfg *config.DownloadConfig, rows []models.RowData) error {
	if cfg.PartNumberColumn == "" {
		return fmt.Errorf("%w: part number column is required", utils.ErrConfigValidation)
	}
	if !cfg.WantsImages() && !cfg.WantsPDFs() {
		return fmt.Errorf("%w: select at least one image or PDF URL column", utils.ErrConfigValidation)
	}
	if cfg.WantsImages() && cfg.ImageFolder == "" {
		return fmt.Errorf("%w: image folder is required when an image column is selected", utils.ErrConfigValidation)
	}
	if cfg.WantsPDFs() && cfg.PDFFolder == "" {
		return fmt.Errorf("%w: PDF folder is required when a PDF column is selected", utils.ErrConfigValidation)
	}

	// Column names must exist in the row schema (checked against the
	// first row; all rows share one schema)
	if len(rows) > 0 {
		schema := rows[0]
		checkCols := []string{cfg.PartNumberColumn}
		for _, col := range cfg.ImageColumns {
			if col != "" {
				checkCols = append(checkCols, col)
			}
		}
		if cfg.PDFColumn != "" {
			checkCols = append(checkCols, cfg.PDFColumn)
		}
		if cfg.FilenameColumn != "" {
			checkCols = append(checkCols, cfg.FilenameColumn)
		}
		for _, col := range checkCols {
			if _, ok := schema[col]; !ok {
				return fmt.Errorf("%w: column %q not present in row data", utils.ErrConfigValidation, col)
			}
		}
	}

	return nil
}

// ensureFolders creates the destination folders up front so workers
// never race on directory creation
func ensureFolders(cfg *config.DownloadConfig) error {
	var folders []string
	if cfg.WantsImages() {
		folders = append(folders, cfg.ImageFolder)
	}
	if cfg.WantsPDFs() {
		folders = append(folders, cfg.PDFFolder)
	}
	for _, folder := range folders {
		if err := os.MkdirAll(folder, 0755); err != nil {
			return fmt.Errorf("%w: creating destination folder %q: %v", utils.ErrFilesystem, folder, err)
		}
	}
	return nil
}

// validateURL applies the planner's syntactic check. nil means the URL
// is acceptable for fetching.
func validateURL(rawURL string) error {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", utils.ErrInvalidURL, rawURL, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "ftp", "ftps":
		return nil
	default:
		return fmt.Errorf("%w: %q", utils.ErrUnsupportedScheme, parsed.Scheme)
	}
}

// joinNetworkPath appends the filename to the reporting-only network
// location, preserving the separator style the path already uses
func joinNetworkPath(networkPath, filename string) string {
	if networkPath == "" {
		return ""
	}
	sep := "/"
	if strings.Contains(networkPath, `\`) {
		sep = `\`
	}
	return strings.TrimRight(networkPath, `\/`) + sep + filename
}
