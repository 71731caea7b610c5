package resolve

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"asset-downloader/pkg/models"
	"asset-downloader/pkg/utils"
)

// Image extensions tried in priority order when matching files in the
// source folder
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// Resolver short-circuits download tasks by locating a matching file
// already present in a local source folder. A hit copies the file into
// the destination folder and the task never touches the network.
type Resolver struct {
	sourceFolder string
	log          *logrus.Logger
}

// NewResolver creates a Resolver for the given source folder. An empty
// folder means resolution is disabled and every lookup misses.
func NewResolver(sourceFolder string, log *logrus.Logger) *Resolver {
	return &Resolver{sourceFolder: sourceFolder, log: log}
}

// Resolve searches the source folder (non-recursive) for a file whose
// base name matches the task's search term, case-insensitively, trying
// image extensions in priority order. On a match the file is copied to
// the task's destination under the task's filename and (true, nil) is
// returned. (false, nil) means no match; the caller falls through to
// the network fetch.
func (r *Resolver) Resolve(task *models.DownloadTask) (bool, error) {
	if r.sourceFolder == "" {
		return false, nil
	}

	info, statErr := os.Stat(r.sourceFolder)
	if statErr != nil || !info.IsDir() {
		r.log.Warnf("Source folder %q not accessible, skipping local resolution: %v", r.sourceFolder, statErr)
		return false, nil
	}

	entries, readErr := os.ReadDir(r.sourceFolder)
	if readErr != nil {
		return false, fmt.Errorf("%w: reading source folder %q: %v", utils.ErrFilesystem, r.sourceFolder, readErr)
	}

	match := r.findMatch(entries, task)
	if match == "" {
		return false, nil
	}

	srcPath := filepath.Join(r.sourceFolder, match)
	destPath := task.DestPath()
	if err := copyFile(srcPath, destPath); err != nil {
		return false, err
	}

	r.log.WithFields(logrus.Fields{
		"part_no": task.PartNumber,
		"source":  srcPath,
		"dest":    destPath,
	}).Debug("Task resolved from source folder")
	return true, nil
}

// findMatch returns the name of the best matching regular file, or ""
func (r *Resolver) findMatch(entries []os.DirEntry, task *models.DownloadTask) string {
	wantStem := strings.ToLower(strings.TrimSpace(task.SearchTerm))
	if wantStem == "" {
		wantStem = strings.ToLower(strings.TrimSpace(task.PartNumber))
	}
	if wantStem == "" {
		return ""
	}

	// Also accept the sanitized destination stem so a source folder
	// populated from a prior run still hits
	altStem := strings.ToLower(strings.TrimSuffix(task.Filename, filepath.Ext(task.Filename)))

	for _, ext := range imageExtensions {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := strings.ToLower(entry.Name())
			if !strings.HasSuffix(name, ext) {
				continue
			}
			stem := strings.TrimSuffix(name, ext)
			if stem == wantStem || (altStem != "" && stem == altStem) {
				return entry.Name()
			}
		}
	}
	return ""
}

// copyFile copies src to dest via a temp file in the destination folder
// followed by a rename, so a partially copied file is never visible
// under the final name
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: opening source file %q: %v", utils.ErrFilesystem, src, err)
	}
	defer in.Close()

	destFolder := filepath.Dir(dest)
	tmp, err := os.CreateTemp(destFolder, "."+filepath.Base(dest)+".copy-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file in %q: %v", utils.ErrFilesystem, destFolder, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: copying %q: %v", utils.ErrFilesystem, src, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing %q: %v", utils.ErrFilesystem, tmpPath, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming %q to %q: %v", utils.ErrFilesystem, tmpPath, dest, err)
	}
	return nil
}
