package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"asset-downloader/pkg/utils"
)

// Result describes a completed network download
type Result struct {
	StatusCode  int
	ContentType string
	Bytes       int64
}

// Downloader streams assets to disk through a retrying Fetcher. Data is
// written to a temporary file in the destination folder and atomically
// renamed into place on success, so a partially written file is never
// visible under the final name.
type Downloader struct {
	fetcher *Fetcher
	log     *logrus.Logger
}

// NewDownloader creates a new Downloader instance
func NewDownloader(fetcher *Fetcher, log *logrus.Logger) *Downloader {
	return &Downloader{fetcher: fetcher, log: log}
}

// Download fetches rawURL and places the body at destFolder/filename.
// onAttempt, when non-nil, fires at the start of each network attempt.
// Any failure removes the partial temp file before returning.
func (d *Downloader) Download(ctx context.Context, rawURL, destFolder, filename string, onAttempt func(attempt int)) (Result, error) {
	var res Result

	parsed, parseErr := url.ParseRequestURI(rawURL)
	if parseErr != nil {
		return res, fmt.Errorf("%w: %q: %v", utils.ErrInvalidURL, rawURL, parseErr)
	}
	switch parsed.Scheme {
	case "http", "https":
		// Fetchable
	case "ftp", "ftps":
		// Accepted by planning-time validation but not serviced by the
		// HTTP transport
		return res, fmt.Errorf("%w: %s not serviced by HTTP transport", utils.ErrUnsupportedScheme, parsed.Scheme)
	default:
		return res, fmt.Errorf("%w: %q", utils.ErrUnsupportedScheme, parsed.Scheme)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if reqErr != nil {
		return res, fmt.Errorf("%w: %v", utils.ErrRequestCreation, reqErr)
	}
	req.Header.Set("User-Agent", d.fetcher.cfg.UserAgent)

	destPath := filepath.Join(destFolder, filename)
	dlLog := d.log.WithFields(logrus.Fields{"url": rawURL, "dest": destPath})

	// Streaming runs inside the fetcher's retry loop, so a connection
	// dropped or timing out mid-body gets a fresh attempt just like a
	// failure before the response headers.
	consume := func(resp *http.Response) error {
		defer resp.Body.Close()
		res.StatusCode = resp.StatusCode
		res.ContentType = resp.Header.Get("Content-Type")

		tmpFile, tmpErr := os.CreateTemp(destFolder, "."+filename+".part-*")
		if tmpErr != nil {
			return fmt.Errorf("%w: creating temp file in %q: %v", utils.ErrFilesystem, destFolder, tmpErr)
		}
		tmpPath := tmpFile.Name()

		written, copyErr := io.Copy(tmpFile, resp.Body)
		closeErr := tmpFile.Close()

		if copyErr != nil {
			os.Remove(tmpPath)
			if ctx.Err() != nil {
				// In-flight abort: surfaced as the context error so the caller
				// classifies it as cancellation, not a fetch failure
				dlLog.Warnf("Body stream aborted after %d bytes: %v", written, copyErr)
				return ctx.Err()
			}
			var netErr net.Error
			if errors.Is(copyErr, io.ErrUnexpectedEOF) || errors.Is(copyErr, context.DeadlineExceeded) || errors.As(copyErr, &netErr) {
				// Read failure mid-body (timeout or dropped connection), as
				// opposed to a local write failure
				return fmt.Errorf("%w: after %d bytes: %w", utils.ErrNetworkRead, written, copyErr)
			}
			return fmt.Errorf("%w: streaming body to %q (wrote %d bytes): %v", utils.ErrFilesystem, tmpPath, written, copyErr)
		}
		if closeErr != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("%w: closing %q: %v", utils.ErrFilesystem, tmpPath, closeErr)
		}

		// Atomic placement; overwrites any prior file of the same name
		if renameErr := os.Rename(tmpPath, destPath); renameErr != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("%w: renaming %q to %q: %v", utils.ErrFilesystem, tmpPath, destPath, renameErr)
		}
		res.Bytes = written
		return nil
	}

	resp, fetchErr := d.fetcher.FetchAndConsume(req, ctx, onAttempt, consume)
	if fetchErr != nil {
		if resp != nil {
			// Terminal status (4xx or other); the body was never consumed
			res.StatusCode = resp.StatusCode
			drainAndClose(resp)
		}
		return res, fetchErr
	}

	dlLog.Debugf("Saved %d bytes", res.Bytes)
	return res, nil
}
