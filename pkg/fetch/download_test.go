package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"asset-downloader/pkg/utils"
)

func testDownloader(t *testing.T, retryAttempts int) *Downloader {
	t.Helper()
	log := testLogger()
	fetcher := NewFetcher(testClient(), testFetchConfig(retryAttempts), log)
	return NewDownloader(fetcher, log)
}

func TestDownload_Success(t *testing.T) {
	body := "fake image bytes"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	dest := t.TempDir()
	d := testDownloader(t, 2)

	res, err := d.Download(context.Background(), server.URL, dest, "ABM123.jpg", nil)
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}
	if res.ContentType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", res.ContentType)
	}
	if res.Bytes != int64(len(body)) {
		t.Errorf("expected %d bytes, got %d", len(body), res.Bytes)
	}

	data, readErr := os.ReadFile(filepath.Join(dest, "ABM123.jpg"))
	if readErr != nil {
		t.Fatalf("reading downloaded file: %v", readErr)
	}
	if string(data) != body {
		t.Errorf("file content mismatch: %q", string(data))
	}

	assertNoTempFiles(t, dest)
}

func TestDownload_OverwritesExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new content"))
	}))
	t.Cleanup(server.Close)

	dest := t.TempDir()
	final := filepath.Join(dest, "PN1.pdf")
	if err := os.WriteFile(final, []byte("old content"), 0644); err != nil {
		t.Fatal(err)
	}

	d := testDownloader(t, 0)
	if _, err := d.Download(context.Background(), server.URL, dest, "PN1.pdf", nil); err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	data, _ := os.ReadFile(final)
	if string(data) != "new content" {
		t.Errorf("expected overwrite, got %q", string(data))
	}
}

func TestDownload_NotFound_NoFile(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusNotFound})

	dest := t.TempDir()
	d := testDownloader(t, 3)

	res, err := d.Download(context.Background(), server.URL, dest, "PN2.jpg", nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !errors.Is(err, utils.ErrClientHTTPError) {
		t.Errorf("expected ErrClientHTTPError, got: %v", err)
	}
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("expected recorded status 404, got %d", res.StatusCode)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}

	if _, statErr := os.Stat(filepath.Join(dest, "PN2.jpg")); !os.IsNotExist(statErr) {
		t.Error("expected no destination file after failure")
	}
	assertNoTempFiles(t, dest)
}

func TestDownload_RetryExhaustion_CleansTemp(t *testing.T) {
	server, attempts := mockServer(t, []int{500})

	dest := t.TempDir()
	d := testDownloader(t, 2)

	_, err := d.Download(context.Background(), server.URL, dest, "PN3.jpg", nil)
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if !errors.Is(err, utils.ErrRetryFailed) {
		t.Errorf("expected ErrRetryFailed, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	assertNoTempFiles(t, dest)
}

// truncatingServer declares the full Content-Length but drops the
// connection after a short prefix for the first `failures` requests,
// serving the complete body afterwards.
func truncatingServer(t *testing.T, failures int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if int(n) <= failures {
			w.Write([]byte(body[:3]))
			w.(http.Flusher).Flush()
			panic(http.ErrAbortHandler)
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestDownload_MidBodyDrop_RetriesThenSucceeds(t *testing.T) {
	body := "complete asset payload"
	server, hits := truncatingServer(t, 2, body)

	dest := t.TempDir()
	d := testDownloader(t, 2)

	res, err := d.Download(context.Background(), server.URL, dest, "PN6.jpg", nil)
	if err != nil {
		t.Fatalf("expected success after mid-body retries, got: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	if res.Bytes != int64(len(body)) {
		t.Errorf("expected %d bytes, got %d", len(body), res.Bytes)
	}

	data, readErr := os.ReadFile(filepath.Join(dest, "PN6.jpg"))
	if readErr != nil {
		t.Fatalf("reading downloaded file: %v", readErr)
	}
	if string(data) != body {
		t.Errorf("file content mismatch: %q", string(data))
	}
	assertNoTempFiles(t, dest)
}

func TestDownload_MidBodyDrop_ExhaustsRetries(t *testing.T) {
	server, hits := truncatingServer(t, 100, "never fully served")

	dest := t.TempDir()
	d := testDownloader(t, 2)

	_, err := d.Download(context.Background(), server.URL, dest, "PN7.jpg", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, utils.ErrRetryFailed) {
		t.Errorf("expected ErrRetryFailed, got: %v", err)
	}
	if !errors.Is(err, utils.ErrNetworkRead) {
		t.Errorf("expected ErrNetworkRead in chain, got: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	if got := utils.CategorizeError(err); got != "RetryFailed_NetworkRead" {
		t.Errorf("expected category RetryFailed_NetworkRead, got %q", got)
	}

	if _, statErr := os.Stat(filepath.Join(dest, "PN7.jpg")); !os.IsNotExist(statErr) {
		t.Error("expected no destination file after failure")
	}
	assertNoTempFiles(t, dest)
}

func TestDownload_UnsupportedScheme(t *testing.T) {
	dest := t.TempDir()
	d := testDownloader(t, 3)

	_, err := d.Download(context.Background(), "ftp://example.com/file.pdf", dest, "PN4.pdf", nil)
	if err == nil {
		t.Fatal("expected error for ftp URL")
	}
	if !errors.Is(err, utils.ErrUnsupportedScheme) {
		t.Errorf("expected ErrUnsupportedScheme, got: %v", err)
	}
}

func TestDownload_MalformedURL(t *testing.T) {
	dest := t.TempDir()
	d := testDownloader(t, 3)

	_, err := d.Download(context.Background(), "not a url", dest, "PN5.jpg", nil)
	if err == nil {
		t.Fatal("expected error for malformed URL")
	}
	if !errors.Is(err, utils.ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got: %v", err)
	}
}

// assertNoTempFiles fails if any .part temp file remains in dir
func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".part-") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}
