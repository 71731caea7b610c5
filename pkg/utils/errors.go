package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed       = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError   = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError   = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError    = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrInvalidURL        = errors.New("invalid URL")                      // Malformed or empty URL cell
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")           // Scheme outside http/https/ftp/ftps
	ErrNetworkRead       = errors.New("network read error")               // Body stream interrupted mid-transfer
	ErrFilesystem        = errors.New("filesystem error")                 // Wraps os errors
	ErrRequestCreation   = errors.New("failed to create HTTP request")
	ErrConfigValidation  = errors.New("configuration validation error")
	ErrProcessing        = errors.New("background processing error") // Non-fatal to the task
	ErrRunActive         = errors.New("a download run is already active")
	ErrCancelled         = errors.New("download cancelled")
)

// CategorizeError maps an error to a predefined category string for
// logging and report records.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrRetryFailed):
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrNetworkRead) {
			return "RetryFailed_NetworkRead"
		}
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") {
			return "RetryFailed_NetworkTimeout"
		}
		if strings.Contains(errMsg, "connection refused") {
			return "RetryFailed_ConnectionRefused"
		}
		if strings.Contains(errMsg, "no such host") {
			return "RetryFailed_DNSLookup"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "RetryFailed_NetworkTimeout"
		}
		return "RetryFailed_NetworkOther"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 401 ") {
			return "HTTP_401"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrNetworkRead):
		return "Network_ReadError"
	case errors.Is(err, ErrUnsupportedScheme):
		return "URL_UnsupportedScheme"
	case errors.Is(err, ErrInvalidURL):
		return "URL_Invalid"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrProcessing):
		return "Processing_Failed"
	case errors.Is(err, ErrCancelled):
		return "System_Cancelled"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}

// IsRetryable reports whether an error represents a transient condition
// worth another fetch attempt (network failures, interrupted body reads,
// and 5xx responses).
// Context cancellation, 4xx responses, bad URLs, and filesystem errors
// are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrClientHTTPError) || errors.Is(err, ErrOtherHTTPError) ||
		errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrUnsupportedScheme) ||
		errors.Is(err, ErrFilesystem) || errors.Is(err, ErrRequestCreation) {
		return false
	}
	return true
}
