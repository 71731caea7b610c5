package config

import (
	"fmt"
	"time"

	"asset-downloader/pkg/utils"
)

// Validate checks DownloadConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults and clamp ranges.
// Cross-field requirements (columns present in the row schema, folders
// set for selected asset types) are enforced by the task planner.
func (c *DownloadConfig) Validate() (warnings []string, err error) {
	// Workers clamped to the supported pool size
	if c.Workers <= 0 {
		warnings = append(warnings, fmt.Sprintf("workers not set, defaulting to %d", 5))
		c.Workers = 5
	}
	if c.Workers < MinWorkers {
		warnings = append(warnings, fmt.Sprintf("workers below minimum, clamping to %d", MinWorkers))
		c.Workers = MinWorkers
	}
	if c.Workers > MaxWorkers {
		warnings = append(warnings, fmt.Sprintf("workers above maximum, clamping to %d", MaxWorkers))
		c.Workers = MaxWorkers
	}

	// Background processing settings
	if c.Background.Enabled {
		if c.Background.Method == "" {
			c.Background.Method = MethodSmartDetect
		}
		if !c.Background.Method.IsValid() {
			return warnings, fmt.Errorf("%w: unknown background processing method %q",
				utils.ErrConfigValidation, c.Background.Method)
		}
	}
	if c.Background.Quality == 0 {
		c.Background.Quality = 95
	}
	if c.Background.Quality < 60 {
		warnings = append(warnings, "background quality below 60, clamping to 60")
		c.Background.Quality = 60
	}
	if c.Background.Quality > 100 {
		warnings = append(warnings, "background quality above 100, clamping to 100")
		c.Background.Quality = 100
	}
	if c.Background.EdgeThreshold == 0 {
		c.Background.EdgeThreshold = 30
	}
	if c.Background.EdgeThreshold < 10 {
		warnings = append(warnings, "edge_threshold below 10, clamping to 10")
		c.Background.EdgeThreshold = 10
	}
	if c.Background.EdgeThreshold > 100 {
		warnings = append(warnings, "edge_threshold above 100, clamping to 100")
		c.Background.EdgeThreshold = 100
	}

	// Fetch policy defaults
	if c.Fetch.ConnectTimeout <= 0 {
		c.Fetch.ConnectTimeout = 5 * time.Second
	}
	if c.Fetch.ReadTimeout <= 0 {
		c.Fetch.ReadTimeout = 30 * time.Second
	}
	// Zero retry attempts is a valid explicit choice; only negatives are
	// corrected. Defaults for unset fields come from Default() before the
	// YAML overlay.
	if c.Fetch.RetryAttempts < 0 {
		warnings = append(warnings, "retry_attempts cannot be negative, setting to 0")
		c.Fetch.RetryAttempts = 0
	}
	if c.Fetch.RetryDelay <= 0 {
		c.Fetch.RetryDelay = 2 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}

	// HTTP client defaults
	if c.HTTPClientSettings.MaxIdleConns <= 0 {
		c.HTTPClientSettings.MaxIdleConns = 100
	}
	if c.HTTPClientSettings.MaxIdleConnsPerHost <= 0 {
		c.HTTPClientSettings.MaxIdleConnsPerHost = 4
	}
	if c.HTTPClientSettings.IdleConnTimeout <= 0 {
		c.HTTPClientSettings.IdleConnTimeout = 90 * time.Second
	}
	if c.HTTPClientSettings.TLSHandshakeTimeout <= 0 {
		c.HTTPClientSettings.TLSHandshakeTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.DialerKeepAlive <= 0 {
		c.HTTPClientSettings.DialerKeepAlive = 30 * time.Second
	}

	return warnings, nil
}
