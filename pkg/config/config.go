package config

import "time"

// BackgroundMethod selects the background-removal strategy applied to
// downloaded images
type BackgroundMethod string

const (
	MethodSmartDetect   BackgroundMethod = "smart_detect"   // Border sampling + dominant color replacement
	MethodAIRemoval     BackgroundMethod = "ai_removal"     // Threshold-mask foreground isolation
	MethodColorReplace  BackgroundMethod = "color_replace"  // Fixed color-range replacement
	MethodEdgeDetection BackgroundMethod = "edge_detection" // Edge-response bounding mask
)

// IsValid returns true if the method is a known strategy
func (m BackgroundMethod) IsValid() bool {
	switch m {
	case MethodSmartDetect, MethodAIRemoval, MethodColorReplace, MethodEdgeDetection:
		return true
	}
	return false
}

// Worker pool bounds enforced during validation
const (
	MinWorkers = 1
	MaxWorkers = 20
)

// BackgroundConfig holds the optional image post-processing settings
type BackgroundConfig struct {
	Enabled       bool             `yaml:"enabled"`
	Method        BackgroundMethod `yaml:"method,omitempty"`
	Quality       int              `yaml:"quality,omitempty"`        // JPEG quality, 60-100
	EdgeThreshold int              `yaml:"edge_threshold,omitempty"` // Edge/color distance threshold, 10-100
}

// FetchConfig holds per-run network retry and timeout policy
type FetchConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"` // TCP dial timeout
	ReadTimeout    time.Duration `yaml:"read_timeout,omitempty"`    // Overall response read timeout
	RetryAttempts  int           `yaml:"retry_attempts,omitempty"`  // Retries after the initial attempt
	RetryDelay     time.Duration `yaml:"retry_delay,omitempty"`     // Fixed delay between attempts
	UserAgent      string        `yaml:"user_agent,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client transport
type HTTPClientConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host,omitempty"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout,omitempty"`
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout,omitempty"`
	DialerKeepAlive     time.Duration `yaml:"dialer_keep_alive,omitempty"`
}

// DownloadConfig is the complete, immutable configuration for one
// download run. Column names refer to the row schema supplied alongside
// it; folders are local destinations. Network path strings are recorded
// on report records only and never used for I/O.
type DownloadConfig struct {
	PartNumberColumn string   `yaml:"part_number_column"`
	ImageColumns     []string `yaml:"image_columns,omitempty"`
	PDFColumn        string   `yaml:"pdf_column,omitempty"`
	FilenameColumn   string   `yaml:"filename_column,omitempty"`

	ImageFolder       string `yaml:"image_folder,omitempty"`
	PDFFolder         string `yaml:"pdf_folder,omitempty"`
	SourceImageFolder string `yaml:"source_image_folder,omitempty"`

	ImageNetworkPath string `yaml:"image_network_path,omitempty"`
	PDFNetworkPath   string `yaml:"pdf_network_path,omitempty"`

	Workers int `yaml:"workers"`

	Background         BackgroundConfig `yaml:"background_processing,omitempty"`
	Fetch              FetchConfig      `yaml:"fetch,omitempty"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// Default returns a DownloadConfig pre-seeded with the fetch policy
// defaults. Unmarshal a YAML document over it so an explicit zero
// (retry_attempts: 0) survives; Validate applied afterwards cannot tell
// zero from unset and only clamps out-of-range values.
func Default() *DownloadConfig {
	return &DownloadConfig{
		Workers: 5,
		Fetch: FetchConfig{
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    30 * time.Second,
			RetryAttempts:  3,
			RetryDelay:     2 * time.Second,
		},
	}
}

// WantsImages reports whether any image URL column is selected
func (c *DownloadConfig) WantsImages() bool {
	for _, col := range c.ImageColumns {
		if col != "" {
			return true
		}
	}
	return false
}

// WantsPDFs reports whether a PDF URL column is selected
func (c *DownloadConfig) WantsPDFs() bool {
	return c.PDFColumn != ""
}
