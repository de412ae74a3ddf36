package config

// DatabaseConfig locates the SQLite database holding workflows and gate history.
type DatabaseConfig struct {
	Path string `json:"path"` // File path; "~/" is expanded to the home directory
}

// PortfolioConfig controls portfolio-wide gate evaluation.
type PortfolioConfig struct {
	Concurrency     int  `json:"concurrency,omitempty"`      // Max workflows evaluated at once
	RefreshSeconds  int  `json:"refresh_seconds,omitempty"`  // Dashboard re-evaluation period
	RecordUnchanged bool `json:"record_unchanged,omitempty"` // Append history even when status did not change
}

// RetryConfig configures exponential backoff for store reads, in milliseconds.
type RetryConfig struct {
	InitialIntervalMS int `json:"initial_interval_ms,omitempty"`
	MaxIntervalMS     int `json:"max_interval_ms,omitempty"`
	MaxElapsedMS      int `json:"max_elapsed_ms,omitempty"`
}

// BreakerConfig configures the circuit breaker around store reads.
type BreakerConfig struct {
	ConsecutiveFailures int `json:"consecutive_failures,omitempty"` // Failures before the breaker opens
	OpenTimeoutSeconds  int `json:"open_timeout_seconds,omitempty"` // Time open before probing again
}

// Config is the top-level configuration.
type Config struct {
	Database  DatabaseConfig    `json:"database"`
	Portfolio PortfolioConfig   `json:"portfolio"`
	Retry     RetryConfig       `json:"retry"`
	Breaker   BreakerConfig     `json:"breaker"`
	Templates map[string]string `json:"templates"` // Template name -> YAML file path
}
