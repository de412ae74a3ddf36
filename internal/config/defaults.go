package config

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "~/.deliverygate/gates.db",
		},
		Portfolio: PortfolioConfig{
			Concurrency:    4,
			RefreshSeconds: 30,
		},
		Retry: RetryConfig{
			InitialIntervalMS: 100,
			MaxIntervalMS:     5000,
			MaxElapsedMS:      30000,
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			OpenTimeoutSeconds:  30,
		},
		Templates: map[string]string{},
	}
}
