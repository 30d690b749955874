package telemetry

import "fmt"

// Config groups logging and metrics settings.
type Config struct {
	Logging LoggingConfig
	Metrics MetricsConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum level (trace, debug, info, warn, error).
	Level string

	// Format is json (default) or console.
	Format string

	// Output is stdout, stderr (default) or a file path.
	Output string

	// EnableCaller adds file:line caller information.
	EnableCaller bool

	// Component is attached to every entry when set.
	Component string
}

// MetricsConfig configures request metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	Enabled bool

	// Namespace prefixes every metric name.
	Namespace string

	// Buckets are the request latency buckets in seconds.
	Buckets []float64
}

// DefaultConfig returns json logging at info level on stderr with metrics
// disabled.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Namespace: "binding",
		},
	}
}

// Validate reports unsupported settings.
func (c Config) Validate() error {
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry: unsupported log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("telemetry: unsupported log format %q", c.Logging.Format)
	}
	for i := 1; i < len(c.Metrics.Buckets); i++ {
		if c.Metrics.Buckets[i] <= c.Metrics.Buckets[i-1] {
			return fmt.Errorf("telemetry: histogram buckets must be increasing")
		}
	}
	return nil
}
