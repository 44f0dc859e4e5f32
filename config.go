package admitsession

import "errors"

// Config defines a public type used by admitsession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Audit   AuditConfig
	Metrics MetricsConfig

	// SubscriptionBuffer is the channel depth handed to each Subscribe
	// caller. Slow subscribers drop snapshots rather than block transitions.
	SubscriptionBuffer int
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by admitsession APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by admitsession APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		SubscriptionBuffer: 8,
	}
}

func validateConfig(cfg Config) error {
	if cfg.Audit.Enabled && cfg.Audit.BufferSize < 0 {
		return errors.New("invalid audit buffer size")
	}
	if cfg.SubscriptionBuffer < 0 {
		return errors.New("invalid subscription buffer")
	}
	return nil
}
