package admitsession

import "sync/atomic"

// MetricID defines a public type used by admitsession APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess is an exported constant or variable used by the session core.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure is an exported constant or variable used by the session core.
	MetricLoginFailure
	// MetricRestoreSuccess counts restores that settled cleanly, including an
	// empty slot settling to anonymous. Together with MetricRestoreFailure it
	// accounts for every restore attempt.
	MetricRestoreSuccess
	// MetricRestoreFailure is an exported constant or variable used by the session core.
	MetricRestoreFailure
	// MetricLogout is an exported constant or variable used by the session core.
	MetricLogout
	// MetricSlotError is an exported constant or variable used by the session core.
	MetricSlotError
	// MetricSubscriberDropped is an exported constant or variable used by the session core.
	MetricSubscriberDropped

	metricCount
)

var metricNames = map[MetricID]string{
	MetricLoginSuccess:      "login_success",
	MetricLoginFailure:      "login_failure",
	MetricRestoreSuccess:    "restore_success",
	MetricRestoreFailure:    "restore_failure",
	MetricLogout:            "logout",
	MetricSlotError:         "slot_error",
	MetricSubscriberDropped: "subscriber_dropped",
}

// String returns the stable metric name, or "unknown".
func (id MetricID) String() string {
	if name, ok := metricNames[id]; ok {
		return name
	}
	return "unknown"
}

// Metrics is a lock-free counter registry for session transitions.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc increments a counter. Safe on a nil receiver (metrics disabled).
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies every counter. Safe on a nil receiver.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricCount))}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
