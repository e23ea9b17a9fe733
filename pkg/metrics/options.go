package metrics

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace replaces the "streetwise" metric namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem replaces the "game" metric subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the upper bounds, in milliseconds, shared by the
// action, storage, queue, worker and HTTP latency histograms. Bounds that
// are not strictly increasing are ignored.
func WithLatencyBuckets(ms ...float64) Option {
	return func(m *Manager) {
		if len(ms) == 0 || !slices.IsSorted(ms) || len(slices.Compact(slices.Clone(ms))) != len(ms) {
			return
		}
		m.latencyBuckets = ms
	}
}

// WithLabel attaches a constant label to every series, e.g. the storage
// driver or deployment region.
func WithLabel(key, value string) Option {
	return func(m *Manager) {
		if key != "" {
			m.constLabels[key] = value
		}
	}
}

// WithRegistry registers every collector on r instead of the default one.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}
