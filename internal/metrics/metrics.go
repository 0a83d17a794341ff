// Package metrics provides the append-only recorder the actors report
// into. The core only writes metric values and never reads them back, so
// any concurrent-safe multi-writer implementation satisfies the contract.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the fire-and-forget metrics sink consumed by the core.
type Recorder interface {
	Record(name string, value float64)
}

// Memory is an in-memory recorder used by tests and the end-of-run report.
type Memory struct {
	mu     sync.Mutex
	values map[string][]float64
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]float64)}
}

func (m *Memory) Record(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = append(m.values[name], value)
}

// Values returns a copy of every recorded value for one metric.
func (m *Memory) Values(name string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.values[name]))
	copy(out, m.values[name])
	return out
}

// Count returns how many values were recorded for one metric.
func (m *Memory) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values[name])
}

// Sum returns the sum of all values recorded for one metric.
func (m *Memory) Sum(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, v := range m.values[name] {
		total += v
	}
	return total
}

// Snapshot returns a copy of everything recorded so far.
func (m *Memory) Snapshot() map[string][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]float64, len(m.values))
	for name, vals := range m.values {
		cp := make([]float64, len(vals))
		copy(cp, vals)
		out[name] = cp
	}
	return out
}

// Prometheus exposes recorded metrics as histograms, lazily registered by
// name. Histograms carry count and sum, which covers both counter-style
// 0/1 signals and timing distributions.
type Prometheus struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	histograms map[string]prometheus.Histogram
}

// NewPrometheus creates a recorder registering against the given
// registerer; nil uses the default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		registerer: reg,
		histograms: make(map[string]prometheus.Histogram),
	}
}

func (p *Prometheus) Record(name string, value float64) {
	p.histogram(name).Observe(value)
}

func (p *Prometheus) histogram(name string) prometheus.Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.histograms[name]; ok {
		return h
	}

	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "classload",
		Name:      sanitizeName(name),
		Help:      "classload recorded metric " + name,
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})
	if err := p.registerer.Register(h); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			h = already.ExistingCollector.(prometheus.Histogram)
		}
	}
	p.histograms[name] = h
	return h
}

// sanitizeName maps arbitrary metric names onto the prometheus charset.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

// Multi fans every record out to several recorders.
type Multi []Recorder

func (m Multi) Record(name string, value float64) {
	for _, r := range m {
		r.Record(name, value)
	}
}

// Discard drops everything. Useful default for optional sinks.
type Discard struct{}

func (Discard) Record(string, float64) {}
