// Package metrics keeps in-process latency windows and connection pool
// snapshots for the diagnostic endpoints. Prometheus export lives in the
// metrics adapter.
package metrics

import (
	"slices"
	"sync"
	"time"
)

// LatencyWindow keeps the most recent samples in a ring buffer.
type LatencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
	total   int64
}

func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = 1000
	}
	return &LatencyWindow{samples: make([]time.Duration, size)}
}

func (w *LatencyWindow) Record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = d
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}
	w.total++
}

// LatencyStats summarizes the current window.
type LatencyStats struct {
	Count   int64   `json:"count"`
	Samples int     `json:"sample_size"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
	AvgMs   float64 `json:"avg_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P95Ms   float64 `json:"p95_ms"`
	P99Ms   float64 `json:"p99_ms"`
}

func (w *LatencyWindow) Stats() LatencyStats {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	sorted := slices.Clone(w.samples[:n])
	total := w.total
	w.mu.Unlock()

	if n == 0 {
		return LatencyStats{Count: total}
	}
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return LatencyStats{
		Count:   total,
		Samples: n,
		MinMs:   ms(sorted[0]),
		MaxMs:   ms(sorted[n-1]),
		AvgMs:   ms(sum / time.Duration(n)),
		P50Ms:   ms(percentile(sorted, 0.50)),
		P95Ms:   ms(percentile(sorted, 0.95)),
		P99Ms:   ms(percentile(sorted, 0.99)),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	return sorted[int(float64(len(sorted)-1)*p)]
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// LatencyRegistry holds one window per operation name.
type LatencyRegistry struct {
	mu      sync.RWMutex
	windows map[string]*LatencyWindow
	size    int
}

func NewLatencyRegistry(windowSize int) *LatencyRegistry {
	return &LatencyRegistry{windows: make(map[string]*LatencyWindow), size: windowSize}
}

func (r *LatencyRegistry) Record(op string, d time.Duration) {
	r.mu.RLock()
	w, ok := r.windows[op]
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		if w, ok = r.windows[op]; !ok {
			w = NewLatencyWindow(r.size)
			r.windows[op] = w
		}
		r.mu.Unlock()
	}
	w.Record(d)
}

func (r *LatencyRegistry) AllStats() map[string]LatencyStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]LatencyStats, len(r.windows))
	for op, w := range r.windows {
		out[op] = w.Stats()
	}
	return out
}
