// Package store keeps per-location observation series in memory. The
// acquisition layer owns the data; the engine reads it when computing
// normals and estimates.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Memory holds observation series keyed by grid cell. Safe for concurrent
// use; readers receive copies so forecast computations never observe a
// series mutating under them.
type Memory struct {
	mu     sync.RWMutex
	series map[string]domain.ObservationSeries

	// maxAge prunes samples older than this relative to the newest sample
	// in the same series. Zero disables pruning.
	maxAge time.Duration
}

func NewMemory(maxAge time.Duration) *Memory {
	return &Memory{
		series: make(map[string]domain.ObservationSeries),
		maxAge: maxAge,
	}
}

// Append merges samples into the series for key, keeping time order.
func (m *Memory) Append(key string, samples ...domain.ObservationSample) {
	if len(samples) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s := append(m.series[key], samples...)
	sort.Slice(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })

	if m.maxAge > 0 {
		cutoff := s[len(s)-1].Time.Add(-m.maxAge)
		for len(s) > 0 && s[0].Time.Before(cutoff) {
			s = s[1:]
		}
	}
	m.series[key] = s
}

// Replace swaps the whole series for key, e.g. after a bulk backfill.
func (m *Memory) Replace(key string, series domain.ObservationSeries) {
	sorted := make(domain.ObservationSeries, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[key] = sorted
}

// Series returns a copy of the series for key.
func (m *Memory) Series(key string) (domain.ObservationSeries, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.series[key]
	if !ok {
		return nil, false
	}
	out := make(domain.ObservationSeries, len(s))
	copy(out, s)
	return out, true
}

// Keys lists every grid cell with stored observations.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.series))
	for k := range m.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
