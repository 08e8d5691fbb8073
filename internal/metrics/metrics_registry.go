package metrics

import (
	"sort"
	"sync"
)

// MetricsRegistry hands out one latency histogram per outbound service.
type MetricsRegistry struct {
	mu         sync.RWMutex
	histograms map[string]*LatencyHistogram
}

func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		histograms: make(map[string]*LatencyHistogram),
	}
}

// Histogram returns the histogram for name, creating it on first use.
func (mr *MetricsRegistry) Histogram(name string) *LatencyHistogram {
	mr.mu.RLock()
	h, ok := mr.histograms[name]
	mr.mu.RUnlock()
	if ok {
		return h
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()
	if h, ok = mr.histograms[name]; ok {
		return h
	}
	h = NewLatencyHistogram()
	mr.histograms[name] = h
	return h
}

func (mr *MetricsRegistry) Names() []string {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	names := make([]string, 0, len(mr.histograms))
	for name := range mr.histograms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var GlobalRegistry *MetricsRegistry

func InitGlobalRegistry() {
	GlobalRegistry = NewMetricsRegistry()
}

func GetRegistry() *MetricsRegistry {
	if GlobalRegistry == nil {
		InitGlobalRegistry()
	}
	return GlobalRegistry
}
