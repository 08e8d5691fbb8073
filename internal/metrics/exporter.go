package metrics

import (
	"fmt"
	"strings"
)

// Export renders every histogram in the registry as text lines, one metric per line.
func Export(mr *MetricsRegistry) string {
	var b strings.Builder
	for _, name := range mr.Names() {
		stats := mr.Histogram(name).GetStats()
		fmt.Fprintf(&b, "%s_count %d\n%s_latency_min_ms %d\n%s_latency_max_ms %d\n%s_latency_avg_ms %d\n",
			name, stats.Count, name, stats.Min, name, stats.Max, name, stats.Avg)
	}
	return b.String()
}
