package metrics

import (
	"sync/atomic"
	"time"
)

// LatencyHistogram tracks round trips of outbound requests in milliseconds.
type LatencyHistogram struct {
	buckets [8]uint64
	min     uint64
	max     uint64
	count   uint64
	sum     uint64
}

func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{}
}

func (lh *LatencyHistogram) Observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	lh.Record(uint64(d.Milliseconds()))
}

func (lh *LatencyHistogram) Record(latencyMs uint64) {
	atomic.AddUint64(&lh.count, 1)
	atomic.AddUint64(&lh.sum, latencyMs)

	for {
		oldMin := atomic.LoadUint64(&lh.min)
		if atomic.LoadUint64(&lh.count) > 1 && latencyMs >= oldMin {
			break
		}
		if atomic.CompareAndSwapUint64(&lh.min, oldMin, latencyMs) {
			break
		}
	}

	for {
		oldMax := atomic.LoadUint64(&lh.max)
		if latencyMs <= oldMax {
			break
		}
		if atomic.CompareAndSwapUint64(&lh.max, oldMax, latencyMs) {
			break
		}
	}

	atomic.AddUint64(&lh.buckets[lh.getBucketIndex(latencyMs)], 1)
}

func (lh *LatencyHistogram) getBucketIndex(latencyMs uint64) int {
	switch {
	case latencyMs < 50:
		return 0
	case latencyMs < 100:
		return 1
	case latencyMs < 250:
		return 2
	case latencyMs < 500:
		return 3
	case latencyMs < 1000:
		return 4
	case latencyMs < 2500:
		return 5
	case latencyMs < 5000:
		return 6
	default:
		return 7
	}
}

func (lh *LatencyHistogram) GetStats() LatencyStats {
	count := atomic.LoadUint64(&lh.count)
	sum := atomic.LoadUint64(&lh.sum)

	avg := uint64(0)
	if count > 0 {
		avg = sum / count
	}

	return LatencyStats{
		Min:   atomic.LoadUint64(&lh.min),
		Max:   atomic.LoadUint64(&lh.max),
		Avg:   avg,
		Count: count,
	}
}

type LatencyStats struct {
	Min   uint64
	Max   uint64
	Avg   uint64
	Count uint64
}
