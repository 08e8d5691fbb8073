package dispatcher

import (
	"math"
	"strconv"
	"sync"
	"time"
)

type RateLimitBucket struct {
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RateLimitMonitor remembers the last rate-limit headers seen per route.
type RateLimitMonitor struct {
	mu      sync.RWMutex
	buckets map[string]*RateLimitBucket
}

func NewRateLimitMonitor() *RateLimitMonitor {
	return &RateLimitMonitor{
		buckets: make(map[string]*RateLimitBucket),
	}
}

func (rlm *RateLimitMonitor) CanExecute(route string, now time.Time) bool {
	rlm.mu.RLock()
	bucket, exists := rlm.buckets[route]
	rlm.mu.RUnlock()

	if !exists {
		return true
	}

	if now.After(bucket.ResetAt) {
		return true
	}

	return bucket.Remaining > 0
}

// UpdateFromResponse records X-RateLimit-* headers. Reset-After wins over the
// absolute Reset timestamp because it does not depend on clock skew.
func (rlm *RateLimitMonitor) UpdateFromResponse(route string, resp *Response, now time.Time) {
	remaining := resp.Header("X-RateLimit-Remaining")
	limit := resp.Header("X-RateLimit-Limit")
	reset := resp.Header("X-RateLimit-Reset")
	resetAfter := resp.Header("X-RateLimit-Reset-After")

	if remaining == "" && limit == "" && reset == "" && resetAfter == "" {
		return
	}

	bucket := &RateLimitBucket{}

	if remaining != "" {
		bucket.Remaining, _ = strconv.Atoi(remaining)
	}
	if limit != "" {
		bucket.Limit, _ = strconv.Atoi(limit)
	}
	if resetAfter != "" {
		if secs, err := strconv.ParseFloat(resetAfter, 64); err == nil {
			bucket.ResetAt = now.Add(time.Duration(secs * float64(time.Second)))
		}
	} else if reset != "" {
		if secs, err := strconv.ParseFloat(reset, 64); err == nil {
			whole, frac := math.Modf(secs)
			bucket.ResetAt = time.Unix(int64(whole), int64(frac*1e9))
		}
	}

	rlm.mu.Lock()
	rlm.buckets[route] = bucket
	rlm.mu.Unlock()
}

func (rlm *RateLimitMonitor) GetBucket(route string) *RateLimitBucket {
	rlm.mu.RLock()
	defer rlm.mu.RUnlock()

	return rlm.buckets[route]
}
