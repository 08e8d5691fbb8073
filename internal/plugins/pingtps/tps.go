package pingtps

import (
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/metrics"
)

const (
	maxTPS     = 20.0
	tpsSamples = 20
)

// TPSEstimator derives ticks per second from successive world age updates.
type TPSEstimator struct {
	window  *metrics.RollingWindow
	lastAge uint64
	lastAt  time.Time
	seen    bool
}

func NewTPSEstimator() *TPSEstimator {
	return &TPSEstimator{window: metrics.NewRollingWindow(tpsSamples)}
}

// Observe records the world age seen at time at. Updates that do not move
// both the age and the clock forward only reset the baseline.
func (e *TPSEstimator) Observe(age uint64, at time.Time) {
	if e.seen {
		dAge := int64(age - e.lastAge)
		dMs := float64(at.Sub(e.lastAt)) / float64(time.Millisecond)
		if dAge > 0 && dMs > 0 {
			e.window.Push(clamp(float64(dAge)/(dMs/1000), 0, maxTPS))
		}
	}
	e.lastAge = age
	e.lastAt = at
	e.seen = true
}

// TPS is the mean of the window, false until a sample exists.
func (e *TPSEstimator) TPS() (float64, bool) {
	mean, ok := e.window.Mean()
	if !ok {
		return 0, false
	}
	return clamp(mean, 0, maxTPS), true
}

func (e *TPSEstimator) Samples() int {
	return e.window.Len()
}

func (e *TPSEstimator) Reset() {
	e.window.Reset()
	e.seen = false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
