package pingtps

import (
	"math"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/metrics"
)

const (
	latencySamples      = 20
	latencyAverageCount = 5
	keepAliveTimeout    = 15 * time.Second
	maxPendingKeepAlive = 40

	sourceKeepAlive    = "keep-alive"
	sourceKeepAliveAvg = "keep-alive avg"
)

// LatencyTracker matches server keep-alives with the client's echo.
// Pending ids keep insertion order so pruning drops the oldest first.
type LatencyTracker struct {
	order  []uint64
	sentAt map[uint64]time.Time

	window *metrics.RollingWindow

	lastMs     int
	lastSource string
	hasLast    bool
}

func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{
		sentAt: make(map[uint64]time.Time),
		window: metrics.NewRollingWindow(latencySamples),
	}
}

// ServerKeepAlive notes that the server sent id at now. A repeated id keeps
// its place in line and takes the new timestamp.
func (l *LatencyTracker) ServerKeepAlive(id uint64, now time.Time) {
	if _, exists := l.sentAt[id]; !exists {
		l.order = append(l.order, id)
	}
	l.sentAt[id] = now
	l.prune(now)
}

// ClientKeepAlive completes id and records the round trip.
func (l *LatencyTracker) ClientKeepAlive(id uint64, now time.Time) (int, bool) {
	started, ok := l.sentAt[id]
	if !ok {
		return 0, false
	}
	l.remove(id)

	ms := int(math.Round(float64(now.Sub(started)) / float64(time.Millisecond)))
	if ms < 0 {
		ms = 0
	}
	l.window.Push(float64(ms))
	l.setLast(ms, sourceKeepAlive)
	return ms, true
}

func (l *LatencyTracker) prune(now time.Time) {
	expired := 0
	for _, id := range l.order {
		if now.Sub(l.sentAt[id]) > keepAliveTimeout {
			delete(l.sentAt, id)
			expired++
			continue
		}
		break
	}
	l.order = l.order[expired:]

	for len(l.order) > maxPendingKeepAlive {
		delete(l.sentAt, l.order[0])
		l.order = l.order[1:]
	}
}

func (l *LatencyTracker) remove(id uint64) {
	delete(l.sentAt, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

// Estimate is the rounded mean of the most recent samples, up to five.
func (l *LatencyTracker) Estimate() (int, bool) {
	mean, ok := l.window.MeanLast(latencyAverageCount)
	if !ok {
		return 0, false
	}
	return int(math.Round(mean)), true
}

// Label names where Estimate came from.
func (l *LatencyTracker) Label() string {
	if l.window.Len() >= latencyAverageCount {
		return sourceKeepAliveAvg
	}
	return sourceKeepAlive
}

func (l *LatencyTracker) Last() (int, string, bool) {
	return l.lastMs, l.lastSource, l.hasLast
}

func (l *LatencyTracker) setLast(ms int, source string) {
	l.lastMs = ms
	l.lastSource = source
	l.hasLast = true
}

func (l *LatencyTracker) Pending() int {
	return len(l.order)
}

func (l *LatencyTracker) Reset() {
	l.order = nil
	l.sentAt = make(map[uint64]time.Time)
	l.window.Reset()
	l.lastMs, l.lastSource, l.hasLast = 0, "", false
}
