package ingest

import (
	"sync/atomic"
	"time"
)

// HeartbeatMonitor tracks keep-alive round trips of the loopback server.
// Writes happen on the event loop; reads may come from the watchdog.
type HeartbeatMonitor struct {
	lastHeartbeatSent int64
	lastHeartbeatACK  int64
	outstanding       uint32
	missedBeats       uint32
	isHealthy         uint32
}

func NewHeartbeatMonitor() *HeartbeatMonitor {
	return &HeartbeatMonitor{
		isHealthy: 1,
	}
}

// RecordSent notes a new keep-alive. A previous one that was never answered
// counts as missed.
func (hm *HeartbeatMonitor) RecordSent(at time.Time) {
	if atomic.SwapUint32(&hm.outstanding, 1) == 1 {
		hm.RecordMissed()
	}
	atomic.StoreInt64(&hm.lastHeartbeatSent, at.UnixNano())
}

func (hm *HeartbeatMonitor) RecordACK(at time.Time) {
	atomic.StoreInt64(&hm.lastHeartbeatACK, at.UnixNano())
	atomic.StoreUint32(&hm.outstanding, 0)
	atomic.StoreUint32(&hm.missedBeats, 0)
	atomic.StoreUint32(&hm.isHealthy, 1)
}

func (hm *HeartbeatMonitor) RecordMissed() {
	missed := atomic.AddUint32(&hm.missedBeats, 1)
	if missed >= 3 {
		atomic.StoreUint32(&hm.isHealthy, 0)
	}
}

func (hm *HeartbeatMonitor) IsHealthy() bool {
	return atomic.LoadUint32(&hm.isHealthy) == 1
}

func (hm *HeartbeatMonitor) GetMissedCount() uint32 {
	return atomic.LoadUint32(&hm.missedBeats)
}

// GetLatency returns the last answered round trip, or zero before the first
// answer.
func (hm *HeartbeatMonitor) GetLatency() time.Duration {
	sent := atomic.LoadInt64(&hm.lastHeartbeatSent)
	ack := atomic.LoadInt64(&hm.lastHeartbeatACK)

	if sent == 0 || ack < sent {
		return 0
	}

	return time.Duration(ack - sent)
}
