package watchdog

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/logging"
)

type Watchdog struct {
	mu             sync.RWMutex
	components     map[string]*ComponentHealth
	checkInterval  time.Duration
	running        uint32
	stop           chan struct{}
	done           chan struct{}
	alertThreshold uint32
	now            func() time.Time
}

type ComponentHealth struct {
	Name          string
	LastHeartbeat int64
	IsHealthy     uint32
	Threshold     time.Duration
	misses        uint32

	// Probe reports how long the component has been stuck. Components with
	// a probe are judged by it instead of heartbeats.
	Probe func() time.Duration
}

func NewWatchdog(checkInterval time.Duration) *Watchdog {
	return &Watchdog{
		components:     make(map[string]*ComponentHealth),
		checkInterval:  checkInterval,
		alertThreshold: 3,
		now:            time.Now,
	}
}

func (w *Watchdog) RegisterComponent(name string, threshold time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components[name] = &ComponentHealth{
		Name:      name,
		IsHealthy: 1,
		Threshold: threshold,
	}
}

// RegisterProbe watches a component that can report its own stall time,
// such as the event loop's current task duration.
func (w *Watchdog) RegisterProbe(name string, threshold time.Duration, probe func() time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.components[name] = &ComponentHealth{
		Name:      name,
		IsHealthy: 1,
		Threshold: threshold,
		Probe:     probe,
	}
}

func (w *Watchdog) Heartbeat(name string) {
	w.mu.RLock()
	comp, exists := w.components[name]
	w.mu.RUnlock()
	if !exists {
		return
	}
	atomic.StoreInt64(&comp.LastHeartbeat, w.now().UnixNano())
	if atomic.SwapUint32(&comp.IsHealthy, 1) == 0 {
		logging.Info("Watchdog: %s recovered", name)
	}
	atomic.StoreUint32(&comp.misses, 0)
}

func (w *Watchdog) Start() {
	if !atomic.CompareAndSwapUint32(&w.running, 0, 1) {
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.monitorLoop(w.stop, w.done)
}

func (w *Watchdog) monitorLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.CheckAll()
		}
	}
}

// CheckAll evaluates every component once and returns the unhealthy ones.
func (w *Watchdog) CheckAll() []string {
	now := w.now().UnixNano()

	w.mu.RLock()
	comps := make([]*ComponentHealth, 0, len(w.components))
	for _, comp := range w.components {
		comps = append(comps, comp)
	}
	w.mu.RUnlock()

	var unhealthy []string
	for _, comp := range comps {
		var elapsed time.Duration
		if comp.Probe != nil {
			elapsed = comp.Probe()
		} else {
			lastBeat := atomic.LoadInt64(&comp.LastHeartbeat)
			if lastBeat == 0 {
				continue
			}
			elapsed = time.Duration(now - lastBeat)
		}

		if elapsed <= comp.Threshold {
			if comp.Probe != nil && atomic.SwapUint32(&comp.IsHealthy, 1) == 0 {
				logging.Info("Watchdog: %s recovered", comp.Name)
			}
			atomic.StoreUint32(&comp.misses, 0)
			continue
		}

		unhealthy = append(unhealthy, comp.Name)
		atomic.StoreUint32(&comp.IsHealthy, 0)
		misses := atomic.AddUint32(&comp.misses, 1)
		if misses >= w.alertThreshold {
			logging.Critical("Watchdog: %s stalled for %v (%d checks)", comp.Name, elapsed, misses)
		} else {
			logging.Error("Watchdog: %s unhealthy (no progress for %v)", comp.Name, elapsed)
		}
	}
	sort.Strings(unhealthy)
	return unhealthy
}

func (w *Watchdog) IsHealthy(name string) bool {
	w.mu.RLock()
	comp, exists := w.components[name]
	w.mu.RUnlock()
	if exists {
		return atomic.LoadUint32(&comp.IsHealthy) == 1
	}
	return false
}

func (w *Watchdog) Stop() {
	if !atomic.CompareAndSwapUint32(&w.running, 1, 0) {
		return
	}
	close(w.stop)
	<-w.done
}

func (w *Watchdog) GetStatus() map[string]bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	status := make(map[string]bool, len(w.components))
	for name, comp := range w.components {
		status[name] = atomic.LoadUint32(&comp.IsHealthy) == 1
	}
	return status
}
