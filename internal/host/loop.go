package host

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/logging"
	"github.com/remeh/sizedwaitgroup"
)

// Loop runs posted functions one at a time on a single goroutine.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	// slots bounds concurrent Go work; pending tracks it for Drain
	slots   sizedwaitgroup.SizedWaitGroup
	pending sync.WaitGroup

	started   atomic.Bool
	busySince atomic.Int64
	executed  atomic.Uint64
}

func NewLoop(maxInFlight int) *Loop {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &Loop{
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		slots: sizedwaitgroup.New(maxInFlight),
	}
}

func (l *Loop) Start() {
	if l.started.CompareAndSwap(false, true) {
		go l.run()
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.wake:
		case <-l.quit:
			return
		}
		for {
			select {
			case <-l.quit:
				return
			default:
			}
			fn := l.pop()
			if fn == nil {
				break
			}
			l.exec(fn)
		}
	}
}

func (l *Loop) pop() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) exec(fn func()) {
	l.busySince.Store(time.Now().UnixNano())
	defer func() {
		l.busySince.Store(0)
		l.executed.Add(1)
		if r := recover(); r != nil {
			logging.Error("Event loop task panicked: %v", r)
		}
	}()
	fn()
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn. Posts after Stop are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call posts fn and waits for it to finish. Never call it from the loop.
func (l *Loop) Call(fn func()) bool {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

type loopTimer struct {
	timer *time.Timer
	// only touched on the loop
	fired bool
}

func (t *loopTimer) Stop() bool {
	if t.fired {
		return false
	}
	t.fired = true
	t.timer.Stop()
	return true
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.fired {
				return
			}
			lt.fired = true
			fn()
		})
	})
	return lt
}

func (l *Loop) Go(work func(), done func()) {
	l.pending.Add(1)
	go func() {
		defer l.pending.Done()
		l.slots.Add()
		defer l.slots.Done()

		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Error("Background task panicked: %v", r)
				}
			}()
			work()
		}()
		if done != nil {
			l.Post(done)
		}
	}()
}

// Drain waits up to timeout for Go work to finish.
func (l *Loop) Drain(timeout time.Duration) bool {
	finished := make(chan struct{})
	go func() {
		l.pending.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Stop ends the loop after the running task. Queued tasks are discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	dropped := len(l.queue)
	l.queue = nil
	l.mu.Unlock()

	close(l.quit)
	if l.started.CompareAndSwap(false, true) {
		close(l.done)
	}
	<-l.done
	if dropped > 0 {
		logging.Debug("Event loop stopped with %d queued tasks", dropped)
	}
}

// BusyFor reports how long the current task has been running, or zero.
func (l *Loop) BusyFor() time.Duration {
	since := l.busySince.Load()
	if since == 0 {
		return 0
	}
	return time.Since(time.Unix(0, since))
}

func (l *Loop) Executed() uint64 {
	return l.executed.Load()
}
