// Package hosttest provides a deterministic host.Scheduler for plugin tests.
package hosttest

import (
	"sort"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/host"
)

// ManualLoop is a fake clock. Nothing runs until the test calls Flush,
// Settle or Advance, and everything runs on the test goroutine. Go work runs
// inline when settled, so tests control completion order.
type ManualLoop struct {
	// HoldAsync keeps Advance from settling Go tasks; use SettleOne.
	HoldAsync bool

	now     time.Time
	seq     uint64
	posted  []func()
	timers  []*manualTimer
	pending []asyncTask
}

type manualTimer struct {
	at      time.Time
	seq     uint64
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

type asyncTask struct {
	work func()
	done func()
}

func NewManualLoop(start time.Time) *ManualLoop {
	return &ManualLoop{now: start}
}

func (m *ManualLoop) Now() time.Time {
	return m.now
}

func (m *ManualLoop) Post(fn func()) {
	m.posted = append(m.posted, fn)
}

func (m *ManualLoop) AfterFunc(d time.Duration, fn func()) host.Timer {
	m.seq++
	t := &manualTimer{at: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (m *ManualLoop) Go(work func(), done func()) {
	m.pending = append(m.pending, asyncTask{work: work, done: done})
}

// Pending is the number of Go tasks not yet settled.
func (m *ManualLoop) Pending() int {
	return len(m.pending)
}

// ActiveTimers counts timers that have neither fired nor been stopped.
func (m *ManualLoop) ActiveTimers() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Flush runs posted functions until none are left.
func (m *ManualLoop) Flush() {
	for len(m.posted) > 0 {
		fn := m.posted[0]
		m.posted = m.posted[1:]
		fn()
	}
}

// Settle completes every pending Go task in order, including tasks started
// by the completions, then flushes.
func (m *ManualLoop) Settle() {
	for {
		m.Flush()
		if len(m.pending) == 0 {
			return
		}
		task := m.pending[0]
		m.pending = m.pending[1:]
		task.work()
		if task.done != nil {
			task.done()
		}
	}
}

// SettleOne completes only the oldest pending Go task.
func (m *ManualLoop) SettleOne() bool {
	m.Flush()
	if len(m.pending) == 0 {
		return false
	}
	task := m.pending[0]
	m.pending = m.pending[1:]
	task.work()
	if task.done != nil {
		task.done()
	}
	m.Flush()
	return true
}

// Advance moves the clock forward by d, firing due timers in time order and
// settling async work as it goes.
func (m *ManualLoop) Advance(d time.Duration) {
	deadline := m.now.Add(d)
	m.step()
	for {
		t := m.nextDue(deadline)
		if t == nil {
			break
		}
		m.now = t.at
		t.stopped = true
		t.fn()
		m.step()
	}
	m.now = deadline
	m.step()
}

func (m *ManualLoop) step() {
	if m.HoldAsync {
		m.Flush()
		return
	}
	m.Settle()
}

func (m *ManualLoop) nextDue(deadline time.Time) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at.Before(m.timers[j].at)
	})
	if len(m.timers) == 0 || m.timers[0].at.After(deadline) {
		return nil
	}
	return m.timers[0]
}
