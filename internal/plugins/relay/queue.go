package relay

import (
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/host"
)

const (
	sendSpacing    = 1250 * time.Millisecond
	maxConsecutive = 3
)

// Entry is one webhook delivery.
type Entry struct {
	Payload    []byte
	WebhookURL string
}

type Sender func(webhookURL string, payload []byte) error

// queueHooks report delivery outcomes back to the plugin. All run on the loop.
type queueHooks struct {
	// firstFailure runs once per failure episode
	firstFailure func(err error)
	failure      func(err error)
	cleared      func(dropped int)
}

// Queue delivers entries one at a time with fixed spacing. It lives on the
// host loop and needs no locking.
type Queue struct {
	sched host.Scheduler
	send  Sender
	hooks queueHooks

	entries    []Entry
	processing bool
	cooldown   host.Timer
	closed     bool

	consecutiveFailures int
	reportedFailure     bool

	delivered    uint64
	failed       uint64
	dropped      uint64
	lastDelivery time.Time
}

func NewQueue(sched host.Scheduler, send Sender, hooks queueHooks) *Queue {
	return &Queue{sched: sched, send: send, hooks: hooks}
}

// Enqueue appends e and starts draining when nothing is in flight and no
// cooldown is pending.
func (q *Queue) Enqueue(e Entry) {
	if q.closed || len(e.Payload) == 0 || e.WebhookURL == "" {
		return
	}
	q.entries = append(q.entries, e)
	if !q.processing && q.cooldown == nil {
		q.process()
	}
}

func (q *Queue) process() {
	if q.processing || q.closed || len(q.entries) == 0 {
		return
	}

	entry := q.entries[0]
	q.entries[0] = Entry{}
	q.entries = q.entries[1:]
	q.processing = true

	var err error
	q.sched.Go(func() {
		err = q.send(entry.WebhookURL, entry.Payload)
	}, func() {
		q.complete(err)
	})
}

func (q *Queue) complete(err error) {
	q.processing = false
	if q.closed {
		return
	}

	if err == nil {
		q.consecutiveFailures = 0
		q.reportedFailure = false
		q.delivered++
		q.lastDelivery = q.sched.Now()
	} else {
		q.consecutiveFailures++
		q.failed++
		if q.hooks.failure != nil {
			q.hooks.failure(err)
		}
		if !q.reportedFailure {
			q.reportedFailure = true
			if q.hooks.firstFailure != nil {
				q.hooks.firstFailure(err)
			}
		}
		if q.consecutiveFailures >= maxConsecutive && len(q.entries) > 0 {
			n := len(q.entries)
			q.entries = nil
			q.dropped += uint64(n)
			if q.hooks.cleared != nil {
				q.hooks.cleared(n)
			}
		}
	}

	q.cooldown = q.sched.AfterFunc(sendSpacing, func() {
		q.cooldown = nil
		q.process()
	})
}

func (q *Queue) Len() int {
	return len(q.entries)
}

// InFlight reports whether a request is outstanding.
func (q *Queue) InFlight() bool {
	return q.processing
}

// Close drops pending entries and the cooldown. An in-flight request is left
// to finish and its result is discarded.
func (q *Queue) Close() {
	q.closed = true
	if q.cooldown != nil {
		q.cooldown.Stop()
		q.cooldown = nil
	}
	q.entries = nil
	q.processing = false
}

type QueueStats struct {
	Pending      int
	Delivered    uint64
	Failed       uint64
	Dropped      uint64
	LastDelivery time.Time
}

func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Pending:      len(q.entries),
		Delivered:    q.delivered,
		Failed:       q.failed,
		Dropped:      q.dropped,
		LastDelivery: q.lastDelivery,
	}
}
