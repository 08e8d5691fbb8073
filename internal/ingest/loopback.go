// Package ingest feeds the plugin runtime when no real game connection is
// present: a loopback server that produces world time, keep-alive and chat
// events, and a console that turns stdin lines into outgoing chat.
package ingest

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/host"
	"github.com/imWorldy/StarfishPlugins/internal/logging"
)

type ServerConfig struct {
	PlayerName        string
	TicksPerSecond    int
	KeepAliveInterval time.Duration
	SimulatedRTT      time.Duration
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.PlayerName == "" {
		c.PlayerName = "Steve"
	}
	if c.TicksPerSecond <= 0 {
		c.TicksPerSecond = 20
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = 5 * time.Second
	}
	if c.SimulatedRTT < 0 {
		c.SimulatedRTT = 0
	}
	return c
}

// LoopbackServer simulates the upstream server. Everything except Ping runs
// on the scheduler's loop.
type LoopbackServer struct {
	cfg     ServerConfig
	sched   host.Scheduler
	runtime *host.Runtime
	monitor *HeartbeatMonitor

	age         uint64
	keepAliveID int64
	timers      []host.Timer
	running     bool
	received    uint64
}

func NewLoopbackServer(sched host.Scheduler, cfg ServerConfig) *LoopbackServer {
	return &LoopbackServer{
		cfg:     cfg.withDefaults(),
		sched:   sched,
		monitor: NewHeartbeatMonitor(),
	}
}

// Attach sets the runtime that receives server events. The runtime is built
// with Upstream as its upstream sink, so the two are wired in two steps.
func (s *LoopbackServer) Attach(rt *host.Runtime) {
	s.runtime = rt
}

func (s *LoopbackServer) Monitor() *HeartbeatMonitor {
	return s.monitor
}

func (s *LoopbackServer) Start() {
	if s.running || s.runtime == nil {
		return
	}
	s.running = true
	s.timers = make([]host.Timer, 2)
	s.scheduleTime()
	s.scheduleKeepAlive()
	logging.Info("Loopback server started: %d TPS, keep-alive every %v, RTT %v",
		s.cfg.TicksPerSecond, s.cfg.KeepAliveInterval, s.cfg.SimulatedRTT)
}

func (s *LoopbackServer) Stop() {
	if !s.running {
		return
	}
	s.running = false
	for _, t := range s.timers {
		if t != nil {
			t.Stop()
		}
	}
	s.timers = nil
}

// scheduleTime sends a time update once per second, like a vanilla server.
func (s *LoopbackServer) scheduleTime() {
	s.timers[0] = s.sched.AfterFunc(time.Second, func() {
		if !s.running {
			return
		}
		s.age += uint64(s.cfg.TicksPerSecond)
		s.runtime.Publish(host.EventWorldTime, host.WorldTimeEvent{
			Age:       int64(s.age),
			TimeOfDay: int64(s.age % 24000),
		})
		s.scheduleTime()
	})
}

func (s *LoopbackServer) scheduleKeepAlive() {
	s.timers[1] = s.sched.AfterFunc(s.cfg.KeepAliveInterval, func() {
		if !s.running {
			return
		}
		s.sendKeepAlive()
		s.scheduleKeepAlive()
	})
}

func (s *LoopbackServer) sendKeepAlive() {
	s.keepAliveID++
	id := s.keepAliveID
	s.monitor.RecordSent(s.sched.Now())
	s.runtime.Publish(host.EventServerKeepAlive, host.KeepAliveEvent{KeepAliveID: id})

	// The simulated client answers after one round trip.
	s.sched.AfterFunc(s.cfg.SimulatedRTT, func() {
		if !s.running {
			return
		}
		s.monitor.RecordACK(s.sched.Now())
		s.runtime.Publish(host.EventClientKeepAlive, host.KeepAliveEvent{KeepAliveID: id})
	})
}

// Upstream accepts outgoing chat and echoes it back as server chat on the
// next loop turn.
func (s *LoopbackServer) Upstream(message string) bool {
	if !s.running {
		return false
	}
	atomic.AddUint64(&s.received, 1)
	line := fmt.Sprintf("<%s> %s", s.cfg.PlayerName, message)
	s.sched.Post(func() {
		if !s.running {
			return
		}
		s.runtime.Publish(host.EventChat, host.ChatEvent{
			Message:  line,
			JSON:     map[string]any{"text": line},
			Position: 0,
		})
	})
	return true
}

// Received counts messages accepted by Upstream.
func (s *LoopbackServer) Received() uint64 {
	return atomic.LoadUint64(&s.received)
}

// Ping answers after the simulated round trip. It blocks and must not run on
// the loop.
func (s *LoopbackServer) Ping(timeout time.Duration) (host.PingResult, error) {
	rtt := s.cfg.SimulatedRTT
	if timeout > 0 && rtt > timeout {
		time.Sleep(timeout)
		return host.PingResult{Error: 1, ErrorMessage: "loopback ping timed out"}, nil
	}
	time.Sleep(rtt)
	return host.PingResult{Success: true, Latency: rtt}, nil
}
