package bootstrap

import (
	"fmt"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/database"
	"github.com/imWorldy/StarfishPlugins/internal/dispatcher"
	"github.com/imWorldy/StarfishPlugins/internal/host"
	"github.com/imWorldy/StarfishPlugins/internal/ingest"
	"github.com/imWorldy/StarfishPlugins/internal/logging"
	"github.com/imWorldy/StarfishPlugins/internal/metrics"
	"github.com/imWorldy/StarfishPlugins/internal/notifier"
	"github.com/imWorldy/StarfishPlugins/internal/plugins/pingtps"
	"github.com/imWorldy/StarfishPlugins/internal/plugins/relay"
	"github.com/imWorldy/StarfishPlugins/internal/plugins/spellguard"
	"github.com/imWorldy/StarfishPlugins/internal/watchdog"
)

const (
	heartbeatInterval = time.Second
	stallThreshold    = 2 * time.Second
)

// pluginEntry pairs a plugin's metadata with the factory that builds it.
type pluginEntry struct {
	meta    host.Metadata
	factory host.Factory
}

func Wire(b *Bootstrap) error {
	logging.Info("Wiring components...")
	cfg := b.Config

	metrics.InitGlobalRegistry()
	metricsRegistry := metrics.GetRegistry()

	watchdogInst := watchdog.NewWatchdog(5 * time.Second)

	httpPool := dispatcher.NewHTTPPool(cfg.Network.HTTPPoolSize, cfg.Network.UserAgent)
	loop := host.NewLoop(cfg.Network.MaxInFlight)

	var loopback *ingest.LoopbackServer
	if cfg.Loopback.Enabled {
		loopback = ingest.NewLoopbackServer(loop, ingest.ServerConfig{
			PlayerName:        cfg.Loopback.PlayerName,
			TicksPerSecond:    cfg.Loopback.TicksPerSecond,
			KeepAliveInterval: time.Duration(cfg.Loopback.KeepAliveIntervalMs) * time.Millisecond,
			SimulatedRTT:      time.Duration(cfg.Loopback.SimulatedRTTMs) * time.Millisecond,
		})
	}

	var console *ingest.Console
	if cfg.Loopback.Console {
		console = ingest.NewConsole(b.Stdin, b.Stdout, loop.Post, nil)
	}

	opts := host.Options{
		Scheduler: loop,
		Seeds:     cfg.Plugins,
	}
	if console != nil {
		opts.Chat = console.Chat
		opts.ActionBar = console.ActionBar
	}
	if loopback != nil {
		opts.Upstream = loopback.Upstream
	}

	switch {
	case cfg.Ping.URL != "":
		opts.Pinger = host.NewHTTPPinger(httpPool, cfg.Ping.URL)
		logging.Info("Ping API: %s", cfg.Ping.URL)
	case loopback != nil:
		opts.Pinger = loopback
	}

	var db *database.Database
	if database.IsConnected() {
		db = database.GetDB()
		opts.Persister = db
	}

	runtime := host.NewRuntime(opts)
	if loopback != nil {
		loopback.Attach(runtime)
	}
	if console != nil {
		console.Bind(runtime.SendOutgoingChat)
	}

	watchdogInst.RegisterComponent("event_loop", 3*heartbeatInterval)
	watchdogInst.RegisterProbe("loop_task", stallThreshold, loop.BusyFor)
	if loopback != nil {
		interval := time.Duration(cfg.Loopback.KeepAliveIntervalMs) * time.Millisecond
		if interval <= 0 {
			interval = 5 * time.Second
		}
		watchdogInst.RegisterProbe("loopback_keepalive", interval, keepAliveProbe(loopback.Monitor(), interval))
	}

	drainTimeout := time.Duration(cfg.Network.DrainTimeoutMs) * time.Millisecond
	if drainTimeout <= 0 {
		drainTimeout = 2 * time.Second
	}

	b.Components = &Components{
		Database:     db,
		HTTPPool:     httpPool,
		Loop:         loop,
		Runtime:      runtime,
		Loopback:     loopback,
		Console:      console,
		Metrics:      metricsRegistry,
		Watchdog:     watchdogInst,
		drainTimeout: drainTimeout,
	}

	logging.Info("Component wiring complete")
	return nil
}

func plugins(pool *dispatcher.HTTPPool) []pluginEntry {
	return []pluginEntry{
		{relay.Metadata(), relay.New(notifier.NewWebhookClient(pool))},
		{pingtps.Metadata(), pingtps.New},
		{spellguard.Metadata(), spellguard.New(spellguard.NewLanguageTool(pool))},
	}
}

// loadPlugins runs on the loop. A plugin that fails to load is logged and
// skipped.
func loadPlugins(c *Components, entries []pluginEntry) int {
	loaded := 0
	for _, e := range entries {
		if err := c.Runtime.Load(e.meta, e.factory); err != nil {
			logging.Error("Plugin %s failed to load: %v", e.meta.Name, err)
			continue
		}
		logging.Info("Plugin %s v%s loaded", e.meta.DisplayName, e.meta.Version)
		loaded++
	}
	return loaded
}

func StartAll(c *Components) error {
	logging.Info("Starting components...")

	c.Loop.Start()

	var loaded int
	ok := c.Loop.Call(func() {
		loaded = loadPlugins(c, plugins(c.HTTPPool))
		if c.Loopback != nil {
			c.Loopback.Start()
		}
		scheduleHeartbeat(c)
	})
	if !ok {
		return fmt.Errorf("event loop stopped during startup")
	}
	logging.Info("%d plugins loaded", loaded)

	// Start watchdog after the loop so its first check sees a heartbeat
	c.Watchdog.Start()
	logging.Info("Watchdog started")

	if c.Console != nil {
		go func() {
			if err := c.Console.Run(); err != nil {
				logging.Warn("%v", err)
			}
			logging.Info("Console input closed")
		}()
	}

	logging.Info("All components started")
	return nil
}

// keepAliveProbe reports an unanswered keep-alive streak as stall time. The
// monitor turns unhealthy after three misses, which exceeds one interval.
func keepAliveProbe(monitor *ingest.HeartbeatMonitor, interval time.Duration) func() time.Duration {
	return func() time.Duration {
		if monitor.IsHealthy() {
			return 0
		}
		return time.Duration(monitor.GetMissedCount()) * interval
	}
}

// scheduleHeartbeat beats the watchdog from inside the loop, so a blocked
// loop shows up as a missing heartbeat.
func scheduleHeartbeat(c *Components) {
	c.Watchdog.Heartbeat("event_loop")
	c.heartbeat = c.Loop.AfterFunc(heartbeatInterval, func() {
		scheduleHeartbeat(c)
	})
}
