package bootstrap

import (
	"strings"

	"github.com/imWorldy/StarfishPlugins/internal/database"
	"github.com/imWorldy/StarfishPlugins/internal/logging"
	"github.com/imWorldy/StarfishPlugins/internal/metrics"
)

func Shutdown(c *Components) error {
	logging.Info("Starting graceful shutdown...")

	if c.Watchdog != nil {
		logging.Info("Stopping watchdog...")
		c.Watchdog.Stop()
	}

	logging.Info("Disabling plugins...")
	c.Loop.Call(func() {
		if c.heartbeat != nil {
			c.heartbeat.Stop()
		}
		if c.Loopback != nil {
			c.Loopback.Stop()
		}
		c.Runtime.DisableAll()
	})

	logging.Info("Draining in-flight requests...")
	if !c.Loop.Drain(c.drainTimeout) {
		logging.Warn("Requests still in flight after %v, abandoning them", c.drainTimeout)
	}
	c.Loop.Stop()
	c.HTTPPool.CloseIdle()

	if c.Loopback != nil {
		monitor := c.Loopback.Monitor()
		logging.Info("Loopback keep-alive: last RTT %v, missed %d", monitor.GetLatency(), monitor.GetMissedCount())
	}

	if c.Metrics != nil {
		for _, line := range strings.Split(strings.TrimSpace(metrics.Export(c.Metrics)), "\n") {
			if line != "" {
				logging.Info("metric %s", line)
			}
		}
	}

	if c.Database != nil {
		logging.Info("Closing database...")
		if err := database.Close(); err != nil {
			logging.Error("Database close failed: %v", err)
		}
	}

	logging.Info("Graceful shutdown complete")
	return nil
}

// EmergencyShutdown stops everything without waiting for in-flight work.
func EmergencyShutdown(c *Components) {
	logging.Critical("Emergency shutdown initiated")

	if c.Watchdog != nil {
		c.Watchdog.Stop()
	}
	if c.Loop != nil {
		c.Loop.Stop()
	}
	if c.Database != nil {
		database.Close()
	}

	logging.Critical("Emergency shutdown complete")
}
