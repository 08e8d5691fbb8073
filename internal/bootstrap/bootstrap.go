package bootstrap

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/imWorldy/StarfishPlugins/internal/config"
	"github.com/imWorldy/StarfishPlugins/internal/database"
	"github.com/imWorldy/StarfishPlugins/internal/dispatcher"
	"github.com/imWorldy/StarfishPlugins/internal/host"
	"github.com/imWorldy/StarfishPlugins/internal/ingest"
	"github.com/imWorldy/StarfishPlugins/internal/logging"
	"github.com/imWorldy/StarfishPlugins/internal/metrics"
	"github.com/imWorldy/StarfishPlugins/internal/watchdog"
)

const defaultConfigPath = "config.json"

type Bootstrap struct {
	ConfigPath string
	Config     *config.Config
	Components *Components

	// Console streams; stdin and stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer

	initialized bool
}

type Components struct {
	Database *database.Database
	HTTPPool *dispatcher.HTTPPool
	Loop     *host.Loop
	Runtime  *host.Runtime
	Loopback *ingest.LoopbackServer
	Console  *ingest.Console

	// Monitoring
	Metrics  *metrics.MetricsRegistry
	Watchdog *watchdog.Watchdog

	heartbeat    host.Timer
	drainTimeout time.Duration
}

// New reads the config path from STARFISH_CONFIG, falling back to config.json.
func New() *Bootstrap {
	path := os.Getenv("STARFISH_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	return &Bootstrap{
		ConfigPath: path,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
	}
}

func (b *Bootstrap) Initialize() error {
	if err := b.loadConfig(); err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	if err := b.initializeLogging(); err != nil {
		return fmt.Errorf("logging init failed: %w", err)
	}

	b.initializeDatabase()

	if err := b.wireComponents(); err != nil {
		return fmt.Errorf("component wiring failed: %w", err)
	}

	b.initialized = true
	logging.Info("Bootstrap complete")
	return nil
}

func (b *Bootstrap) loadConfig() error {
	cfg, err := config.Load(b.ConfigPath)
	if err != nil {
		// The logger is not up yet
		fmt.Fprintf(os.Stderr, "Config load failed (%v), using defaults\n", err)
		cfg = config.LoadOrDefault(b.ConfigPath)
	}
	b.Config = cfg
	return nil
}

func (b *Bootstrap) initializeLogging() error {
	lc := b.Config.Logging
	rotation := logging.NewLogRotation(int64(lc.RotateSizeMB)<<20, time.Duration(lc.RotateDays)*24*time.Hour)
	rotated, didRotate, err := rotation.RotateIfNeeded(lc.Path)
	if err != nil {
		return err
	}

	if err := logging.InitGlobalLogger(logging.ParseLevel(lc.Level), lc.Path); err != nil {
		return err
	}
	if didRotate {
		logging.Info("Previous log rotated to %s", rotated)
	}
	return nil
}

// initializeDatabase opens the config store. Without it plugin settings
// still work but are not kept across restarts.
func (b *Bootstrap) initializeDatabase() {
	if !b.Config.Database.Enabled {
		logging.Info("Database disabled, plugin settings will not persist")
		return
	}
	if err := database.Initialize(b.Config.Database.Path); err != nil {
		logging.Warn("Database unavailable, plugin settings will not persist: %v", err)
		return
	}
	logging.Info("Database opened at %s", b.Config.Database.Path)
}

func (b *Bootstrap) wireComponents() error {
	return Wire(b)
}

func (b *Bootstrap) Start() error {
	if !b.initialized {
		return fmt.Errorf("bootstrap not initialized")
	}

	return StartAll(b.Components)
}

func (b *Bootstrap) Shutdown() error {
	if b.Components == nil {
		return nil
	}
	return Shutdown(b.Components)
}
