package config

import (
	"encoding/json"
	"os"
)

type Config struct {
	Logging  LoggingConfig             `json:"logging"`
	Database DatabaseConfig            `json:"database"`
	Network  NetworkConfig             `json:"network"`
	Ping     PingConfig                `json:"ping"`
	Loopback LoopbackConfig            `json:"loopback"`
	Plugins  map[string]map[string]any `json:"plugins"`
}

type LoggingConfig struct {
	Level        string `json:"level"`
	Path         string `json:"path"`
	RotateSizeMB int    `json:"rotate_size_mb"`
	RotateDays   int    `json:"rotate_days"`
}

type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type NetworkConfig struct {
	HTTPPoolSize   int    `json:"http_pool_size"`
	MaxInFlight    int    `json:"max_in_flight"`
	UserAgent      string `json:"user_agent"`
	DrainTimeoutMs int    `json:"drain_timeout_ms"`
}

type PingConfig struct {
	URL string `json:"url"`
}

type LoopbackConfig struct {
	Enabled             bool   `json:"enabled"`
	Console             bool   `json:"console"`
	PlayerName          string `json:"player_name"`
	TicksPerSecond      int    `json:"ticks_per_second"`
	KeepAliveIntervalMs int    `json:"keep_alive_interval_ms"`
	SimulatedRTTMs      int    `json:"simulated_rtt_ms"`
}

var GlobalConfig *Config

// Load reads a JSON config file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	GlobalConfig = cfg
	return cfg, nil
}

// applyEnv overrides secrets and paths from the environment.
func applyEnv(cfg *Config) {
	if level := os.Getenv("STARFISH_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if webhook := os.Getenv("DISCORD_WEBHOOK_URL"); webhook != "" {
		cfg.SetPluginValue("discordrelay", "webhook.url", webhook)
	}
	if key := os.Getenv("LANGUAGETOOL_API_KEY"); key != "" {
		cfg.SetPluginValue("spellguard", "api.key", key)
	}
}

// SetPluginValue seeds one dotted config key for a plugin.
func (c *Config) SetPluginValue(plugin, key string, value any) {
	if c.Plugins == nil {
		c.Plugins = make(map[string]map[string]any)
	}
	if c.Plugins[plugin] == nil {
		c.Plugins[plugin] = make(map[string]any)
	}
	c.Plugins[plugin][key] = value
}

func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = DefaultConfig()
		applyEnv(cfg)
		GlobalConfig = cfg
	}
	return cfg
}

func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:        "info",
			Path:         "starfish.log",
			RotateSizeMB: 10,
			RotateDays:   7,
		},
		Database: DatabaseConfig{
			Enabled: true,
			Path:    "starfish.db",
		},
		Network: NetworkConfig{
			HTTPPoolSize:   2,
			MaxInFlight:    8,
			UserAgent:      "Starfish-Proxy/1.0.0",
			DrainTimeoutMs: 2000,
		},
		Ping: PingConfig{
			URL: "",
		},
		Loopback: LoopbackConfig{
			Enabled:             true,
			Console:             true,
			PlayerName:          "Steve",
			TicksPerSecond:      20,
			KeepAliveIntervalMs: 5000,
			SimulatedRTTMs:      45,
		},
		Plugins: map[string]map[string]any{},
	}
}

func Get() *Config {
	if GlobalConfig == nil {
		return DefaultConfig()
	}
	return GlobalConfig
}
