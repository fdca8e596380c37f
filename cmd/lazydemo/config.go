package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	lazyloading "github.com/elyseeMB/lazyLoading"
	"gopkg.in/yaml.v3"
)

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"
)

// Config is the lazydemo configuration file.
type Config struct {
	Loader         lazyloading.Options `yaml:"loader"`
	Store          StoreConfig         `yaml:"store"`
	Simulator      SimulatorConfig     `yaml:"simulator"`
	Log            LogConfig           `yaml:"log"`
	MaxGenerations int                 `yaml:"max_generations"`
}

// StoreConfig selects the session-scoped backend holding reload counts.
// An empty Session gets a random id, so every run starts a new session.
type StoreConfig struct {
	Backend  string        `yaml:"backend"`
	Session  string        `yaml:"session"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	DSN      string        `yaml:"dsn"`
	Path     string        `yaml:"path"`
	TTL      time.Duration `yaml:"ttl"`
}

type SimulatorConfig struct {
	MinLatency       time.Duration `yaml:"min_latency"`
	MaxLatency       time.Duration `yaml:"max_latency"`
	DeployOnNavigate bool          `yaml:"deploy_on_navigate"`
	SyncOnReload     bool          `yaml:"sync_on_reload"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultConfig() Config {
	return Config{
		Loader: lazyloading.DefaultOptions(),
		Store: StoreConfig{
			Backend: backendMemory,
			Path:    "lazydemo.db",
			TTL:     30 * time.Minute,
		},
		Simulator: SimulatorConfig{
			MinLatency:       500 * time.Millisecond,
			MaxLatency:       1500 * time.Millisecond,
			DeployOnNavigate: true,
			SyncOnReload:     true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		MaxGenerations: 16,
	}
}

// loadConfig reads path over the defaults; an empty path returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Loader.Validate(); err != nil {
		return err
	}
	switch c.Store.Backend {
	case backendMemory:
	case backendRedis:
		if c.Store.Addr == "" {
			return fmt.Errorf("store.addr is required for redis")
		}
	case backendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for postgres")
		}
	case backendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for sqlite")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("store.ttl must not be negative")
	}
	if c.Simulator.MinLatency < 0 || c.Simulator.MaxLatency < 0 {
		return fmt.Errorf("simulator latency must not be negative")
	}
	if c.Simulator.MaxLatency < c.Simulator.MinLatency {
		return fmt.Errorf("simulator.max_latency is below simulator.min_latency")
	}
	if c.MaxGenerations < 0 {
		return fmt.Errorf("max_generations must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func newLogger(c LogConfig) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
