package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/gatewatch/internal/logger"
	"github.com/spf13/viper"
)

// Config is the top-level TOML structure for the agent.
type Config struct {
	Gateway GatewayConfig `mapstructure:"gateway"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Log     logger.Config `mapstructure:"log"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Server  ServerConfig  `mapstructure:"server"`
}

// GatewayConfig identifies the single service under supervision and the
// endpoints the agent talks to.
type GatewayConfig struct {
	Name           string `mapstructure:"name"`            // process name to look for
	URL            string `mapstructure:"url"`             // base URL of the service
	ServiceID      string `mapstructure:"service_id"`      // unit name for the process supervisor
	ConfigPath     string `mapstructure:"config_path"`     // the service's own config file
	ErrorLog       string `mapstructure:"error_log"`       // the service's error log
	WorkspaceDir   string `mapstructure:"workspace_dir"`   // working-memory directory to snapshot
	GracefulSignal string `mapstructure:"graceful_signal"` // e.g. "SIGUSR1"
	SessionsPath   string `mapstructure:"sessions_path"`   // API path listing in-flight sessions
	JobsPath       string `mapstructure:"jobs_path"`       // API path reporting scheduled-job outcomes
}

// MonitorConfig carries check intervals and thresholds.
type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	UpstreamURL     string        `mapstructure:"upstream_url"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	LatencyWarnMs   int64         `mapstructure:"latency_warn_ms"`
	LatencyCritMs   int64         `mapstructure:"latency_crit_ms"`
	DiskWarnPct     float64       `mapstructure:"disk_warn_percent"`
	DiskCritPct     float64       `mapstructure:"disk_crit_percent"`
	MemoryWarnMB    float64       `mapstructure:"memory_warn_mb"`
	MemoryCritMB    float64       `mapstructure:"memory_crit_mb"`
	MemoryWindow    int           `mapstructure:"memory_window"`
	MemoryGrowthMB  float64       `mapstructure:"memory_growth_mb"`
	ErrorLogWindow  time.Duration `mapstructure:"error_log_window"` // ignore logs older than this
	ErrorLineLimit  int           `mapstructure:"error_line_limit"` // errors tolerated in the tail
	ErrorTailLines  int           `mapstructure:"error_tail_lines"` // tail size scanned
	JobCheckEvery   int           `mapstructure:"job_check_every"`  // cycles between job checks
	HeartbeatEvery  int           `mapstructure:"heartbeat_every"`  // cycles between heartbeat lines
	GracefulSettle  time.Duration `mapstructure:"graceful_settle"`
	HardSettle      time.Duration `mapstructure:"hard_settle"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	SupervisorCmd   []string      `mapstructure:"supervisor_cmd"` // argv; "{service}" expands to ServiceID
	SnapshotKeep    int           `mapstructure:"snapshot_keep"`
	SnapshotTimeout time.Duration `mapstructure:"snapshot_timeout"`
}

// PathsConfig collects filesystem locations owned by the agent.
type PathsConfig struct {
	StateFile    string `mapstructure:"state_file"`
	MetricsFile  string `mapstructure:"metrics_file"`
	SnapshotsDir string `mapstructure:"snapshots_dir"`
	JournalDir   string `mapstructure:"journal_dir"`
	BackupVolume string `mapstructure:"backup_volume"`
}

// AlertsConfig controls the dispatcher.
type AlertsConfig struct {
	Cooldown       time.Duration `mapstructure:"cooldown"`
	Desktop        bool          `mapstructure:"desktop"`
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	HistoryDSN     string        `mapstructure:"history_dsn"`
}

// ServerConfig enables the optional read-only status HTTP server.
type ServerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Listen   string `mapstructure:"listen"`
	BasePath string `mapstructure:"base_path"`
	TLS      TLS    `mapstructure:"tls"`
}

// TLS holds an optional certificate pair for the status server.
type TLS struct {
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	MinVersion string `mapstructure:"min_version"` // "1.2" or "1.3"; default 1.3
}

// Default returns the built-in configuration. Thresholds match the
// operational contract of the monitor loop.
func Default() Config {
	return Config{
		Gateway: GatewayConfig{
			Name:           "gateway",
			URL:            "http://127.0.0.1:8080",
			ServiceID:      "gateway",
			GracefulSignal: "SIGUSR1",
			SessionsPath:   "/sessions",
			JobsPath:       "/jobs/recent",
		},
		Monitor: MonitorConfig{
			Interval:        60 * time.Second,
			HTTPTimeout:     10 * time.Second,
			UpstreamURL:     "https://api.github.com",
			UpstreamTimeout: 10 * time.Second,
			LatencyWarnMs:   5000,
			LatencyCritMs:   10000,
			DiskWarnPct:     80,
			DiskCritPct:     90,
			MemoryWarnMB:    1024,
			MemoryCritMB:    1536,
			MemoryWindow:    10,
			MemoryGrowthMB:  50,
			ErrorLogWindow:  5 * time.Minute,
			ErrorLineLimit:  10,
			ErrorTailLines:  100,
			JobCheckEvery:   10,
			HeartbeatEvery:  10,
			GracefulSettle:  5 * time.Second,
			HardSettle:      10 * time.Second,
			MaxAttempts:     3,
			SupervisorCmd:   []string{"systemctl", "restart", "{service}"},
			SnapshotKeep:    10,
			SnapshotTimeout: 5 * time.Second,
		},
		Alerts: AlertsConfig{
			Cooldown:       30 * time.Minute,
			Desktop:        true,
			WebhookTimeout: 10 * time.Second,
		},
		Server: ServerConfig{Listen: "127.0.0.1:9815"},
	}
}

// Load reads a TOML config file and merges it over the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}
	c := Default()
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects configurations the loop cannot run with.
func (c Config) Validate() error {
	if c.Gateway.Name == "" {
		return fmt.Errorf("gateway.name is required")
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be > 0")
	}
	if c.Monitor.MemoryWindow <= 1 {
		return fmt.Errorf("monitor.memory_window must be > 1")
	}
	if c.Monitor.MaxAttempts <= 0 {
		return fmt.Errorf("monitor.max_attempts must be > 0")
	}
	if c.Monitor.DiskWarnPct >= c.Monitor.DiskCritPct {
		return fmt.Errorf("monitor.disk_warn_percent must be below disk_crit_percent")
	}
	if c.Monitor.LatencyWarnMs >= c.Monitor.LatencyCritMs {
		return fmt.Errorf("monitor.latency_warn_ms must be below latency_crit_ms")
	}
	if len(c.Monitor.SupervisorCmd) == 0 {
		return fmt.Errorf("monitor.supervisor_cmd is required")
	}
	if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("server.tls requires both cert_file and key_file")
	}
	return nil
}

// CheckWellFormed parses an arbitrary structured config file (TOML, JSON or
// YAML by extension) and reports whether it is well formed. Used for the
// supervised service's own config file; the agent never interprets its
// contents.
func CheckWellFormed(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		v.SetConfigType("json")
	case ".yaml", ".yml":
		v.SetConfigType("yaml")
	default:
		v.SetConfigType("toml")
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config %s not well formed: %w", path, err)
	}
	return nil
}
