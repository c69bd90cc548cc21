// Package gatewatch is an embeddable supervisory agent for a single
// long-running gateway service. It polls liveness and quality signals on a
// fixed interval, detects degradation, attempts escalating automated
// recovery, and notifies an operator through rate-limited alert sinks.
package gatewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/gatewatch/internal/alert"
	cfgpkg "github.com/loykin/gatewatch/internal/config"
	"github.com/loykin/gatewatch/internal/history"
	"github.com/loykin/gatewatch/internal/history/factory"
	"github.com/loykin/gatewatch/internal/logger"
	"github.com/loykin/gatewatch/internal/metrics"
	"github.com/loykin/gatewatch/internal/monitor"
	"github.com/loykin/gatewatch/internal/probe"
	"github.com/loykin/gatewatch/internal/recovery"
	"github.com/loykin/gatewatch/internal/server"
	"github.com/loykin/gatewatch/internal/snapshot"
	"github.com/loykin/gatewatch/internal/state"
	"github.com/loykin/gatewatch/internal/system"
	"github.com/loykin/gatewatch/internal/trend"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfgpkg.Config

type HealthSnapshot = probe.Snapshot

type StatusSnapshot = monitor.MetricsFile

type AlertSink = history.Sink

type AlertEvent = history.Event

func DefaultConfig() Config { return cfgpkg.Default() }

func LoadConfig(path string) (Config, error) { return cfgpkg.Load(path) }

// Options tunes how an embedded Agent is assembled.
type Options struct {
	// Foreground mirrors the log stream to stderr.
	Foreground bool
	// Quiet suppresses all logging; used by one-shot commands.
	Quiet bool
	// Clock substitutes the loop's tick source. Nil means wall clock.
	Clock monitor.Clock
	// ExtraSinks receive every dispatched alert in addition to the
	// configured ones.
	ExtraSinks []AlertSink
}

// Agent bundles the monitor loop, probe battery, alert dispatcher and the
// optional status server behind one lifecycle.
type Agent struct {
	cfg     Config
	log     *slog.Logger
	alerts  *alert.Dispatcher
	battery *probe.Battery
	loop    *monitor.Loop
	srv     *http.Server
}

func New(cfg Config, opts Options) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var log *slog.Logger
	if opts.Quiet {
		log = slog.New(slog.DiscardHandler)
	} else {
		log = logger.New(cfg.Log, opts.Foreground)
		slog.SetDefault(log)
	}
	if err := ensureDirs(cfg); err != nil {
		return nil, err
	}

	d := alert.NewDispatcher(log, cfg.Alerts.Cooldown)
	if cfg.Paths.JournalDir != "" {
		d.AddSink(alert.NewJournal(cfg.Paths.JournalDir))
	}
	if cfg.Alerts.Desktop {
		d.AddAsyncSink(alert.NewDesktop())
	}
	if cfg.Alerts.WebhookURL != "" {
		d.AddAsyncSink(alert.NewWebhook(cfg.Alerts.WebhookURL, cfg.Alerts.WebhookTimeout))
	}
	if cfg.Alerts.HistoryDSN != "" {
		sink, err := factory.NewSinkFromDSN(cfg.Alerts.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("alert history sink: %w", err)
		}
		d.AddAsyncSink(sink)
	}
	for _, s := range opts.ExtraSinks {
		d.AddSink(s)
	}

	sys := system.Real{}
	battery := probe.NewBattery(cfg, sys, d, log)
	snaps := snapshot.NewManager(cfg, log)
	rec := recovery.NewController(cfg, sys, battery, snaps, d, log)
	loop, err := monitor.New(cfg, monitor.Deps{
		Battery:  battery,
		Tracker:  trend.New(cfg.Monitor.MemoryWindow, cfg.Monitor.MemoryGrowthMB),
		Alerts:   d,
		Recovery: rec,
		Restorer: snaps,
		Store:    state.NewStore(cfg.Paths.StateFile),
		Clock:    opts.Clock,
		Log:      log,
	})
	if err != nil {
		return nil, err
	}

	a := &Agent{cfg: cfg, log: log, alerts: d, battery: battery, loop: loop}
	if cfg.Server.Enabled {
		srv, err := server.New(cfg)
		if err != nil {
			return nil, err
		}
		a.srv = srv
	}
	return a, nil
}

// RegisterMetrics attaches the agent's Prometheus collectors to r. Safe to
// call once per process.
func (a *Agent) RegisterMetrics(r prometheus.Registerer) error {
	return metrics.Register(r)
}

// Run executes monitor cycles until ctx is cancelled. When the status
// server is enabled it serves for the same lifetime.
func (a *Agent) Run(ctx context.Context) error {
	if a.srv != nil {
		go func() {
			a.log.Info("status server listening", "addr", a.srv.Addr)
			if err := server.Serve(a.srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("status server failed", "err", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.srv.Shutdown(shutCtx)
		}()
	}
	return a.loop.Run(ctx)
}

// CheckOnce runs the full probe battery a single time.
func (a *Agent) CheckOnce(ctx context.Context) HealthSnapshot {
	return a.battery.Run(ctx)
}

// Notify dispatches an alert through the agent's cooldown and sinks, for
// embedders that surface their own conditions.
func (a *Agent) Notify(alertType, message string, critical bool) {
	sev := alert.SeverityWarning
	if critical {
		sev = alert.SeverityCritical
	}
	a.alerts.Notify(alertType, message, sev)
}

// Logger exposes the agent's logger for embedders.
func (a *Agent) Logger() *slog.Logger { return a.log }

// StatusHandler returns the read-only status router for mounting inside an
// existing HTTP application.
func StatusHandler(metricsFile, basePath string) http.Handler {
	return server.NewRouter(metricsFile, basePath).Handler()
}

func ensureDirs(cfg Config) error {
	dirs := []string{cfg.Paths.SnapshotsDir, cfg.Paths.JournalDir}
	for _, p := range []string{cfg.Paths.StateFile, cfg.Paths.MetricsFile} {
		if p != "" {
			dirs = append(dirs, filepath.Dir(p))
		}
	}
	for _, d := range dirs {
		if d == "" || d == "." {
			continue
		}
		if err := os.MkdirAll(d, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
