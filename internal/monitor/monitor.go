// Package monitor drives the fixed-interval check cycle: probes first,
// then trackers and alerting, then recovery, then persistence. One cycle
// is strictly sequential; nothing in it may terminate the agent.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loykin/gatewatch/internal/alert"
	"github.com/loykin/gatewatch/internal/config"
	"github.com/loykin/gatewatch/internal/metrics"
	"github.com/loykin/gatewatch/internal/probe"
	"github.com/loykin/gatewatch/internal/snapshot"
	"github.com/loykin/gatewatch/internal/state"
	"github.com/loykin/gatewatch/internal/trend"
)

// Recoverer is the escalation surface the loop drives when the gateway is
// down or pre-failing.
type Recoverer interface {
	Recover(ctx context.Context, processPresent bool, pid int32)
	ProactiveGraceful(ctx context.Context, pid int32)
	Attempts() int
	SetAttempts(n int)
}

// ConfigRestorer restores the gateway's config from the backup volume when
// the live file fails to parse.
type ConfigRestorer interface {
	RestoreConfigFromBackup(livePath string) error
}

// Loop owns all mutable runtime state: the memory window, the config hash,
// the cycle counter. Everything is confined to the single goroutine running
// Run; persisted copies are rewritten atomically for external readers.
type Loop struct {
	cfg      config.Config
	battery  *probe.Battery
	tracker  *trend.Tracker
	alerts   *alert.Dispatcher
	rec      Recoverer
	restorer ConfigRestorer
	store    *state.Store
	pub      *Publisher
	clock    Clock
	log      *slog.Logger

	cycle      int
	configHash string
}

// Deps collects the loop's collaborators. All fields are required except
// Clock and Log, which default to the real clock and slog.Default.
type Deps struct {
	Battery  *probe.Battery
	Tracker  *trend.Tracker
	Alerts   *alert.Dispatcher
	Recovery Recoverer
	Restorer ConfigRestorer
	Store    *state.Store
	Clock    Clock
	Log      *slog.Logger
}

// New builds a Loop and resumes persisted state: restart attempts, the
// memory window and the config hash survive agent restarts.
func New(cfg config.Config, d Deps) (*Loop, error) {
	if d.Clock == nil {
		d.Clock = RealClock()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	l := &Loop{
		cfg:      cfg,
		battery:  d.Battery,
		tracker:  d.Tracker,
		alerts:   d.Alerts,
		rec:      d.Recovery,
		restorer: d.Restorer,
		store:    d.Store,
		pub:      NewPublisher(cfg.Paths.MetricsFile),
		clock:    d.Clock,
		log:      d.Log,
	}
	st, err := d.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	l.rec.SetAttempts(st.RestartAttempts)
	l.tracker.Restore(st.MemoryHistory)
	l.configHash = st.ConfigHash
	if st.RestartAttempts > 0 {
		l.log.Info("resumed restart counter from previous run", "attempts", st.RestartAttempts)
	}
	return l, nil
}

// Run executes cycles until ctx is cancelled. The interval is measured from
// the end of one cycle to the start of the next; a slow cycle delays but
// never overlaps the following one.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("monitor loop starting",
		"gateway", l.cfg.Gateway.Name, "interval", l.cfg.Monitor.Interval)
	for {
		l.RunCycle(ctx)
		select {
		case <-ctx.Done():
			l.log.Info("monitor loop stopping")
			return nil
		case <-l.clock.After(l.cfg.Monitor.Interval):
		}
	}
}

// RunCycle performs one full check pass. A panic in any check is confined
// to the cycle; the loop continues on the next tick.
func (l *Loop) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("cycle panicked", "cycle", l.cycle, "panic", r)
		}
	}()

	l.cycle++
	metrics.IncCycle()

	// Cheap fail-fast gates first.
	diskPct := l.checkDisk()
	backupMounted := l.checkBackup()
	if !l.checkConfig() {
		// An unusable gateway config makes the rest of the cycle moot;
		// restore has been attempted, re-check next tick.
		l.finishCycle(probe.Snapshot{
			Timestamp:     l.clock.Now(),
			DiskUsedPct:   diskPct,
			BackupMounted: backupMounted,
		})
		return
	}

	snap := probe.Snapshot{Timestamp: l.clock.Now(), BackupMounted: backupMounted}
	proc, running := l.battery.CheckProcess()
	snap.ProcessRunning = running
	if running {
		snap.PID = proc.PID
		st := l.battery.Stats(proc.PID)
		snap.MemoryMB = st.MemoryMB
		snap.CPUPercent = st.CPUPercent
	}
	snap.HTTPHealthy, snap.LatencyMs = l.battery.CheckHTTP(ctx)
	snap.DiskUsedPct = diskPct

	if !running || !snap.HTTPHealthy {
		l.alerts.Notify("gateway_down", l.downMessage(running, snap.LatencyMs), alert.SeverityCritical)
		l.rec.Recover(ctx, running, snap.PID)
		l.finishCycle(snap)
		return
	}

	l.checkMemory(ctx, snap.PID, snap.MemoryMB)
	snap.RecentErrors = l.checkErrorDensity()
	snap.UpstreamReachable = l.battery.CheckUpstream(ctx)
	if !snap.UpstreamReachable {
		l.alerts.Notify("api_unreachable", "upstream API is not reachable", alert.SeverityWarning)
	}

	if l.cfg.Monitor.JobCheckEvery > 0 && l.cycle%l.cfg.Monitor.JobCheckEvery == 0 {
		if failed := l.battery.CheckJobs(ctx); len(failed) > 0 {
			l.alerts.Notify("jobs_failed",
				fmt.Sprintf("scheduled jobs failed: %s", strings.Join(failed, ", ")),
				alert.SeverityWarning)
		}
	}
	if l.cfg.Monitor.HeartbeatEvery > 0 && l.cycle%l.cfg.Monitor.HeartbeatEvery == 0 {
		l.log.Info("heartbeat",
			"cycle", l.cycle, "memory_mb", int(snap.MemoryMB), "disk_pct", int(snap.DiskUsedPct))
	}

	l.finishCycle(snap)
}

func (l *Loop) checkDisk() float64 {
	pct := l.battery.CheckDisk()
	switch {
	case pct >= l.cfg.Monitor.DiskCritPct:
		l.alerts.Notify("disk_critical",
			fmt.Sprintf("disk usage at %.0f%%", pct), alert.SeverityCritical)
	case pct >= l.cfg.Monitor.DiskWarnPct:
		l.alerts.Notify("disk_warning",
			fmt.Sprintf("disk usage at %.0f%%", pct), alert.SeverityWarning)
	}
	metrics.SetDiskUsedPercent(pct)
	return pct
}

func (l *Loop) checkBackup() bool {
	if l.cfg.Paths.BackupVolume == "" {
		return false
	}
	mounted := l.battery.CheckBackupVolume()
	if !mounted {
		l.alerts.Notify("backup_missing", "backup volume is not mounted", alert.SeverityCritical)
	}
	return mounted
}

// checkConfig reports whether the cycle may continue. Invalid or missing
// config is critical and triggers restore-from-backup; a hash change with a
// still-valid file is only flagged, never acted on.
func (l *Loop) checkConfig() bool {
	status, hash := l.battery.CheckConfig(l.configHash)
	switch status {
	case probe.ConfigOK:
		l.configHash = hash
		return true
	case probe.ConfigChanged:
		l.alerts.Notify("config_changed",
			"gateway config was modified outside the agent", alert.SeverityWarning)
		l.configHash = hash
		return true
	}

	l.alerts.Notify("config_invalid",
		fmt.Sprintf("gateway config is %s", status), alert.SeverityCritical)
	if l.cfg.Gateway.ConfigPath == "" {
		return false
	}
	if err := l.restorer.RestoreConfigFromBackup(l.cfg.Gateway.ConfigPath); err != nil {
		if errors.Is(err, snapshot.ErrNoBackup) {
			l.alerts.Notify("config_restore_failed",
				"no valid config backup available", alert.SeverityCritical)
		} else {
			l.alerts.Notify("config_restore_failed",
				fmt.Sprintf("config restore failed: %v", err), alert.SeverityCritical)
		}
	} else {
		l.log.Info("restored gateway config from backup", "path", l.cfg.Gateway.ConfigPath)
		l.configHash = ""
	}
	return false
}

func (l *Loop) checkMemory(ctx context.Context, pid int32, mb float64) {
	if mb <= 0 {
		return
	}
	if sig, leaking := l.tracker.Observe(mb); leaking {
		l.alerts.Notify("memory_leak",
			fmt.Sprintf("memory grew %.0fMB over the last %d checks (%.0f -> %.0f)",
				sig.GrowthMB, sig.Window, sig.OldestMB, sig.LatestMB),
			alert.SeverityWarning)
	}
	switch {
	case mb >= l.cfg.Monitor.MemoryCritMB:
		l.alerts.Notify("memory_critical",
			fmt.Sprintf("gateway memory at %.0fMB", mb), alert.SeverityCritical)
		l.rec.ProactiveGraceful(ctx, pid)
	case mb >= l.cfg.Monitor.MemoryWarnMB:
		l.alerts.Notify("memory_warning",
			fmt.Sprintf("gateway memory at %.0fMB", mb), alert.SeverityWarning)
	}
	metrics.SetGatewayMemoryMB(mb)
}

func (l *Loop) checkErrorDensity() int {
	n := l.battery.CheckErrorDensity()
	if n > l.cfg.Monitor.ErrorLineLimit {
		l.alerts.Notify("error_density",
			fmt.Sprintf("%d error lines in the gateway log tail", n), alert.SeverityWarning)
	}
	return n
}

func (l *Loop) downMessage(running bool, latencyMs int64) string {
	if !running {
		return "gateway process is not running"
	}
	return fmt.Sprintf("gateway HTTP check failed after %dms", latencyMs)
}

// finishCycle persists state and publishes the metrics snapshot. Runs for
// every cycle, including short-circuited ones, so external readers always
// see a fresh timestamp.
func (l *Loop) finishCycle(snap probe.Snapshot) {
	metrics.SetGatewayUp(snap.ProcessRunning && snap.HTTPHealthy)

	st := state.State{
		RestartAttempts: l.rec.Attempts(),
		LastCheck:       snap.Timestamp,
		LastMemoryMB:    snap.MemoryMB,
		MemoryHistory:   l.tracker.Samples(),
		ConfigHash:      l.configHash,
	}
	if err := l.store.Save(st); err != nil {
		l.log.Error("state save failed", "err", err)
	}
	if err := l.pub.Publish(snap); err != nil {
		l.log.Error("metrics publish failed", "err", err)
	}
}

// Cycle reports how many cycles have run.
func (l *Loop) Cycle() int { return l.cycle }
