// Package recovery implements the restart escalation ladder for the
// supervised gateway: graceful signal first, supervisor-forced restart
// second, manual-intervention alert when attempts are exhausted.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loykin/gatewatch/internal/alert"
	"github.com/loykin/gatewatch/internal/config"
	"github.com/loykin/gatewatch/internal/metrics"
	"github.com/loykin/gatewatch/internal/snapshot"
	"github.com/loykin/gatewatch/internal/system"
)

// Prober re-checks gateway health after a settle period.
type Prober interface {
	HealthyNow(ctx context.Context) bool
}

// Snapshotter captures pre-restart state. Both operations are best-effort
// from the controller's point of view; a failed capture never blocks a
// restart that the gateway's condition demands.
type Snapshotter interface {
	Capture(ctx context.Context) (snapshot.Record, error)
	EmergencyBackup() error
}

// Notifier is the alert surface the controller reports through.
type Notifier interface {
	Notify(alertType, message string, sev alert.Severity)
	Event(name, message string, sev alert.Severity)
}

// Controller owns the restart-attempt counter and decides how aggressively
// to recover a degraded gateway. It is driven once per monitor cycle and is
// not safe for concurrent use.
type Controller struct {
	gw  config.GatewayConfig
	mon config.MonitorConfig

	pause        time.Duration // post-exhaustion hold, from the alert cooldown
	backupVolume string

	sys      system.Facade
	prober   Prober
	snaps    Snapshotter
	notifier Notifier
	log      *slog.Logger

	attempts    int
	pausedUntil time.Time

	sleep func(time.Duration)
	now   func() time.Time
}

func NewController(cfg config.Config, sys system.Facade, p Prober, s Snapshotter, n Notifier, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		gw:           cfg.Gateway,
		mon:          cfg.Monitor,
		pause:        cfg.Alerts.Cooldown,
		backupVolume: cfg.Paths.BackupVolume,
		sys:          sys,
		prober:       p,
		snaps:        s,
		notifier:     n,
		log:          log,
		sleep:        time.Sleep,
		now:          time.Now,
	}
}

// Attempts reports the current failed-attempt count for persistence.
func (c *Controller) Attempts() int { return c.attempts }

// SetAttempts restores the counter from persisted state at startup.
func (c *Controller) SetAttempts(n int) {
	if n < 0 {
		n = 0
	}
	c.attempts = n
}

// Paused reports whether the controller is holding off after exhausting
// its attempts. While paused, Recover is a no-op.
func (c *Controller) Paused() bool { return c.now().Before(c.pausedUntil) }

// Recover runs one escalation pass. processPresent and pid come from the
// probe that found the gateway unhealthy this cycle. A present process gets
// a graceful attempt first; an absent one goes straight to the supervisor.
func (c *Controller) Recover(ctx context.Context, processPresent bool, pid int32) {
	if c.Paused() {
		c.log.Debug("recovery paused after exhausted attempts",
			"until", c.pausedUntil.Format(time.RFC3339))
		return
	}

	if processPresent {
		if c.graceful(ctx, pid) {
			return
		}
	} else {
		c.log.Warn("gateway process absent, skipping graceful restart")
	}
	c.hard(ctx)
}

// ProactiveGraceful attempts a cooperative restart without escalating.
// Used when memory crosses the critical threshold while the HTTP check
// still passes; a gateway that stays unhealthy afterwards is picked up by
// the next cycle's ladder.
func (c *Controller) ProactiveGraceful(ctx context.Context, pid int32) {
	if c.Paused() {
		return
	}
	if c.graceful(ctx, pid) {
		return
	}
	c.log.Warn("proactive graceful restart did not recover the gateway", "pid", pid)
}

func (c *Controller) graceful(ctx context.Context, pid int32) bool {
	c.log.Info("attempting graceful restart", "pid", pid, "signal", c.gw.GracefulSignal)
	c.notifier.Event("graceful_restart",
		fmt.Sprintf("sent %s to pid %d", c.gw.GracefulSignal, pid), alert.SeverityInfo)
	metrics.IncRestart("graceful")
	if err := c.sys.SendSignal(pid, c.gw.GracefulSignal); err != nil {
		c.log.Error("graceful signal failed", "pid", pid, "err", err)
		metrics.IncRestartFailure("graceful")
		return false
	}
	c.sleep(c.mon.GracefulSettle)
	if c.prober.HealthyNow(ctx) {
		c.recovered("graceful")
		return true
	}
	metrics.IncRestartFailure("graceful")
	return false
}

func (c *Controller) hard(ctx context.Context) {
	// Snapshot before anything disruptive. Failures are logged and the
	// restart proceeds; a dead gateway loses more than a missed capture.
	if _, err := c.snaps.Capture(ctx); err != nil {
		c.log.Warn("pre-restart snapshot failed", "err", err)
	}
	if c.backupVolume != "" {
		if mounted, err := c.sys.IsVolumeMounted(c.backupVolume); err == nil && mounted {
			if err := c.snaps.EmergencyBackup(); err != nil {
				c.log.Warn("emergency backup failed", "err", err)
			}
		} else {
			c.log.Warn("backup volume absent, skipping emergency backup")
		}
	}

	argv := expandArgv(c.mon.SupervisorCmd, c.gw.ServiceID)
	c.log.Info("attempting hard restart", "cmd", strings.Join(argv, " "))
	c.notifier.Event("hard_restart",
		fmt.Sprintf("supervisor restart issued for %s", c.gw.ServiceID), alert.SeverityWarning)
	metrics.IncRestart("hard")

	cmdCtx, cancel := context.WithTimeout(ctx, c.mon.HTTPTimeout)
	err := c.sys.SupervisorRestart(cmdCtx, argv)
	cancel()
	if err != nil {
		c.log.Error("supervisor restart command failed", "err", err)
	}

	c.sleep(c.mon.HardSettle)
	if c.prober.HealthyNow(ctx) {
		c.recovered("hard")
		return
	}

	c.attempts++
	metrics.IncRestartFailure("hard")
	c.log.Error("hard restart did not recover the gateway",
		"attempts", c.attempts, "max", c.mon.MaxAttempts)
	if c.attempts >= c.mon.MaxAttempts {
		c.exhausted()
	}
}

func (c *Controller) recovered(kind string) {
	c.attempts = 0
	c.log.Info("gateway recovered", "via", kind)
	c.notifier.Notify("restart_success",
		fmt.Sprintf("gateway recovered via %s restart", kind), alert.SeverityInfo)
	c.notifier.Event("recovered",
		fmt.Sprintf("gateway healthy again after %s restart", kind), alert.SeverityInfo)
}

func expandArgv(argv []string, serviceID string) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = strings.ReplaceAll(a, "{service}", serviceID)
	}
	return out
}

// exhausted resets the counter so the next episode starts clean, and holds
// recovery for one cooldown period to stop restart thrashing.
func (c *Controller) exhausted() {
	c.notifier.Notify("manual_intervention",
		fmt.Sprintf("gateway did not recover after %d restart attempts, manual intervention needed",
			c.mon.MaxAttempts), alert.SeverityCritical)
	c.notifier.Event("exhausted",
		fmt.Sprintf("recovery suspended for %s", c.pause), alert.SeverityCritical)
	c.attempts = 0
	c.pausedUntil = c.now().Add(c.pause)
}
