package probe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/loykin/gatewatch/internal/alert"
	"github.com/loykin/gatewatch/internal/config"
	"github.com/loykin/gatewatch/internal/system"
)

// Snapshot is the point-in-time result of one probe battery run. It is
// produced fresh each cycle, never mutated after creation, and consumed by
// the trend tracker, dispatcher and publisher within the same cycle.
type Snapshot struct {
	Timestamp         time.Time `json:"timestamp"`
	ProcessRunning    bool      `json:"process_running"`
	PID               int32     `json:"pid"`
	HTTPHealthy       bool      `json:"http_healthy"`
	LatencyMs         int64     `json:"latency_ms"`
	MemoryMB          float64   `json:"memory_mb"`
	CPUPercent        float64   `json:"cpu_percent"`
	DiskUsedPct       float64   `json:"disk_used_pct"`
	BackupMounted     bool      `json:"backup_mounted"`
	UpstreamReachable bool      `json:"upstream_reachable"`
	RecentErrors      int       `json:"recent_errors"`
}

// Notifier is the alerting surface the battery needs. Latency alerting is
// coupled to the HTTP check itself rather than deferred to a later stage.
type Notifier interface {
	Notify(alertType, message string, sev alert.Severity)
}

// Battery runs the independent sub-checks. A sub-check that cannot complete
// yields a negative or zero result for its field; it never aborts the rest
// of the battery.
type Battery struct {
	gw       config.GatewayConfig
	mon      config.MonitorConfig
	backup   string
	sys      system.Facade
	client   *http.Client
	upstream *http.Client
	notifier Notifier
	log      *slog.Logger
}

func NewBattery(cfg config.Config, sys system.Facade, n Notifier, log *slog.Logger) *Battery {
	if log == nil {
		log = slog.Default()
	}
	return &Battery{
		gw:       cfg.Gateway,
		mon:      cfg.Monitor,
		backup:   cfg.Paths.BackupVolume,
		sys:      sys,
		client:   &http.Client{Timeout: cfg.Monitor.HTTPTimeout},
		upstream: &http.Client{Timeout: cfg.Monitor.UpstreamTimeout},
		notifier: n,
		log:      log,
	}
}

// CheckProcess is the boolean presence test for the gateway process.
func (b *Battery) CheckProcess() (system.Process, bool) {
	p, ok, err := b.sys.FindProcess(b.gw.Name)
	if err != nil {
		b.log.Warn("process check failed", "err", err)
		return system.Process{}, false
	}
	return p, ok
}

// Stats samples memory and CPU for a found process. Zero values on failure.
func (b *Battery) Stats(pid int32) system.Stats {
	st, err := b.sys.ProcessStats(pid)
	if err != nil {
		b.log.Warn("process stats failed", "pid", pid, "err", err)
		return system.Stats{}
	}
	return st
}

// CheckDisk reports used space on the primary volume.
func (b *Battery) CheckDisk() float64 {
	pct, err := b.sys.DiskUsagePercent("/")
	if err != nil {
		b.log.Warn("disk check failed", "err", err)
		return 0
	}
	return pct
}

// CheckBackupVolume reports whether the backup mount point is present.
func (b *Battery) CheckBackupVolume() bool {
	if b.backup == "" {
		return false
	}
	ok, err := b.sys.IsVolumeMounted(b.backup)
	if err != nil {
		b.log.Warn("backup volume check failed", "err", err)
		return false
	}
	return ok
}

// Run executes the full battery once and assembles a Snapshot. The monitor
// loop calls the sub-checks individually for its gate ordering; Run serves
// one-shot probes and re-probes after recovery actions.
func (b *Battery) Run(ctx context.Context) Snapshot {
	s := Snapshot{Timestamp: time.Now()}
	p, running := b.CheckProcess()
	s.ProcessRunning = running
	if running {
		s.PID = p.PID
		st := b.Stats(p.PID)
		s.MemoryMB = st.MemoryMB
		s.CPUPercent = st.CPUPercent
	}
	s.HTTPHealthy, s.LatencyMs = b.CheckHTTP(ctx)
	s.UpstreamReachable = b.CheckUpstream(ctx)
	s.DiskUsedPct = b.CheckDisk()
	s.BackupMounted = b.CheckBackupVolume()
	s.RecentErrors = b.CheckErrorDensity()
	return s
}

// HealthyNow is the re-probe used after a recovery action: the gateway
// counts as recovered only when the process is present and answering HTTP.
func (b *Battery) HealthyNow(ctx context.Context) bool {
	_, running := b.CheckProcess()
	if !running {
		return false
	}
	healthy, _ := b.CheckHTTP(ctx)
	return healthy
}
