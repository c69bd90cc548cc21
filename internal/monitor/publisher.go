package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/loykin/gatewatch/internal/probe"
	"github.com/loykin/gatewatch/internal/state"
)

// MetricsFile is the world-readable snapshot consumed by the external
// status-display client. The client only polls this file and never invokes
// checks itself, so the field set is a stable contract.
type MetricsFile struct {
	Timestamp int64          `json:"timestamp"`
	Datetime  string         `json:"datetime"`
	Gateway   GatewayMetrics `json:"gateway"`
	System    SystemMetrics  `json:"system"`
	Health    HealthMetrics  `json:"health"`
}

type GatewayMetrics struct {
	PID        int32   `json:"pid"`
	MemoryMB   float64 `json:"memory_mb"`
	CPUPercent float64 `json:"cpu_percent"`
}

type SystemMetrics struct {
	DiskPercent        float64 `json:"disk_percent"`
	BackupDriveMounted bool    `json:"backup_drive_mounted"`
}

type HealthMetrics struct {
	GatewayRunning bool `json:"gateway_running"`
	GatewayHealthy bool `json:"gateway_healthy"`
	APIReachable   bool `json:"api_reachable"`
}

// Publisher rewrites the metrics file atomically each cycle so a polling
// reader never observes a partial document.
type Publisher struct {
	path string
}

func NewPublisher(path string) *Publisher { return &Publisher{path: path} }

func (p *Publisher) Publish(s probe.Snapshot) error {
	if p.path == "" {
		return nil
	}
	m := MetricsFile{
		Timestamp: s.Timestamp.Unix(),
		Datetime:  s.Timestamp.Format(time.RFC3339),
		Gateway: GatewayMetrics{
			PID:        s.PID,
			MemoryMB:   s.MemoryMB,
			CPUPercent: s.CPUPercent,
		},
		System: SystemMetrics{
			DiskPercent:        s.DiskUsedPct,
			BackupDriveMounted: s.BackupMounted,
		},
		Health: HealthMetrics{
			GatewayRunning: s.ProcessRunning,
			GatewayHealthy: s.ProcessRunning && s.HTTPHealthy,
			APIReachable:   s.UpstreamReachable,
		},
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := state.WriteFileAtomic(p.path, b, 0o644); err != nil {
		return fmt.Errorf("publish metrics: %w", err)
	}
	return nil
}
