package alert

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loykin/gatewatch/internal/history"
	"github.com/loykin/gatewatch/internal/logger"
	"github.com/loykin/gatewatch/internal/metrics"
)

// Severity classifies an alert for sinks that render it differently.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// unsafeChars are stripped from every type and message before dispatch.
// Downstream sinks interpolate the text into external command invocations,
// so shell metacharacters never survive past this point.
const unsafeChars = ";|&`$(){}[]<>\"'"

// Sanitize removes characters unsafe for downstream shell or command
// contexts from s.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeChars, r) {
			return -1
		}
		return r
	}, s)
}

// Dispatcher deduplicates and rate-limits outbound notifications, then fans
// out to its sinks. Notify never returns an error: alerting must never
// block or fail monitoring, so every sink failure ends as a log line.
type Dispatcher struct {
	mu        sync.Mutex
	lastFired map[string]time.Time

	cooldown    time.Duration
	log         *slog.Logger
	sinks       []history.Sink // synchronous, bounded by sinkTimeout
	asyncSinks  []history.Sink // fire-and-forget (remote channels)
	sinkTimeout time.Duration

	now func() time.Time
}

// NewDispatcher builds a dispatcher with the given per-type cooldown.
func NewDispatcher(log *slog.Logger, cooldown time.Duration) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		lastFired:   make(map[string]time.Time),
		cooldown:    cooldown,
		log:         log,
		sinkTimeout: 10 * time.Second,
		now:         time.Now,
	}
}

// AddSink registers a synchronous local sink (journal, desktop, DB audit).
func (d *Dispatcher) AddSink(s history.Sink) { d.sinks = append(d.sinks, s) }

// AddAsyncSink registers a detached remote sink. Its latency never extends
// the check interval; delivery is best effort.
func (d *Dispatcher) AddAsyncSink(s history.Sink) { d.asyncSinks = append(d.asyncSinks, s) }

// Notify dispatches one alert unless the same type fired within the
// cooldown window. Suppression is silent apart from a debug line.
func (d *Dispatcher) Notify(alertType, message string, sev Severity) {
	alertType = Sanitize(alertType)
	message = Sanitize(message)

	now := d.now()
	d.mu.Lock()
	if last, ok := d.lastFired[alertType]; ok && now.Sub(last) < d.cooldown {
		d.mu.Unlock()
		metrics.IncAlertSuppressed(alertType)
		d.log.Debug("alert suppressed by cooldown", "type", alertType)
		return
	}
	d.lastFired[alertType] = now
	d.mu.Unlock()

	metrics.IncAlertFired(alertType)
	d.log.Log(context.Background(), logger.LevelAlert, message,
		"type", alertType, "severity", string(sev))

	e := history.Event{
		Type:       history.EventAlert,
		OccurredAt: now.UTC(),
		Name:       alertType,
		Severity:   string(sev),
		Message:    message,
	}
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.sinkTimeout)
		if err := s.Send(ctx, e); err != nil {
			d.log.Warn("alert sink failed", "type", alertType, "err", err)
		}
		cancel()
	}
	for _, s := range d.asyncSinks {
		go func(s history.Sink) {
			ctx, cancel := context.WithTimeout(context.Background(), d.sinkTimeout)
			defer cancel()
			if err := s.Send(ctx, e); err != nil {
				d.log.Warn("async alert sink failed", "type", alertType, "err", err)
			}
		}(s)
	}
}

// Event forwards a recovery event to all sinks without cooldown logic;
// recovery actions are rare and always worth recording.
func (d *Dispatcher) Event(name, message string, sev Severity) {
	e := history.Event{
		Type:       history.EventRecovery,
		OccurredAt: d.now().UTC(),
		Name:       Sanitize(name),
		Severity:   string(sev),
		Message:    Sanitize(message),
	}
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.sinkTimeout)
		if err := s.Send(ctx, e); err != nil {
			d.log.Warn("event sink failed", "name", e.Name, "err", err)
		}
		cancel()
	}
	for _, s := range d.asyncSinks {
		go func(s history.Sink) {
			ctx, cancel := context.WithTimeout(context.Background(), d.sinkTimeout)
			defer cancel()
			if err := s.Send(ctx, e); err != nil {
				d.log.Warn("async event sink failed", "name", e.Name, "err", err)
			}
		}(s)
	}
}

// LastFired reports when an alert type last dispatched.
func (d *Dispatcher) LastFired(alertType string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.lastFired[alertType]
	return t, ok
}
