package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/loykin/gatewatch/internal/alert"
	"github.com/loykin/gatewatch/internal/metrics"
)

// CheckHTTP issues a bounded-timeout request to the gateway root and
// records wall-clock latency. Healthy means HTTP 200 within the timeout.
// Latency threshold breaches raise their alert from here.
func (b *Battery) CheckHTTP(ctx context.Context) (healthy bool, latencyMs int64) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.gw.URL, nil)
	if err != nil {
		b.log.Warn("http check request failed", "err", err)
		return false, 0
	}
	start := time.Now()
	resp, err := b.client.Do(req)
	latency := time.Since(start)
	latencyMs = latency.Milliseconds()
	metrics.ObserveHTTPLatency(latency.Seconds())
	if err != nil {
		b.log.Warn("http check failed", "err", err, "latency_ms", latencyMs)
		return false, latencyMs
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	b.classifyLatency(latencyMs)
	return resp.StatusCode == http.StatusOK, latencyMs
}

func (b *Battery) classifyLatency(latencyMs int64) {
	if b.notifier == nil {
		return
	}
	switch {
	case latencyMs >= b.mon.LatencyCritMs:
		b.notifier.Notify("latency_critical",
			fmt.Sprintf("gateway responded in %dms", latencyMs), alert.SeverityCritical)
	case latencyMs >= b.mon.LatencyWarnMs:
		b.notifier.Notify("latency_warning",
			fmt.Sprintf("gateway responded in %dms", latencyMs), alert.SeverityWarning)
	}
}

// CheckUpstream tests network reachability of the fixed external API.
// Any response at all counts as reachable, error statuses included; only
// total connection failure is the negative signal.
func (b *Battery) CheckUpstream(ctx context.Context) bool {
	if b.mon.UpstreamURL == "" {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.mon.UpstreamURL, nil)
	if err != nil {
		return false
	}
	resp, err := b.upstream.Do(req)
	if err != nil {
		b.log.Warn("upstream unreachable", "url", b.mon.UpstreamURL, "err", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return true
}
