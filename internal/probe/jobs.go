package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// jobOutcome mirrors the gateway's scheduled-job report.
type jobOutcome struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// CheckJobs queries the gateway for the outcomes of its internally
// scheduled jobs and returns the names of those that failed. The monitor
// loop runs this on a longer period than the rest of the battery to bound
// its cost. An unreachable jobs endpoint yields no names and no error
// escalation; the HTTP check already covers gateway reachability.
func (b *Battery) CheckJobs(ctx context.Context) []string {
	url := strings.TrimRight(b.gw.URL, "/") + b.gw.JobsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Warn("job check failed", "err", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		b.log.Warn("job check status", "status", resp.StatusCode)
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}
	var jobs []jobOutcome
	if err := json.Unmarshal(body, &jobs); err != nil {
		b.log.Warn("job report malformed", "err", err)
		return nil
	}
	var failed []string
	for _, j := range jobs {
		switch strings.ToLower(j.Status) {
		case "failed", "error", "fatal":
			failed = append(failed, j.Name)
		}
	}
	return failed
}
