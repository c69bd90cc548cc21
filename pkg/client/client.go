// Package client talks to a running agent's read-only status server. It is
// what external tooling (and the status subcommand with --api-url) uses
// instead of reading the published files directly.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/gatewatch/internal/monitor"
)

// Config holds client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Insecure bool // skip TLS verification, for self-signed status servers
}

// DefaultConfig returns the client defaults matching the agent's default
// listen address.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:9815",
		Timeout: 10 * time.Second,
	}
}

type Client struct {
	baseURL string
	client  *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	transport := http.DefaultTransport
	if cfg.Insecure {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
		transport = t
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}
}

// Status fetches the agent's latest published snapshot.
func (c *Client) Status(ctx context.Context) (monitor.MetricsFile, error) {
	var m monitor.MetricsFile
	body, err := c.get(ctx, "/status")
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return m, fmt.Errorf("decode status: %w", err)
	}
	return m, nil
}

// Healthy reports whether the agent itself is up.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.get(ctx, "/healthz")
	return err == nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
