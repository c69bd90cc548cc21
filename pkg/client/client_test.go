package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"timestamp":1,"datetime":"x","gateway":{"pid":42,"memory_mb":512,"cpu_percent":3},"system":{"disk_percent":40,"backup_drive_mounted":true},"health":{"gateway_running":true,"gateway_healthy":true,"api_reachable":true}}`))
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	m, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if m.Gateway.PID != 42 || !m.Health.GatewayHealthy {
		t.Fatalf("unexpected status: %+v", m)
	}
	if !c.Healthy(context.Background()) {
		t.Fatal("healthy = false")
	}
}

func TestStatusErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no metrics published yet"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if _, err := c.Status(context.Background()); err == nil {
		t.Fatal("expected error for 503")
	}
}
