// Package server exposes a read-only HTTP view of the agent: the latest
// published metrics snapshot, a liveness endpoint, and Prometheus metrics.
// There is deliberately no control surface; the agent is driven only by
// its own loop and the OS service lifecycle.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/gatewatch/internal/metrics"
	"github.com/loykin/gatewatch/internal/monitor"
	ctls "github.com/loykin/gatewatch/internal/tls"

	"github.com/loykin/gatewatch/internal/config"
)

// Router provides embeddable read-only HTTP handlers.
// Endpoints:
//
//	GET {basePath}/status   latest metrics snapshot (from the published file)
//	GET {basePath}/healthz  agent liveness
//	GET {basePath}/metrics  Prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	metricsFile string
	basePath    string
}

func NewRouter(metricsFile, basePath string) *Router {
	return &Router{metricsFile: metricsFile, basePath: sanitizeBase(basePath)}
}

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}

// Handler returns an http.Handler powered by gin that can be mounted in
// any server or mux.
func (r *Router) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

type errorResp struct {
	Error string `json:"error"`
}

// handleStatus serves the same document the status-display client polls
// from disk. The file is the source of truth; the handler never runs
// checks itself.
func (r *Router) handleStatus(c *gin.Context) {
	b, err := os.ReadFile(r.metricsFile)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusServiceUnavailable, errorResp{Error: "no metrics published yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	var m monitor.MetricsFile
	if err := json.Unmarshal(b, &m); err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: "metrics file corrupt: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// New builds a standalone HTTP server from the agent config. Start it with
// ListenAndServe (or ListenAndServeTLS when a cert pair is configured;
// Serve wraps that choice).
func New(cfg config.Config) (*http.Server, error) {
	r := NewRouter(cfg.Paths.MetricsFile, cfg.Server.BasePath)
	tlsConf, err := ctls.Load(cfg.Server.TLS)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           r.Handler(),
		TLSConfig:         tlsConf,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, nil
}

// Serve runs srv until it is shut down, choosing TLS when configured.
func Serve(srv *http.Server) error {
	if srv.TLSConfig != nil {
		return srv.ListenAndServeTLS("", "")
	}
	return srv.ListenAndServe()
}
