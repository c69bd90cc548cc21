// Package tls builds the status server's TLS configuration from a
// certificate pair on disk.
package tls

import (
	"crypto/tls"
	"fmt"

	"github.com/loykin/gatewatch/internal/config"
)

func parseVersion(ver string) (uint16, bool) {
	switch ver {
	case "", "default":
		return tls.VersionTLS13, false
	case "1.2", "TLS1.2", "tls1.2":
		return tls.VersionTLS12, true
	case "1.3", "TLS1.3", "tls1.3":
		return tls.VersionTLS13, true
	default:
		return 0, false
	}
}

// Load returns a server-side TLS config for the cert pair in cfg, or nil
// when no pair is configured.
func Load(cfg config.TLS) (*tls.Config, error) {
	if cfg.CertFile == "" && cfg.KeyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls key pair: %w", err)
	}
	minVer, ok := parseVersion(cfg.MinVersion)
	if !ok && cfg.MinVersion != "" && cfg.MinVersion != "default" {
		return nil, fmt.Errorf("unsupported tls min_version %q", cfg.MinVersion)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVer,
	}, nil
}
