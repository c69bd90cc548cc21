package probe

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"

	"github.com/loykin/gatewatch/internal/config"
)

// ConfigStatus classifies the gateway config file's condition.
type ConfigStatus int

const (
	// ConfigOK means the file exists, parses, and matches the known hash.
	ConfigOK ConfigStatus = iota
	// ConfigChanged means the file parses but its hash moved since the
	// last cycle: an unexpected external edit, a warning, and deliberately
	// nothing more.
	ConfigChanged
	// ConfigMissing means the file does not exist.
	ConfigMissing
	// ConfigInvalid means the file exists but does not parse; this is the
	// corruption case that triggers restore-from-backup.
	ConfigInvalid
)

func (s ConfigStatus) String() string {
	switch s {
	case ConfigOK:
		return "ok"
	case ConfigChanged:
		return "changed"
	case ConfigMissing:
		return "missing"
	case ConfigInvalid:
		return "invalid"
	}
	return "unknown"
}

// CheckConfig verifies the gateway's own config file: it must exist and
// parse as well-formed structured data. The returned hash is the file's
// identity for cross-cycle drift detection; prevHash is the identity
// recorded on the previous cycle ("" on first run, which never counts as
// drift).
func (b *Battery) CheckConfig(prevHash string) (ConfigStatus, string) {
	path := b.gw.ConfigPath
	if path == "" {
		return ConfigOK, prevHash
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ConfigMissing, ""
		}
		b.log.Warn("config read failed", "path", path, "err", err)
		return ConfigMissing, ""
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	if err := config.CheckWellFormed(path); err != nil {
		b.log.Error("gateway config corrupt", "path", path, "err", err)
		return ConfigInvalid, hash
	}
	if prevHash != "" && prevHash != hash {
		return ConfigChanged, hash
	}
	return ConfigOK, hash
}
