package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/loykin/gatewatch/internal/config"
)

// ErrNoBackup is returned when no usable config backup exists.
var ErrNoBackup = errors.New("no valid config backup found")

/// Record describes one pre-restart capture: the persisted session list and
// the copied memory-workspace tree, timestamped at creation.
type Record struct {
	SessionsFile string
	WorkspaceDir string
	CreatedAt    time.Time
}

// Manager captures point-in-time copies of in-flight session data and
// working memory before disruptive restarts, with bounded retention.
type Manager struct {
	dir          string
	workspace    string
	backupVolume string
	sessionsURL  string
	client       *http.Client
	keep         int
	log          *slog.Logger

	now func() time.Time
}

func NewManager(cfg config.Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		dir:          cfg.Paths.SnapshotsDir,
		workspace:    cfg.Gateway.WorkspaceDir,
		backupVolume: cfg.Paths.BackupVolume,
		sessionsURL:  strings.TrimRight(cfg.Gateway.URL, "/") + cfg.Gateway.SessionsPath,
		client:       &http.Client{Timeout: cfg.Monitor.SnapshotTimeout},
		keep:         cfg.Monitor.SnapshotKeep,
		log:          log,
		now:          time.Now,
	}
}

// Capture fetches the gateway's current session list (best effort) and
// copies the memory-workspace tree. It runs only immediately before a
// restart action, never on a healthy cycle. After each capture, artifacts
// beyond the retention bound are deleted, oldest first.
func (m *Manager) Capture(ctx context.Context) (Record, error) {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return Record{}, fmt.Errorf("snapshots dir: %w", err)
	}
	now := m.now()
	stamp := now.Format("20060102-150405")
	rec := Record{CreatedAt: now}

	sessions := m.fetchSessions(ctx)
	sessionsFile := filepath.Join(m.dir, "sessions-"+stamp+".json")
	if err := os.WriteFile(sessionsFile, sessions, 0o600); err != nil {
		m.log.Warn("session capture write failed", "err", err)
	} else {
		rec.SessionsFile = sessionsFile
	}

	if m.workspace != "" {
		dst := filepath.Join(m.dir, "workspace-"+stamp)
		if err := copyTree(m.workspace, dst); err != nil {
			m.log.Warn("workspace copy failed", "err", err)
		} else {
			rec.WorkspaceDir = dst
		}
	}

	m.prune()
	return rec, nil
}

// fetchSessions asks the gateway for in-flight sessions. Absence of data
// does not fail the capture; an empty JSON list is recorded instead.
func (m *Manager) fetchSessions(ctx context.Context) []byte {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.sessionsURL, nil)
	if err != nil {
		return []byte("[]")
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Warn("session fetch failed", "err", err)
		return []byte("[]")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return []byte("[]")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil || len(body) == 0 {
		return []byte("[]")
	}
	return body
}

// prune keeps the newest `keep` artifacts of each kind.
func (m *Manager) prune() {
	m.pruneGlob(filepath.Join(m.dir, "sessions-*.json"))
	m.pruneGlob(filepath.Join(m.dir, "workspace-*"))
}

func (m *Manager) pruneGlob(pattern string) {
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) <= m.keep {
		return
	}
	type aged struct {
		path string
		mod  time.Time
	}
	entries := make([]aged, 0, len(matches))
	for _, p := range matches {
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		entries = append(entries, aged{path: p, mod: fi.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mod.After(entries[j].mod) })
	for _, e := range entries[min(m.keep, len(entries)):] {
		if err := os.RemoveAll(e.path); err != nil {
			m.log.Warn("snapshot prune failed", "path", e.path, "err", err)
		}
	}
}

// EmergencyBackup copies the full workspace to the backup volume. Best
// effort: the caller skips it when the volume is absent, and a partial
// copy is still better than none before a hard restart.
func (m *Manager) EmergencyBackup() error {
	if m.workspace == "" || m.backupVolume == "" {
		return nil
	}
	dst := filepath.Join(m.backupVolume, "emergency-"+m.now().Format("20060102-150405"))
	if err := copyTree(m.workspace, dst); err != nil {
		return fmt.Errorf("emergency backup: %w", err)
	}
	return nil
}

// RestoreConfigFromBackup locates the most recent config backup on the
// backup volume, verifies its ownership matches the current user, and
// copies it over the live config. A backup owned by anyone else is
// refused: a local attacker must not be able to plant a file the agent
// would trust.
func (m *Manager) RestoreConfigFromBackup(livePath string) error {
	if m.backupVolume == "" {
		return ErrNoBackup
	}
	pattern := filepath.Join(m.backupVolume, "config-backups", "*")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ErrNoBackup
	}

	var newest string
	var newestMod time.Time
	for _, p := range matches {
		fi, err := os.Stat(p)
		if err != nil || fi.IsDir() {
			continue
		}
		if !fileOwnedByCurrentUser(fi) {
			m.log.Error("refusing untrusted config backup", "path", p)
			continue
		}
		if fi.ModTime().After(newestMod) {
			newest, newestMod = p, fi.ModTime()
		}
	}
	if newest == "" {
		return ErrNoBackup
	}

	data, err := os.ReadFile(newest)
	if err != nil {
		return fmt.Errorf("read backup %s: %w", newest, err)
	}
	if err := os.WriteFile(livePath, data, 0o600); err != nil {
		return fmt.Errorf("restore config: %w", err)
	}
	m.log.Info("config restored from backup", "backup", newest, "target", livePath)
	return nil
}

// copyTree recursively copies a directory. Symlinks are skipped; the
// workspace is plain files and directories.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case fi.IsDir():
			return os.MkdirAll(target, 0o700)
		case fi.Mode().IsRegular():
			return copyFile(path, target, fi.Mode().Perm())
		default:
			return nil
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
