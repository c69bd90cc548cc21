package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/gatewatch/internal/alert"
	"github.com/loykin/gatewatch/internal/config"
	"github.com/loykin/gatewatch/internal/history"
	"github.com/loykin/gatewatch/internal/probe"
	"github.com/loykin/gatewatch/internal/snapshot"
	"github.com/loykin/gatewatch/internal/state"
	"github.com/loykin/gatewatch/internal/system"
	"github.com/loykin/gatewatch/internal/trend"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func (f fixedClock) After(time.Duration) <-chan time.Time { return nil }

// recordingSink counts dispatched (non-suppressed) notifications by name.
type recordingSink struct{ names []string }

func (r *recordingSink) Send(_ context.Context, e history.Event) error {
	r.names = append(r.names, e.Name)
	return nil
}

func (r *recordingSink) count(name string) int {
	n := 0
	for _, got := range r.names {
		if got == name {
			n++
		}
	}
	return n
}

type fakeRecoverer struct {
	attempts  int
	recovers  []bool // processPresent per call
	proactive []int32
}

func (f *fakeRecoverer) Recover(_ context.Context, present bool, _ int32) {
	f.recovers = append(f.recovers, present)
}
func (f *fakeRecoverer) ProactiveGraceful(_ context.Context, pid int32) {
	f.proactive = append(f.proactive, pid)
}
func (f *fakeRecoverer) Attempts() int     { return f.attempts }
func (f *fakeRecoverer) SetAttempts(n int) { f.attempts = n }

type fakeRestorer struct {
	err   error
	calls int
}

func (f *fakeRestorer) RestoreConfigFromBackup(string) error {
	f.calls++
	return f.err
}

type fixture struct {
	loop *Loop
	sys  *system.Fake
	sink *recordingSink
	rec  *fakeRecoverer
	rest *fakeRestorer
	cfg  config.Config
}

func newFixture(t *testing.T, gatewayURL string, mutate func(*config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Gateway.URL = gatewayURL
	cfg.Monitor.UpstreamURL = ""
	cfg.Paths.StateFile = filepath.Join(dir, "state.json")
	cfg.Paths.MetricsFile = filepath.Join(dir, "metrics.json")
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		cfg:  cfg,
		sys:  &system.Fake{Proc: system.Process{PID: 42, Name: "gateway"}, ProcPresent: true, Mounted: true},
		sink: &recordingSink{},
		rec:  &fakeRecoverer{},
		rest: &fakeRestorer{},
	}
	f.sys.Stats = system.Stats{MemoryMB: 300, CPUPercent: 5}
	f.sys.DiskPct = 40

	log := slog.New(slog.DiscardHandler)
	d := alert.NewDispatcher(log, cfg.Alerts.Cooldown)
	d.AddSink(f.sink)

	loop, err := New(cfg, Deps{
		Battery:  probe.NewBattery(cfg, f.sys, d, log),
		Tracker:  trend.New(cfg.Monitor.MemoryWindow, cfg.Monitor.MemoryGrowthMB),
		Alerts:   d,
		Recovery: f.rec,
		Restorer: f.rest,
		Store:    state.NewStore(cfg.Paths.StateFile),
		Clock:    fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		Log:      log,
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}
	f.loop = loop
	return f
}

func okGateway(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiskWarningOncePerCooldown(t *testing.T) {
	srv := okGateway(t)
	f := newFixture(t, srv.URL, nil)
	f.sys.DiskPct = 85

	f.loop.RunCycle(context.Background())
	f.loop.RunCycle(context.Background())

	if got := f.sink.count("disk_warning"); got != 1 {
		t.Fatalf("disk_warning dispatched %d times within cooldown, want 1", got)
	}
	if got := f.sink.count("disk_critical"); got != 0 {
		t.Fatalf("disk_critical dispatched at 85%%: %d", got)
	}
}

func TestNoDiskAlertBelowThreshold(t *testing.T) {
	srv := okGateway(t)
	f := newFixture(t, srv.URL, nil)
	f.sys.DiskPct = 79

	f.loop.RunCycle(context.Background())

	if got := f.sink.count("disk_warning"); got != 0 {
		t.Fatalf("disk_warning dispatched at 79%%: %d", got)
	}
}

func TestGatewayDownTriggersRecovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL, nil)

	f.loop.RunCycle(context.Background())

	if got := f.sink.count("gateway_down"); got != 1 {
		t.Fatalf("gateway_down dispatched %d times, want 1", got)
	}
	if len(f.rec.recovers) != 1 || !f.rec.recovers[0] {
		t.Fatalf("recovery calls = %v, want one with process present", f.rec.recovers)
	}
}

func TestAbsentProcessPassedToRecovery(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1", func(c *config.Config) {
		c.Monitor.HTTPTimeout = 200 * time.Millisecond
	})
	f.sys.ProcPresent = false

	f.loop.RunCycle(context.Background())

	if len(f.rec.recovers) != 1 || f.rec.recovers[0] {
		t.Fatalf("recovery calls = %v, want one with process absent", f.rec.recovers)
	}
}

func TestMemoryCriticalProactiveRestart(t *testing.T) {
	srv := okGateway(t)
	f := newFixture(t, srv.URL, nil)
	f.sys.Stats = system.Stats{MemoryMB: 1600}

	f.loop.RunCycle(context.Background())

	if got := f.sink.count("memory_critical"); got != 1 {
		t.Fatalf("memory_critical dispatched %d times, want 1", got)
	}
	if len(f.rec.proactive) != 1 || f.rec.proactive[0] != 42 {
		t.Fatalf("proactive restarts = %v", f.rec.proactive)
	}
}

func TestLeakWarningFiresAtWindowFull(t *testing.T) {
	srv := okGateway(t)
	f := newFixture(t, srv.URL, nil)

	for i := 0; i < 10; i++ {
		f.sys.Stats = system.Stats{MemoryMB: 400 + float64(i)*10}
		f.loop.RunCycle(context.Background())
		if i < 9 && f.sink.count("memory_leak") != 0 {
			t.Fatalf("memory_leak fired early at cycle %d", i+1)
		}
	}
	if got := f.sink.count("memory_leak"); got != 1 {
		t.Fatalf("memory_leak dispatched %d times, want 1", got)
	}
}

func TestInvalidConfigShortCircuitsAndRestores(t *testing.T) {
	srv := okGateway(t)
	bad := filepath.Join(t.TempDir(), "gateway.toml")
	if err := os.WriteFile(bad, []byte("not = [valid"), 0o600); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, srv.URL, func(c *config.Config) {
		c.Gateway.ConfigPath = bad
	})
	f.rest.err = snapshot.ErrNoBackup

	f.loop.RunCycle(context.Background())

	if got := f.sink.count("config_invalid"); got != 1 {
		t.Fatalf("config_invalid dispatched %d times, want 1", got)
	}
	if got := f.sink.count("config_restore_failed"); got != 1 {
		t.Fatalf("config_restore_failed dispatched %d times, want 1", got)
	}
	if f.rest.calls != 1 {
		t.Fatalf("restore calls = %d, want 1", f.rest.calls)
	}
	// short-circuit: no health probing, no recovery
	if len(f.rec.recovers) != 0 {
		t.Fatalf("recovery ran despite config short-circuit: %v", f.rec.recovers)
	}
}

func TestValidConfigDriftIsWarningOnly(t *testing.T) {
	srv := okGateway(t)
	path := filepath.Join(t.TempDir(), "gateway.toml")
	if err := os.WriteFile(path, []byte("port = 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, srv.URL, func(c *config.Config) {
		c.Gateway.ConfigPath = path
	})

	f.loop.RunCycle(context.Background()) // records the initial hash
	if err := os.WriteFile(path, []byte("port = 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	f.loop.RunCycle(context.Background())

	if got := f.sink.count("config_changed"); got != 1 {
		t.Fatalf("config_changed dispatched %d times, want 1", got)
	}
	if f.rest.calls != 0 {
		t.Fatalf("restore attempted on valid drift: %d", f.rest.calls)
	}
	if f.sink.count("config_invalid") != 0 {
		t.Fatal("config_invalid fired for a well-formed file")
	}
}

func TestStateAndMetricsPersistedEachCycle(t *testing.T) {
	srv := okGateway(t)
	f := newFixture(t, srv.URL, nil)
	f.rec.attempts = 2

	f.loop.RunCycle(context.Background())

	st, err := state.NewStore(f.cfg.Paths.StateFile).Load()
	if err != nil {
		t.Fatalf("state load: %v", err)
	}
	if st.RestartAttempts != 2 {
		t.Fatalf("persisted attempts = %d, want 2", st.RestartAttempts)
	}
	if len(st.MemoryHistory) != 1 || st.MemoryHistory[0] != 300 {
		t.Fatalf("memory history = %v", st.MemoryHistory)
	}

	b, err := os.ReadFile(f.cfg.Paths.MetricsFile)
	if err != nil {
		t.Fatalf("metrics file: %v", err)
	}
	var m MetricsFile
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("metrics decode: %v", err)
	}
	if !m.Health.GatewayRunning || !m.Health.GatewayHealthy {
		t.Fatalf("health = %+v", m.Health)
	}
	if m.Gateway.PID != 42 || m.Gateway.MemoryMB != 300 {
		t.Fatalf("gateway section = %+v", m.Gateway)
	}
	info, err := os.Stat(f.cfg.Paths.MetricsFile)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("metrics file mode = %o, want 644", perm)
	}
}

func TestResumesPersistedState(t *testing.T) {
	srv := okGateway(t)
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	prev := state.State{RestartAttempts: 2, LastCheck: time.Now(), MemoryHistory: []float64{100, 110}}
	if err := state.NewStore(statePath).Save(prev); err != nil {
		t.Fatal(err)
	}

	f := newFixture(t, srv.URL, func(c *config.Config) {
		c.Paths.StateFile = statePath
	})
	if f.rec.attempts != 2 {
		t.Fatalf("restored attempts = %d, want 2", f.rec.attempts)
	}
}

func TestJobsCheckedOnPeriodOnly(t *testing.T) {
	var jobHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/jobs/recent" {
			jobHits++
			fmt.Fprint(w, `[{"name":"prune","status":"failed"}]`)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	f := newFixture(t, srv.URL, func(c *config.Config) {
		c.Monitor.JobCheckEvery = 3
	})

	for i := 0; i < 6; i++ {
		f.loop.RunCycle(context.Background())
	}
	if jobHits != 2 {
		t.Fatalf("job endpoint hit %d times over 6 cycles with period 3, want 2", jobHits)
	}
	if got := f.sink.count("jobs_failed"); got != 1 {
		t.Fatalf("jobs_failed dispatched %d times within cooldown, want 1", got)
	}
}
