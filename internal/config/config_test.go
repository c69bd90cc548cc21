package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "gatewatch.toml", `
[gateway]
name = "mygw"
url = "http://localhost:9000"
service_id = "com.example.gateway"

[monitor]
interval = "30s"
disk_warn_percent = 70.0
disk_crit_percent = 85.0

[alerts]
cooldown = "15m"
webhook_url = "https://hooks.example.com/x"
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Gateway.Name != "mygw" {
		t.Fatalf("gateway name not applied: %q", c.Gateway.Name)
	}
	if c.Monitor.Interval != 30*time.Second {
		t.Fatalf("interval not applied: %v", c.Monitor.Interval)
	}
	if c.Monitor.DiskWarnPct != 70 || c.Monitor.DiskCritPct != 85 {
		t.Fatalf("disk thresholds not applied: %v/%v", c.Monitor.DiskWarnPct, c.Monitor.DiskCritPct)
	}
	// untouched values keep defaults
	if c.Monitor.MemoryWindow != 10 {
		t.Fatalf("memory window default lost: %d", c.Monitor.MemoryWindow)
	}
	if c.Alerts.Cooldown != 15*time.Minute {
		t.Fatalf("cooldown not applied: %v", c.Alerts.Cooldown)
	}
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "bad.toml", `
[monitor]
disk_warn_percent = 95.0
disk_crit_percent = 90.0
`)
	if _, err := Load(p); err == nil {
		t.Fatal("expected validation error for inverted disk thresholds")
	}
}

func TestValidateTLSPair(t *testing.T) {
	c := Default()
	c.Server.TLS.CertFile = "/tmp/cert.pem"
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for cert without key")
	}
	c.Server.TLS.KeyFile = "/tmp/key.pem"
	if err := c.Validate(); err != nil {
		t.Fatalf("cert+key should validate: %v", err)
	}
}

func TestCheckWellFormed(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "gw.toml", "port = 8080\n[db]\nurl = \"x\"\n")
	if err := CheckWellFormed(good); err != nil {
		t.Fatalf("good toml rejected: %v", err)
	}
	goodJSON := writeFile(t, dir, "gw.json", `{"port": 8080}`)
	if err := CheckWellFormed(goodJSON); err != nil {
		t.Fatalf("good json rejected: %v", err)
	}
	bad := writeFile(t, dir, "broken.toml", "port = [unclosed\n")
	if err := CheckWellFormed(bad); err == nil {
		t.Fatal("expected parse error for broken toml")
	}
}
