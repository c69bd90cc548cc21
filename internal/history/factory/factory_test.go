package factory

import (
	"path/filepath"
	"testing"
)

func TestSQLiteDSNVariants(t *testing.T) {
	for _, dsn := range []string{
		"sqlite://:memory:",
		":memory:",
		filepath.Join(t.TempDir(), "events.db"),
	} {
		sink, err := NewSinkFromDSN(dsn)
		if err != nil {
			t.Fatalf("dsn %q: %v", dsn, err)
		}
		if sink == nil {
			t.Fatalf("dsn %q: nil sink", dsn)
		}
	}
}

func TestOpenSearchDSN(t *testing.T) {
	sink, err := NewSinkFromDSN("opensearch://localhost:9200/agent-events")
	if err != nil {
		t.Fatalf("opensearch dsn: %v", err)
	}
	if sink == nil {
		t.Fatal("nil sink")
	}
}

func TestRejectedDSNs(t *testing.T) {
	for _, dsn := range []string{"", "  ", "redis://localhost:6379"} {
		if _, err := NewSinkFromDSN(dsn); err == nil {
			t.Fatalf("dsn %q: expected error", dsn)
		}
	}
}
