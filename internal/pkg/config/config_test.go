package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	o := cfg.Opportunity
	if o.MinEdgePercent != 5.0 {
		t.Errorf("min_edge_percent = %v, want 5.0", o.MinEdgePercent)
	}
	if o.MaxOddsAge.Std() != 20*time.Second {
		t.Errorf("max_odds_age = %v, want 20s", o.MaxOddsAge.Std())
	}
	// An omitted confidence floor must not collapse to zero, which
	// would disable the floor entirely.
	if o.MinConfidence != 0.3 {
		t.Errorf("min_confidence = %v, want 0.3", o.MinConfidence)
	}
	if cfg.Ledger.Backend != "sqlite" {
		t.Errorf("ledger backend = %q, want sqlite", cfg.Ledger.Backend)
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "opportunity:\n  min_confidence: 0.5\n  max_odds_age: 45s\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Opportunity.MinConfidence != 0.5 {
		t.Errorf("min_confidence = %v, want 0.5", cfg.Opportunity.MinConfidence)
	}
	if cfg.Opportunity.MaxOddsAge.Std() != 45*time.Second {
		t.Errorf("max_odds_age = %v, want 45s", cfg.Opportunity.MaxOddsAge.Std())
	}
}
