package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var eqDecimal = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Routing.ClarifyBelow != 0.5 || cfg.Timeouts.Call != 5*time.Second || cfg.Retries.PrimaryFetch != 3 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.LLM.Enabled() {
		t.Error("LLM enabled by default")
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	data := []byte(`
log:
  level: debug
routing:
  clarify_below: 0.6
timeouts:
  call: 2s
match:
  tolerance: "0.05"
  strict: true
store:
  driver: postgres
  dsn: postgres://ledger@localhost/ledger?sslmode=disable
llm:
  base_url: http://localhost:11434/v1
  breaker:
    failure_threshold: 3
`)
	cfg, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.Log.Level = "debug"
	want.Routing.ClarifyBelow = 0.6
	want.Timeouts.Call = 2 * time.Second
	want.Match.Tolerance = decimal.RequireFromString("0.05")
	want.Match.Strict = true
	want.Store.Driver = "postgres"
	want.Store.DSN = "postgres://ledger@localhost/ledger?sslmode=disable"
	want.LLM.BaseURL = "http://localhost:11434/v1"
	want.LLM.Breaker.FailureThreshold = 3
	if diff := cmp.Diff(want, cfg, eqDecimal); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
	if cfg.IntentSettings().ClarifyBelow != 0.6 || cfg.ReconcileSettings().CallTimeout != 2*time.Second {
		t.Error("derived settings do not follow the file")
	}
}

func TestLoad_JSON(t *testing.T) {
	cfg, err := Load([]byte(`{"routing": {"clarify_below": 0.4}, "retries": {"primary_fetch": 1}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Routing.ClarifyBelow != 0.4 || cfg.Retries.PrimaryFetch != 1 {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"weights":   "match:\n  weights: {amount: 0.9, date: 0.3, description: 0.3}\n",
		"threshold": "routing:\n  clarify_below: 2\n",
		"driver":    "store:\n  driver: oracle\n",
		"level":     "log:\n  level: loud\n",
		"syntax":    "log: [\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	cfg, err := LoadFromPath("")
	if err != nil || cfg.Store.DSN != Default().Store.DSN {
		t.Fatalf("empty path: %+v, %v", cfg.Store, err)
	}
	path := filepath.Join(t.TempDir(), "ledgerflow.yaml")
	if err := os.WriteFile(path, []byte("log:\n  format: json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromPath(path)
	if err != nil || cfg.Log.Format != "json" {
		t.Errorf("got %+v, %v", cfg.Log, err)
	}
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestLLM_APIKey(t *testing.T) {
	t.Setenv("LEDGERFLOW_TEST_KEY", "secret")
	l := LLM{APIKeyEnv: "LEDGERFLOW_TEST_KEY"}
	if l.APIKey() != "secret" {
		t.Errorf("APIKey() = %q", l.APIKey())
	}
}
