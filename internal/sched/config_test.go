package sched

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "priosched.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yml")} {
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%q): %v", path, err)
		}
		if cfg != DefaultConfig() {
			t.Fatalf("Load(%q) = %+v, want defaults", path, cfg)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
implementation: monitor
workers: 8
tasks: 250
stop_policy: abandon
poll_ms: 10
trace_csv: /tmp/trace.csv
log:
  level: debug
  file: sched.log
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 8 || cfg.Tasks != 250 {
		t.Fatalf("workers/tasks = %d/%d", cfg.Workers, cfg.Tasks)
	}
	if cfg.Policy() != StopAbandon {
		t.Fatalf("Policy = %v, want abandon", cfg.Policy())
	}
	if cfg.PollInterval() != 10*time.Millisecond {
		t.Fatalf("PollInterval = %v", cfg.PollInterval())
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "sched.log" || cfg.TraceCSV != "/tmp/trace.csv" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadClampsNonsense(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "workers: -2\ntasks: 0\nstop_policy: explode\npoll_ms: -1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := DefaultConfig()
	if cfg.Workers != def.Workers || cfg.Tasks != def.Tasks || cfg.PollMS != def.PollMS {
		t.Fatalf("cfg = %+v, want clamped to defaults", cfg)
	}
	if cfg.Policy() != StopDrain {
		t.Fatalf("Policy = %v, want drain", cfg.Policy())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "workers: [1, 2\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseStopPolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    StopPolicy
		wantErr bool
	}{
		{raw: "", want: StopDrain},
		{raw: "drain", want: StopDrain},
		{raw: " Abandon ", want: StopAbandon},
		{raw: "halt", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseStopPolicy(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseStopPolicy(%q) err = %v", tt.raw, err)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseStopPolicy(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
