package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"priosched/internal/job"
	"priosched/internal/sched"
)

func TestParseArgsDefaults(t *testing.T) {
	t.Parallel()
	var stderr bytes.Buffer
	opts, err := parseArgs(nil, &stderr)
	if err != nil {
		t.Fatalf("parseArgs: %v (%s)", err, stderr.String())
	}
	def := sched.DefaultConfig()
	if opts.cfg.Workers != def.Workers || opts.cfg.Tasks != def.Tasks {
		t.Fatalf("cfg = %+v, want defaults %+v", opts.cfg, def)
	}
	if opts.work != job.KindNoop {
		t.Fatalf("work = %q, want noop", opts.work)
	}
}

func TestParseArgsOverrides(t *testing.T) {
	t.Parallel()
	var stderr bytes.Buffer
	opts, err := parseArgs([]string{"-workers", "3", "-tasks", "7", "-stop", "abandon", "-work", "fib", "-rate", "50"}, &stderr)
	if err != nil {
		t.Fatalf("parseArgs: %v (%s)", err, stderr.String())
	}
	if opts.cfg.Workers != 3 || opts.cfg.Tasks != 7 {
		t.Fatalf("workers/tasks = %d/%d, want 3/7", opts.cfg.Workers, opts.cfg.Tasks)
	}
	if opts.cfg.Policy() != sched.StopAbandon {
		t.Fatalf("policy = %v, want abandon", opts.cfg.Policy())
	}
	if opts.work != job.KindFib || opts.rate != 50 {
		t.Fatalf("work/rate = %q/%v", opts.work, opts.rate)
	}
}

func TestParseArgsUsageErrors(t *testing.T) {
	t.Parallel()
	cases := [][]string{
		{"-workers", "0"},
		{"-tasks", "-5"},
		{"-workers", "many"},
		{"-stop", "halt"},
		{"-work", "spin"},
		{"-rate", "-1"},
		{"extra"},
	}
	for _, args := range cases {
		var stderr bytes.Buffer
		if _, err := parseArgs(args, &stderr); err == nil {
			t.Fatalf("parseArgs(%v) expected usage error", args)
		}
		if !strings.Contains(stderr.String(), "Usage") {
			t.Fatalf("parseArgs(%v) did not print usage: %q", args, stderr.String())
		}
	}
}

func TestRunWritesTrace(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "trace.csv")
	cfg := sched.DefaultConfig()
	cfg.Workers = 2
	cfg.Tasks = 20
	cfg.PollMS = 1
	cfg.TraceCSV = tracePath
	cfg.Log.Level = "error"
	cfg.Log.File = filepath.Join(dir, "run.log")

	if err := run(context.Background(), options{cfg: cfg, work: job.KindNoop}); err != nil {
		t.Fatalf("run: %v", err)
	}

	f, err := os.Open(tracePath)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	finished := 0
	for _, r := range rows[1:] {
		if r[1] == sched.StatusFinish.String() {
			finished++
		}
	}
	if finished != cfg.Tasks {
		t.Fatalf("finished rows = %d, want %d", finished, cfg.Tasks)
	}
}

func TestRunUnknownImplementation(t *testing.T) {
	cfg := sched.DefaultConfig()
	cfg.Implementation = "dlopen"
	cfg.Log.Level = "error"
	cfg.Log.File = filepath.Join(t.TempDir(), "run.log")
	if err := run(context.Background(), options{cfg: cfg, work: job.KindNoop}); err == nil {
		t.Fatal("expected error for unknown implementation")
	}
}
