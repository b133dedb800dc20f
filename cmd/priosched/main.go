package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"priosched/internal/job"
	"priosched/internal/logx"
	"priosched/internal/monitor"
	"priosched/internal/sched"
)

const maxPriority = 100

// options are the command-line values after merging with the config file.
type options struct {
	cfg  sched.Config
	work job.Kind
	rate float64
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// parseArgs reads flags on top of the optional config file. Usage problems
// are reported to stderr and returned as errors.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("priosched", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "", "path to config yaml (optional)")
	impl := fs.String("impl", "", "scheduler implementation ("+strings.Join(sched.Implementations(), ", ")+")")
	workers := fs.Int("workers", 0, "number of worker goroutines (default from config: CPU count)")
	tasks := fs.Int("tasks", 0, "number of tasks to schedule (default from config: 100)")
	stop := fs.String("stop", "", "terminate policy: drain or abandon")
	work := fs.String("work", string(job.KindNoop), "task payload: noop, sleep or fib")
	perSec := fs.Float64("rate", 0, "tasks scheduled per second, 0 = as fast as possible")
	trace := fs.String("trace", "", "write a CSV event trace to this path")
	level := fs.String("log-level", "", "trace, debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return usageError(fs, "unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	cfg, err := sched.Load(*cfgPath)
	if err != nil {
		return usageError(fs, "%v", err)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["workers"] {
		if *workers <= 0 {
			return usageError(fs, "-workers must be a positive integer, got %d", *workers)
		}
		cfg.Workers = *workers
	}
	if set["tasks"] {
		if *tasks <= 0 {
			return usageError(fs, "-tasks must be a positive integer, got %d", *tasks)
		}
		cfg.Tasks = *tasks
	}
	if set["stop"] {
		if _, err := sched.ParseStopPolicy(*stop); err != nil {
			return usageError(fs, "%v", err)
		}
		cfg.StopPolicy = *stop
	}
	if *impl != "" {
		cfg.Implementation = *impl
	}
	if *trace != "" {
		cfg.TraceCSV = *trace
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if *perSec < 0 {
		return usageError(fs, "-rate must not be negative, got %v", *perSec)
	}

	kind, err := job.ParseKind(*work)
	if err != nil {
		return usageError(fs, "%v", err)
	}

	return options{cfg: cfg, work: kind, rate: *perSec}, nil
}

func usageError(fs *flag.FlagSet, format string, args ...any) (options, error) {
	err := fmt.Errorf(format, args...)
	fmt.Fprintf(fs.Output(), "priosched: %v\n", err)
	fs.Usage()
	return options{}, err
}

func run(ctx context.Context, opts options) error {
	cfg := opts.cfg

	log, closeLog, err := logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: true,
		File:    logx.FileConfig{Enabled: cfg.Log.File != "", Path: cfg.Log.File},
	})
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := sched.Open(cfg.Implementation, cfg.Workers,
		sched.WithLogger(log),
		sched.WithStopPolicy(cfg.Policy()),
	)
	if err != nil {
		return err
	}
	if cfg.TraceCSV != "" {
		tracer, ok := s.(interface{ EnableCSVTrace(string) error })
		if !ok {
			log.Warn("implementation does not support tracing", logx.String("impl", cfg.Implementation))
		} else if err := tracer.EnableCSVTrace(cfg.TraceCSV); err != nil {
			s.Terminate()
			return err
		}
	}

	log.Info("scheduling tasks",
		logx.String("impl", cfg.Implementation),
		logx.Int("workers", cfg.Workers),
		logx.Int("tasks", cfg.Tasks),
		logx.String("work", string(opts.work)),
	)

	begin := time.Now()
	produced, prodErr := produce(ctx, s, opts)
	s.Start()

	poller := monitor.Poller{Interval: cfg.PollInterval(), Log: log}
	if _, err := poller.Until(ctx, s); err != nil {
		log.Warn("stopped waiting for the queue to empty", logx.Err(err))
	}
	s.Terminate()

	report(log, s, produced, time.Since(begin))
	if prodErr != nil && !errors.Is(prodErr, context.Canceled) {
		return prodErr
	}
	return nil
}

// produce schedules cfg.Tasks tasks with random priorities in [0, maxPriority),
// optionally paced by a rate limiter. It stops early when ctx is done.
func produce(ctx context.Context, s sched.Scheduler, opts options) (int, error) {
	var lim *rate.Limiter
	if opts.rate > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.rate), 1)
	}
	for i := 0; i < opts.cfg.Tasks; i++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return i, err
			}
		} else if err := ctx.Err(); err != nil {
			return i, err
		}
		s.Schedule(opts.work.Build(i), uint32(rand.Intn(maxPriority)), 0)
	}
	return opts.cfg.Tasks, nil
}

func report(log logx.Logger, s sched.Scheduler, produced int, elapsed time.Duration) {
	st := s.GetLatencyStats()
	fields := []logx.Field{
		logx.String("scheduled", humanize.Comma(int64(produced))),
		logx.Duration("elapsed", elapsed),
		logx.Bool("queue_empty", s.IsQueueEmpty()),
		logx.Float64("latency_min_ms", st.Min),
		logx.Float64("latency_max_ms", st.Max),
		logx.Float64("latency_avg_ms", st.Avg()),
	}
	if e, ok := s.(interface{ Snapshot() sched.Snapshot }); ok {
		snap := e.Snapshot()
		fields = append(fields,
			logx.String("executed", humanize.Comma(int64(snap.Executed))),
			logx.String("failed", humanize.Comma(int64(snap.Failed))),
			logx.String("discarded", humanize.Comma(int64(snap.Discarded))),
		)
	}
	log.Info("run complete", fields...)
}
