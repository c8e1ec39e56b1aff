package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/NetPo4ki/go-flow/flow"
	"github.com/NetPo4ki/go-flow/internal/config"
	"github.com/NetPo4ki/go-flow/observe/otel"
	"github.com/NetPo4ki/go-flow/observe/prom"
)

// env is what every subcommand needs: config, logger, a scheduler
// wired to the observers and, optionally, the metrics endpoint.
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	sched *flow.Scheduler
	srv   *http.Server
	addr  string // metrics listener, once serving
}

func setup(cmd *cli.Command) (*env, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.Bool("debug") {
		cfg.Log.Level = "debug"
	}
	if cmd.IsSet("max-workers") {
		cfg.Scheduler.MaxWorkers = cmd.Int("max-workers")
	}
	if cmd.IsSet("metrics-addr") {
		cfg.Metrics.Addr = cmd.String("metrics-addr")
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt := &env{cfg: cfg, log: log}
	rt.sched = flow.New(
		flow.WithMaxWorkers(cfg.Scheduler.MaxWorkers),
		flow.WithPanicAsError(*cfg.Scheduler.PanicAsError),
		flow.WithLogger(log),
		flow.WithObserver(flow.Observers(prom.New(reg), otel.New(nil))),
	)
	if cfg.Metrics.Addr != "" {
		if err := rt.serve(reg); err != nil {
			_ = rt.sched.Close()
			return nil, err
		}
	}
	return rt, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func (rt *env) serve(reg *prometheus.Registry) error {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rt.sched.Stats())
	})
	r.Handle(rt.cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	ln, err := net.Listen("tcp", rt.cfg.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	rt.srv = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	rt.addr = ln.Addr().String()
	rt.log.Info("metrics listening", "addr", rt.addr, "path", rt.cfg.Metrics.Path)
	go func() {
		if err := rt.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.log.Error("metrics server", "error", err)
		}
	}()
	return nil
}

// run executes t and treats an interrupt as a clean exit.
func (rt *env) run(ctx context.Context, t flow.Task) (any, error) {
	v, err := rt.sched.Run(ctx, t)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		rt.log.Info("interrupted")
		return nil, nil
	}
	return v, err
}

func (rt *env) Close() error {
	if rt.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.srv.Shutdown(ctx)
	}
	return rt.sched.Close()
}

// parseDurations reads every positional argument as a duration.
func parseDurations(cmd *cli.Command) ([]time.Duration, error) {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return nil, errors.New("at least one duration argument is required")
	}
	out := make([]time.Duration, len(args))
	for i, a := range args {
		d, err := time.ParseDuration(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = d
	}
	return out, nil
}

// sleeper sleeps for d on the worker pool, then returns v.
func sleeper(d time.Duration, v any) flow.Task {
	return flow.Coop(func(co *flow.Co) flow.Result {
		if _, err := co.Run(flow.Sleep(d)); err != nil {
			return co.Raise(err)
		}
		return co.Return(v)
	}).Named(fmt.Sprintf("sleeper %s", d))
}
