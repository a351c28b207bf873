package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ShayCichocki/sprintguardian/internal/agent"
	"github.com/ShayCichocki/sprintguardian/internal/api"
	"github.com/ShayCichocki/sprintguardian/internal/config"
	"github.com/ShayCichocki/sprintguardian/internal/notify"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator"
	"github.com/ShayCichocki/sprintguardian/internal/state"
	"github.com/ShayCichocki/sprintguardian/internal/telemetry"
	"github.com/ShayCichocki/sprintguardian/internal/tickets"
)

// app holds everything a command needs to run the pipeline. It is built
// once per process and shared by every request.
type app struct {
	cfg     *config.Config
	svc     *orchestrator.Service
	adapter *api.Adapter
	metrics *telemetry.Metrics
	closers []func() error
}

// newApp resolves every dependency from cfg. Extra sinks receive run events
// alongside metrics and the debug log.
func newApp(cfg *config.Config, sinks ...orchestrator.EventSink) (*app, error) {
	a := &app{cfg: cfg, metrics: telemetry.NewMetrics()}

	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var orchOpts []orchestrator.Option

	var tp *telemetry.TracerProvider
	if cfg.Telemetry.Tracing {
		var err error
		tp, err = telemetry.NewTracerProvider("guardian", Version(), os.Stderr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tp.Shutdown(ctx)
		})
		orchOpts = append(orchOpts, orchestrator.WithTracer(tp.Tracer("guardian/orchestrator")))
	}

	backend, err := createBackend(cfg)
	if err != nil {
		return nil, err
	}
	opts := adapterOptions(cfg)
	opts.Observer = a.metrics
	if tp != nil {
		opts.Tracer = tp.Tracer("guardian/api")
	}
	a.adapter = api.NewAdapter(backend, opts)

	prompts := agent.DefaultPrompts()
	if cfg.Pipeline.PromptsFile != "" {
		prompts, err = agent.LoadPrompts(cfg.Pipeline.PromptsFile)
		if err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
	}

	pol, err := policyConfig(cfg)
	if err != nil {
		return nil, err
	}
	orchOpts = append(orchOpts, orchestrator.WithPolicy(pol), orchestrator.WithEventSink(a.metrics))
	for _, s := range sinks {
		orchOpts = append(orchOpts, orchestrator.WithEventSink(s))
	}

	if cfg.Logging.DebugFile != "" {
		logger, err := orchestrator.NewDebugLogger(cfg.Logging.DebugFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, logger.Close)
		orchOpts = append(orchOpts, orchestrator.WithLogger(logger))
	}

	orch, err := orchestrator.New(agent.NewRoles(prompts, a.adapter), orchOpts...)
	if err != nil {
		return nil, err
	}

	store, err := tickets.NewFileStore(cfg.Storage.TicketsDir)
	if err != nil {
		return nil, err
	}

	history, err := openHistory(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, history.Close)

	publisher, err := newPublisher(cfg, a.metrics)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	a.svc, err = orchestrator.NewService(orch, orchestrator.ServiceConfig{
		Tickets:   store,
		Runs:      history,
		Publisher: publisher,
	})
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
// blockingLabel is the effective gatekeeper blocking label.
func (a *app) blockingLabel() string {
	return a.svc.Orchestrator().Policy().Gatekeeper.BlockingLabel
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openHistory opens the run history database named by storage.history_db.
func openHistory(cfg *config.Config) (*state.DB, error) {
	path := cfg.Storage.HistoryDB
	if path == "" {
		path = state.DefaultDBPath()
	}
	db, err := state.OpenMigrated(path)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return db, nil
}

// newPublisher fans ticket events out to metrics and, when configured, NATS.
func newPublisher(cfg *config.Config, metrics *telemetry.Metrics) (notify.Publisher, error) {
	nats, err := notify.New(cfg.Notify.NATSURL, cfg.Notify.Subject)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	if cfg.Notify.NATSURL != "" {
		log.Printf("[notify] publishing ticket events on %s.*", cfg.Notify.Subject)
	}
	return notify.Multi{metrics, nats}, nil
}
