package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leMaik/chunky-pr-as-update-site/src/broker"
	"github.com/leMaik/chunky-pr-as-update-site/src/config"
	"github.com/leMaik/chunky-pr-as-update-site/src/githubactions"
	"github.com/leMaik/chunky-pr-as-update-site/src/logger"
	"github.com/leMaik/chunky-pr-as-update-site/src/pipeline"
	"github.com/leMaik/chunky-pr-as-update-site/src/store"
	"github.com/leMaik/chunky-pr-as-update-site/src/telemetry"
)

const serviceName = "chunky-pr"

var zeroTime time.Time

// app owns everything a command needs and closes it in reverse order.
type app struct {
	Pipeline *pipeline.Pipeline
	Broker   broker.Broker

	closers []func() error
}

// newApp wires the GitHub provider, archive cache, broker and metrics from
// cfg into a pipeline.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	a := &app{}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.Endpoint, serviceName, version, cfg.Telemetry.Insecure)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	a.closers = append(a.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(sctx)
	})

	metrics, err := telemetry.NewMetrics(telemetry.Meter(telemetry.ScopeName))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	cache, err := store.Open(ctx, store.Options{
		Backend: cfg.Cache.Backend,
		Dir:     cfg.Cache.Dir,
		DSN:     cfg.Cache.DSN,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening archive cache: %w", err)
	}
	a.closers = append(a.closers, cache.Close)

	b, err := broker.Open(cfg.Broker.Brokers, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}
	a.Broker = b
	a.closers = append(a.closers, b.Close)
	if rp, ok := b.(*broker.RedpandaBroker); ok {
		if err := rp.EnsureTopic(ctx, cfg.Broker.Topic); err != nil {
			log.Error("[App] %v, relying on auto-creation", err)
		}
	}

	client := githubactions.NewClient(cfg.GitHub.Token,
		githubactions.WithBaseURL(cfg.GitHub.APIURL),
		githubactions.WithTimeout(cfg.GitHub.Timeout),
	)
	gh := githubactions.NewProvider(client, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Artifact)

	a.Pipeline = pipeline.New(gh, gh, cache,
		pipeline.WithEvents(b, cfg.Broker.Topic),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(log),
	)
	log.Debug("[App] Cache backend %s, %d broker address(es), provider %s", cfg.Cache.Backend, len(cfg.Broker.Brokers), gh.Name())
	return a, nil
}

// Close releases everything newApp opened.
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
