package main

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BearBump/ShipRecon/config"
	"github.com/BearBump/ShipRecon/internal/broker/kafka"
	"github.com/BearBump/ShipRecon/internal/services/webhooks"
	"github.com/BearBump/ShipRecon/internal/wiring"
)

type messageConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
	Close() error
}

type workerFactories struct {
	newStorage    func(cfg *config.Config) (repo wiring.Repository, ping func(context.Context) error, closeFn func(), err error)
	newComponents func(cfg *config.Config, repo wiring.Repository) (*wiring.Components, error)
	newConsumer   func(cfg *config.Config) messageConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (wiring.Repository, func(context.Context) error, func(), error) {
			st, err := wiring.OpenStorage(cfg, 60*time.Second)
			if err != nil {
				return nil, nil, nil, err
			}
			return st, st.Ping, st.Close, nil
		},
		newComponents: wiring.Build,
		newConsumer: func(cfg *config.Config) messageConsumer {
			if !cfg.Kafka.Enabled() {
				return nil
			}
			group := cfg.ShipRecon.KafkaConsumerGroup
			if group == "" {
				group = wiring.DefaultWorkerGroup
			}
			return kafka.NewConsumer(wiring.Brokers(cfg), wiring.WebhookTopic(cfg), group)
		},
	}
}

type workerOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)
}

// RunReconWorker consumes acknowledged webhooks, runs the scheduled tracking poll and
// serves the worker's operational endpoints until ctx is done.
func RunReconWorker(ctx context.Context, cfg *config.Config, opts workerOpts, f workerFactories) error {
	repo, ping, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	comps, err := f.newComponents(cfg, repo)
	if err != nil {
		return err
	}
	defer comps.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return comps.Poller.Run(gctx)
	})

	if consumer := f.newConsumer(cfg); consumer != nil {
		defer func() { _ = consumer.Close() }()
		g.Go(func() error {
			slog.Info("kafka consumer started", "topic", wiring.WebhookTopic(cfg))
			return consumer.Consume(gctx, webhooks.MessageHandler(comps.Engine))
		})
	} else {
		slog.Info("kafka not configured, worker only polls tracking")
	}

	g.Go(func() error {
		return runWorkerHTTPServer(gctx, workerHTTPOpts{
			httpAddr:    opts.httpAddr,
			swaggerPath: opts.swaggerPath,
			onListen:    opts.onListen,
			poller:      comps.Poller,
			ready:       ping,
			cfg:         cfg,
		})
	})

	return g.Wait()
}
