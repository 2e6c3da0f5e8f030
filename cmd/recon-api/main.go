package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/ShipRecon/config"
	"github.com/BearBump/ShipRecon/internal/api/httpapi"
	"github.com/BearBump/ShipRecon/internal/broker/kafka"
	"github.com/BearBump/ShipRecon/internal/services/webhooks"
	"github.com/BearBump/ShipRecon/internal/wiring"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}

	httpAddr := cfg.ShipRecon.HTTPAddr
	if httpAddr == "" {
		httpAddr = wiring.DefaultAPIAddr
	}
	swaggerPath := cfg.ShipRecon.SwaggerPath
	if swaggerPath == "" {
		swaggerPath = os.Getenv("swaggerPath")
	}

	st, err := wiring.OpenStorage(cfg, 60*time.Second)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	comps, err := wiring.Build(cfg, st)
	if err != nil {
		panic(err)
	}
	defer comps.Close()

	local := webhooks.NewLocal(comps.Engine)
	var handoff webhooks.Handoff = local
	if cfg.Kafka.Enabled() {
		topic := wiring.WebhookTopic(cfg)
		producer := kafka.NewProducer(wiring.Brokers(cfg), topic)
		defer func() { _ = producer.Close() }()
		handoff = webhooks.NewKafka(producer, local)
		slog.Info("webhook hand-off via kafka", "topic", topic)
	} else {
		slog.Info("webhook hand-off in-process")
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Webhooks:    webhooks.New(handoff),
		Invoices:    comps.Invoices,
		Poller:      comps.Poller,
		Orders:      comps.Engine,
		Ready:       st,
		SwaggerPath: swaggerPath,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = runReconAPI(ctx, reconAPIOpts{httpAddr: httpAddr}, router)
	// let in-process reconciliations finish before the pool closes
	local.Wait()
	if err != nil && err != context.Canceled {
		panic(err)
	}
}
