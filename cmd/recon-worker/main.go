package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/ShipRecon/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}

	swaggerPath := os.Getenv("workerSwaggerPath")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunReconWorker(ctx, cfg, workerOpts{
		httpAddr:    cfg.ShipRecon.WorkerHTTPAddr,
		swaggerPath: swaggerPath,
	}, defaultWorkerFactories())
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
