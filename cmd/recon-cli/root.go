package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BearBump/ShipRecon/config"
	"github.com/BearBump/ShipRecon/internal/integrations/carrier"
	"github.com/BearBump/ShipRecon/internal/integrations/shopify"
	"github.com/BearBump/ShipRecon/internal/models"
	"github.com/BearBump/ShipRecon/internal/normalizer"
	"github.com/BearBump/ShipRecon/internal/ratelimit"
	"github.com/BearBump/ShipRecon/internal/services/poller"
	"github.com/BearBump/ShipRecon/internal/services/reconcile"
	"github.com/BearBump/ShipRecon/internal/wiring"
)

var Version = "dev"

type invoiceService interface {
	Match(ctx context.Context, invoiceNumber string) (models.MatchResult, error)
	Unmatched(ctx context.Context, invoiceNumber string) ([]models.InvoiceLineItem, error)
}

type trackingPoller interface {
	PollOnce(ctx context.Context) (poller.Result, error)
}

type processor interface {
	ProcessNotification(ctx context.Context, n normalizer.Notification) (reconcile.BatchResult, error)
}

type orderLister interface {
	ListOrders(ctx context.Context, p shopify.ListParams, fn func([]shopify.Order) error) error
}

// services are the database-backed parts a command may need.
type services struct {
	invoices invoiceService
	poller   trackingPoller
	engine   processor
}

// env builds dependencies lazily so commands that need no database never connect.
type env struct {
	loadConfig   func(path string) (*config.Config, error)
	openServices func(cfg *config.Config) (*services, func(), error)
	newTracker   func(cfg *config.Config) carrier.Client
	newShopify   func(cfg *config.Config) orderLister
}

func defaultEnv() env {
	return env{
		loadConfig: config.LoadConfig,
		openServices: func(cfg *config.Config) (*services, func(), error) {
			st, err := wiring.OpenStorage(cfg, 10*time.Second)
			if err != nil {
				return nil, nil, err
			}
			comps, err := wiring.Build(cfg, st)
			if err != nil {
				st.Close()
				return nil, nil, err
			}
			closeFn := func() {
				comps.Close()
				st.Close()
			}
			return &services{invoices: comps.Invoices, poller: comps.Poller, engine: comps.Engine}, closeFn, nil
		},
		newTracker: wiring.NewTracker,
		newShopify: func(cfg *config.Config) orderLister {
			return shopify.New(shopify.Options{
				StoreURL:    cfg.Shopify.StoreURL,
				AccessToken: cfg.Shopify.AccessToken,
				APIVersion:  cfg.Shopify.APIVersion,
				Limiter:     ratelimit.WithDefault("shopify", cfg.RateLimits.ShopifyMillis, ratelimit.DefaultShopifyInterval),
			})
		},
	}
}

type cli struct {
	env     env
	cfgPath string
}

func newRootCmd(e env) *cobra.Command {
	c := &cli{env: e}
	root := &cobra.Command{
		Use:           "recon-cli",
		Short:         "Operator commands for shipment reconciliation",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", os.Getenv("configPath"), "Path to the YAML config")

	root.AddCommand(c.pollCmd())
	root.AddCommand(c.matchInvoiceCmd())
	root.AddCommand(c.unmatchedCmd())
	root.AddCommand(c.trackCmd())
	root.AddCommand(c.ordersCmd())
	root.AddCommand(c.replayCmd())
	return root
}

func (c *cli) config() (*config.Config, error) {
	return c.env.loadConfig(c.cfgPath)
}

// withServices loads config, opens storage and runs fn.
func (c *cli) withServices(fn func(s *services) error) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	s, closeFn, err := c.env.openServices(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
