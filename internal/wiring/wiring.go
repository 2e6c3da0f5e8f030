// Package wiring builds the reconciliation components from configuration. The API, the
// worker and the operator CLI share it.
package wiring

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/config"
	"github.com/BearBump/ShipRecon/internal/cache"
	"github.com/BearBump/ShipRecon/internal/cache/rediscache"
	"github.com/BearBump/ShipRecon/internal/integrations/carrier"
	"github.com/BearBump/ShipRecon/internal/integrations/carrier/fake"
	"github.com/BearBump/ShipRecon/internal/integrations/shipstation"
	"github.com/BearBump/ShipRecon/internal/integrations/shopify"
	"github.com/BearBump/ShipRecon/internal/integrations/ups"
	"github.com/BearBump/ShipRecon/internal/normalizer"
	"github.com/BearBump/ShipRecon/internal/ratelimit"
	"github.com/BearBump/ShipRecon/internal/services/invoices"
	"github.com/BearBump/ShipRecon/internal/services/poller"
	"github.com/BearBump/ShipRecon/internal/services/reconcile"
	"github.com/BearBump/ShipRecon/internal/storage/pgrecon"
)

const (
	DefaultWebhookTopic   = "shipstation.webhook"
	DefaultWorkerGroup    = "recon-worker"
	DefaultAPIAddr        = ":8080"
	DefaultWorkerHTTPAddr = ":8082"
)

// Repository is everything the services need from storage.
type Repository interface {
	reconcile.Repository
	invoices.Repository
	poller.Repository
}

type Components struct {
	Tracker  carrier.Client
	Engine   *reconcile.Engine
	Invoices *invoices.Service
	Poller   *poller.Poller

	costs *rediscache.RedisCache
}

// Build wires every service on top of repo. External clients come from cfg.
func Build(cfg *config.Config, repo Repository) (*Components, error) {
	tracker := NewTracker(cfg)

	costs := NewCostCache(cfg)
	var bc cache.BytesCache
	if costs != nil {
		bc = costs
	}

	engine, err := NewEngine(cfg, repo, tracker, bc)
	if err != nil {
		return nil, err
	}
	planner, err := NewPlanner(cfg)
	if err != nil {
		return nil, err
	}
	return &Components{
		Tracker:  tracker,
		Engine:   engine,
		Invoices: invoices.New(repo),
		Poller:   poller.New(repo, tracker, planner),
		costs:    costs,
	}, nil
}

func (c *Components) Close() {
	if c.costs != nil {
		_ = c.costs.Close()
	}
}

// OpenStorage connects to Postgres, retrying until wait runs out.
func OpenStorage(cfg *config.Config, wait time.Duration) (*pgrecon.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for {
		st, err := pgrecon.New(cfg.Database.ConnString())
		if err == nil {
			return st, nil
		}
		lastErr = err
		if !time.Now().Before(deadline) {
			return nil, errors.Wrapf(lastErr, "postgres is not ready after %s", wait)
		}
		time.Sleep(time.Second)
	}
}

// NewTracker returns the UPS client. Without credentials it returns nil, unless
// shiprecon.fake_carrier asks for the demo fake.
func NewTracker(cfg *config.Config) carrier.Client {
	if cfg.UPS.ClientID == "" || cfg.UPS.ClientSecret == "" {
		if cfg.ShipRecon.FakeCarrier {
			slog.Warn("ups credentials not configured, using fake carrier")
			return fake.New()
		}
		slog.Warn("ups credentials not configured, carrier lookups disabled")
		return nil
	}
	return ups.New(ups.Options{
		ClientID:          cfg.UPS.ClientID,
		ClientSecret:      cfg.UPS.ClientSecret,
		TokenURL:          cfg.UPS.TokenURL,
		TrackingURL:       cfg.UPS.TrackingURL,
		TransactionSource: cfg.UPS.TransactionSource,
		Limiter:           ratelimit.WithDefault("ups", cfg.RateLimits.UPSMillis, ratelimit.DefaultUPSInterval),
	})
}

// NewCostCache returns nil when Redis is not configured.
func NewCostCache(cfg *config.Config) *rediscache.RedisCache {
	if cfg.Redis.Host == "" {
		return nil
	}
	return rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
}

// NewEngine wires both ShipStation surfaces, the normalizer and Shopify enrichment.
// The two ShipStation surfaces share one limiter.
func NewEngine(cfg *config.Config, repo reconcile.Repository, tracker carrier.Client, costs cache.BytesCache) (*reconcile.Engine, error) {
	ssLimiter := ratelimit.WithDefault("shipstation", cfg.RateLimits.ShipStationMillis, ratelimit.DefaultShipStationInterval)

	legacy, err := shipstation.NewLegacy(cfg.ShipStation.BaseURL, cfg.ShipStation.APIKey, cfg.ShipStation.APISecret, ssLimiter)
	if err != nil {
		return nil, errors.Wrap(err, "shipstation v1 client")
	}
	current, err := shipstation.NewCurrent(cfg.ShipStation.V2BaseURL, cfg.ShipStation.V2APIKey, ssLimiter)
	if err != nil {
		return nil, errors.Wrap(err, "shipstation v2 client")
	}

	shop := shopify.New(shopify.Options{
		StoreURL:    cfg.Shopify.StoreURL,
		AccessToken: cfg.Shopify.AccessToken,
		APIVersion:  cfg.Shopify.APIVersion,
		Limiter:     ratelimit.WithDefault("shopify", cfg.RateLimits.ShopifyMillis, ratelimit.DefaultShopifyInterval),
	})
	enricher := shopify.NewEnricher(shop, costs,
		time.Duration(cfg.ShipRecon.InventoryCostTTLSeconds)*time.Second,
		cfg.ShipRecon.CostLookupConcurrency,
	)

	return reconcile.New(repo, normalizer.New(legacy, current), enricher, tracker), nil
}

func NewPlanner(cfg *config.Config) (*poller.Planner, error) {
	return poller.NewPlanner(poller.PlannerConfig{
		Schedule: cfg.ShipRecon.PollSchedule,
		Timezone: cfg.ShipRecon.PollTimezone,
		Window:   time.Duration(cfg.ShipRecon.PollWindowDays) * 24 * time.Hour,
	})
}

func Brokers(cfg *config.Config) []string {
	return []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
}

func WebhookTopic(cfg *config.Config) string {
	if cfg.Kafka.WebhookReceivedTopicName != "" {
		return cfg.Kafka.WebhookReceivedTopicName
	}
	return DefaultWebhookTopic
}
