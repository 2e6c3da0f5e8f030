// Package poller re-checks carrier delivery status for shipments that have not reached a
// terminal state.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipRecon/internal/integrations/carrier"
	"github.com/BearBump/ShipRecon/internal/models"
)

type Repository interface {
	ListPollCandidates(ctx context.Context, since time.Time) ([]models.PollCandidate, error)
	UpdateTracking(ctx context.Context, u models.TrackingUpdate) (bool, error)
}

// Result tallies one sweep.
type Result struct {
	Polled    int `json:"polled"`
	Updated   int `json:"updated"`
	Delivered int `json:"delivered"`
	Errors    int `json:"errors"`
}

type Poller struct {
	repo    Repository
	carrier carrier.Client
	planner *Planner
	now     func() time.Time

	// one sweep at a time, scheduled or manual
	sweepMu sync.Mutex

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	nextRunUnixNano     atomic.Int64
	totalPolled         atomic.Int64
	totalUpdated        atomic.Int64
	totalDelivered      atomic.Int64
	totalErrors         atomic.Int64
	running             atomic.Bool
	lastMu              sync.Mutex
	lastError           string
	lastResult          *Result
}

// New builds a Poller. With a nil carrier every sweep is a logged no-op.
func New(repo Repository, c carrier.Client, planner *Planner) *Poller {
	if planner == nil {
		planner = DefaultPlanner()
	}
	return &Poller{
		repo:              repo,
		carrier:           c,
		planner:           planner,
		now:               time.Now,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	p, err := NewPlanner(DefaultPlannerConfig())
	if err != nil {
		// tzdata is missing; fall back to the same wall-clock hour in UTC
		cfg := DefaultPlannerConfig()
		cfg.Timezone = "UTC"
		p, _ = NewPlanner(cfg)
	}
	return p
}

func (p *Poller) PlannerConfig() PlannerConfig { return p.planner.Config() }

// Trigger asks Run for an immediate sweep (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	NextRunAt      *time.Time `json:"nextRunAt,omitempty"`
	Running        bool       `json:"running"`
	TotalPolled    int64      `json:"totalPolled"`
	TotalUpdated   int64      `json:"totalUpdated"`
	TotalDelivered int64      `json:"totalDelivered"`
	TotalErrors    int64      `json:"totalErrors"`
	LastResult     *Result    `json:"lastResult,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		Running:        p.running.Load(),
		TotalPolled:    p.totalPolled.Load(),
		TotalUpdated:   p.totalUpdated.Load(),
		TotalDelivered: p.totalDelivered.Load(),
		TotalErrors:    p.totalErrors.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	if n := p.nextRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.NextRunAt = &t
	}
	p.lastMu.Lock()
	st.LastError = p.lastError
	if p.lastResult != nil {
		r := *p.lastResult
		st.LastResult = &r
	}
	p.lastMu.Unlock()
	return st
}

// Run sweeps on the planner's schedule and on Trigger until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if p.carrier == nil {
		slog.Warn("tracking poller has no carrier, scheduled sweeps will not update shipments")
	}
	for {
		next := p.planner.NextRun(p.now())
		p.nextRunUnixNano.Store(next.UnixNano())
		slog.Info("next tracking poll scheduled", "at", next.Format(time.RFC3339))

		t := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		case <-p.triggerCh:
			t.Stop()
		}
		_, _ = p.PollOnce(ctx)
	}
}

// PollOnce runs one sweep now and returns its tally. Per-shipment failures are counted,
// only a failure to list candidates is returned as an error.
func (p *Poller) PollOnce(ctx context.Context) (Result, error) {
	if p.carrier == nil {
		slog.Warn("tracking poll skipped, no carrier configured")
		return Result{}, nil
	}

	p.sweepMu.Lock()
	defer p.sweepMu.Unlock()
	p.running.Store(true)
	defer p.running.Store(false)

	now := p.now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	items, err := p.repo.ListPollCandidates(ctx, p.planner.Since(now))
	if err != nil {
		slog.Error("list poll candidates", "error", err.Error())
		p.setLast(nil, err)
		return Result{}, errors.Wrap(err, "list poll candidates")
	}

	slog.Info("tracking poll started", "candidates", len(items))
	var res Result
	for _, c := range items {
		if ctx.Err() != nil {
			break
		}
		res.Polled++
		updated, delivered, err := p.processOne(ctx, c)
		if err != nil {
			res.Errors++
			p.setLast(nil, err)
			slog.Error("poll shipment", "tracking_number", c.TrackingNumber, "error", err.Error())
			continue
		}
		if updated {
			res.Updated++
		}
		if delivered {
			res.Delivered++
		}
	}

	p.totalPolled.Add(int64(res.Polled))
	p.totalUpdated.Add(int64(res.Updated))
	p.totalDelivered.Add(int64(res.Delivered))
	p.totalErrors.Add(int64(res.Errors))
	p.setLast(&res, nil)

	slog.Info("tracking poll finished",
		"polled", res.Polled,
		"updated", res.Updated,
		"delivered", res.Delivered,
		"errors", res.Errors,
	)
	return res, nil
}

func (p *Poller) processOne(ctx context.Context, c models.PollCandidate) (updated, delivered bool, err error) {
	res, err := p.carrier.GetTracking(ctx, c.TrackingNumber)
	if err != nil {
		return false, false, errors.Wrap(err, "get tracking")
	}
	if !res.HasDeliveryData() {
		// not_found is normal for fresh labels; the next run retries
		slog.Debug("no tracking data yet", "tracking_number", c.TrackingNumber, "status", res.Status)
		return false, false, nil
	}

	promised := res.ScheduledDelivery
	if promised == nil {
		promised = c.PromisedDeliveryDate
	}
	u := models.TrackingUpdate{
		TrackingNumber:       c.TrackingNumber,
		ActualDeliveryDate:   res.ActualDelivery,
		PromisedDeliveryDate: res.ScheduledDelivery,
		IsLate:               models.IsLate(res.ActualDelivery, promised),
	}
	if res.DeliveryStatus != "" {
		s := res.DeliveryStatus
		u.DeliveryStatus = &s
	}

	ok, err := p.repo.UpdateTracking(ctx, u)
	if err != nil {
		return false, false, err
	}
	return ok, ok && res.DeliveryStatus == models.DeliveryStatusDelivered, nil
}

func (p *Poller) setLast(res *Result, err error) {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	if err != nil {
		p.lastError = err.Error()
	}
	if res != nil {
		p.lastResult = res
	}
}
