package poller

import (
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule = "0 8 * * *"
	DefaultTimezone = "America/New_York"
	DefaultWindow   = 30 * 24 * time.Hour
)

type PlannerConfig struct {
	Schedule string        // standard 5-field cron, default: 0 8 * * *
	Timezone string        // IANA zone the schedule is read in, default: America/New_York
	Window   time.Duration // how far back ship dates are polled, default: 30 days
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Schedule: DefaultSchedule,
		Timezone: DefaultTimezone,
		Window:   DefaultWindow,
	}
}

// Planner decides when the sweep runs and which ship dates it covers.
type Planner struct {
	cfg      PlannerConfig
	schedule cron.Schedule
	loc      *time.Location
}

func NewPlanner(cfg PlannerConfig) (*Planner, error) {
	def := DefaultPlannerConfig()
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if cfg.Timezone == "" {
		cfg.Timezone = def.Timezone
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load poll timezone %q", cfg.Timezone)
	}
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, errors.Wrapf(err, "parse poll schedule %q", cfg.Schedule)
	}
	return &Planner{cfg: cfg, schedule: sched, loc: loc}, nil
}

// NextRun returns the first scheduled sweep strictly after now, in UTC.
func (p *Planner) NextRun(now time.Time) time.Time {
	return p.schedule.Next(now.In(p.loc)).UTC()
}

// Since is the oldest ship date a sweep at now still polls.
func (p *Planner) Since(now time.Time) time.Time {
	return now.Add(-p.cfg.Window).UTC()
}

func (p *Planner) Config() PlannerConfig { return p.cfg }
