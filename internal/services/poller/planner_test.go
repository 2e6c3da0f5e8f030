package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type PlannerSuite struct {
	suite.Suite
	p *Planner
}

func (s *PlannerSuite) SetupTest() {
	p, err := NewPlanner(PlannerConfig{})
	s.Require().NoError(err)
	s.p = p
}

func (s *PlannerSuite) TestDefaults() {
	s.Equal(DefaultPlannerConfig(), s.p.Config())
}

func (s *PlannerSuite) TestNextRun_Winter() {
	// 07:00 EST
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	s.Equal(time.Date(2026, 1, 15, 13, 0, 0, 0, time.UTC), s.p.NextRun(now))

	// already past 08:00 EST
	now = time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	s.Equal(time.Date(2026, 1, 16, 13, 0, 0, 0, time.UTC), s.p.NextRun(now))
}

func (s *PlannerSuite) TestNextRun_Summer() {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	s.Equal(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC), s.p.NextRun(now))
}

func (s *PlannerSuite) TestSince() {
	now := time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC)
	s.Equal(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), s.p.Since(now))
}

func (s *PlannerSuite) TestInvalidConfig() {
	_, err := NewPlanner(PlannerConfig{Schedule: "every day"})
	s.Error(err)

	_, err = NewPlanner(PlannerConfig{Timezone: "Mars/Olympus"})
	s.Error(err)
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
