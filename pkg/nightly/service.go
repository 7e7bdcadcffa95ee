package nightly

import (
	"context"
	"time"
)

// Config selects the nightly jobs
type Config struct {
	Restart   bool
	Reload    bool
	MaxJitter time.Duration
}

// Service owns the nightly restart and reload loops
type Service struct {
	loops []*Loop
}

// NewService creates the loops enabled in cfg
func NewService(cfg Config, sources Enablement, publisher Publisher, dashboards DashboardLister) *Service {
	s := &Service{}
	if cfg.Restart {
		s.loops = append(s.loops, NewLoop(LoopConfig{Job: NewRestarter(sources, cfg.MaxJitter)}))
	}
	if cfg.Reload {
		s.loops = append(s.loops, NewLoop(LoopConfig{Job: NewReloader(publisher, dashboards)}))
	}
	return s
}

// Jobs returns the names of the scheduled jobs
func (s *Service) Jobs() []string {
	names := make([]string, 0, len(s.loops))
	for _, l := range s.loops {
		names = append(names, l.cfg.Job.Name())
	}
	return names
}

// Start starts every loop
func (s *Service) Start(ctx context.Context) {
	for _, l := range s.loops {
		l.Start(ctx)
	}
}

// Stop stops every loop
func (s *Service) Stop() {
	for _, l := range s.loops {
		l.Stop()
	}
}
