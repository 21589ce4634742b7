// Package health runs periodic liveness probes against the external
// dependencies and aggregates them into the single flag the ops health
// endpoint reports.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Checker is implemented by component-level checkers.
type Checker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// ProbeChecker wraps a single dependency probe. The probe returns nil when
// the dependency answers.
type ProbeChecker struct {
	name    string
	probe   func(ctx context.Context) error
	timeout time.Duration
	healthy atomic.Bool
	log     zerolog.Logger
}

// NewProbeChecker constructs a checker over probe. It reports unhealthy
// until the first successful probe.
func NewProbeChecker(name string, probe func(ctx context.Context) error, timeout time.Duration, log zerolog.Logger) *ProbeChecker {
	return &ProbeChecker{name: name, probe: probe, timeout: timeout, log: log}
}

func (c *ProbeChecker) Name() string    { return c.name }
func (c *ProbeChecker) IsHealthy() bool { return c.healthy.Load() }

// Start probes until ctx is canceled.
func (c *ProbeChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check(ctx)
		}
	}
}

func (c *ProbeChecker) check(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.probe(probeCtx)
	was := c.healthy.Swap(err == nil)
	switch {
	case err != nil && was:
		c.log.Error().Err(err).Str("dependency", c.name).Msg("dependency probe failed")
	case err == nil && !was:
		c.log.Info().Str("dependency", c.name).Msg("dependency healthy")
	}
}

// ServiceChecker aggregates component checkers into one service flag.
type ServiceChecker struct {
	healthy atomic.Bool
	deps    []Checker
	log     zerolog.Logger
}

func NewServiceChecker(log zerolog.Logger, deps ...Checker) *ServiceChecker {
	return &ServiceChecker{deps: deps, log: log}
}

// IsHealthy returns the cached service health.
func (s *ServiceChecker) IsHealthy() bool { return s.healthy.Load() }

// Start periodically re-evaluates dependency health until ctx is canceled.
func (s *ServiceChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	eval := func() {
		all := true
		for _, c := range s.deps {
			if !c.IsHealthy() {
				all = false
			}
		}
		if was := s.healthy.Swap(all); was != all {
			if all {
				s.log.Info().Msg("service health: UP")
			} else {
				s.log.Error().Msg("service health: DOWN")
			}
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
