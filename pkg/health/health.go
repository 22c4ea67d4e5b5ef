// Package health provides liveness and readiness probe endpoints. Checks
// run periodically in the background; the HTTP endpoints only read cached
// results, so probes stay fast even when a dependency is slow.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports the health of one component; nil means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]
}

func (c *check) run(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.fn(cctx)
	c.lastErr.Store(&err)
	c.healthy.Store(err == nil)
}

// Service aggregates named checks into /livez and /readyz endpoints.
// Readiness additionally honours a manual ready flag so the server can
// drain before shutdown.
type Service struct {
	mu        sync.Mutex
	liveness  []*check
	readiness []*check
	ready     atomic.Bool
	stop      context.CancelFunc
	done      chan struct{}
}

// New returns an empty Service. Checks must be added before Start.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a liveness check.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, newCheck(name, timeout, fn))
}

// AddReadinessCheck registers a readiness check.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, newCheck(name, timeout, fn))
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	// Optimistic until the first run completes.
	c.healthy.Store(true)
	return c
}

// Start runs every check immediately and then at the given interval until
// the context is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	s.done = make(chan struct{})

	s.mu.Lock()
	all := make([]*check, 0, len(s.liveness)+len(s.readiness))
	all = append(all, s.liveness...)
	all = append(all, s.readiness...)
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		for _, c := range all {
			c.run(ctx)
		}
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, c := range all {
					c.run(ctx)
				}
			}
		}
	}()
}

// Stop halts the background check loop.
func (s *Service) Stop() {
	if s.stop != nil {
		s.stop()
		<-s.done
	}
}

// SetReady flips the manual readiness flag.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// LiveEndpoint serves the liveness probe.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	checks := s.liveness
	s.mu.Unlock()
	s.respond(w, checks, true)
}

// ReadyEndpoint serves the readiness probe. It fails when the manual ready
// flag is down or any readiness check is unhealthy.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	checks := s.readiness
	s.mu.Unlock()
	s.respond(w, checks, s.ready.Load())
}

func (s *Service) respond(w http.ResponseWriter, checks []*check, ready bool) {
	status := "ok"
	code := http.StatusOK
	details := make(map[string]string, len(checks))

	if !ready {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	for _, c := range checks {
		if c.healthy.Load() {
			details[c.name] = "ok"
			continue
		}
		status = "unavailable"
		code = http.StatusServiceUnavailable
		if p := c.lastErr.Load(); p != nil && *p != nil {
			details[c.name] = (*p).Error()
		} else {
			details[c.name] = "unhealthy"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": details,
	})
}
