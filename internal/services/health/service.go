package health

import (
	"context"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Checker reports whether a dependency is reachable.
type Checker func(ctx context.Context) error

// Report is the health payload.
type Report struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Service runs registered dependency checks.
type Service struct {
	mu      sync.RWMutex
	checks  map[string]Checker
	timeout time.Duration
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: make(map[string]Checker), timeout: defaultCheckTimeout}
}

// Register adds a named check. A nil check is ignored.
func (s *Service) Register(name string, check Checker) {
	if check == nil {
		return
	}
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Status runs every check concurrently, each bounded by the check timeout.
func (s *Service) Status(ctx context.Context) Report {
	s.mu.RLock()
	checks := make(map[string]Checker, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.RUnlock()

	report := Report{OK: true}
	if len(checks) == 0 {
		return report
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = make(map[string]string, len(checks))
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			status := "ok"
			if err := check(cctx); err != nil {
				status = "unavailable"
			}
			mu.Lock()
			out[name] = status
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	for _, status := range out {
		if status != "ok" {
			report.OK = false
		}
	}
	report.Checks = out
	return report
}
