// Package executor orchestrates header scans.
// Run takes the explicit configuration of one invocation and, for every
// target, fetches the target's headers and the reference documents of the
// requested policies, then classifies each policy through the checks
// registry. Failures are recorded per policy and per target so that one
// failing policy never hides another.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/config"
	"hdrscan/pkg/fetch"
	"hdrscan/pkg/refspec"
)

// SpecLoader resolves the reference a policy compares against
type SpecLoader interface {
	LoadFor(ctx context.Context, kind checks.Kind, source string) (checks.Reference, error)
}

// TargetFetcher retrieves the observed headers of a target
type TargetFetcher interface {
	Fetch(ctx context.Context, target string) (*fetch.Response, error)
}

// Report is the outcome of one invocation
type Report struct {
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  time.Duration   `json:"duration"`
	Targets   []*TargetResult `json:"targets"`
}

// TargetResult is the outcome of scanning one target
type TargetResult struct {
	URL      string          `json:"url"`
	Response *fetch.Response `json:"response,omitempty"`
	Policies []*PolicyResult `json:"policies"`
	Duration time.Duration   `json:"duration"`
	Error    error           `json:"-"`
}

// PolicyResult is the outcome of one policy against one target
type PolicyResult struct {
	Policy    checks.Policy    `json:"policy"`
	Source    string           `json:"source"`
	Reference checks.Reference `json:"-"`
	Result    *checks.Result   `json:"result,omitempty"`
	Duration  time.Duration    `json:"duration"`
	Error     error            `json:"-"`
}

// Findings counts deviations over every completed policy
func (r *Report) Findings() int {
	total := 0
	for _, t := range r.Targets {
		for _, p := range t.Policies {
			total += p.Result.Findings()
		}
	}
	return total
}

// Failed reports whether any policy of any target could not complete
func (r *Report) Failed() bool {
	for _, t := range r.Targets {
		for _, p := range t.Policies {
			if p.Error != nil {
				return true
			}
		}
	}
	return false
}

// Scanner runs scans with its collaborators
type Scanner struct {
	Loader   SpecLoader
	Fetcher  TargetFetcher
	Registry *checks.PolicyRegistry
}

// NewScanner creates a Scanner. A nil registry uses checks.DefaultRegistry.
func NewScanner(loader SpecLoader, fetcher TargetFetcher, registry *checks.PolicyRegistry) *Scanner {
	if registry == nil {
		registry = checks.DefaultRegistry
	}
	return &Scanner{Loader: loader, Fetcher: fetcher, Registry: registry}
}

// Run scans every configured target in order with the configured policies.
func (s *Scanner) Run(ctx context.Context, cfg *config.Config) *Report {
	report := &Report{StartTime: time.Now()}

	for _, target := range cfg.ScanTargets() {
		if err := ctx.Err(); err != nil {
			slog.Warn("Scan interrupted", "error", err)
			break
		}
		report.Targets = append(report.Targets, s.ScanTarget(ctx, cfg, target))
	}

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)
	return report
}

// ScanTarget scans a single target. The target fetch and every policy's
// reference load run concurrently; classification waits for both.
func (s *Scanner) ScanTarget(ctx context.Context, cfg *config.Config, target string) *TargetResult {
	start := time.Now()
	result := &TargetResult{URL: target}

	policies := make([]*PolicyResult, 0, len(cfg.Policies))
	for _, name := range cfg.Policies {
		pr := &PolicyResult{Source: cfg.Source(name)}
		policy, err := s.Registry.Get(name)
		if err != nil {
			pr.Policy = checks.Policy{Name: name}
			pr.Error = err
		} else {
			pr.Policy = policy
		}
		policies = append(policies, pr)
	}
	result.Policies = policies

	slog.Info("Starting scan", "target", target, "policies", cfg.Policies)

	var wg sync.WaitGroup
	var fetchErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		result.Response, fetchErr = s.Fetcher.Fetch(ctx, target)
	}()

	for _, pr := range policies {
		if pr.Error != nil {
			continue
		}
		wg.Add(1)
		go func(pr *PolicyResult) {
			defer wg.Done()
			loadStart := time.Now()
			pr.Reference, pr.Error = s.Loader.LoadFor(ctx, pr.Policy.Kind, pr.Source)
			pr.Duration = time.Since(loadStart)
		}(pr)
	}
	wg.Wait()

	if fetchErr != nil {
		result.Error = fetchErr
		if result.Response != nil {
			result.URL = result.Response.URL
		}
		slog.Error("Target fetch failed", "target", target, "error", fetchErr)
	} else {
		result.URL = result.Response.URL
	}

	for _, pr := range policies {
		switch {
		case pr.Error != nil:
			slog.Error("Policy aborted", "policy", pr.Policy.Name, "target", target, "error", pr.Error)
		case fetchErr != nil:
			pr.Error = fmt.Errorf("target fetch failed: %w", fetchErr)
		default:
			classifyStart := time.Now()
			pr.Result, pr.Error = s.Registry.Execute(pr.Policy.Name, pr.Reference, result.Response.Headers)
			pr.Duration += time.Since(classifyStart)
			if pr.Error != nil {
				slog.Error("Classification failed", "policy", pr.Policy.Name, "error", pr.Error)
				continue
			}
			slog.Info("Policy classified",
				"policy", pr.Policy.Name,
				"target", result.URL,
				"findings", pr.Result.Findings())
		}
	}

	result.Duration = time.Since(start)
	return result
}

// IsTargetError reports whether err stems from the target rather than a
// reference document
func IsTargetError(err error) bool {
	return errors.Is(err, fetch.ErrTargetUnreachable) || errors.Is(err, fetch.ErrTargetHTTP)
}

// IsSpecError reports whether err stems from a reference document
func IsSpecError(err error) bool {
	return errors.Is(err, refspec.ErrSpecFetch)
}
