package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/config"
	"hdrscan/pkg/fetch"
	"hdrscan/pkg/refspec"
)

func newFixture(t *testing.T) (*httptest.Server, *config.Config) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/add.json":
			_, _ = w.Write([]byte(`{"headers": [
				{"name": "Strict-Transport-Security", "value": "max-age=63072000"},
				{"name": "X-Frame-Options", "value": "DENY"},
				{"name": "X-Content-Type-Options", "value": "nosniff"}
			]}`))
		case "/remove.json":
			_, _ = w.Write([]byte(`{"headers": [{"name": "Server"}, {"name": "X-Powered-By"}]}`))
		case "/broken.json":
			_, _ = w.Write([]byte(`{"headers": [{"value": "nameless"}]}`))
		case "/site":
			w.Header().Set("Strict-Transport-Security", "max-age=100")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Server", "nginx")
		case "/other":
			w.WriteHeader(http.StatusNotFound)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Targets = []string{server.URL + "/site"}
	cfg.RecommendedSource = server.URL + "/add.json"
	cfg.DisclosureSource = server.URL + "/remove.json"
	return server, cfg
}

func newTestScanner(t *testing.T) *Scanner {
	t.Helper()
	loader, err := refspec.NewLoader(refspec.LoaderOptions{})
	require.NoError(t, err)
	return NewScanner(loader, fetch.NewFetcher(fetch.Options{}), nil)
}

func TestRunFullScan(t *testing.T) {
	_, cfg := newFixture(t)

	report := newTestScanner(t).Run(context.Background(), cfg)
	require.Len(t, report.Targets, 1)
	require.False(t, report.Failed())

	target := report.Targets[0]
	require.NoError(t, target.Error)
	require.Len(t, target.Policies, 2)

	configScan := target.Policies[0]
	require.Equal(t, checks.PolicyConfig, configScan.Policy.Name)
	require.NoError(t, configScan.Error)
	require.Equal(t, map[string]string{"x-frame-options": "DENY"}, configScan.Result.Matching)
	require.Equal(t, map[string]string{"strict-transport-security": "max-age=100"}, configScan.Result.NonMatching)
	require.Equal(t, map[string]string{"x-content-type-options": "nosniff"}, configScan.Result.Missing)
	require.Len(t, configScan.Result.Present, 2)

	disclosure := target.Policies[1]
	require.Equal(t, checks.PolicyDisclosure, disclosure.Policy.Name)
	require.Equal(t, map[string]string{"server": "nginx"}, disclosure.Result.Present)
	require.Equal(t, map[string]string{"x-powered-by": ""}, disclosure.Result.Missing)

	// 1 non-matching + 1 missing + 1 disclosed
	require.Equal(t, 3, report.Findings())
}

func TestRunSinglePolicy(t *testing.T) {
	_, cfg := newFixture(t)
	cfg.Policies = []string{checks.PolicyDisclosure}

	report := newTestScanner(t).Run(context.Background(), cfg)
	require.Len(t, report.Targets[0].Policies, 1)
	require.Equal(t, checks.PolicyDisclosure, report.Targets[0].Policies[0].Policy.Name)
}

func TestSpecFailureIsolated(t *testing.T) {
	server, cfg := newFixture(t)
	cfg.RecommendedSource = server.URL + "/broken.json"

	report := newTestScanner(t).Run(context.Background(), cfg)
	require.True(t, report.Failed())

	policies := report.Targets[0].Policies
	require.Error(t, policies[0].Error)
	require.True(t, IsSpecError(policies[0].Error))
	require.Nil(t, policies[0].Result)

	require.NoError(t, policies[1].Error)
	require.Equal(t, map[string]string{"server": "nginx"}, policies[1].Result.Present)
}

func TestTargetFailureAbortsPolicies(t *testing.T) {
	_, cfg := newFixture(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	cfg.Targets = []string{dead.URL}
	dead.Close()

	report := newTestScanner(t).Run(context.Background(), cfg)
	target := report.Targets[0]
	require.True(t, IsTargetError(target.Error))
	for _, p := range target.Policies {
		require.True(t, IsTargetError(p.Error))
		require.Nil(t, p.Result)
	}
}

func TestTargetsScannedInOrder(t *testing.T) {
	server, cfg := newFixture(t)
	cfg.Targets = []string{server.URL + "/site", server.URL + "/other"}

	report := newTestScanner(t).Run(context.Background(), cfg)
	require.Len(t, report.Targets, 2)
	require.Equal(t, server.URL+"/site", report.Targets[0].URL)
	require.Equal(t, server.URL+"/other", report.Targets[1].URL)

	// 404 responses are still classified
	require.NoError(t, report.Targets[1].Error)
	require.Len(t, report.Targets[1].Policies[0].Result.Missing, 3)
}

type stubLoader struct {
	mu    sync.Mutex
	calls []string
	ref   checks.Reference
}

func (s *stubLoader) LoadFor(_ context.Context, _ checks.Kind, source string) (checks.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, source)
	return s.ref, nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, target string) (*fetch.Response, error) {
	return &fetch.Response{URL: target, StatusCode: 200, Headers: checks.Observed{"server": "x"}}, nil
}

func TestShapeMismatchReported(t *testing.T) {
	loader := &stubLoader{ref: checks.NewPresenceSpec("Server")}
	scanner := NewScanner(loader, stubFetcher{}, checks.NewStandardRegistry())

	cfg := config.Default()
	cfg.Targets = []string{"https://example.com"}
	cfg.Policies = []string{checks.PolicyConfig}

	report := scanner.Run(context.Background(), cfg)
	require.ErrorIs(t, report.Targets[0].Policies[0].Error, checks.ErrInvalidSpecShape)
	require.Equal(t, []string{cfg.RecommendedSource}, loader.calls)
}

func TestUnknownPolicyReported(t *testing.T) {
	scanner := NewScanner(&stubLoader{}, stubFetcher{}, nil)

	cfg := config.Default()
	cfg.Targets = []string{"https://example.com"}
	cfg.Policies = []string{"cookies"}

	report := scanner.Run(context.Background(), cfg)
	require.ErrorIs(t, report.Targets[0].Policies[0].Error, checks.ErrUnknownPolicy)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewScanner(&stubLoader{}, stubFetcher{}, nil).Run(ctx, config.Default())
	require.Empty(t, report.Targets)
}
