package reporter

import (
	"bytes"
	"errors"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/executor"
	"hdrscan/pkg/fetch"
)

func sampleReport(t *testing.T) *executor.Report {
	t.Helper()

	observed := checks.NewObserved(map[string]string{
		"Strict-Transport-Security": "max-age=100",
		"X-Frame-Options":           "DENY",
		"Server":                    "nginx/1.25.0",
	})

	valued := checks.NewValuedSpec(map[string]string{
		"Strict-Transport-Security": "max-age=63072000",
		"X-Frame-Options":           "DENY",
		"Referrer-Policy":           "no-referrer",
	})
	presence := checks.NewPresenceSpec("Server", "X-Powered-By")

	configResult, err := checks.DefaultRegistry.Execute(checks.PolicyConfig, valued, observed)
	require.NoError(t, err)
	disclosureResult, err := checks.DefaultRegistry.Execute(checks.PolicyDisclosure, presence, observed)
	require.NoError(t, err)

	configPolicy, _ := checks.DefaultRegistry.Get(checks.PolicyConfig)
	disclosurePolicy, _ := checks.DefaultRegistry.Get(checks.PolicyDisclosure)

	return &executor.Report{
		StartTime: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Targets: []*executor.TargetResult{
			{
				URL:      "https://example.com",
				Response: &fetch.Response{URL: "https://example.com", StatusCode: 200, Headers: observed},
				Policies: []*executor.PolicyResult{
					{Policy: configPolicy, Source: "add.json", Reference: valued, Result: configResult},
					{Policy: disclosurePolicy, Source: "remove.json", Reference: presence, Result: disclosureResult},
				},
			},
			{
				URL: "https://down.example.com",
				Policies: []*executor.PolicyResult{
					{Policy: configPolicy, Source: "add.json", Error: errors.New("target fetch failed: connection refused")},
				},
			},
		},
	}
}

func TestPrintReport(t *testing.T) {
	report := sampleReport(t)

	t.Run("Deviations", func(t *testing.T) {
		var buf bytes.Buffer
		PrintReport(&buf, report, Options{NoColor: true})
		out := buf.String()

		require.Contains(t, out, "Target: https://example.com")
		require.Contains(t, out, "present: 2  matching: 1  non-matching: 1  missing: 1")
		require.Contains(t, out, "observed: max-age=100")
		require.Contains(t, out, "expected: max-age=63072000")
		require.Contains(t, out, "referrer-policy")
		require.Contains(t, out, "disclosed: 1  absent: 1")
		require.Contains(t, out, "server: nginx/1.25.0")
		require.Contains(t, out, "[ERROR] config scan of https://down.example.com: target fetch failed: connection refused")
		require.Contains(t, out, "Scanned 2 targets")
		require.NotContains(t, out, "Matching:")
		require.NotContains(t, out, "Absent:")
	})

	t.Run("Verbose", func(t *testing.T) {
		var buf bytes.Buffer
		PrintReport(&buf, report, Options{Verbose: true, NoColor: true})
		out := buf.String()

		require.Contains(t, out, "Matching:")
		require.Contains(t, out, "x-frame-options: DENY")
		require.Contains(t, out, "Absent:")
		require.Contains(t, out, "x-powered-by")
	})

	t.Run("DoesNotMutate", func(t *testing.T) {
		before := len(report.Targets[0].Policies[0].Result.Missing)
		PrintReport(&bytes.Buffer{}, report, Options{Verbose: true, NoColor: true})
		require.Equal(t, before, len(report.Targets[0].Policies[0].Result.Missing))
	})

	t.Run("Empty", func(t *testing.T) {
		var buf bytes.Buffer
		PrintReport(&buf, nil, Options{})
		require.Equal(t, "No result available.\n", buf.String())
	})
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport(t), Options{}))

	var decoded struct {
		Findings int `json:"findings"`
		Targets  []struct {
			URL        string `json:"url"`
			StatusCode int    `json:"status_code"`
			Headers    map[string]string
			Policies   []struct {
				Name     string `json:"name"`
				Kind     string `json:"kind"`
				Findings int    `json:"findings"`
				Error    string `json:"error"`
				Result   *struct {
					NonMatching map[string]string `json:"non_matching"`
				} `json:"result"`
			} `json:"policies"`
		} `json:"targets"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	require.Equal(t, 3, decoded.Findings)
	require.Len(t, decoded.Targets, 2)
	require.Nil(t, decoded.Targets[0].Headers)
	require.Equal(t, 200, decoded.Targets[0].StatusCode)

	configScan := decoded.Targets[0].Policies[0]
	require.Equal(t, "config", configScan.Name)
	require.Equal(t, "valued", configScan.Kind)
	require.Equal(t, 2, configScan.Findings)
	require.Equal(t, map[string]string{"strict-transport-security": "max-age=100"}, configScan.Result.NonMatching)

	require.Equal(t, "presence", decoded.Targets[0].Policies[1].Kind)
	require.Contains(t, decoded.Targets[1].Policies[0].Error, "connection refused")
	require.Nil(t, decoded.Targets[1].Policies[0].Result)
}
