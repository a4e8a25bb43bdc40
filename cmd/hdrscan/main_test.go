package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server    *httptest.Server
	specHits  atomic.Int32
	siteHits  atomic.Int32
	addURL    string
	removeURL string
	siteURL   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fx := &fixture{}
	fx.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/add.json":
			fx.specHits.Add(1)
			_, _ = w.Write([]byte(`{"headers": [
				{"name": "X-Frame-Options", "value": "DENY"},
				{"name": "Referrer-Policy", "value": "no-referrer"}
			]}`))
		case "/remove.json":
			fx.specHits.Add(1)
			_, _ = w.Write([]byte(`{"headers": [{"name": "Server"}, {"name": "X-Powered-By"}]}`))
		case "/site":
			fx.siteHits.Add(1)
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Server", "nginx/1.25.0")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fx.server.Close)

	fx.addURL = fx.server.URL + "/add.json"
	fx.removeURL = fx.server.URL + "/remove.json"
	fx.siteURL = fx.server.URL + "/site"
	return fx
}

func (fx *fixture) args(extra ...string) []string {
	return append([]string{
		"--recommended", fx.addURL,
		"--disclosure-spec", fx.removeURL,
		"--no-color",
	}, extra...)
}

func execute(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsageErrors(t *testing.T) {
	t.Run("UnknownFlag", func(t *testing.T) {
		code, stdout, stderr := execute("--bogus")
		require.Equal(t, exitUsage, code)
		require.Contains(t, stderr, "--bogus")
		require.Contains(t, stderr, "--help")
		require.Empty(t, stdout)
	})

	t.Run("UnknownShorthand", func(t *testing.T) {
		code, _, stderr := execute("-z")
		require.Equal(t, exitUsage, code)
		require.Contains(t, stderr, "-z")
	})

	t.Run("PositionalArgument", func(t *testing.T) {
		code, _, stderr := execute("example.com")
		require.Equal(t, exitUsage, code)
		require.Contains(t, stderr, "example.com")
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		code, _, stderr := execute("-H", "no-colon-here")
		require.Equal(t, exitUsage, code)
		require.Contains(t, stderr, "no-colon-here")
	})

	t.Run("UnknownOutput", func(t *testing.T) {
		code, _, _ := execute("-o", "xml")
		require.Equal(t, exitUsage, code)
	})

	t.Run("MissingConfigFile", func(t *testing.T) {
		code, _, _ := execute("--config-file", t.TempDir()+"/absent.yaml")
		require.Equal(t, exitUsage, code)
	})
}

func TestHelp(t *testing.T) {
	fx := newFixture(t)

	for _, flag := range []string{"-h", "--help"} {
		code, stdout, _ := execute(append(fx.args("-u", fx.siteURL), flag)...)
		require.Equal(t, exitOK, code)
		require.Contains(t, stdout, "Usage:")
		require.Contains(t, stdout, "--disclosure")
	}
	require.Zero(t, fx.siteHits.Load())
	require.Zero(t, fx.specHits.Load())
}

func TestDisclosureOnly(t *testing.T) {
	fx := newFixture(t)

	code, stdout, _ := execute(fx.args("-d", "-u", fx.siteURL)...)
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, "Information disclosure headers")
	require.Contains(t, stdout, "server: nginx/1.25.0")
	require.NotContains(t, stdout, "Security header configuration")

	// only remove.json was downloaded
	require.Equal(t, int32(1), fx.specHits.Load())
}

func TestFullScanByDefault(t *testing.T) {
	fx := newFixture(t)

	code, stdout, _ := execute(fx.args("-u", fx.siteURL)...)
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, "Security header configuration")
	require.Contains(t, stdout, "Information disclosure headers")
	require.Contains(t, stdout, "referrer-policy")
}

func TestSpecFailureDoesNotChangeExitCode(t *testing.T) {
	fx := newFixture(t)

	code, stdout, _ := execute(fx.args("-u", fx.siteURL, "--recommended", fx.server.URL+"/missing.json")...)
	require.Equal(t, exitOK, code)
	require.Contains(t, stdout, "[ERROR] config scan of "+fx.siteURL)
	require.Contains(t, stdout, "server: nginx/1.25.0")
}

func TestStrict(t *testing.T) {
	fx := newFixture(t)

	code, _, _ := execute(fx.args("-u", fx.siteURL, "--strict")...)
	require.Equal(t, exitFindings, code)
}

func TestLogsGoToStderrWriter(t *testing.T) {
	fx := newFixture(t)

	code, stdout, stderr := execute(fx.args("-d", "-u", fx.siteURL, "--log-level", "debug")...)
	require.Equal(t, exitOK, code)
	require.Contains(t, stderr, "Scan configured")
	require.Contains(t, stderr, "level=DEBUG")
	require.NotContains(t, stdout, "Scan configured")

	code, _, stderr = execute(fx.args("-d", "-u", fx.siteURL)...)
	require.Equal(t, exitOK, code)
	require.NotContains(t, stderr, "Scan configured")
}

func TestJSONOutput(t *testing.T) {
	fx := newFixture(t)

	code, stdout, _ := execute(fx.args("-c", "-o", "json", "-u", fx.siteURL)...)
	require.Equal(t, exitOK, code)

	var decoded struct {
		Findings int `json:"findings"`
		Targets  []struct {
			URL      string `json:"url"`
			Policies []struct {
				Name string `json:"name"`
			} `json:"policies"`
		} `json:"targets"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &decoded))
	require.Equal(t, 1, decoded.Findings)
	require.Len(t, decoded.Targets, 1)
	require.Equal(t, fx.siteURL, decoded.Targets[0].URL)
	require.Len(t, decoded.Targets[0].Policies, 1)
	require.Equal(t, "config", decoded.Targets[0].Policies[0].Name)
}
