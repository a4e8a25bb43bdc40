// Package main implements the command-line interface of hdrscan.
// It layers the configuration (defaults, config file, environment, flags),
// builds the HTTP client, spec loader and fetcher, runs the scan through the
// executor and renders the report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/config"
	"hdrscan/pkg/executor"
	"hdrscan/pkg/fetch"
	"hdrscan/pkg/refspec"
	"hdrscan/pkg/reporter"
	"hdrscan/pkg/utils"
)

// Exit codes
const (
	exitOK       = 0
	exitInternal = 1
	exitUsage    = 2
	exitFindings = 3
)

// usageError marks command-line misuse detected before any network activity
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type cliFlags struct {
	urls       []string
	config     bool
	disclosure bool
	full       bool
	verbose    bool

	output         string
	configFile     string
	recommended    string
	disclosureSpec string
	timeout        time.Duration
	userAgent      string
	headers        []string
	insecure       bool
	meta           bool
	failOnHTTP     bool
	strict         bool
	noColor        bool
	logLevel       string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns its exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	exitCode := exitOK
	cmd := newRootCommand(stdout, stderr, &exitCode)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		var ue *usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "Error: %v\n", ue.err)
			fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", cmd.Name())
			return exitUsage
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", cmd.Name())
		return exitInternal
	}
	return exitCode
}

func newRootCommand(stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	f := &cliFlags{}

	cmd := &cobra.Command{
		Use:   "hdrscan",
		Short: "Audit the HTTP security headers of a website",
		Long: "hdrscan compares the response headers of a target against the OWASP Secure Headers\n" +
			"recommendations (configuration scan) and against the list of headers that\n" +
			"disclose implementation details (disclosure scan).",
		Example: "  hdrscan -u https://example.com\n" +
			"  hdrscan -d -u example.com\n" +
			"  hdrscan -c -v -o json -u https://a.example -u https://b.example",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{err: fmt.Errorf("unexpected argument '%s'", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := scan(cmd.Context(), cmd.Flags(), f, stdout, stderr)
			*exitCode = code
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	fl := cmd.Flags()
	fl.StringArrayVarP(&f.urls, "url", "u", nil, "target URL to scan (repeatable)")
	fl.BoolVarP(&f.config, "config", "c", false, "run the configuration scan only")
	fl.BoolVarP(&f.disclosure, "disclosure", "d", false, "run the disclosure scan only")
	fl.BoolVarP(&f.full, "full", "f", false, "run both scans (default)")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "also list matching and absent headers")
	fl.StringVarP(&f.output, "output", "o", config.OutputText, "output format: text or json")
	fl.StringVar(&f.configFile, "config-file", "", "YAML configuration file")
	fl.StringVar(&f.recommended, "recommended", "", "recommended headers document (URL or path)")
	fl.StringVar(&f.disclosureSpec, "disclosure-spec", "", "disclosure headers document (URL or path)")
	fl.DurationVar(&f.timeout, "timeout", utils.DefaultTimeout, "per-request timeout")
	fl.StringVar(&f.userAgent, "user-agent", utils.DefaultUserAgent, "User-Agent sent to targets and spec sources")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, "extra request header 'Name: value' (repeatable)")
	fl.BoolVar(&f.insecure, "insecure", false, "skip TLS certificate verification of targets")
	fl.BoolVar(&f.meta, "meta", false, "merge <meta http-equiv> declarations of HTML responses")
	fl.BoolVar(&f.failOnHTTP, "fail-on-http-error", false, "treat a non-2xx target status as a failure")
	fl.BoolVar(&f.strict, "strict", false, "exit with status 3 when findings or failures exist")
	fl.BoolVar(&f.noColor, "no-color", false, "disable colored output")
	fl.StringVar(&f.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	return cmd
}

// buildConfig layers defaults, the config file, the environment and the flags
func buildConfig(fl *pflag.FlagSet, f *cliFlags) (*config.Config, error) {
	cfg := config.Default()

	if f.configFile != "" {
		if err := cfg.LoadFile(f.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}

	if len(f.urls) > 0 {
		cfg.Targets = f.urls
	}
	switch {
	case f.full || (f.config && f.disclosure):
		cfg.Policies = []string{checks.PolicyConfig, checks.PolicyDisclosure}
	case f.config:
		cfg.Policies = []string{checks.PolicyConfig}
	case f.disclosure:
		cfg.Policies = []string{checks.PolicyDisclosure}
	}
	if f.verbose {
		cfg.Verbose = true
	}
	if fl.Changed("output") {
		cfg.Output = strings.ToLower(f.output)
	}
	if fl.Changed("recommended") {
		cfg.RecommendedSource = f.recommended
	}
	if fl.Changed("disclosure-spec") {
		cfg.DisclosureSource = f.disclosureSpec
	}
	if fl.Changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if fl.Changed("user-agent") {
		cfg.UserAgent = f.userAgent
	}
	for _, raw := range f.headers {
		name, value, err := config.ParseHeader(raw)
		if err != nil {
			return nil, err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[name] = value
	}
	if f.insecure {
		cfg.Insecure = true
	}
	if f.meta {
		cfg.IncludeMeta = true
	}
	if f.failOnHTTP {
		cfg.FailOnHTTPError = true
	}
	if f.strict {
		cfg.Strict = true
	}
	if f.noColor {
		cfg.NoColor = true
	}
	if fl.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func scan(ctx context.Context, fl *pflag.FlagSet, f *cliFlags, stdout, stderr io.Writer) (int, error) {
	cfg, err := buildConfig(fl, f)
	if err != nil {
		return exitUsage, &usageError{err: err}
	}
	setupLogging(stderr, cfg.LogLevel)

	creds, err := cfg.ResolveCredentials()
	if err != nil {
		return exitUsage, &usageError{err: err}
	}

	// Spec sources are always verified; --insecure only concerns targets
	specClient := utils.NewHTTPClient(utils.ClientOptions{Timeout: cfg.Timeout})
	loader, err := refspec.NewLoader(refspec.LoaderOptions{Client: specClient, UserAgent: cfg.UserAgent})
	if err != nil {
		return exitInternal, err
	}

	fetcher := fetch.NewFetcher(fetch.Options{
		Client: utils.NewHTTPClient(utils.ClientOptions{
			Timeout:      cfg.Timeout,
			MaxRedirects: cfg.MaxRedirects,
			Insecure:     cfg.Insecure,
		}),
		Method:          cfg.Method,
		UserAgent:       cfg.UserAgent,
		Headers:         cfg.Headers,
		Credentials:     creds,
		IncludeMeta:     cfg.IncludeMeta,
		FailOnHTTPError: cfg.FailOnHTTPError,
	})

	slog.Info("Scan configured", "targets", len(cfg.ScanTargets()), "policies", cfg.Policies)
	report := executor.NewScanner(loader, fetcher, nil).Run(ctx, cfg)
	slog.Info("Scan finished", "duration", report.Duration, "findings", report.Findings())

	opts := reporter.Options{Verbose: cfg.Verbose, NoColor: cfg.NoColor}
	switch cfg.Output {
	case config.OutputJSON:
		if err := reporter.WriteJSON(stdout, report, opts); err != nil {
			return exitInternal, err
		}
	default:
		reporter.PrintReport(stdout, report, opts)
	}

	if cfg.Strict && (report.Findings() > 0 || report.Failed()) {
		return exitFindings, nil
	}
	return exitOK, nil
}

func setupLogging(w io.Writer, logLevel string) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
