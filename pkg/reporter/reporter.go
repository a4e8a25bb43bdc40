// Package reporter provides functions for formatting and outputting scan results.
package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/executor"
)

// Options controls rendering
type Options struct {
	Verbose bool
	NoColor bool
}

type palette struct {
	success, failure, highlight, warning, dim func(a ...interface{}) string
}

func newPalette(noColor bool) palette {
	mk := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return palette{
		success:   mk(color.FgGreen),
		failure:   mk(color.FgRed),
		highlight: mk(color.FgCyan, color.Bold),
		warning:   mk(color.FgYellow),
		dim:       mk(color.Faint),
	}
}

// PrintReport formats and prints a scan report to the provided writer.
func PrintReport(w io.Writer, report *executor.Report, opts Options) {
	if report == nil || len(report.Targets) == 0 {
		fmt.Fprintln(w, "No result available.")
		return
	}

	p := newPalette(opts.NoColor)

	for _, target := range report.Targets {
		printTarget(w, target, opts, p)
	}

	if len(report.Targets) > 1 {
		fmt.Fprintf(w, "Scanned %d targets in %s, %d findings\n",
			len(report.Targets), report.Duration.Round(time.Millisecond), report.Findings())
	}
}

func printTarget(w io.Writer, target *executor.TargetResult, opts Options, p palette) {
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 80))
	fmt.Fprintf(w, "Target: %s\n", p.highlight(target.URL))
	if resp := target.Response; resp != nil {
		fmt.Fprintf(w, "Status: %d (%s)\n", resp.StatusCode, resp.Duration.Round(time.Millisecond))
		if resp.FinalURL != "" {
			fmt.Fprintf(w, "Redirected to: %s\n", resp.FinalURL)
		}
		if len(resp.MetaMerged) > 0 {
			fmt.Fprintf(w, "Declared via <meta http-equiv>: %s\n", strings.Join(resp.MetaMerged, ", "))
		}
	}
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 80))

	for _, pr := range target.Policies {
		if pr.Error != nil {
			PrintError(w, pr.Policy.Name, target.URL, pr.Error, opts.NoColor)
			continue
		}
		printPolicy(w, pr, opts, p)
	}
}

// PrintError prints the one-line marker for a failed scan branch
func PrintError(w io.Writer, policy, target string, err error, noColor bool) {
	p := newPalette(noColor)
	fmt.Fprintf(w, "%s %s scan of %s: %v (run 'hdrscan --help' for usage)\n",
		p.failure("[ERROR]"), policy, target, err)
}

func printPolicy(w io.Writer, pr *executor.PolicyResult, opts Options, p palette) {
	result := pr.Result
	title := pr.Policy.Title
	if title == "" {
		title = pr.Policy.Name
	}

	fmt.Fprintf(w, "\n%s (%s)\n", p.highlight(title), p.dim(pr.Source))

	switch result.Kind {
	case checks.KindValued:
		fmt.Fprintf(w, "  present: %d  matching: %s  non-matching: %s  missing: %s\n",
			len(result.Matching)+len(result.NonMatching),
			p.success(len(result.Matching)),
			colorCount(len(result.NonMatching), p.warning, p.success),
			colorCount(len(result.Missing), p.failure, p.success))

		if len(result.NonMatching) > 0 {
			fmt.Fprintln(w, "  Non-matching:")
			for _, name := range checks.SortedNames(result.NonMatching) {
				expected, _ := pr.Reference.Expected(name)
				fmt.Fprintf(w, "    %s %s\n", p.warning("~"), name)
				fmt.Fprintf(w, "        observed: %s\n", result.NonMatching[name])
				fmt.Fprintf(w, "        expected: %s\n", expected)
			}
		}
		if len(result.Missing) > 0 {
			fmt.Fprintln(w, "  Missing:")
			for _, name := range checks.SortedNames(result.Missing) {
				fmt.Fprintf(w, "    %s %s\n", p.failure("✗"), name)
				fmt.Fprintf(w, "        expected: %s\n", result.Missing[name])
			}
		}
		if opts.Verbose && len(result.Matching) > 0 {
			fmt.Fprintln(w, "  Matching:")
			for _, name := range checks.SortedNames(result.Matching) {
				fmt.Fprintf(w, "    %s %s: %s\n", p.success("✓"), name, result.Matching[name])
			}
		}

	case checks.KindPresence:
		fmt.Fprintf(w, "  disclosed: %s  absent: %d\n",
			colorCount(len(result.Present), p.failure, p.success),
			len(result.Missing))

		if len(result.Present) > 0 {
			fmt.Fprintln(w, "  Disclosed:")
			for _, name := range checks.SortedNames(result.Present) {
				fmt.Fprintf(w, "    %s %s: %s\n", p.failure("✗"), name, result.Present[name])
			}
		}
		if opts.Verbose && len(result.Missing) > 0 {
			fmt.Fprintln(w, "  Absent:")
			for _, name := range checks.SortedNames(result.Missing) {
				fmt.Fprintf(w, "    %s %s\n", p.success("✓"), name)
			}
		}
	}

	if result.Findings() == 0 {
		fmt.Fprintf(w, "  %s\n", p.success("No findings"))
	}
}

func colorCount(n int, bad, good func(a ...interface{}) string) string {
	if n > 0 {
		return bad(n)
	}
	return good(n)
}
