package reporter

import (
	"fmt"
	"io"
	"time"

	json "github.com/json-iterator/go"

	"hdrscan/pkg/checks"
	"hdrscan/pkg/executor"
)

type jsonReport struct {
	StartTime time.Time    `json:"start_time"`
	Duration  string       `json:"duration"`
	Findings  int          `json:"findings"`
	Targets   []jsonTarget `json:"targets"`
}

type jsonTarget struct {
	URL        string            `json:"url"`
	FinalURL   string            `json:"final_url,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	MetaMerged []string          `json:"meta_merged,omitempty"`
	Error      string            `json:"error,omitempty"`
	Policies   []jsonPolicy      `json:"policies"`
	Headers    map[string]string `json:"headers,omitempty"`
}

type jsonPolicy struct {
	Name     string         `json:"name"`
	Kind     checks.Kind    `json:"kind"`
	Source   string         `json:"source"`
	Findings int            `json:"findings"`
	Result   *checks.Result `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// WriteJSON writes the report as an indented JSON document. Verbose output
// includes the complete observed header set of every target.
func WriteJSON(w io.Writer, report *executor.Report, opts Options) error {
	out := jsonReport{Targets: []jsonTarget{}}
	if report != nil {
		out.StartTime = report.StartTime
		out.Duration = report.Duration.String()
		out.Findings = report.Findings()

		for _, t := range report.Targets {
			jt := jsonTarget{URL: t.URL, Policies: []jsonPolicy{}}
			if t.Error != nil {
				jt.Error = t.Error.Error()
			}
			if t.Response != nil {
				jt.FinalURL = t.Response.FinalURL
				jt.StatusCode = t.Response.StatusCode
				jt.MetaMerged = t.Response.MetaMerged
				if opts.Verbose {
					jt.Headers = t.Response.Headers
				}
			}
			for _, p := range t.Policies {
				jp := jsonPolicy{
					Name:     p.Policy.Name,
					Kind:     p.Policy.Kind,
					Source:   p.Source,
					Findings: p.Result.Findings(),
					Result:   p.Result,
				}
				if p.Error != nil {
					jp.Error = p.Error.Error()
				}
				jt.Policies = append(jt.Policies, jp)
			}
			out.Targets = append(out.Targets, jt)
		}
	}

	data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
