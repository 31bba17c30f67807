package cli

import (
	"time"

	"github.com/roach88/dorpcheck/internal/harness"
)

// summaryView is the JSON shape of a suite run. Unlike harness.Summary it
// carries error text for each result.
type summaryView struct {
	RunID      string       `json:"run_id"`
	Program    string       `json:"program"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Total      int          `json:"total"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Results    []resultView `json:"results"`
}

type resultView struct {
	Fixture    string `json:"fixture"`
	Path       string `json:"path"`
	Pass       bool   `json:"pass"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func newSummaryView(s *harness.Summary) summaryView {
	v := summaryView{
		RunID:      s.RunID,
		Program:    s.Program,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Total:      s.Total,
		Passed:     s.Passed,
		Failed:     s.Failed,
		Results:    make([]resultView, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		v.Results = append(v.Results, resultView{
			Fixture:    r.Fixture.Name,
			Path:       r.Fixture.Path,
			Pass:       r.Pass,
			Expected:   r.Expected,
			Actual:     r.Actual,
			ExitCode:   r.ExitCode,
			DurationMS: r.Duration.Milliseconds(),
			Error:      r.ErrorText(),
		})
	}
	return v
}
