package engine

import "time"

// Exit codes reported to the calling shell.
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitUsage       = 2
	ExitEnvironment = 3
	ExitInterrupted = 130
)

// Summary aggregates a batch run. Results are in request order.
type Summary struct {
	Results     []RenderResult
	Succeeded   int
	Failed      int
	Cancelled   int
	Workers     int
	DryRun      bool
	Interrupted bool
	Elapsed     time.Duration
}

func newSummary(results []RenderResult) *Summary {
	s := &Summary{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

func (s *Summary) Total() int { return len(s.Results) }

// FailedResults returns the failed and cancelled results.
func (s *Summary) FailedResults() []RenderResult {
	var failed []RenderResult
	for _, r := range s.Results {
		if r.Status != StatusSucceeded {
			failed = append(failed, r)
		}
	}
	return failed
}

// OK reports whether every requested render succeeded.
func (s *Summary) OK() bool {
	return s.Succeeded == len(s.Results)
}

func (s *Summary) ExitCode() int {
	switch {
	case s.Interrupted:
		return ExitInterrupted
	case s.OK():
		return ExitOK
	default:
		return ExitFailed
	}
}
