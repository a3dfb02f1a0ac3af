package triage

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report aggregates the results of a run.
type Report struct {
	Results          []Result      `json:"results"` // ordered by offset
	Candidates       int           `json:"candidates"`
	Tested           int           `json:"tested"`
	Duplicates       int           `json:"duplicates"`
	Confirmed        int           `json:"confirmed"`
	Errors           int           `json:"execution_errors"`
	ConfirmedOffsets []int64       `json:"confirmed_offsets"`
	Elapsed          time.Duration `json:"elapsed_ns"`
}

func newReport(results []Result, elapsed time.Duration) *Report {
	sortResults(results)

	r := &Report{
		Results:          results,
		Candidates:       len(results),
		ConfirmedOffsets: []int64{},
		Elapsed:          elapsed,
	}
	for _, res := range results {
		switch res.Outcome {
		case Duplicate:
			r.Duplicates++
			continue
		case Confirmed:
			r.Confirmed++
			r.ConfirmedOffsets = append(r.ConfirmedOffsets, res.Offset)
		}
		r.Tested++
		if res.Err != nil {
			r.Errors++
		}
	}
	return r
}

var printer = message.NewPrinter(language.English)

// Summary is a one-line human readable digest of the report.
func (r *Report) Summary() string {
	return printer.Sprintf("%d candidates, %d tested, %d duplicates, %d confirmed, %d execution errors in %s",
		r.Candidates, r.Tested, r.Duplicates, r.Confirmed, r.Errors, r.Elapsed.Round(time.Millisecond).String())
}
