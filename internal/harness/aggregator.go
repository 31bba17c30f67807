package harness

import (
	"errors"
	"io"
	"sync"

	"github.com/roach88/dorpcheck/internal/runner"
)

// Progress markers, one per completed run.
const (
	MarkerPass = '.'
	MarkerFail = '!'
)

// ErrOverflow is returned by Record when more results arrive than the
// aggregator was created for.
var ErrOverflow = errors.New("aggregator: more results than fixtures")

// Compare reports whether actual output matches the expectation.
// Comparison is exact: no trimming, no normalization.
func Compare(actual, expected string) bool {
	return actual == expected
}

// Aggregator owns the suite's shared state: the completed count, the results
// in completion order, and the failures.
//
// All mutation goes through Record, which compares, writes the progress
// marker, stores the result and checks for the final count inside one
// critical section. The report is written exactly once, when the completed
// count reaches the total.
//
// Thread-safety: Record may be called from any goroutine.
type Aggregator struct {
	mu        sync.Mutex
	w         io.Writer
	attribute bool

	total     int
	completed int
	passed    int
	results   []runner.Result
	failures  []runner.Result
	reported  bool
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithAttribution tags every failure in the report with its fixture name,
// the expected and actual output, and a line diff.
func WithAttribution(on bool) AggregatorOption {
	return func(a *Aggregator) {
		a.attribute = on
	}
}

// NewAggregator creates an aggregator expecting total results, writing
// progress and the final report to w.
//
// With total == 0 the (empty) report is written immediately.
func NewAggregator(total int, w io.Writer, opts ...AggregatorOption) *Aggregator {
	if w == nil {
		w = io.Discard
	}
	a := &Aggregator{
		w:        w,
		total:    total,
		results:  make([]runner.Result, 0, total),
		failures: []runner.Result{},
	}
	for _, opt := range opts {
		opt(a)
	}

	if total <= 0 {
		a.total = 0
		a.report()
	}
	return a
}

// Record compares one completed run, emits its progress marker and, if it
// was the last expected run, emits the report.
//
// The run passes when it has no error and its actual output equals the
// expected output exactly. The returned result has Pass set.
func (a *Aggregator) Record(r runner.Result) (runner.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.completed >= a.total {
		return r, ErrOverflow
	}

	r.Pass = r.Err == nil && Compare(r.Actual, r.Expected)
	if r.Pass {
		a.passed++
		writeMarker(a.w, MarkerPass)
	} else {
		a.failures = append(a.failures, r)
		writeMarker(a.w, MarkerFail)
	}
	a.results = append(a.results, r)
	a.completed++

	if a.completed == a.total {
		a.report()
	}
	return r, nil
}

// report writes the line break ending the progress stream and the failure
// dump. Caller holds mu (or has exclusive access during construction).
func (a *Aggregator) report() {
	if a.reported {
		return
	}
	a.reported = true
	io.WriteString(a.w, "\n")
	for _, f := range a.failures {
		if a.attribute {
			writeAttributedFailure(a.w, f)
			continue
		}
		io.WriteString(a.w, f.Actual)
		io.WriteString(a.w, "\n")
	}
}

// Done reports whether the final report has been written.
func (a *Aggregator) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reported
}

// Completed returns the number of recorded results.
func (a *Aggregator) Completed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed
}

// Results returns a copy of the recorded results in completion order.
func (a *Aggregator) Results() []runner.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]runner.Result(nil), a.results...)
}

// Failures returns a copy of the failed results in completion order.
func (a *Aggregator) Failures() []runner.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]runner.Result{}, a.failures...)
}

// Counts returns the passed and failed totals so far.
func (a *Aggregator) Counts() (passed, failed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.passed, len(a.failures)
}

func writeMarker(w io.Writer, marker byte) {
	w.Write([]byte{marker})
}
