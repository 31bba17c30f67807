package harness

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/dorpcheck/internal/runner"
)

// writeAttributedFailure writes one failure tagged with its fixture:
//
//	FAIL: arith.dorp
//	expected: "2\n"
//	actual:   "3\n"
//	diff (-expected +actual):
//	  ...
func writeAttributedFailure(w io.Writer, r runner.Result) {
	fmt.Fprintf(w, "FAIL: %s\n", r.Fixture.Name)
	if r.Err != nil {
		fmt.Fprintf(w, "error:    %v\n", r.Err)
	}
	fmt.Fprintf(w, "expected: %q\n", r.Expected)
	fmt.Fprintf(w, "actual:   %q\n", r.Actual)
	if r.ExitCode != 0 {
		fmt.Fprintf(w, "exit:     %d\n", r.ExitCode)
	}
	if diff := LineDiff(r.Expected, r.Actual); diff != "" {
		fmt.Fprintln(w, "diff (-expected +actual):")
		fmt.Fprint(w, diff)
	}
}

// LineDiff returns a human-readable line diff between expected and actual
// output, or "" when they are equal. The format is not stable and must not
// be compared verbatim.
func LineDiff(expected, actual string) string {
	return cmp.Diff(splitLines(expected), splitLines(actual))
}

// splitLines splits output into lines, keeping a final unterminated line
// distinguishable from a terminated one.
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}
