package fixture

import (
	"regexp"
	"strings"
)

// annotationPattern matches the first "# " in a line and captures the rest of
// the line, including any further '#' characters. The capture stops at '\r',
// U+2028 and U+2029 as well as '\n', so CRLF fixtures expect "2\n", not "2\r\n".
var annotationPattern = regexp.MustCompile(`# ([^\r\n\x{2028}\x{2029}]*)`)

// ExpectedOutput derives the expected program output from a fixture's text.
//
// The text is split on '\n'. For every line containing "# ", the content after
// the first occurrence of the marker is appended to the result followed by a
// newline, in line order. Lines without the marker contribute nothing, so a
// fixture without annotations expects empty output.
//
// ExpectedOutput is a pure function of its input.
func ExpectedOutput(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		match := annotationPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		b.WriteString(match[1])
		b.WriteByte('\n')
	}
	return b.String()
}
