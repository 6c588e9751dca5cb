package reasoning

import (
	"regexp"
	"strings"
)

var (
	leadingOpen = regexp.MustCompile(`^\s*` + regexp.QuoteMeta(ThinkOpen))
	closeToEnd  = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(ThinkClose) + `.*$`)
)

// StripThought extracts the reasoning text from a raw model response.
//
// One leading ThinkOpen (after optional whitespace) is removed, everything
// from the first ThinkClose onward is dropped, and the result is trimmed.
// A missing delimiter is not an error: without ThinkClose the whole
// remainder is the thought. Text without delimiters comes back trimmed and
// otherwise unchanged.
func StripThought(s string) string {
	s = leadingOpen.ReplaceAllLiteralString(s, "")
	s = closeToEnd.ReplaceAllLiteralString(s, "")
	return strings.TrimSpace(s)
}
