package recognize

import (
	"regexp"
	"strings"
)

var (
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reBoxNoise   = regexp.MustCompile(`^\s*[_\-]{3,}\s*$`)
)

// normalizeLine collapses noisy whitespace inside one recognized line and
// strips separator noise (rows of dashes/underscores around form boxes).
func normalizeLine(s string) string {
	if s == "" {
		return s
	}
	if reBoxNoise.MatchString(s) {
		return ""
	}
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
