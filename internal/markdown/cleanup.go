package markdown

import (
	"regexp"
	"strings"
)

// rewrite is one structural cleanup applied after linearization.
type rewrite struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
}

// cleanupRules run in order; later rules assume earlier ones already applied.
var cleanupRules = []rewrite{
	{
		name:        "list-open",
		pattern:     regexp.MustCompile(`(<[ou]l(?:\s[^>]*)?>)(\s*<br\s*/?>\s*)+`),
		replacement: "$1",
	},
	{
		name:        "item-close",
		pattern:     regexp.MustCompile(`(\s*<br\s*/?>)+\s*(</li>)`),
		replacement: "$2",
	},
	{
		name:        "leading-break",
		pattern:     regexp.MustCompile(`(?m)^\s*<br\s*/?>`),
		replacement: "",
	},
	{
		name:        "trailing-break",
		pattern:     regexp.MustCompile(`<br>$`),
		replacement: "",
	},
}

// linearize turns every newline into an explicit line break.
func linearize(s string) string {
	return strings.ReplaceAll(s, "\n", "<br>")
}

// cleanup removes the break artifacts linearize leaves around list
// structure and at the ends of the output.
func cleanup(s string) string {
	for _, rule := range cleanupRules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return s
}
