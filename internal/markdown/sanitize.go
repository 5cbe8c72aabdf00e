package markdown

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// classTokens accepts utility class lists such as
	// "text-accent hover:brightness-75 underline" or "hljs-title function_".
	classTokens = regexp.MustCompile(`^[\p{L}\p{N}\s_:./#+-]+$`)

	blankTarget = regexp.MustCompile(`^_blank$`)
	cellAlign   = regexp.MustCompile(`^(left|center|right)$`)
	checkbox    = regexp.MustCompile(`^checkbox$`)
	boolAttr    = regexp.MustCompile(`^(|checked|disabled)$`)
)

// newPolicy builds the sanitizer for rendered chat output. It allows only the
// structure the renderer itself produces; images, scripts, styles, frames and
// event handlers never pass.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowStandardURLs()
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)

	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(blankTarget).OnElements("a")
	p.AllowAttrs("class").Matching(classTokens).Globally()
	p.AllowAttrs("start").Matching(bluemonday.Integer).OnElements("ol")
	p.AllowAttrs("align").Matching(cellAlign).OnElements("th", "td")
	p.AllowAttrs("type").Matching(checkbox).OnElements("input")
	p.AllowAttrs("checked", "disabled").Matching(boolAttr).OnElements("input")

	p.AllowElements(
		"p", "br", "span", "div", "pre", "code",
		"ul", "ol", "li",
		"em", "strong", "del", "s",
		"blockquote", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	return p
}
