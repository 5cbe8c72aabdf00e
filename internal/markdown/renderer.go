// Package markdown renders untrusted chat messages into sanitized, styled HTML.
//
// A message goes through a fixed pipeline: an empty guard, a goldmark parse
// with per-node overrides for links, images, list items and code, a pass that
// turns every newline into an explicit <br>, an ordered set of cleanup
// rewrites for the break artifacts that pass introduces, and finally a
// bluemonday sanitizer. The sanitizer is the only stage that enforces the
// "safe to display" contract and it runs on every non-empty message.
//
// Renderers hold no mutable state after construction and are safe for
// concurrent use.
package markdown

import (
	"bytes"
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// overridePriority places the chat node renderer ahead of goldmark's default
// HTML renderer, which is registered at 1000.
const overridePriority = 100

// Renderer converts raw chat text into display-ready HTML.
type Renderer struct {
	md      goldmark.Markdown
	policy  *bluemonday.Policy
	classes Classes
	gfm     bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClasses replaces the styling class tokens emitted by the renderer.
// Stylesheets that target the default tokens must be updated in lockstep.
func WithClasses(classes Classes) Option {
	return func(r *Renderer) {
		r.classes = classes.withDefaults()
	}
}

// WithGFM toggles the GitHub Flavored Markdown extensions (tables,
// strikethrough, linkify and task lists). Enabled by default.
func WithGFM(enabled bool) Option {
	return func(r *Renderer) {
		r.gfm = enabled
	}
}

// New creates a Renderer with the default chat styling.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		classes: DefaultClasses(),
		gfm:     true,
	}
	for _, opt := range opts {
		opt(r)
	}

	var extensions []goldmark.Extender
	if r.gfm {
		extensions = append(extensions,
			extension.Linkify,
			extension.NewTable(
				extension.WithTableCellAlignMethod(extension.TableCellAlignAttribute),
			),
			extension.Strikethrough,
			extension.TaskList,
		)
	}

	r.md = goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithRendererOptions(
			// Raw HTML is passed through here and removed by the sanitizer.
			gmhtml.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(newNodeRenderer(r.classes), overridePriority),
			),
		),
	)
	r.policy = newPolicy()

	return r
}

// Classes returns the styling tokens this renderer emits.
func (r *Renderer) Classes() Classes {
	return r.classes
}

// Render converts raw into sanitized HTML. Empty or whitespace-only input
// yields the empty string without running any stage of the pipeline.
func (r *Renderer) Render(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	raw = strings.ToValidUTF8(raw, "\uFFFD")
	source := []byte(strings.ReplaceAll(raw, "\r\n", "\n"))

	var buf bytes.Buffer
	if err := r.md.Convert(source, &buf); err != nil {
		// Convert only fails when the writer does; degrade to escaped text.
		buf.Reset()
		buf.WriteString(html.EscapeString(string(source)))
	}

	out := linearize(buf.String())
	out = cleanup(out)

	return r.policy.Sanitize(out)
}

var defaultRenderer = sync.OnceValue(func() *Renderer {
	return New()
})

// Render converts raw into sanitized HTML using a shared default Renderer.
func Render(raw string) string {
	return defaultRenderer().Render(raw)
}
