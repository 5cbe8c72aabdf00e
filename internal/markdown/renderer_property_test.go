//go:build property

package markdown

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRendererProperties validates the safety and classification guarantees
// of the renderer over generated input.
func TestRendererProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	// Property: whitespace-only input renders to nothing
	properties.Property("whitespace renders empty", prop.ForAll(
		func(parts []string) bool {
			return Render(strings.Join(parts, "")) == ""
		},
		gen.SliceOf(gen.OneConstOf(" ", "\t", "\n", "\r\n", "\v", "\f")),
	))

	// Property: arbitrary text never produces active or image content
	properties.Property("output is inert", prop.ForAll(
		func(s string) bool {
			out := strings.ToLower(Render(s))
			return !strings.Contains(out, "<script") &&
				!strings.Contains(out, "<img") &&
				!strings.Contains(out, "javascript:")
		},
		gen.AnyString(),
	))

	// Property: hostile fragments mixed with text stay inert
	properties.Property("hostile fragments stay inert", prop.ForAll(
		func(prefix, payload, suffix string) bool {
			out := strings.ToLower(Render(prefix + payload + suffix))
			return !strings.Contains(out, "<script") &&
				!strings.Contains(out, "<img") &&
				!strings.Contains(out, "onerror") &&
				!strings.Contains(out, "javascript:")
		},
		gen.AlphaString(),
		gen.OneConstOf(
			"<script>alert(1)</script>",
			`<img src=x onerror="alert(1)">`,
			"[x](javascript:alert(1))",
			`<a href="javascript:alert(1)">x</a>`,
			"<SCRIPT SRC=//evil.example/x.js></SCRIPT>",
		),
		gen.AlphaString(),
	))

	// Property: every dash item is styled unordered
	properties.Property("dash items are unordered", prop.ForAll(
		func(words []string) bool {
			if len(words) == 0 {
				return true
			}
			var b strings.Builder
			for _, w := range words {
				b.WriteString("- ")
				b.WriteString(w)
				b.WriteString("\n")
			}
			out := Render(b.String())
			return strings.Count(out, "list-disc") == len(words) &&
				!strings.Contains(out, "list-decimal")
		},
		gen.SliceOf(gen.Identifier()),
	))

	// Property: numbered items are styled ordered
	properties.Property("numbered items are ordered", prop.ForAll(
		func(words []string) bool {
			if len(words) == 0 {
				return true
			}
			var b strings.Builder
			for i, w := range words {
				b.WriteString(strings.Repeat("1", i%3+1))
				b.WriteString(". ")
				b.WriteString(w)
				b.WriteString("\n")
			}
			out := Render(b.String())
			return !strings.Contains(out, "list-disc")
		},
		gen.SliceOf(gen.Identifier()),
	))

	// Property: output never ends with a bare break
	properties.Property("no trailing break", prop.ForAll(
		func(lines []string) bool {
			out := Render(strings.Join(lines, "\n"))
			return !strings.HasSuffix(out, "<br>")
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
