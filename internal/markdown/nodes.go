package markdown

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// nodeRenderer overrides goldmark's HTML output for the node kinds that the
// chat transcript styles or neutralizes. Every other kind falls through to
// the default renderer.
type nodeRenderer struct {
	classes Classes
}

func newNodeRenderer(classes Classes) renderer.NodeRenderer {
	return &nodeRenderer{classes: classes}
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *nodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
	reg.Register(ast.KindImage, r.renderImage)
	reg.Register(ast.KindListItem, r.renderListItem)
	reg.Register(ast.KindFencedCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
}

func (r *nodeRenderer) openAnchor(w util.BufWriter, href []byte, mailto bool) {
	_, _ = w.WriteString(`<a href="`)
	if mailto {
		_, _ = w.WriteString("mailto:")
	}
	if !html.IsDangerousURL(href) {
		_, _ = w.Write(util.EscapeHTML(util.URLEscape(href, true)))
	}
	_, _ = w.WriteString(`" target="_blank" class="`)
	_, _ = w.Write(util.EscapeHTML([]byte(r.classes.Link)))
	_, _ = w.WriteString(`">`)
}

func (r *nodeRenderer) renderLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}

	r.openAnchor(w, n.Destination, false)
	if !n.HasChildren() {
		// Nothing to show as link text; fall back to the source form.
		_, _ = w.WriteString("[](")
		_, _ = w.Write(util.EscapeHTML(n.Destination))
		_ = w.WriteByte(')')
	}
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.AutoLink)
	url := n.URL(source)
	mailto := n.AutoLinkType == ast.AutoLinkEmail &&
		!bytes.HasPrefix(bytes.ToLower(url), []byte("mailto:"))

	r.openAnchor(w, url, mailto)
	_, _ = w.Write(util.EscapeHTML(n.Label(source)))
	_, _ = w.WriteString("</a>")
	return ast.WalkContinue, nil
}

// renderImage never emits <img>. The unparsed image syntax is shown as
// inert text instead, so no remote resource is fetched on display.
func (r *nodeRenderer) renderImage(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Image)
	_, _ = w.WriteString("<span>")
	_, _ = w.Write(util.EscapeHTML(imageSource(n, source)))
	_, _ = w.WriteString("</span>")
	return ast.WalkSkipChildren, nil
}

func (r *nodeRenderer) renderListItem(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		// Items are written back to back so no break lands between them
		// once newlines are linearized.
		_, _ = w.WriteString("</li>")
		return ast.WalkContinue, nil
	}
	n := node.(*ast.ListItem)
	_, _ = w.WriteString(`<li class="`)
	_, _ = w.Write(util.EscapeHTML([]byte(r.classes.listItem(listMarker(n, source)))))
	_, _ = w.WriteString(`">`)
	return ast.WalkContinue, nil
}

func (r *nodeRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var tag string
	if n, ok := node.(*ast.FencedCodeBlock); ok {
		tag = string(n.Language(source))
	}
	lang, lexer := resolveLexer(tag)

	var code bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		code.Write(line.Value(source))
	}

	_, _ = w.WriteString(`<div class="`)
	_, _ = w.Write(util.EscapeHTML([]byte(r.classes.CodeContainer)))
	_, _ = w.WriteString(`"><pre><code class="`)
	_, _ = w.Write(util.EscapeHTML([]byte(r.classes.codeLanguage(lang))))
	_, _ = w.WriteString(`">`)
	highlight(w, lexer, code.String())
	_, _ = w.WriteString("</code></pre></div>\n")
	return ast.WalkSkipChildren, nil
}

func (r *nodeRenderer) renderCodeSpan(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</code>")
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString(`<code class="`)
	_, _ = w.Write(util.EscapeHTML([]byte(r.classes.InlineCode)))
	_, _ = w.WriteString(`">`)
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		var value []byte
		switch t := c.(type) {
		case *ast.Text:
			value = t.Segment.Value(source)
		case *ast.String:
			value = t.Value
		default:
			continue
		}
		// A span broken across lines keeps a single space in place of the break.
		if bytes.HasSuffix(value, []byte("\n")) {
			_, _ = w.Write(util.EscapeHTML(value[:len(value)-1]))
			_ = w.WriteByte(' ')
			continue
		}
		_, _ = w.Write(util.EscapeHTML(value))
	}
	return ast.WalkSkipChildren, nil
}

// listMarker returns the first significant character of the source line
// that opens item, after leading whitespace and blockquote markers. The
// parent list's marker is used when the line cannot be located.
func listMarker(item *ast.ListItem, source []byte) byte {
	if start, ok := contentStart(item); ok && start <= len(source) {
		lineStart := bytes.LastIndexByte(source[:start], '\n') + 1
		prefix := bytes.TrimLeft(source[lineStart:start], " \t>")
		if len(prefix) > 0 {
			return prefix[0]
		}
	}

	if list, ok := item.Parent().(*ast.List); ok {
		if list.IsOrdered() {
			return '1'
		}
		return list.Marker
	}
	return 0
}

// contentStart finds the source offset of the first line of block content
// inside n, descending through nested blocks.
func contentStart(n ast.Node) (int, bool) {
	for c := n.FirstChild(); c != nil; c = c.FirstChild() {
		if c.Type() != ast.TypeBlock {
			return 0, false
		}
		if lines := c.Lines(); lines != nil && lines.Len() > 0 {
			return lines.At(0).Start, true
		}
	}
	return 0, false
}

// imageSource recovers the literal source of an image, e.g.
// "![alt](https://host/a.png)". When the exact bytes cannot be located the
// syntax is rebuilt from the parsed fields.
func imageSource(n *ast.Image, source []byte) []byte {
	lo, hi, ok := textBounds(n)
	if ok && lo <= hi && hi <= len(source) {
		if open := bytes.LastIndex(source[:lo], []byte("![")); open >= 0 {
			if end := imageEnd(source, hi); end > hi {
				return source[open:end]
			}
		}
	}
	return rebuildImage(n, source)
}

// textBounds returns the smallest and largest source offsets covered by
// text descendants of n.
func textBounds(n ast.Node) (lo, hi int, ok bool) {
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, isText := c.(*ast.Text); isText {
			if !ok || t.Segment.Start < lo {
				lo = t.Segment.Start
			}
			if !ok || t.Segment.Stop > hi {
				hi = t.Segment.Stop
			}
			ok = true
		}
		return ast.WalkContinue, nil
	})
	return lo, hi, ok
}

// imageEnd scans from the end of the alt text past the closing bracket and
// the destination, returning the offset just after the image syntax or -1.
func imageEnd(source []byte, from int) int {
	rel := bytes.IndexByte(source[from:], ']')
	if rel < 0 {
		return -1
	}
	i := from + rel + 1
	if i >= len(source) {
		return i
	}

	switch source[i] {
	case '(':
		depth := 0
		for j := i; j < len(source); j++ {
			switch source[j] {
			case '\\':
				j++
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return j + 1
				}
			}
		}
		return -1
	case '[':
		if k := bytes.IndexByte(source[i:], ']'); k >= 0 {
			return i + k + 1
		}
		return -1
	}
	return i
}

func rebuildImage(n *ast.Image, source []byte) []byte {
	var b bytes.Buffer
	b.WriteString("![")
	b.Write(n.Text(source)) //nolint:staticcheck
	b.WriteString("](")
	b.Write(n.Destination)
	if len(n.Title) > 0 {
		b.WriteString(` "`)
		b.Write(n.Title)
		b.WriteByte('"')
	}
	b.WriteByte(')')
	return b.Bytes()
}
