package markdown

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/yuin/goldmark/util"
)

// plaintext is the language token used for unknown or missing fence tags.
const plaintext = "plaintext"

// hljsExact maps specific chroma token types onto highlight.js scopes so that
// existing highlight.js themes style the output.
var hljsExact = map[chroma.TokenType]string{
	chroma.KeywordType:         "hljs-type",
	chroma.KeywordConstant:     "hljs-literal",
	chroma.NameBuiltin:         "hljs-built_in",
	chroma.NameBuiltinPseudo:   "hljs-built_in",
	chroma.NameFunction:        "hljs-title function_",
	chroma.NameClass:           "hljs-title class_",
	chroma.NameTag:             "hljs-name",
	chroma.NameAttribute:       "hljs-attr",
	chroma.NameVariable:        "hljs-variable",
	chroma.NameDecorator:       "hljs-meta",
	chroma.CommentPreproc:      "hljs-meta",
	chroma.LiteralStringRegex:  "hljs-regexp",
	chroma.LiteralStringSymbol: "hljs-symbol",
	chroma.GenericDeleted:      "hljs-deletion",
	chroma.GenericInserted:     "hljs-addition",
	chroma.GenericHeading:      "hljs-section",
	chroma.GenericSubheading:   "hljs-section",
	chroma.GenericEmph:         "hljs-emphasis",
	chroma.GenericStrong:       "hljs-strong",
}

// hljsGroup covers whole subcategories and categories.
var hljsGroup = map[chroma.TokenType]string{
	chroma.LiteralString: "hljs-string",
	chroma.LiteralNumber: "hljs-number",
	chroma.Keyword:       "hljs-keyword",
	chroma.Comment:       "hljs-comment",
	chroma.Operator:      "hljs-operator",
	chroma.Punctuation:   "hljs-punctuation",
}

// hljsClass returns the highlight.js class for t, or "" for tokens that are
// emitted without a wrapping span.
func hljsClass(t chroma.TokenType) string {
	if class, ok := hljsExact[t]; ok {
		return class
	}
	if class, ok := hljsGroup[t.SubCategory()]; ok {
		return class
	}
	return hljsGroup[t.Category()]
}

// resolveLexer picks a lexer for a fence tag. It returns the language token
// for the class attribute alongside the lexer; unknown tags resolve to
// plaintext.
func resolveLexer(tag string) (string, chroma.Lexer) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag != "" && tag != plaintext {
		if l := lexers.Get(tag); l != nil && l.Config().Name != lexers.Fallback.Config().Name {
			return tag, chroma.Coalesce(l)
		}
	}

	l := lexers.Get(plaintext)
	if l == nil {
		l = lexers.Fallback
	}
	return plaintext, chroma.Coalesce(l)
}

// highlight writes code as escaped HTML with highlight.js token spans. On a
// tokenizer error the code is written escaped and unstyled.
func highlight(w util.BufWriter, lexer chroma.Lexer, code string) {
	code = strings.TrimSuffix(code, "\n")

	tokens, err := chroma.Tokenise(lexer, nil, code)
	if err != nil {
		_, _ = w.Write(util.EscapeHTML([]byte(code)))
		return
	}

	// Lexers may append a newline the block never had.
	if n := len(tokens); n > 0 {
		tokens[n-1].Value = strings.TrimSuffix(tokens[n-1].Value, "\n")
	}

	for _, tok := range tokens {
		if tok.Value == "" {
			continue
		}
		value := util.EscapeHTML([]byte(tok.Value))
		class := hljsClass(tok.Type)
		if class == "" {
			_, _ = w.Write(value)
			continue
		}
		_, _ = w.WriteString(`<span class="`)
		_, _ = w.WriteString(class)
		_, _ = w.WriteString(`">`)
		_, _ = w.Write(value)
		_, _ = w.WriteString("</span>")
	}
}
