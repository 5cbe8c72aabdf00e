package markdown

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/alecthomas/chroma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHljsClass(t *testing.T) {
	tests := []struct {
		token    chroma.TokenType
		expected string
	}{
		{chroma.Keyword, "hljs-keyword"},
		{chroma.KeywordDeclaration, "hljs-keyword"},
		{chroma.KeywordType, "hljs-type"},
		{chroma.KeywordConstant, "hljs-literal"},
		{chroma.LiteralString, "hljs-string"},
		{chroma.LiteralStringDouble, "hljs-string"},
		{chroma.LiteralStringRegex, "hljs-regexp"},
		{chroma.LiteralNumberInteger, "hljs-number"},
		{chroma.CommentSingle, "hljs-comment"},
		{chroma.CommentPreproc, "hljs-meta"},
		{chroma.NameFunction, "hljs-title function_"},
		{chroma.NameClass, "hljs-title class_"},
		{chroma.NameBuiltin, "hljs-built_in"},
		{chroma.Operator, "hljs-operator"},
		{chroma.Punctuation, "hljs-punctuation"},
		{chroma.GenericInserted, "hljs-addition"},
		{chroma.GenericDeleted, "hljs-deletion"},
		{chroma.Name, ""},
		{chroma.Text, ""},
	}

	for _, tt := range tests {
		t.Run(tt.token.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, hljsClass(tt.token))
		})
	}
}

func TestResolveLexer(t *testing.T) {
	tests := []struct {
		tag  string
		lang string
	}{
		{"javascript", "javascript"},
		{"JavaScript", "javascript"},
		{"go", "go"},
		{" python ", "python"},
		{"notalang", plaintext},
		{"", plaintext},
		{"plaintext", plaintext},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			lang, lexer := resolveLexer(tt.tag)
			assert.Equal(t, tt.lang, lang)
			require.NotNil(t, lexer)
		})
	}
}

func highlightString(t *testing.T, tag, code string) string {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	_, lexer := resolveLexer(tag)
	highlight(w, lexer, code)
	require.NoError(t, w.Flush())
	return buf.String()
}

func TestHighlight(t *testing.T) {
	t.Run("keywords wrapped", func(t *testing.T) {
		out := highlightString(t, "go", "package main\n")
		assert.Contains(t, out, `<span class="hljs-keyword">package</span>`)
		assert.NotContains(t, out, "\n")
	})

	t.Run("plaintext escaped", func(t *testing.T) {
		out := highlightString(t, "notalang", `a < b && "c"`)
		assert.Equal(t, "a &lt; b &amp;&amp; &quot;c&quot;", out)
	})

	t.Run("interior newlines kept", func(t *testing.T) {
		out := highlightString(t, "", "one\ntwo\n")
		assert.Equal(t, "one\ntwo", out)
	})
}
