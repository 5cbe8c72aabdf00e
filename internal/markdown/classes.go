package markdown

import "strings"

// Classes holds the CSS class tokens the renderer writes into its markup.
// Downstream stylesheets depend on these exact tokens.
type Classes struct {
	Link          string `yaml:"link" mapstructure:"link"`
	ListItem      string `yaml:"list_item" mapstructure:"list_item"`
	ListUnordered string `yaml:"list_unordered" mapstructure:"list_unordered"`
	ListOrdered   string `yaml:"list_ordered" mapstructure:"list_ordered"`
	CodeContainer string `yaml:"code_container" mapstructure:"code_container"`
	CodeLanguage  string `yaml:"code_language" mapstructure:"code_language"`
	InlineCode    string `yaml:"inline_code" mapstructure:"inline_code"`
}

// DefaultClasses returns the Tailwind/daisyUI tokens used by the chat UI.
func DefaultClasses() Classes {
	return Classes{
		Link:          "text-accent hover:brightness-75 underline",
		ListItem:      "ml-3",
		ListUnordered: "list-disc",
		ListOrdered:   "list-decimal",
		CodeContainer: "relative m-2 rounded-lg overflow-hidden",
		CodeLanguage:  "hljs language-",
		InlineCode:    "bg-neutral-focus bg-opacity-75 px-1 rounded-sm overflow-hidden",
	}
}

// withDefaults fills every empty field from DefaultClasses.
func (c Classes) withDefaults() Classes {
	d := DefaultClasses()
	if c.Link == "" {
		c.Link = d.Link
	}
	if c.ListItem == "" {
		c.ListItem = d.ListItem
	}
	if c.ListUnordered == "" {
		c.ListUnordered = d.ListUnordered
	}
	if c.ListOrdered == "" {
		c.ListOrdered = d.ListOrdered
	}
	if c.CodeContainer == "" {
		c.CodeContainer = d.CodeContainer
	}
	if c.CodeLanguage == "" {
		c.CodeLanguage = d.CodeLanguage
	}
	if c.InlineCode == "" {
		c.InlineCode = d.InlineCode
	}
	return c
}

// listItem returns the class attribute for a list item whose source starts
// with marker. Only '-' and '*' count as unordered; everything else,
// including '+', is styled as ordered.
func (c Classes) listItem(marker byte) string {
	style := c.ListOrdered
	if marker == '-' || marker == '*' {
		style = c.ListUnordered
	}
	return strings.TrimSpace(c.ListItem + " " + style)
}

// codeLanguage returns the class attribute for the inner code element.
func (c Classes) codeLanguage(lang string) string {
	return c.CodeLanguage + lang
}
