package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/a-h/templ"
	"github.com/spf13/cobra"

	"github.com/conneroisu/chatmark/internal/markdown"
)

var renderWrap bool

var renderCmd = &cobra.Command{
	Use:   "render [file|-]",
	Short: "Render markdown to HTML on stdout",
	Long: `Render a markdown file, or stdin when the argument is "-" or missing,
through the chat pipeline and print the HTML fragment.

Examples:
  chatmark render note.md
  echo '**hi**' | chatmark render
  chatmark render note.md --wrap > note.html`,
	Aliases: []string{"r"},
	Args:    cobra.MaximumNArgs(1),
	RunE:    runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().BoolVar(&renderWrap, "wrap", false, "Wrap the fragment in a minimal HTML document")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	title := "stdin"
	var raw []byte
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		title = filepath.Base(args[0])
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	renderer := markdown.New(markdown.WithClasses(cfg.Render.Classes), markdown.WithGFM(cfg.Render.GFM))
	html := renderer.Render(string(raw))

	out := cmd.OutOrStdout()
	if !renderWrap {
		_, err = fmt.Fprintln(out, html)
		return err
	}
	return document(title, html).Render(contextOf(cmd), out)
}

// document wraps an already sanitized fragment in a standalone page.
func document(title, body string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n",
			templ.EscapeString(title)); err != nil {
			return err
		}
		if err := templ.Raw(body).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n</body>\n</html>\n")
		return err
	})
}
