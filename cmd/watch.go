package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/chatmark/internal/markdown"
	"github.com/conneroisu/chatmark/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Re-render markdown files to HTML on change",
	Long: `Render every .md file under dir (default ".") to a sibling .html
fragment, then keep the fragments up to date as sources change. Removing a
source removes its fragment. dir must be inside the current directory.

Examples:
  chatmark watch                  # Watch the current directory
  chatmark watch docs --debounce 500ms`,
	Aliases: []string{"w"},
	Args:    cobra.MaximumNArgs(1),
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("debounce", 300*time.Millisecond, "Delay before a burst of changes is processed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root, err = watcher.ValidatePath(root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := markdown.New(markdown.WithClasses(cfg.Render.Classes), markdown.WithGFM(cfg.Render.GFM))
	writer := watcher.NewHTMLWriter(renderer, logger)
	ignore := watcher.IgnoreFilter(cfg.Watch.Ignore)

	count, err := writer.RenderTree(ctx, root, ignore)
	if err != nil {
		logger.Warn(ctx, err, "Some files failed to render")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %d markdown file(s) under %s\n", count, root)

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.MarkdownFilter)
	fw.AddFilter(ignore)
	fw.SetDirFilter(ignore)
	fw.AddHandler(writer.Handle)

	if err := fw.AddRecursive(root); err != nil {
		_ = fw.Stop()
		return err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes (Ctrl+C to stop)\n", root)
	<-ctx.Done()

	err = fw.Stop()
	fw.Wait()
	return err
}
