package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/chatmark/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat server",
	Long: `Start the chat server: the render API, per-activity WebSocket rooms,
chat history, transcript pages and Prometheus metrics.

Examples:
  chatmark serve                               # localhost:8080, in-memory history
  chatmark serve --port 3000 --no-open
  chatmark serve --store sqlite://~/.chatmark/chat.db`,
	Aliases: []string{"s"},
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	srv, err := server.New(cfg, server.Deps{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting chatmark server at http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)

	startErr := srv.Start(ctx)

	// Shutdown waits for a shutdown already started by ctx, so the store is
	// closed before the process exits.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, err, "Server shutdown incomplete")
	}

	if startErr != nil {
		return fmt.Errorf("server error: %w", startErr)
	}
	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
