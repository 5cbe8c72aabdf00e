// Package cmd provides the chatmark command-line interface.
//
// Configuration is read from several sources, highest priority first:
//
//  1. Command-line flags (--port, --log-level, ...)
//  2. CHATMARK_* environment variables, e.g. CHATMARK_SERVER_PORT or
//     CHATMARK_CHAT_STORE_DSN
//  3. The file named by --config or CHATMARK_CONFIG_FILE
//  4. .chatmark.yml in the current directory
//  5. Built-in defaults
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/chatmark/internal/config"
	"github.com/conneroisu/chatmark/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatmark",
	Short: "Render chat markdown to sanitized, styled HTML",
	Long: `chatmark renders chat messages written in markdown into sanitized HTML
with Tailwind/daisyUI styling and highlight.js code classes.

Commands:
  chatmark render note.md         Render a file (or - for stdin) to stdout
  chatmark serve                  Start the chat server
  chatmark watch docs             Re-render .md files to .html on change
  chatmark config                 Print the effective configuration
  chatmark version                Show build information`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .chatmark.yml, can also use CHATMARK_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig points viper at the config file and environment, then binds
// the flags of the command being run.
func initConfig(cmd *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("CHATMARK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".chatmark")
	}

	viper.SetEnvPrefix("CHATMARK")
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing default file is fine; an explicit one must load.
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	} else {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", viper.ConfigFileUsed())
	}

	return bindFlags(cmd, viper.GetViper())
}

// loadConfig returns the validated configuration for the running command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) logging.Logger {
	// Validation already rejected unknown levels.
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Logging.Format,
		Output:    cmd.ErrOrStderr(),
		Component: "chatmark",
	})
}
