package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps flag names onto the configuration keys they override.
var flagKeys = map[string]string{
	"port":       "server.port",
	"host":       "server.host",
	"no-open":    "server.no-open",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"debounce":   "watch.debounce",
	"store":      "chat.store_dsn",
}

// bindFlags binds the flags the command knows about to their config keys.
// Binding happens per run so a fresh viper instance still sees them.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("binding --%s: %w", f.Name, err)
		}
	})
	return bindErr
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	cmd.Flags().String("host", "localhost", "Host to bind to")
	cmd.Flags().Bool("no-open", false, "Don't open browser automatically")
	cmd.Flags().String("store", "memory://", "Chat history store (memory:// or sqlite://path)")
}
