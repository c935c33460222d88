package commands

import (
	"inbox/internal/config"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	envFile   string
	logFormat string
	logLevel  string
}

// NewRootCommand builds the inbox command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "inbox",
		Short: "Real-time support chat client and relay",
		Long: `inbox is a terminal chat client for the support inbox, plus a reference
relay that fans chat events out between connected clients.

Configuration comes from INBOX_* and RELAY_* environment variables, optionally
loaded from a .env file. Flags override the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFile(opts.envFile)
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json (overrides LOG_FORMAT)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(
		newChatCommand(opts),
		newRelayCommand(opts),
		newHistoryCommand(),
		newWhoCommand(),
	)

	return root
}

func (o *rootOptions) apply(cfg *config.Config) {
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
}
