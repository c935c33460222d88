package commands

import (
	"fmt"
	"log/slog"

	"inbox/internal/config"
	"inbox/internal/content"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		clearHistory bool
		codec        string
		file         string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print or clear the locally cached chat history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(false)
			if err != nil {
				return err
			}
			if codec != "" {
				cfg.CacheCodec = codec
			}
			if file != "" {
				cfg.CacheFile = file
			}
			if err := cfg.Validate(false); err != nil {
				return err
			}

			store, closeStore, err := openStore(cfg, slog.Default(), false)
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			if clearHistory {
				if err := store.Clear(); err != nil {
					return err
				}
				_, err := fmt.Fprintln(out, "History cleared.")
				return err
			}

			if err := store.Initialize(); err != nil {
				return err
			}
			for _, msg := range store.Messages() {
				name := content.Sanitize(msg.Name)
				if msg.IsAdmin {
					name += " (admin)"
				}
				if _, err := fmt.Fprintf(out, "%s: %s\n", name, content.Sanitize(msg.Body)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearHistory, "clear", false, "delete the cached history")
	cmd.Flags().StringVar(&codec, "codec", "", "cache codec: json or msgpack (overrides INBOX_CACHE_CODEC)")
	cmd.Flags().StringVar(&file, "file", "", "cache file (overrides INBOX_CACHE_FILE)")

	return cmd
}
