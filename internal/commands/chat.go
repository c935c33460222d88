package commands

import (
	"context"
	"log/slog"

	"inbox/internal/chat"
	"inbox/internal/config"
	"inbox/internal/content"
	"inbox/internal/logging"
	"inbox/internal/storage"
	"inbox/internal/transport"
	"inbox/internal/ui"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type chatOptions struct {
	server    string
	mode      string
	id        string
	name      string
	admin     bool
	ephemeral bool
}

func newChatCommand(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat inbox",
		Long: `Open the chat inbox in the terminal.

Page mode connects immediately and fills the screen. Widget mode shows a
compact launcher and connects when it is opened with ctrl+o. Admins always
get the page.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(false)
			if err != nil {
				return err
			}
			root.apply(cfg)
			opts.apply(cmd, cfg)
			if err := cfg.Validate(true); err != nil {
				return err
			}
			return runChat(cmd.Context(), cfg, opts.ephemeral)
		},
	}

	cmd.Flags().StringVar(&opts.server, "server", "", "chat endpoint, ws:// or wss:// (overrides INBOX_SERVER_URL)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "presentation: page or widget (overrides INBOX_MODE)")
	cmd.Flags().StringVar(&opts.id, "id", "", "user id (overrides INBOX_USER_ID)")
	cmd.Flags().StringVar(&opts.name, "name", "", "display name (overrides INBOX_USER_NAME)")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "announce as admin (overrides INBOX_IS_ADMIN)")
	cmd.Flags().BoolVar(&opts.ephemeral, "ephemeral", false, "keep the history in memory only")

	return cmd
}

func (o *chatOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	if o.server != "" {
		cfg.ServerURL = o.server
	}
	if o.mode != "" {
		cfg.Mode = o.mode
	}
	if o.id != "" {
		cfg.UserID = o.id
	}
	if o.name != "" {
		cfg.UserName = o.name
	}
	if cmd.Flags().Changed("admin") {
		cfg.IsAdmin = o.admin
	}
}

func runChat(ctx context.Context, cfg *config.Config, ephemeral bool) error {
	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

	logger, err := logging.New(logFile, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	identity := cfg.Identity()
	if err := content.ValidateIdentity(identity); err != nil {
		return err
	}

	mode, err := chat.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	mode = ui.Presentation(mode, identity)

	store, closeStore, err := openStore(cfg, logger, ephemeral)
	if err != nil {
		return err
	}
	defer closeStore()

	dial := transport.WebsocketDialer(cfg.DialTimeout)
	inbox := chat.New(chat.Config{
		Identity: identity,
		Mode:     mode,
		Store:    store,
		NewSession: func() chat.Session {
			return transport.NewSession(transport.Config{
				URL:      cfg.ServerURL,
				Identity: identity,
				Dial:     dial,
				Logger:   logger,
			})
		},
		TypingTimeout: cfg.TypingTimeout,
		Logger:        logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return inbox.Run(gCtx)
	})

	g.Go(func() error {
		// Leaving the UI ends the inbox.
		defer cancel()
		return ui.Run(gCtx, inbox, identity, mode)
	})

	return g.Wait()
}

// openStore wraps the configured cache in a history store. Ephemeral
// stores live in memory and start from the greeting every time.
func openStore(cfg *config.Config, logger *slog.Logger, ephemeral bool) (*chat.Store, func(), error) {
	codec, err := storage.CodecByName(cfg.CacheCodec)
	if err != nil {
		return nil, nil, err
	}

	var cache storage.Cache
	if ephemeral {
		cache = storage.NewMemoryCache()
	} else {
		bolt, err := storage.NewBboltCache(cfg.CacheFile)
		if err != nil {
			return nil, nil, err
		}
		cache = bolt
	}

	store := chat.NewStore(chat.StoreConfig{
		Cache:  cache,
		Codec:  codec,
		Logger: logger,
	})
	return store, func() { _ = cache.Close() }, nil
}
