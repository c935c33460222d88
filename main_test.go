package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inbox/internal/chat"
	"inbox/internal/commands"
	"inbox/internal/config"
	"inbox/internal/models"
	"inbox/internal/storage"
	"inbox/internal/transport"

	"github.com/stretchr/testify/require"
)

func getFreePort(t *testing.T) int {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	require.NoError(t, err)

	l, err := net.ListenTCP("tcp", addr)
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}

func waitForServer(t *testing.T, url string, attempts int) {
	t.Helper()
	for i := 0; i < attempts; i++ {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server at %s did not start", url)
}

func startInbox(t *testing.T, ctx context.Context, serverURL string, identity models.Identity) *chat.Inbox {
	t.Helper()
	cache, err := storage.NewBboltCache(filepath.Join(t.TempDir(), "inbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	logger := slog.New(slog.DiscardHandler)
	inbox := chat.New(chat.Config{
		Identity: identity,
		Mode:     chat.ModePage,
		Store:    chat.NewStore(chat.StoreConfig{Cache: cache, Logger: logger}),
		NewSession: func() chat.Session {
			return transport.NewSession(transport.Config{
				URL:      serverURL,
				Identity: identity,
				Dial:     transport.WebsocketDialer(time.Second),
				Logger:   logger,
			})
		},
		Logger: logger,
	})

	done := make(chan error, 1)
	go func() {
		done <- inbox.Run(ctx)
	}()
	t.Cleanup(func() { <-done })
	return inbox
}

func waitForSnapshot(t *testing.T, inbox *chat.Inbox, cond func(chat.Snapshot) bool) chat.Snapshot {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		if s := inbox.Latest(); s.Revision > 0 && cond(s) {
			return s
		}
		select {
		case <-inbox.Updates():
		case <-timeout:
			t.Fatalf("condition not met, last snapshot: %+v", inbox.Latest())
		}
	}
}

func hasBody(body string) func(chat.Snapshot) bool {
	return func(s chat.Snapshot) bool {
		for _, m := range s.Messages {
			if m.Body == body {
				return true
			}
		}
		return false
	}
}

func TestIntegration(t *testing.T) {
	apiAddr := fmt.Sprintf("127.0.0.1:%d", getFreePort(t))
	adminAddr := fmt.Sprintf("127.0.0.1:%d", getFreePort(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayDone := make(chan error, 1)
	go func() {
		relayDone <- run(ctx, []string{
			"--env-file", filepath.Join(t.TempDir(), "none.env"),
			"--log-level", "error",
			"relay", "--addr", apiAddr, "--admin-addr", adminAddr,
		})
	}()

	waitForServer(t, fmt.Sprintf("http://%s/presence", adminAddr), 50)

	serverURL := fmt.Sprintf("ws://%s/ws", apiAddr)
	inboxCtx, stopInboxes := context.WithCancel(ctx)
	alice := startInbox(t, inboxCtx, serverURL, models.Identity{ID: "u1", Name: "Alice"})
	admin := startInbox(t, inboxCtx, serverURL, models.Identity{ID: "a1", Name: "Admin", IsAdmin: true})

	connected := func(s chat.Snapshot) bool { return s.Conn == chat.ConnConnected }
	waitForSnapshot(t, alice, connected)
	waitForSnapshot(t, admin, connected)

	// Both logins reach the relay.
	require.Eventually(t, func() bool {
		var out bytes.Buffer
		if err := commands.Who(&out, &config.Config{AdminAddr: adminAddr}); err != nil {
			return false
		}
		return strings.Contains(out.String(), "u1") && strings.Contains(out.String(), "a1")
	}, 3*time.Second, 50*time.Millisecond)

	// Step 1: Alice types and sends.
	alice.Keystroke()
	waitForSnapshot(t, admin, func(s chat.Snapshot) bool { return s.RemoteTyping() })

	require.NoError(t, alice.Submit("Hello"))
	// stopTyping follows the message.
	snap := waitForSnapshot(t, admin, func(s chat.Snapshot) bool {
		return hasBody("Hello")(s) && !s.RemoteTyping()
	})
	require.Equal(t, models.ChatMessage{Name: "Alice", Body: "Hello", ID: "u1"}, snap.Messages[len(snap.Messages)-1])

	// Step 2: the admin replies.
	require.NoError(t, admin.Submit("Welcome"))
	snap = waitForSnapshot(t, alice, hasBody("Welcome"))

	bodies := make([]string, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		bodies = append(bodies, m.Body)
	}
	require.Equal(t, []string{chat.SeedBody, "Hello", "Welcome"}, bodies)

	// Step 3: shutdown.
	stopInboxes()
	cancel()
	select {
	case err := <-relayDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not shut down")
	}
}
