package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"inbox/internal/relay"
)

const readHeaderTimeout = 10 * time.Second

type APIServer struct {
	server *http.Server
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewAPIServer exposes the relay websocket endpoint. Request contexts derive
// from ctx so open websocket connections end when ctx is cancelled.
func NewAPIServer(ctx context.Context, relayServer *relay.Server, addr string) *APIServer {
	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           relayServer.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
			BaseContext: func(net.Listener) context.Context {
				return ctx
			},
		},
		logger: slog.Default().With("component", "api_server"),
	}
}

func (s *APIServer) Addr() string {
	return s.server.Addr
}

func (s *APIServer) Start() error {
	s.logger.Info("relay started", "addr", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
