package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"inbox/internal/relay"
)

type AdminServer struct {
	server *http.Server
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewAdminServer exposes presence and metrics on a separate listener.
func NewAdminServer(relayServer *relay.Server, addr string) *AdminServer {
	if addr == "" {
		addr = "localhost:8081"
	}

	return &AdminServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           relayServer.AdminHandler(),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: slog.Default().With("component", "admin_server"),
	}
}

func (s *AdminServer) Start() error {
	s.logger.Info("admin API started", "addr", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
