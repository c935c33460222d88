package relay

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"inbox/internal/transport"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	DefaultRate  = 20
	DefaultBurst = 40

	maxFrameSize = 64 << 10
)

type Config struct {
	// Rate is the number of relayed frames per second allowed per connection.
	Rate  float64
	Burst int
	// Registry receives the relay metrics. A fresh one is created when nil.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

type Server struct {
	hub      *Hub
	metrics  *Metrics
	registry *prometheus.Registry
	upgrader *websocket.Upgrader
	rate     rate.Limit
	burst    int
	logger   *slog.Logger
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	r := cfg.Rate
	if r <= 0 {
		r = DefaultRate
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}

	metrics := NewMetrics(registry)
	return &Server{
		hub:      NewHub(metrics, logger),
		metrics:  metrics,
		registry: registry,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // terminal clients send no Origin
			},
		},
		rate:   rate.Limit(r),
		burst:  burst,
		logger: logger.With("component", "relay"),
	}
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler serves the public websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.HandleConnections)
	return mux
}

// AdminHandler serves presence and metrics. It is meant for a listener
// that is not exposed to clients.
func (s *Server) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /presence", s.PresenceHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("error upgrading to websocket", "error", err)
		return
	}
	ws.SetReadLimit(maxFrameSize)

	connID := uuid.NewString()
	logger := s.logger.With("session_id", r.Header.Get(transport.SessionHeader))

	conn := NewConnection(s.hub, ws, connID,
		WithLimiter(rate.NewLimiter(s.rate, s.burst)),
		WithMetrics(s.metrics),
		WithLogger(logger),
	)

	logger.Debug("connection accepted", "conn_id", connID, "remote", r.RemoteAddr)
	if err := conn.Handle(r.Context()); err != nil {
		logger.Info("connection closed", "conn_id", connID, "error", err)
	}
}

func (s *Server) PresenceHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.Online()); err != nil {
		s.logger.Error("failed to encode presence", "error", err)
	}
}
