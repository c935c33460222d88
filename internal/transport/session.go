package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"inbox/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultDialTimeout = 10 * time.Second

	// Time allowed to write a frame to the peer.
	DefaultWriteTimeout = 10 * time.Second

	// Header carrying the session id to the relay, for log correlation.
	SessionHeader = "X-Inbox-Session"

	eventBuffer = 64
)

var (
	ErrAlreadyOpen  = errors.New("session already opened")
	ErrClosed       = errors.New("session closed")
	ErrNotConnected = errors.New("not connected")
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	NextReader() (messageType int, r io.Reader, err error)
}

// DialFunc opens the underlying connection.
type DialFunc func(ctx context.Context, url string, header http.Header) (wsConnection, error)

// WebsocketDialer returns a DialFunc backed by gorilla/websocket.
func WebsocketDialer(timeout time.Duration) DialFunc {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	return func(ctx context.Context, url string, header http.Header) (wsConnection, error) {
		conn, resp, err := d.DialContext(ctx, url, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

type Config struct {
	URL          string
	Identity     models.Identity
	Dial         DialFunc
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Session is one bidirectional connection to the chat endpoint.
// A session is single use: once closed it cannot be reopened.
type Session struct {
	id           string
	url          string
	dial         DialFunc
	writeTimeout time.Duration
	announcer    *announcer
	logger       *slog.Logger

	// mu guards state and conn. It is never held across network I/O.
	mu    sync.Mutex
	state State
	conn  wsConnection

	// wmu serializes writes.
	wmu sync.Mutex

	events    chan models.Inbound
	quit      chan struct{}
	done      chan struct{}
	pumping   bool
	closeOnce sync.Once
}

func NewSession(cfg Config) *Session {
	dial := cfg.Dial
	if dial == nil {
		dial = WebsocketDialer(DefaultDialTimeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	id := uuid.NewString()
	s := &Session{
		id:           id,
		url:          cfg.URL,
		dial:         dial,
		writeTimeout: writeTimeout,
		logger:       logger.With("component", "transport", "session_id", id),
		events:       make(chan models.Inbound, eventBuffer),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	s.announcer = newAnnouncer(cfg.Identity)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events delivers inbound events until the session closes, then the
// channel is closed.
func (s *Session) Events() <-chan models.Inbound {
	return s.events
}

// Open dials the endpoint and announces the identity.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateConnecting, StateOpen:
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.state = StateConnecting
	s.mu.Unlock()

	header := http.Header{}
	header.Set(SessionHeader, s.id)
	conn, err := s.dial(ctx, s.url, header)
	if err != nil {
		s.mu.Lock()
		if s.state == StateConnecting {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	s.conn = conn
	s.mu.Unlock()

	// The login frame goes out while the session is still connecting, so
	// Send cannot get ahead of it.
	err = s.announcer.announce(func(v interface{}) error {
		return s.write(conn, v)
	})
	if err != nil {
		_ = s.Close()
		return fmt.Errorf("failed to announce presence: %w", err)
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = StateOpen
	s.pumping = true
	s.mu.Unlock()

	s.logger.Info("session opened", "url", s.url)

	go s.readPump()
	return nil
}

// Send emits an event. There is no acknowledgment and no retry.
func (s *Session) Send(event models.EventName, payload any) error {
	env, err := models.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return ErrNotConnected
	}
	conn := s.conn
	s.mu.Unlock()

	if err := s.write(conn, env); err != nil {
		// A failed write leaves the connection unusable.
		s.logger.Warn("write failed, closing session", "event", event, "error", err)
		_ = s.Close()
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

func (s *Session) write(conn wsConnection, v interface{}) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// Close tears the connection down and stops event delivery. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		conn := s.conn
		pumping := s.pumping
		s.mu.Unlock()

		close(s.quit)
		if conn != nil {
			if err := conn.Close(); err != nil {
				s.logger.Debug("close connection", "error", err)
			}
		}
		if pumping {
			<-s.done
		} else {
			close(s.events)
			close(s.done)
		}
		s.logger.Info("session closed")
	})
	return nil
}

// Done is closed once the session stopped delivering events.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) readPump() {
	defer func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		close(s.events)
		close(s.done)
	}()

	for {
		_, r, err := s.conn.NextReader()
		if err != nil {
			select {
			case <-s.quit:
			default:
				s.logger.Warn("connection lost", "error", err)
			}
			return
		}

		var env models.Envelope
		if err := json.NewDecoder(r).Decode(&env); err != nil {
			// The rest of a bad frame is discarded by the next NextReader.
			s.logger.Warn("dropping unreadable frame", "error", err)
			continue
		}

		in, err := models.DecodeInbound(env)
		if errors.Is(err, models.ErrUnknownEvent) {
			s.logger.Debug("ignoring event", "event", env.Event)
			continue
		}
		if err != nil {
			s.logger.Warn("dropping malformed event", "event", env.Event, "error", err)
			continue
		}

		select {
		case s.events <- in:
		case <-s.quit:
			return
		}
	}
}
