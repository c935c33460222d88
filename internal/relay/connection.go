package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"inbox/internal/content"
	"inbox/internal/models"

	"golang.org/x/time/rate"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

type messageHub interface {
	Join(connID string) chan models.Envelope
	Leave(connID string)
	Login(connID string, identity models.Identity)
	Broadcast(fromConnID string, env models.Envelope)
}

type Connection struct {
	ws         wsConnection
	hub        messageHub
	connID     string
	limiter    *rate.Limiter
	metrics    *Metrics
	logger     *slog.Logger
	identity   *models.Identity
	fromClient chan models.Envelope
	fromServer chan models.Envelope
	errorCh    chan error
}

type ConnectionOption func(*Connection)

// WithLimiter caps the rate of relayed frames. Login is never limited.
func WithLimiter(l *rate.Limiter) ConnectionOption {
	return func(c *Connection) {
		c.limiter = l
	}
}

func WithMetrics(m *Metrics) ConnectionOption {
	return func(c *Connection) {
		c.metrics = m
	}
}

func WithLogger(l *slog.Logger) ConnectionOption {
	return func(c *Connection) {
		c.logger = l
	}
}

func NewConnection(
	hub messageHub,
	ws wsConnection,
	connID string,
	opts ...ConnectionOption,
) *Connection {
	c := &Connection{
		ws:         ws,
		hub:        hub,
		connID:     connID,
		logger:     slog.Default(),
		fromClient: make(chan models.Envelope),
		fromServer: hub.Join(connID),
		errorCh:    make(chan error, 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "connection", "conn_id", connID)
	return c
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Leave(c.connID)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	_ = c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		var env models.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return err
		}
		select {
		case c.fromClient <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case env := <-c.fromClient:
			if err := c.processClientMessage(env); err != nil {
				return err
			}
		case env, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(env); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// processClientMessage returns an error only for frames that end the
// connection: a login that cannot be parsed or validated.
func (c *Connection) processClientMessage(env models.Envelope) error {
	if env.Event == models.EventLogin {
		return c.login(env)
	}

	if c.identity == nil {
		c.drop(DropNotLoggedIn, env)
		return nil
	}

	in, err := models.DecodeInbound(env)
	switch {
	case errors.Is(err, models.ErrUnknownEvent):
		c.drop(DropUnknownEvent, env)
		return nil
	case err != nil:
		c.drop(DropMalformed, env)
		return nil
	}

	if c.limiter != nil && !c.limiter.Allow() {
		c.drop(DropRateLimited, env)
		return nil
	}

	if in.Kind == models.InboundMessage {
		msg := in.Message
		body, err := content.NormalizeBody(content.Sanitize(msg.Body))
		if err != nil {
			c.drop(DropEmptyMessage, env)
			return nil
		}
		msg.Body = body
		if env, err = models.NewEnvelope(models.EventMessage, msg); err != nil {
			return err
		}
	}

	c.hub.Broadcast(c.connID, env)
	return nil
}

func (c *Connection) login(env models.Envelope) error {
	if c.identity != nil {
		c.logger.Warn("ignoring repeated login", "user", c.identity.Name)
		return nil
	}

	var identity models.Identity
	if err := json.Unmarshal(env.Data, &identity); err != nil {
		return fmt.Errorf("failed to decode login: %w", err)
	}
	if err := content.ValidateIdentity(identity); err != nil {
		return fmt.Errorf("rejected login: %w", err)
	}

	c.identity = &identity
	c.logger = c.logger.With("user", identity.Name)
	c.hub.Login(c.connID, identity)
	return nil
}

func (c *Connection) drop(reason string, env models.Envelope) {
	c.metrics.dropped(reason)
	c.logger.Debug("dropping frame", "reason", reason, "event", env.Event)
}
