package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"inbox/internal/content"
	"inbox/internal/models"
)

var ErrNotConnected = errors.New("chat is not connected")

// Mode selects the presentation the inbox serves.
type Mode int

const (
	// ModePage connects as soon as the inbox runs.
	ModePage Mode = iota
	// ModeWidget connects on the first user interaction.
	ModeWidget
)

func (m Mode) String() string {
	if m == ModeWidget {
		return "widget"
	}
	return "page"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "page":
		return ModePage, nil
	case "widget":
		return ModeWidget, nil
	}
	return ModePage, fmt.Errorf("unknown chat mode %q", s)
}

type ConnState int32

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
)

func (c ConnState) String() string {
	switch c {
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	}
	return "disconnected"
}

// Session is the transport the inbox drives. transport.Session satisfies it.
type Session interface {
	Open(ctx context.Context) error
	Send(event models.EventName, payload any) error
	Events() <-chan models.Inbound
	Close() error
}

type SessionFactory func() Session

// Snapshot is what the UI renders. A new one is published after every
// change; the UI scrolls to the bottom on each.
type Snapshot struct {
	Messages    []models.ChatMessage
	Typers      []string
	LocalTyping bool
	Conn        ConnState
	Revision    uint64
}

func (s Snapshot) RemoteTyping() bool {
	return len(s.Typers) > 0
}

type Config struct {
	Identity      models.Identity
	Mode          Mode
	Store         *Store
	NewSession    SessionFactory
	TypingTimeout time.Duration
	Logger        *slog.Logger
}

// AfterFunc matches time.AfterFunc, returning the timer's Stop.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

type Option func(*Inbox)

// WithAfterFunc replaces the timer source used by the typing indicator.
func WithAfterFunc(fn AfterFunc) Option {
	return func(i *Inbox) {
		i.afterFunc = fn
	}
}

type (
	keystrokeEvent  struct{}
	connectEvent    struct{}
	disconnectEvent struct{}
	submitEvent     struct{ body string }
	typingExpired   struct{ gen uint64 }
	sessionOpened   struct {
		session Session
		err     error
	}
)

// Inbox ties one transport session, the message store and the typing
// indicator together. All state is owned by the Run goroutine; the exported
// methods only post events to it.
type Inbox struct {
	identity   models.Identity
	mode       Mode
	store      *Store
	newSession SessionFactory
	afterFunc  AfterFunc
	logger     *slog.Logger

	input   chan any
	updates chan Snapshot
	stopped chan struct{}
	conn    atomic.Int32
	latest  atomic.Pointer[Snapshot]

	// Owned by Run.
	ctx      context.Context
	session  Session
	events   <-chan models.Inbound
	typing   *Typing
	remote   *remoteTyping
	revision uint64
}

func New(config Config, opts ...Option) *Inbox {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	i := &Inbox{
		identity:   config.Identity,
		mode:       config.Mode,
		store:      config.Store,
		newSession: config.NewSession,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		logger:  logger.With("component", "inbox", "mode", config.Mode.String()),
		input:   make(chan any, 64),
		updates: make(chan Snapshot, 1),
		stopped: make(chan struct{}),
		remote:  newRemoteTyping(config.Identity.Name),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.typing = NewTyping(config.TypingTimeout, i.scheduleExpiry, i.emitTyping)
	return i
}

// Updates delivers the latest snapshot. Intermediate snapshots are dropped
// when the reader is slow.
func (i *Inbox) Updates() <-chan Snapshot {
	return i.updates
}

// Latest returns the last published snapshot.
func (i *Inbox) Latest() Snapshot {
	if s := i.latest.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

func (i *Inbox) State() ConnState {
	return ConnState(i.conn.Load())
}

func (i *Inbox) Mode() Mode {
	return i.mode
}

func (i *Inbox) Identity() models.Identity {
	return i.identity
}

// Keystroke reports that the local input changed.
func (i *Inbox) Keystroke() {
	i.post(keystrokeEvent{})
}

// Connect opens the session if none is live.
func (i *Inbox) Connect() {
	i.post(connectEvent{})
}

// Disconnect tears the live session down.
func (i *Inbox) Disconnect() {
	i.post(disconnectEvent{})
}

// Submit validates and queues an outgoing message. Validation happens here,
// synchronously, so the caller can alert the user.
func (i *Inbox) Submit(text string) error {
	body, err := content.NormalizeBody(text)
	if err != nil {
		return err
	}
	if i.State() != ConnConnected {
		return ErrNotConnected
	}
	i.post(submitEvent{body: body})
	return nil
}

func (i *Inbox) post(ev any) {
	select {
	case i.input <- ev:
	case <-i.stopped:
	}
}

// Run restores the history, connects in page mode and processes events
// until ctx is done. The session is closed on return.
func (i *Inbox) Run(ctx context.Context) error {
	defer close(i.stopped)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	i.ctx = ctx

	if err := i.store.Initialize(); err != nil {
		i.logger.Error("failed to restore history", "error", err)
	}
	i.publish()

	if i.mode == ModePage {
		i.connect()
	}

	for {
		select {
		case <-ctx.Done():
			i.dropSession("shutdown")
			return nil
		case in, ok := <-i.events:
			if !ok {
				i.dropSession("connection lost")
				continue
			}
			i.handleInbound(in)
		case ev := <-i.input:
			i.handle(ev)
		}
	}
}

func (i *Inbox) handle(ev any) {
	switch ev := ev.(type) {
	case keystrokeEvent:
		if i.mode == ModeWidget && i.session == nil {
			i.connect()
		}
		wasTyping := i.typing.Active()
		i.typing.Keystroke()
		if !wasTyping {
			i.publish()
		}
	case connectEvent:
		i.connect()
	case disconnectEvent:
		i.dropSession("closed by user")
	case submitEvent:
		i.submit(ev.body)
	case typingExpired:
		if i.typing.Expire(ev.gen) {
			i.publish()
		}
	case sessionOpened:
		i.sessionOpened(ev)
	}
}

func (i *Inbox) handleInbound(in models.Inbound) {
	switch in.Kind {
	case models.InboundMessage:
		if err := i.store.Append(in.Message); err != nil {
			i.logger.Warn("failed to persist inbound message", "error", err)
		}
		i.publish()
	case models.InboundTyping, models.InboundStopTyping:
		if i.remote.apply(in) {
			i.publish()
		}
	}
}

func (i *Inbox) submit(body string) {
	msg := models.ChatMessage{
		Name:    i.identity.Name,
		Body:    body,
		IsAdmin: i.identity.IsAdmin,
		ID:      i.identity.ID,
	}
	// Optimistic: the message is shown whether or not delivery succeeds.
	if err := i.store.Append(msg); err != nil {
		i.logger.Warn("failed to persist outgoing message", "error", err)
	}
	i.send(models.EventMessage, msg)
	i.send(models.EventStopTyping, models.TypingPayload{Name: i.identity.Name})
	i.typing.Reset()
	i.publish()
}

func (i *Inbox) connect() {
	if i.session != nil {
		return
	}
	if i.newSession == nil {
		i.logger.Error("no session factory configured")
		return
	}

	s := i.newSession()
	i.session = s
	i.setConn(ConnConnecting)
	i.publish()

	ctx := i.ctx
	go func() {
		err := s.Open(ctx)
		i.post(sessionOpened{session: s, err: err})
	}()
}

func (i *Inbox) sessionOpened(ev sessionOpened) {
	if ev.session != i.session {
		// Dropped while dialing.
		_ = ev.session.Close()
		return
	}
	if ev.err != nil {
		i.logger.Warn("failed to connect", "error", ev.err)
		_ = ev.session.Close()
		i.session = nil
		i.setConn(ConnDisconnected)
		i.publish()
		return
	}
	i.events = ev.session.Events()
	i.setConn(ConnConnected)
	i.logger.Info("connected", "user", i.identity.Name)
	if i.typing.Active() {
		// The burst that triggered a lazy connect was not announced yet.
		i.emitTyping(models.EventTyping)
	}
	i.publish()
}

func (i *Inbox) dropSession(reason string) {
	if i.session == nil {
		return
	}
	if err := i.session.Close(); err != nil {
		i.logger.Debug("close session", "error", err)
	}
	i.session = nil
	i.events = nil
	i.typing.Reset()
	i.remote.clear()
	i.setConn(ConnDisconnected)
	i.logger.Info("disconnected", "reason", reason)
	i.publish()
}

func (i *Inbox) emitTyping(event models.EventName) {
	i.send(event, models.TypingPayload{Name: i.identity.Name})
}

func (i *Inbox) send(event models.EventName, payload any) {
	if i.State() != ConnConnected {
		i.logger.Debug("not connected, dropping event", "event", event)
		return
	}
	if err := i.session.Send(event, payload); err != nil {
		i.logger.Warn("send failed", "event", event, "error", err)
	}
}

func (i *Inbox) scheduleExpiry(d time.Duration, gen uint64) func() bool {
	return i.afterFunc(d, func() {
		i.post(typingExpired{gen: gen})
	})
}

func (i *Inbox) setConn(state ConnState) {
	i.conn.Store(int32(state))
}

func (i *Inbox) publish() {
	i.revision++
	snap := Snapshot{
		Messages:    i.store.Messages(),
		Typers:      i.remote.list(),
		LocalTyping: i.typing.Active(),
		Conn:        i.State(),
		Revision:    i.revision,
	}
	i.latest.Store(&snap)

	select {
	case <-i.updates:
	default:
	}
	i.updates <- snap
}
