package chat

import (
	"time"

	"inbox/internal/models"
)

const DefaultTypingTimeout = 3 * time.Second

// ScheduleFunc arms a one-shot timer that reports gen after d. The returned
// function cancels it.
type ScheduleFunc func(d time.Duration, gen uint64) (stop func() bool)

type typingState interface {
	isTypingState()
}

type idleState struct{}

type typingActive struct {
	gen  uint64
	stop func() bool
}

func (idleState) isTypingState()    {}
func (typingActive) isTypingState() {}

// Typing is the local half of the typing indicator: Idle or Typing with
// exactly one pending timer. It is not safe for concurrent use, the inbox
// loop owns it.
type Typing struct {
	timeout  time.Duration
	schedule ScheduleFunc
	emit     func(models.EventName)

	state typingState
	gen   uint64
}

func NewTyping(timeout time.Duration, schedule ScheduleFunc, emit func(models.EventName)) *Typing {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &Typing{
		timeout:  timeout,
		schedule: schedule,
		emit:     emit,
		state:    idleState{},
	}
}

// Keystroke emits typing when idle and restarts the stop timer.
func (t *Typing) Keystroke() {
	switch s := t.state.(type) {
	case idleState:
		t.emit(models.EventTyping)
	case typingActive:
		s.stop()
	}
	t.gen++
	t.state = typingActive{gen: t.gen, stop: t.schedule(t.timeout, t.gen)}
}

// Expire handles a fired timer. Timers from an earlier generation are
// ignored. It reports whether the state changed.
func (t *Typing) Expire(gen uint64) bool {
	s, ok := t.state.(typingActive)
	if !ok || s.gen != gen {
		return false
	}
	t.state = idleState{}
	t.emit(models.EventStopTyping)
	return true
}

// Reset cancels the pending timer without emitting anything.
func (t *Typing) Reset() {
	if s, ok := t.state.(typingActive); ok {
		s.stop()
	}
	t.state = idleState{}
}

func (t *Typing) Active() bool {
	_, ok := t.state.(typingActive)
	return ok
}
