package chat

import (
	"testing"
	"time"

	"inbox/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduledTimer struct {
	d       time.Duration
	gen     uint64
	stopped bool
}

type fakeSchedule struct {
	timers []*scheduledTimer
}

func (f *fakeSchedule) schedule(d time.Duration, gen uint64) func() bool {
	timer := &scheduledTimer{d: d, gen: gen}
	f.timers = append(f.timers, timer)
	return func() bool {
		wasActive := !timer.stopped
		timer.stopped = true
		return wasActive
	}
}

func (f *fakeSchedule) pending() []*scheduledTimer {
	var result []*scheduledTimer
	for _, timer := range f.timers {
		if !timer.stopped {
			result = append(result, timer)
		}
	}
	return result
}

type emitted struct {
	events []models.EventName
}

func (e *emitted) emit(event models.EventName) {
	e.events = append(e.events, event)
}

func TestTyping_DebounceKeystrokes(t *testing.T) {
	sched := &fakeSchedule{}
	out := &emitted{}
	typing := NewTyping(0, sched.schedule, out.emit)

	// "h", "he", "hel"
	typing.Keystroke()
	typing.Keystroke()
	typing.Keystroke()

	require.Equal(t, []models.EventName{models.EventTyping}, out.events)
	require.True(t, typing.Active())
	require.Len(t, sched.timers, 3)

	pending := sched.pending()
	require.Len(t, pending, 1, "exactly one timer may be pending")
	assert.Equal(t, DefaultTypingTimeout, pending[0].d)

	require.True(t, typing.Expire(pending[0].gen))
	require.Equal(t, []models.EventName{models.EventTyping, models.EventStopTyping}, out.events)
	require.False(t, typing.Active())
}

// A timer that fires after being superseded must not end the typing state.
func TestTyping_StaleTimerIgnored(t *testing.T) {
	sched := &fakeSchedule{}
	out := &emitted{}
	typing := NewTyping(time.Second, sched.schedule, out.emit)

	typing.Keystroke()
	typing.Keystroke()

	first, second := sched.timers[0], sched.timers[1]
	require.False(t, typing.Expire(first.gen))
	require.True(t, typing.Active())
	require.Equal(t, []models.EventName{models.EventTyping}, out.events)

	require.True(t, typing.Expire(second.gen))
	require.False(t, typing.Expire(second.gen), "second expiry of the same timer")
	require.Equal(t, []models.EventName{models.EventTyping, models.EventStopTyping}, out.events)
}

func TestTyping_NewBurstAfterStop(t *testing.T) {
	sched := &fakeSchedule{}
	out := &emitted{}
	typing := NewTyping(time.Second, sched.schedule, out.emit)

	typing.Keystroke()
	require.True(t, typing.Expire(sched.timers[0].gen))
	typing.Keystroke()

	require.Equal(t, []models.EventName{
		models.EventTyping,
		models.EventStopTyping,
		models.EventTyping,
	}, out.events)
}

func TestTyping_ResetIsSilent(t *testing.T) {
	sched := &fakeSchedule{}
	out := &emitted{}
	typing := NewTyping(time.Second, sched.schedule, out.emit)

	typing.Keystroke()
	typing.Reset()

	require.False(t, typing.Active())
	require.Empty(t, sched.pending())
	require.False(t, typing.Expire(sched.timers[0].gen))
	require.Equal(t, []models.EventName{models.EventTyping}, out.events)

	// Idle reset is a no-op.
	typing.Reset()
	require.Len(t, out.events, 1)
}

func TestRemoteTyping(t *testing.T) {
	remote := newRemoteTyping("Alice")

	tests := []struct {
		name    string
		in      models.Inbound
		changed bool
		want    []string
	}{
		{"own echo ignored", models.Inbound{Kind: models.InboundTyping, Name: "Alice"}, false, []string{}},
		{"peer starts", models.Inbound{Kind: models.InboundTyping, Name: "Bob"}, true, []string{"Bob"}},
		{"duplicate start", models.Inbound{Kind: models.InboundTyping, Name: "Bob"}, false, []string{"Bob"}},
		{"second peer", models.Inbound{Kind: models.InboundTyping, Name: "Admin"}, true, []string{"Admin", "Bob"}},
		{"own stop ignored", models.Inbound{Kind: models.InboundStopTyping, Name: "Alice"}, false, []string{"Admin", "Bob"}},
		{"peer stops", models.Inbound{Kind: models.InboundStopTyping, Name: "Bob"}, true, []string{"Admin"}},
		{"unknown stop", models.Inbound{Kind: models.InboundStopTyping, Name: "Carol"}, false, []string{"Admin"}},
		{"message ignored", models.Inbound{Kind: models.InboundMessage, Name: "Carol"}, false, []string{"Admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.changed, remote.apply(tt.in))
			assert.Equal(t, tt.want, remote.list())
		})
	}

	remote.clear()
	assert.Empty(t, remote.list())
}
