package transport

import (
	"sync"

	"inbox/internal/models"
)

// announcer emits the login frame for a session. It fires at most once,
// a new session announces again.
type announcer struct {
	identity models.Identity
	once     sync.Once
}

func newAnnouncer(identity models.Identity) *announcer {
	return &announcer{identity: identity}
}

func (a *announcer) announce(write func(v interface{}) error) error {
	var err error
	a.once.Do(func() {
		var env models.Envelope
		env, err = models.NewEnvelope(models.EventLogin, a.identity)
		if err != nil {
			return
		}
		err = write(env)
	})
	return err
}
