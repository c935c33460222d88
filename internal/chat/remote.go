package chat

import (
	"sort"

	"inbox/internal/models"
)

// remoteTyping tracks who else is typing. Events carrying the local name are
// our own echo and are ignored. There is no timeout: a lost stopTyping
// keeps the name until the session ends.
type remoteTyping struct {
	local string
	names map[string]struct{}
}

func newRemoteTyping(local string) *remoteTyping {
	return &remoteTyping{local: local, names: make(map[string]struct{})}
}

// apply reports whether the set changed.
func (r *remoteTyping) apply(in models.Inbound) bool {
	if in.Name == r.local {
		return false
	}
	_, present := r.names[in.Name]
	switch in.Kind {
	case models.InboundTyping:
		if present {
			return false
		}
		r.names[in.Name] = struct{}{}
		return true
	case models.InboundStopTyping:
		if !present {
			return false
		}
		delete(r.names, in.Name)
		return true
	}
	return false
}

func (r *remoteTyping) clear() {
	clear(r.names)
}

func (r *remoteTyping) list() []string {
	result := make([]string, 0, len(r.names))
	for name := range r.names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
