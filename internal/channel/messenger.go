package channel

import (
	"sort"
	"sync"
)

// Messenger routes requests to the handler registered for their channel.
type Messenger struct {
	mu             sync.RWMutex
	handlers       map[string]Handler
	defaultChannel string
}

// NewMessenger returns a Messenger. Requests that omit a channel name are
// routed to defaultChannel.
func NewMessenger(defaultChannel string) *Messenger {
	return &Messenger{
		handlers:       make(map[string]Handler),
		defaultChannel: defaultChannel,
	}
}

// SetMethodCallHandler installs h for the named channel. A nil h removes the
// channel.
func (m *Messenger) SetMethodCallHandler(name string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h == nil {
		delete(m.handlers, name)
		return
	}
	m.handlers[name] = h
}

// Channels lists the registered channel names in sorted order.
func (m *Messenger) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultChannel returns the channel used for requests without one.
func (m *Messenger) DefaultChannel() string {
	return m.defaultChannel
}

// Invoke runs req on its channel's handler and returns the answer. Unknown
// channels, and handlers that never answer, yield a not-implemented response.
func (m *Messenger) Invoke(req Request) Response {
	name := req.Channel
	if name == "" {
		name = m.defaultChannel
	}

	m.mu.RLock()
	h, ok := m.handlers[name]
	m.mu.RUnlock()

	if !ok {
		return Response{ID: req.ID, NotImplemented: true}
	}

	rec := &recorder{}
	h(req.Call(), rec)

	resp := Response{ID: req.ID}
	if !rec.answered {
		resp.NotImplemented = true
		return resp
	}

	switch rec.status {
	case StatusSuccess:
		resp.Result = rec.result
	case StatusError:
		resp.Error = rec.err
	case StatusNotImplemented:
		resp.NotImplemented = true
	}

	return resp
}
