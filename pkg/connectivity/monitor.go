// Package connectivity tracks whether the host is online and gates operations that need
// the network. The monitor never polls; it only changes state when the host reports a
// transition.
package connectivity

import (
	"context"
	"sync"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/rs/zerolog/log"
)

// Event is a connectivity notification from the host environment.
type Event int

// These constants are the two notifications a host can send.
const (
	BecameOffline Event = iota
	BecameOnline
)

func (e Event) String() string {
	if e == BecameOnline {
		return "online"
	}

	return "offline"
}

// Listener is called with the new state after every transition.
type Listener func(online bool)

// Monitor holds the current online state.
type Monitor struct {
	mu        sync.RWMutex
	online    bool
	nextID    int
	listeners map[int]Listener
}

// NewMonitor returns a monitor initialized from the host's current state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{
		online:    online,
		listeners: map[int]Listener{},
	}
}

// Online reports the last state the host announced.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.online
}

// Check returns an Offline error for op when the host is offline.
func (m *Monitor) Check(op string) error {
	if !m.Online() {
		return apperr.New(apperr.Offline, op, nil)
	}

	return nil
}

// Handle applies one host notification. Repeated notifications of the current state
// do not reach listeners.
func (m *Monitor) Handle(event Event) {
	online := event == BecameOnline

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()

		return
	}

	m.online = online
	listeners := make([]Listener, 0, len(m.listeners))

	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	log.Info().Str("state", event.String()).Msg("connectivity changed")

	for _, l := range listeners {
		l(online)
	}
}

// OnChange registers l and returns a function that removes it.
func (m *Monitor) OnChange(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = l

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Run applies host notifications from events until ctx is done or events is closed.
func (m *Monitor) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			m.Handle(event)
		}
	}
}
