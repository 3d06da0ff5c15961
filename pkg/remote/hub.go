package remote

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Loader reads the current set of documents for one owner.
type Loader func(ctx context.Context, ownerID string) ([]Record, error)

// Hub fans change notifications out to the live subscriptions of one process. Backends
// that have no server-side push (memory, sqlite) call Notify after every write; each
// subscription then reloads its owner's set and pushes it.
//
// Wake-ups are coalesced: if several writes land while a subscription is still
// delivering, it reloads once and pushes the latest state.
type Hub struct {
	mu   sync.Mutex
	subs map[*hubSub]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[*hubSub]struct{}{}}
}

// Subscribe starts a subscription that pushes load's result immediately and again on
// every Notify for ownerID.
func (h *Hub) Subscribe(ctx context.Context, ownerID string, load Loader) Subscription {
	ctx, cancel := context.WithCancel(ctx)

	sub := &hubSub{
		hub:    h,
		owner:  ownerID,
		load:   load,
		wake:   make(chan struct{}, 1),
		events: make(chan Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	sub.wake <- struct{}{}

	go sub.run(ctx)

	return sub
}

// Notify wakes every subscription for ownerID.
func (h *Hub) Notify(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if sub.owner != ownerID {
			continue
		}

		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// NotifyAll wakes every subscription, whatever its owner.
func (h *Hub) NotifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

func (h *Hub) remove(sub *hubSub) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

type hubSub struct {
	hub    *Hub
	owner  string
	load   Loader
	wake   chan struct{}
	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *hubSub) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		records, err := s.load(ctx, s.owner)
		if ctx.Err() != nil {
			return
		}

		event := Event{Records: records, Err: err}
		if err != nil {
			log.Debug().Err(err).Str("owner", s.owner).Msg("subscription load failed")
		}

		select {
		case <-ctx.Done():
			return
		case s.events <- event:
		}
	}
}

func (s *hubSub) Events() <-chan Event {
	return s.events
}

func (s *hubSub) Close() error {
	s.once.Do(func() {
		s.hub.remove(s)
		s.cancel()
		<-s.done
	})

	return nil
}
