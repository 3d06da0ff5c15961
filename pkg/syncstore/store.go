// Package syncstore mirrors one owner-scoped remote collection into memory.
//
// The mirror is replaced wholesale on every push from the subscription and is never
// patched by writers: Create, Update and Delete go straight to the remote collection
// and their effect becomes visible only when the next push arrives.
package syncstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/rs/zerolog/log"
)

// Entity is anything the store can mirror.
type Entity interface {
	Identity() string
	Owner() string
}

// Gate decides whether a mutating operation may reach the network.
type Gate interface {
	Check(op string) error
}

// Messages are the notification texts for one entity type.
type Messages struct {
	Created            string
	CreateFailed       string
	Updated            string
	UpdateFailed       string
	Deleted            string
	DeleteFailed       string
	SubscriptionFailed string
}

// DefaultMessages returns notification texts for an entity called noun.
func DefaultMessages(noun string) Messages {
	return Messages{
		Created:            fmt.Sprintf("%s created successfully!", noun),
		CreateFailed:       fmt.Sprintf("Failed to create %s.", lower(noun)),
		Updated:            fmt.Sprintf("%s updated successfully!", noun),
		UpdateFailed:       fmt.Sprintf("Failed to update %s.", lower(noun)),
		Deleted:            fmt.Sprintf("%s deleted successfully!", noun),
		DeleteFailed:       fmt.Sprintf("Failed to delete %s.", lower(noun)),
		SubscriptionFailed: "Connection issues. Working in offline mode.",
	}
}

// Options configures a Store.
type Options[T Entity] struct {
	// Decode turns a pushed document into an entity. Documents it rejects are left
	// out of the snapshot.
	Decode func(remote.Record) (T, error)
	// Encode turns an entity into a document for Create. The store stamps the owner.
	Encode func(T) remote.Record
	// Validate, when set, runs before Create reaches the collection.
	Validate func(T) error
	// Less, when set, orders the snapshot; otherwise the pushed order is kept.
	Less func(a, b T) bool
	// Gate, when set, is consulted before every write.
	Gate     Gate
	Notifier notify.Notifier
	Messages Messages
}

// View is a consistent read of the store's state.
type View[T Entity] struct {
	Owner   string
	Items   []T
	Loading bool
	Err     error
}

// Store is the in-memory mirror of one remote collection.
type Store[T Entity] struct {
	coll remote.Collection
	opts Options[T]

	// attachMu serializes Attach and Detach.
	attachMu sync.Mutex
	sub      remote.Subscription

	mu      sync.RWMutex
	owner   string
	gen     uint64
	items   []T
	loading bool
	lastErr error

	listenerMu sync.Mutex
	nextID     int
	listeners  map[int]func()
}

// New returns a detached store over coll.
func New[T Entity](coll remote.Collection, opts Options[T]) *Store[T] {
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}

	return &Store[T]{
		coll:      coll,
		opts:      opts,
		listeners: map[int]func(){},
	}
}

// Path returns the path of the mirrored collection.
func (s *Store[T]) Path() string {
	return s.coll.Path()
}

// Attach subscribes for ownerID, replacing any subscription for a different owner. An
// empty ownerID clears the mirror and leaves the store detached. ctx bounds the life of
// the subscription.
func (s *Store[T]) Attach(ctx context.Context, ownerID string) error {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	if s.sub != nil && s.Owner() == ownerID {
		return nil
	}

	s.closeSubscription()

	gen := s.reset(ownerID, ownerID != "")
	defer s.changed()

	if ownerID == "" {
		log.Debug().Str("collection", s.coll.Path()).Msg("store detached: no owner")

		return nil
	}

	sub, err := s.coll.Subscribe(ctx, ownerID)
	if err != nil {
		err = apperr.New(apperr.SubscriptionFailed, "subscribe "+s.coll.Path(), err)

		s.mu.Lock()
		s.loading = false
		s.lastErr = err
		s.mu.Unlock()

		log.Warn().Err(err).Str("owner", ownerID).Msg("error subscribing")
		notify.Errorf(s.opts.Notifier, s.opts.Messages.SubscriptionFailed)

		return err
	}

	s.sub = sub

	log.Debug().Str("collection", s.coll.Path()).Str("owner", ownerID).Msg("store attached")

	go s.consume(gen, sub)

	return nil
}

// Detach closes the subscription and clears the mirror. It is safe to call on a store
// that was never attached, and to call more than once.
func (s *Store[T]) Detach() {
	s.attachMu.Lock()
	defer s.attachMu.Unlock()

	hadOwner := s.Owner() != ""

	s.closeSubscription()
	s.reset("", false)

	if hadOwner {
		log.Debug().Str("collection", s.coll.Path()).Msg("store detached")
		s.changed()
	}
}

// closeSubscription must be called with attachMu held.
func (s *Store[T]) closeSubscription() {
	if s.sub == nil {
		return
	}

	if err := s.sub.Close(); err != nil {
		log.Warn().Err(err).Str("collection", s.coll.Path()).Msg("error closing subscription")
	}

	s.sub = nil
}

// reset starts a new generation for ownerID and returns it. Pushes and write results
// tagged with an older generation are ignored from here on.
func (s *Store[T]) reset(ownerID string, loading bool) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.owner = ownerID
	s.items = nil
	s.loading = loading
	s.lastErr = nil

	return s.gen
}

func (s *Store[T]) consume(gen uint64, sub remote.Subscription) {
	for event := range sub.Events() {
		if !s.apply(gen, event) {
			return
		}
	}
}

// apply replaces the snapshot with event. It returns false once gen is stale.
func (s *Store[T]) apply(gen uint64, event remote.Event) bool {
	s.mu.Lock()

	if gen != s.gen {
		s.mu.Unlock()

		return false
	}

	if event.Err != nil {
		s.loading = false
		s.lastErr = apperr.New(apperr.SubscriptionFailed, "subscription "+s.coll.Path(), event.Err)
		owner := s.owner
		s.mu.Unlock()

		log.Warn().Err(event.Err).Str("collection", s.coll.Path()).Str("owner", owner).
			Msg("subscription error; keeping last snapshot")
		notify.Errorf(s.opts.Notifier, s.opts.Messages.SubscriptionFailed)
		s.changed()

		return true
	}

	items, decodeErr := s.decode(s.owner, event.Records)
	s.items = items
	s.loading = false
	s.lastErr = decodeErr
	s.mu.Unlock()

	log.Debug().Str("collection", s.coll.Path()).Int("count", len(items)).Msg("snapshot replaced")
	s.changed()

	return true
}

// decode converts a pushed set, dropping documents that fail to decode or that belong
// to someone other than owner. The first failure is returned.
func (s *Store[T]) decode(owner string, records []remote.Record) ([]T, error) {
	items := make([]T, 0, len(records))

	var firstErr error

	for _, rec := range records {
		if rec.Owner() != owner {
			log.Warn().Str("collection", s.coll.Path()).Str("id", rec.ID()).Msg("dropping document of another owner")

			continue
		}

		item, err := s.opts.Decode(rec)
		if err != nil {
			log.Warn().Err(err).Str("collection", s.coll.Path()).Msg("dropping undecodable document")

			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		items = append(items, item)
	}

	if s.opts.Less != nil {
		sort.SliceStable(items, func(i, j int) bool { return s.opts.Less(items[i], items[j]) })
	}

	return items, firstErr
}

// Owner returns the owner the store is attached for, or "".
func (s *Store[T]) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.owner
}

// Snapshot returns a copy of the current entities in snapshot order.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]T(nil), s.items...)
}

// Loading reports whether the store is attached but has not received its first push.
func (s *Store[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loading
}

// Err returns the last error the store recorded, or nil.
func (s *Store[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastErr
}

// View returns owner, snapshot, loading flag and last error read together.
func (s *Store[T]) View() View[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return View[T]{
		Owner:   s.owner,
		Items:   append([]T(nil), s.items...),
		Loading: s.loading,
		Err:     s.lastErr,
	}
}

// Get returns the entity with the given id from the current snapshot.
func (s *Store[T]) Get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.Identity() == id {
			return item, nil
		}
	}

	var zero T

	return zero, apperr.Errorf(apperr.NotFound, "get", "%s/%s", s.coll.Path(), id)
}

// OnChange registers fn to be called after every change to the store's state and
// returns a function that removes it. fn runs on the store's delivery goroutine and
// must not call Attach or Detach.
func (s *Store[T]) OnChange(fn func()) func() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

func (s *Store[T]) changed() {
	s.listenerMu.Lock()
	fns := make([]func(), 0, len(s.listeners))

	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func lower(noun string) string {
	if noun == "" {
		return noun
	}

	b := []byte(noun)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}

	return string(b)
}
