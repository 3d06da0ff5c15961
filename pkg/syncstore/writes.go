package syncstore

import (
	"context"
	"errors"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/rs/zerolog/log"
)

// write is the state captured when a write starts.
type write struct {
	op    string
	owner string
	gen   uint64
}

// begin checks the preconditions shared by every write: an owner and connectivity.
func (s *Store[T]) begin(op string) (write, error) {
	s.mu.RLock()
	w := write{op: op, owner: s.owner, gen: s.gen}
	s.mu.RUnlock()

	if w.owner == "" {
		return w, apperr.New(apperr.Unauthenticated, op, nil)
	}

	if s.opts.Gate != nil {
		if err := s.opts.Gate.Check(op); err != nil {
			return w, err
		}
	}

	return w, nil
}

// current reports whether the store is still on the generation w started in.
func (s *Store[T]) current(w write) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.gen == w.gen
}

// finish reports the outcome of a write. Outcomes of writes that started before the
// store re-attached are only logged: they must not touch state that now belongs to
// another owner.
func (s *Store[T]) finish(w write, err error, okMsg, failMsg string) error {
	stale := !s.current(w)

	if err == nil {
		if stale {
			log.Debug().Str("op", w.op).Str("owner", w.owner).Msg("write confirmed after re-attach")

			return nil
		}

		notify.Successf(s.opts.Notifier, okMsg)

		return nil
	}

	kind := apperr.WriteFailed
	if errors.Is(err, remote.ErrNotFound) {
		kind = apperr.NotFound
	}

	err = apperr.New(kind, w.op, err)

	log.Warn().Err(err).Str("collection", s.coll.Path()).Str("owner", w.owner).Bool("stale", stale).
		Msg("write failed")

	if stale {
		return err
	}

	// only a failing remote marks the mirror degraded
	if kind == apperr.WriteFailed {
		s.mu.Lock()
		if s.gen == w.gen {
			s.lastErr = err
		}
		s.mu.Unlock()
	}

	notify.Errorf(s.opts.Notifier, failMsg)
	s.changed()

	return err
}

// Create validates entity, stamps the current owner on it and stores it remotely. It
// returns the id the remote store assigned. The snapshot is not touched; the entity
// appears once the subscription pushes it.
func (s *Store[T]) Create(ctx context.Context, entity T) (string, error) {
	op := "create " + s.coll.Path()

	w, err := s.begin(op)
	if err != nil {
		s.reject(err)

		return "", err
	}

	if s.opts.Validate != nil {
		if err := s.opts.Validate(entity); err != nil {
			s.reject(err)

			return "", err
		}
	}

	rec := s.opts.Encode(entity)
	rec[remote.FieldOwner] = w.owner

	id, err := s.coll.Create(ctx, rec)
	if err := s.finish(w, err, s.opts.Messages.Created, s.opts.Messages.CreateFailed); err != nil {
		return "", err
	}

	return id, nil
}

// Update applies patch to the current owner's document with the given id. An id the
// owner does not have is NotFound.
func (s *Store[T]) Update(ctx context.Context, id string, patch remote.Record) error {
	w, err := s.begin("update " + s.coll.Path() + "/" + id)
	if err != nil {
		s.reject(err)

		return err
	}

	err = s.coll.Update(ctx, w.owner, id, patch)

	return s.finish(w, err, s.opts.Messages.Updated, s.opts.Messages.UpdateFailed)
}

// Delete removes the current owner's document with the given id. An id the owner does
// not have is NotFound.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	w, err := s.begin("delete " + s.coll.Path() + "/" + id)
	if err != nil {
		s.reject(err)

		return err
	}

	err = s.coll.Delete(ctx, w.owner, id)

	return s.finish(w, err, s.opts.Messages.Deleted, s.opts.Messages.DeleteFailed)
}

// reject reports a write refused before reaching the network.
func (s *Store[T]) reject(err error) {
	switch apperr.KindOf(err) {
	case apperr.Unauthenticated:
		notify.Errorf(s.opts.Notifier, "You must be logged in to make changes.")
	case apperr.Offline:
		notify.Errorf(s.opts.Notifier, "You are offline. Changes cannot be saved right now.")
	case apperr.ValidationFailed:
		// no toast: the form that submitted the entity shows the field message
	}
}
