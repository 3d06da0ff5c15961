package syncstore

import (
	"errors"
	"sync"
)

// ErrInFlight is returned when the same logical action is submitted again before the
// previous attempt resolved.
var ErrInFlight = errors.New("action already in progress")

// InFlight tracks logical actions that are waiting on the remote store, so that a
// submit cannot be dispatched twice.
type InFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// Begin marks key as in flight. It returns ErrInFlight if key already is; otherwise
// the returned function must be called once the action resolves.
func (f *InFlight) Begin(key string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.keys == nil {
		f.keys = map[string]struct{}{}
	}

	if _, busy := f.keys[key]; busy {
		return nil, ErrInFlight
	}

	f.keys[key] = struct{}{}

	var once sync.Once

	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.keys, key)
			f.mu.Unlock()
		})
	}, nil
}

// Busy reports whether key is in flight. Presentation code uses it to disable a submit
// button.
func (f *InFlight) Busy(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, busy := f.keys[key]

	return busy
}
