// Package remote defines the document-store port that the sync engine mirrors.
//
// A Collection is scoped by owner: Subscribe only ever delivers documents whose owner
// field matches, and every Event carries the complete current set, never a delta.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Document field names shared by every backend.
const (
	FieldID        = "id"
	FieldOwner     = "userId"
	FieldCreatedAt = "createdAt"
)

// Collection paths.
const (
	Projects     = "projects"
	ColorLegends = "colorLegends"
)

// ErrNotFound is returned by Update and Delete when no document of the given owner has
// the given id.
var ErrNotFound = errors.New("document not found")

// TasksPath returns the path of the task subcollection of a project.
func TasksPath(projectID string) string {
	return fmt.Sprintf("%s/%s/tasks", Projects, projectID)
}

// Record is an untyped document. Date fields hold time.Time once a backend has read
// them, or an RFC 3339 string when the backend stores JSON.
type Record map[string]any

// ID returns the document id, or "" if absent.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)

	return id
}

// Owner returns the owner id, or "" if absent.
func (r Record) Owner() string {
	owner, _ := r[FieldOwner].(string)

	return owner
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}

// Merge copies the fields of patch onto r, ignoring any attempt to change the id or owner.
func (r Record) Merge(patch Record) {
	for k, v := range patch {
		if k == FieldID || k == FieldOwner {
			continue
		}

		r[k] = v
	}
}

// Event is one push from a subscription: either the full current set or an error.
type Event struct {
	Records []Record
	Err     error
}

// Subscription is a live query. Events are delivered in the order the backend observed
// them; the channel is closed after Close returns.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Collection is one owner-scoped document collection.
type Collection interface {
	Path() string
	Subscribe(ctx context.Context, ownerID string) (Subscription, error)
	// Create stores rec and returns the id assigned by the backend.
	Create(ctx context.Context, rec Record) (string, error)
	// Update and Delete only touch a document owned by ownerID; any other id is
	// ErrNotFound.
	Update(ctx context.Context, ownerID, id string, patch Record) error
	Delete(ctx context.Context, ownerID, id string) error
}

// Backend hands out collections by path.
type Backend interface {
	Collection(path string) Collection
	Close() error
}

// SortByID orders records by id. Backends without a natural order use it so that
// repeated reads of the same set produce the same sequence.
func SortByID(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID() < records[j].ID()
	})
}
