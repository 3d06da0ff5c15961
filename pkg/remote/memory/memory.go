// Package memory is an in-process remote.Backend. Documents live only as long as the
// Backend does; it backs tests and the memory backend of the CLI.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
)

// Backend holds every collection in memory.
type Backend struct {
	mu          sync.Mutex
	collections map[string]*Collection
	now         func() time.Time
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{
		collections: map[string]*Collection{},
		now:         time.Now,
	}
}

// Collection returns the collection at path, creating it on first use.
func (b *Backend) Collection(path string) remote.Collection {
	return b.collection(path)
}

// Memory returns the concrete collection at path, for tests that need its hooks.
func (b *Backend) Memory(path string) *Collection {
	return b.collection(path)
}

func (b *Backend) collection(path string) *Collection {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.collections[path]
	if !ok {
		c = &Collection{
			path: path,
			docs: map[string]*doc{},
			hub:  remote.NewHub(),
			now:  b.now,
		}
		b.collections[path] = c
	}

	return c
}

// Close is a no-op; it exists to satisfy remote.Backend.
func (b *Backend) Close() error {
	return nil
}

type doc struct {
	seq    int
	record remote.Record
}

// Collection is one in-memory collection.
type Collection struct {
	mu   sync.Mutex
	path string
	seq  int
	docs map[string]*doc
	hub  *remote.Hub
	now  func() time.Time

	failWrites  error
	beforeWrite func(ctx context.Context, op, id string)
}

// Path returns the collection path.
func (c *Collection) Path() string {
	return c.path
}

// Subscribe pushes the owner's documents in insertion order now and after every write.
func (c *Collection) Subscribe(ctx context.Context, ownerID string) (remote.Subscription, error) {
	return c.hub.Subscribe(ctx, ownerID, c.load), nil
}

// Subscribers returns the number of open subscriptions.
func (c *Collection) Subscribers() int {
	return c.hub.Len()
}

func (c *Collection) load(_ context.Context, ownerID string) ([]remote.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	docs := make([]*doc, 0, len(c.docs))

	for _, d := range c.docs {
		if d.record.Owner() == ownerID {
			docs = append(docs, d)
		}
	}

	sortBySeq(docs)

	records := make([]remote.Record, 0, len(docs))
	for _, d := range docs {
		records = append(records, d.record.Clone())
	}

	return records, nil
}

func (c *Collection) before(ctx context.Context, op, id string) error {
	c.mu.Lock()
	hook, failure := c.beforeWrite, c.failWrites
	c.mu.Unlock()

	if hook != nil {
		hook(ctx, op, id)
	}

	if failure != nil {
		return failure
	}

	return ctx.Err()
}

// SetFailWrites makes every subsequent write fail with err; nil restores normal writes.
func (c *Collection) SetFailWrites(err error) {
	c.mu.Lock()
	c.failWrites = err
	c.mu.Unlock()
}

// SetBeforeWrite installs a hook that runs before every write is applied. Tests use
// it to hold a write in flight.
func (c *Collection) SetBeforeWrite(hook func(ctx context.Context, op, id string)) {
	c.mu.Lock()
	c.beforeWrite = hook
	c.mu.Unlock()
}

// Create stores rec under a new uuid. A missing createdAt is filled in.
func (c *Collection) Create(ctx context.Context, rec remote.Record) (string, error) {
	if err := c.before(ctx, "create", ""); err != nil {
		return "", fmt.Errorf("error adding document to %s: %w", c.path, err)
	}

	record := rec.Clone()
	id := uuid.NewString()
	record[remote.FieldID] = id

	if _, ok := record[remote.FieldCreatedAt]; !ok {
		record[remote.FieldCreatedAt] = c.now()
	}

	c.mu.Lock()
	c.seq++
	c.docs[id] = &doc{seq: c.seq, record: record}
	c.mu.Unlock()

	c.hub.Notify(record.Owner())

	return id, nil
}

// Update merges patch into the owner's document with the given id.
func (c *Collection) Update(ctx context.Context, ownerID, id string, patch remote.Record) error {
	if err := c.before(ctx, "update", id); err != nil {
		return fmt.Errorf("error updating document %s: %w", id, err)
	}

	c.mu.Lock()

	d, ok := c.docs[id]
	if !ok || d.record.Owner() != ownerID {
		c.mu.Unlock()

		return fmt.Errorf("error updating document %s: %w", id, remote.ErrNotFound)
	}

	record := d.record.Clone()
	record.Merge(patch)
	d.record = record
	c.mu.Unlock()

	c.hub.Notify(record.Owner())

	return nil
}

// Delete removes the owner's document with the given id.
func (c *Collection) Delete(ctx context.Context, ownerID, id string) error {
	if err := c.before(ctx, "delete", id); err != nil {
		return fmt.Errorf("error deleting document %s: %w", id, err)
	}

	c.mu.Lock()

	d, ok := c.docs[id]
	if !ok || d.record.Owner() != ownerID {
		c.mu.Unlock()

		return fmt.Errorf("error deleting document %s: %w", id, remote.ErrNotFound)
	}

	delete(c.docs, id)
	c.mu.Unlock()

	c.hub.Notify(d.record.Owner())

	return nil
}

// Put stores rec as-is, bypassing id assignment. Tests use it to seed malformed or
// foreign-owned documents.
func (c *Collection) Put(rec remote.Record) {
	record := rec.Clone()

	c.mu.Lock()
	c.seq++
	c.docs[record.ID()] = &doc{seq: c.seq, record: record}
	c.mu.Unlock()

	c.hub.Notify(record.Owner())
}

func sortBySeq(docs []*doc) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })
}
