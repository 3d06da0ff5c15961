// Package mongo is a remote.Backend on MongoDB. Subscriptions are served by change
// streams, so every process sharing the database sees every write; change streams need
// a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/matt-steen/timeline-tracker/pkg/connectivity"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultRetryDelay = 2 * time.Second

// Config holds the connection settings.
type Config struct {
	URI      string
	Database string
	// OnConnectivity, when set, receives a notification from every server heartbeat.
	OnConnectivity func(connectivity.Event)
	// RetryDelay is the pause before a failed change stream is reopened.
	RetryDelay time.Duration
}

// Backend is a connected MongoDB database.
type Backend struct {
	client     *mongo.Client
	db         *mongo.Database
	retryDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	colls map[string]*collection
}

// Connect dials the server and pings it.
func Connect(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo: URI is empty")
	}

	if cfg.Database == "" {
		return nil, errors.New("mongo: database is empty")
	}

	opts := options.Client().ApplyURI(cfg.URI)

	if cfg.OnConnectivity != nil {
		notify := cfg.OnConnectivity
		opts.SetServerMonitor(&event.ServerMonitor{
			ServerHeartbeatSucceeded: func(*event.ServerHeartbeatSucceededEvent) {
				notify(connectivity.BecameOnline)
			},
			ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
				log.Debug().Err(e.Failure).Str("connection", e.ConnectionID).Msg("mongo heartbeat failed")
				notify(connectivity.BecameOffline)
			},
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())

		return nil, fmt.Errorf("mongo: failed to ping server: %w", err)
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	watchCtx, cancel := context.WithCancel(context.Background())

	return &Backend{
		client:     client,
		db:         client.Database(cfg.Database),
		retryDelay: retryDelay,
		ctx:        watchCtx,
		cancel:     cancel,
		colls:      map[string]*collection{},
	}, nil
}

// Close stops the change-stream watchers and disconnects the client.
func (b *Backend) Close() error {
	b.cancel()
	b.wg.Wait()

	if err := b.client.Disconnect(context.Background()); err != nil {
		return fmt.Errorf("mongo: failed to disconnect: %w", err)
	}

	return nil
}

// Collection returns the collection for path. Path separators become dots, so the
// tasks of project p1 live in "projects.p1.tasks".
func (b *Backend) Collection(path string) remote.Collection {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.colls[path]
	if !ok {
		c = &collection{
			backend: b,
			path:    path,
			coll:    b.db.Collection(collectionName(path)),
			hub:     remote.NewHub(),
		}
		b.colls[path] = c
	}

	return c
}

func collectionName(path string) string {
	return strings.ReplaceAll(path, "/", ".")
}

type collection struct {
	backend *Backend
	path    string
	coll    *mongo.Collection
	hub     *remote.Hub
	watch   sync.Once
}

func (c *collection) Path() string {
	return c.path
}

// Subscribe serves ownerID from the collection hub. The first subscription starts the
// change-stream watcher that wakes the hub.
func (c *collection) Subscribe(ctx context.Context, ownerID string) (remote.Subscription, error) {
	if err := c.backend.ctx.Err(); err != nil {
		return nil, fmt.Errorf("mongo: subscribe %s: backend closed", c.path)
	}

	c.watch.Do(func() {
		c.backend.wg.Add(1)

		go func() {
			defer c.backend.wg.Done()
			c.watchChanges(c.backend.ctx)
		}()
	})

	return c.hub.Subscribe(ctx, ownerID, c.load), nil
}

// watchChanges reopens the change stream until ctx is done. Inserts and updates wake the
// owner of the document; deletes carry no document, so they wake everyone, as does a
// broken stream, which lets subscribers see the failure from their next load.
func (c *collection) watchChanges(ctx context.Context) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	for {
		stream, err := c.coll.Watch(ctx, mongo.Pipeline{}, opts)
		if err == nil {
			for stream.Next(ctx) {
				var change changeEvent
				if err := stream.Decode(&change); err != nil {
					log.Warn().Err(err).Str("collection", c.path).Msg("undecodable change event")
					c.hub.NotifyAll()

					continue
				}

				if owner := change.owner(); owner != "" {
					c.hub.Notify(owner)
				} else {
					c.hub.NotifyAll()
				}
			}

			err = stream.Err()
			_ = stream.Close(context.Background())
		}

		if ctx.Err() != nil {
			return
		}

		log.Warn().Err(err).Str("collection", c.path).Msg("change stream interrupted")
		c.hub.NotifyAll()

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backend.retryDelay):
		}
	}
}

type changeEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
}

func (e changeEvent) owner() string {
	if e.FullDocument == nil {
		return ""
	}

	owner, _ := e.FullDocument[remote.FieldOwner].(string)

	return owner
}

func (c *collection) load(ctx context.Context, ownerID string) ([]remote.Record, error) {
	cursor, err := c.coll.Find(ctx, bson.M{remote.FieldOwner: ownerID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: find %s: %w", c.path, err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: read %s: %w", c.path, err)
	}

	records := make([]remote.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromBSON(doc))
	}

	return records, nil
}

// Create inserts rec with an ObjectID-derived id, so that ids sort in insertion order.
func (c *collection) Create(ctx context.Context, rec remote.Record) (string, error) {
	id := primitive.NewObjectID().Hex()

	doc := toBSON(rec)
	doc["_id"] = id

	if _, ok := doc[remote.FieldCreatedAt]; !ok {
		doc[remote.FieldCreatedAt] = time.Now()
	}

	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("mongo: insert into %s: %w", c.path, err)
	}

	return id, nil
}

func (c *collection) Update(ctx context.Context, ownerID, id string, patch remote.Record) error {
	set := toBSON(patch)
	delete(set, remote.FieldOwner)

	filter := bson.M{"_id": id, remote.FieldOwner: ownerID}

	if len(set) == 0 {
		n, err := c.coll.CountDocuments(ctx, filter)
		if err != nil {
			return fmt.Errorf("mongo: update %s/%s: %w", c.path, id, err)
		}

		if n == 0 {
			return fmt.Errorf("mongo: update %s/%s: %w", c.path, id, remote.ErrNotFound)
		}

		return nil
	}

	res, err := c.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("mongo: update %s/%s: %w", c.path, id, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("mongo: update %s/%s: %w", c.path, id, remote.ErrNotFound)
	}

	return nil
}

func (c *collection) Delete(ctx context.Context, ownerID, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id, remote.FieldOwner: ownerID})
	if err != nil {
		return fmt.Errorf("mongo: delete %s/%s: %w", c.path, id, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("mongo: delete %s/%s: %w", c.path, id, remote.ErrNotFound)
	}

	return nil
}

// toBSON copies rec into a document, dropping the id (stored as _id).
func toBSON(rec remote.Record) bson.M {
	doc := make(bson.M, len(rec))

	for k, v := range rec {
		if k == remote.FieldID {
			continue
		}

		doc[k] = v
	}

	return doc
}

// fromBSON turns a stored document into a record: _id becomes id and BSON dates become
// time.Time.
func fromBSON(doc bson.M) remote.Record {
	rec := make(remote.Record, len(doc))

	for k, v := range doc {
		if k == "_id" {
			switch id := v.(type) {
			case string:
				rec[remote.FieldID] = id
			case primitive.ObjectID:
				rec[remote.FieldID] = id.Hex()
			default:
				rec[remote.FieldID] = fmt.Sprint(id)
			}

			continue
		}

		rec[k] = normalize(v)
	}

	return rec
}

func normalize(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case primitive.M:
		return map[string]any(fromBSON(t))
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}

		return out
	default:
		return v
	}
}
