// Package redis is a remote.Backend on Redis.
//
// Each owner's documents in a collection live in one hash keyed by document id, holding
// JSON bodies. A second hash maps every id to its owner. Writes publish the owner id on
// the collection's change channel; every process subscribed to that channel reloads the
// owner's hash and pushes it.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "tt"

// Config holds the connection settings.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Backend is a connected Redis database.
type Backend struct {
	client *redis.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	colls map[string]*collection
}

// Connect dials the server and pings it.
func Connect(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: address is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()

		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return newBackend(client), nil
}

func newBackend(client *redis.Client) *Backend {
	ctx, cancel := context.WithCancel(context.Background())

	return &Backend{
		client: client,
		ctx:    ctx,
		cancel: cancel,
		colls:  map[string]*collection{},
	}
}

// Close stops the change listeners and closes the client.
func (b *Backend) Close() error {
	b.cancel()
	b.wg.Wait()

	if err := b.client.Close(); err != nil {
		return fmt.Errorf("redis: failed to close connection: %w", err)
	}

	return nil
}

// Collection returns the collection stored under path.
func (b *Backend) Collection(path string) remote.Collection {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.colls[path]
	if !ok {
		c = &collection{backend: b, path: path, hub: remote.NewHub()}
		b.colls[path] = c
	}

	return c
}

func docsKey(path, ownerID string) string {
	return fmt.Sprintf("%s:%s:docs:%s", keyPrefix, path, ownerID)
}

func ownersKey(path string) string {
	return fmt.Sprintf("%s:%s:owners", keyPrefix, path)
}

func changesChannel(path string) string {
	return fmt.Sprintf("%s:%s:changes", keyPrefix, path)
}

// newID returns a time-ordered id, so sorting by id gives insertion order.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("redis: failed to generate id: %w", err)
	}

	return id.String(), nil
}

type collection struct {
	backend *Backend
	path    string
	hub     *remote.Hub

	mu        sync.Mutex
	listening bool
}

func (c *collection) Path() string {
	return c.path
}

func (c *collection) client() *redis.Client {
	return c.backend.client
}

// Subscribe serves ownerID from the collection hub. The first subscription starts the
// listener on the change channel.
func (c *collection) Subscribe(ctx context.Context, ownerID string) (remote.Subscription, error) {
	if err := c.backend.ctx.Err(); err != nil {
		return nil, fmt.Errorf("redis: subscribe %s: backend closed", c.path)
	}

	if err := c.startListening(ctx); err != nil {
		return nil, err
	}

	return c.hub.Subscribe(ctx, ownerID, c.load), nil
}

func (c *collection) startListening(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listening {
		return nil
	}

	pubsub := c.client().Subscribe(ctx, changesChannel(c.path))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()

		return fmt.Errorf("redis: subscribe %s: %w", c.path, err)
	}

	c.listening = true
	c.backend.wg.Add(1)

	go func() {
		defer c.backend.wg.Done()
		c.listenChanges(c.backend.ctx, pubsub)
	}()

	return nil
}

// listenChanges wakes the owner named in each change message. go-redis resubscribes
// after a reconnect; messages published while disconnected are lost, so the owners are
// not woken for them.
func (c *collection) listenChanges(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()

	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			c.hub.Notify(msg.Payload)
		}
	}
}

func (c *collection) publish(ctx context.Context, ownerID string) {
	if err := c.client().Publish(ctx, changesChannel(c.path), ownerID).Err(); err != nil {
		log.Warn().Err(err).Str("collection", c.path).Msg("error publishing change")
	}
}

func (c *collection) load(ctx context.Context, ownerID string) ([]remote.Record, error) {
	bodies, err := c.client().HGetAll(ctx, docsKey(c.path, ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load %s: %w", c.path, err)
	}

	records := make([]remote.Record, 0, len(bodies))

	for id, body := range bodies {
		rec, err := remote.UnmarshalBody(id, body)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	remote.SortByID(records)

	return records, nil
}

func (c *collection) Create(ctx context.Context, rec remote.Record) (string, error) {
	id, err := newID()
	if err != nil {
		return "", err
	}

	record := rec.Clone()
	if _, ok := record[remote.FieldCreatedAt]; !ok {
		record[remote.FieldCreatedAt] = time.Now()
	}

	body, err := remote.MarshalBody(record)
	if err != nil {
		return "", err
	}

	owner := record.Owner()

	_, err = c.client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, docsKey(c.path, owner), id, body)
		pipe.HSet(ctx, ownersKey(c.path), id, owner)

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("redis: insert into %s: %w", c.path, err)
	}

	c.publish(ctx, owner)

	return id, nil
}

// checkOwner fails with remote.ErrNotFound unless id exists and belongs to ownerID.
func (c *collection) checkOwner(ctx context.Context, op, ownerID, id string) error {
	owner, err := c.client().HGet(ctx, ownersKey(c.path), id).Result()
	if errors.Is(err, redis.Nil) || (err == nil && owner != ownerID) {
		return fmt.Errorf("redis: %s %s/%s: %w", op, c.path, id, remote.ErrNotFound)
	}

	if err != nil {
		return fmt.Errorf("redis: %s %s/%s: %w", op, c.path, id, err)
	}

	return nil
}

// Update merges patch into the stored body. The read and write run under WATCH, so a
// concurrent change to the same owner's hash makes the update fail instead of being lost.
func (c *collection) Update(ctx context.Context, ownerID, id string, patch remote.Record) error {
	if err := c.checkOwner(ctx, "update", ownerID, id); err != nil {
		return err
	}

	key := docsKey(c.path, ownerID)

	err := c.client().Watch(ctx, func(tx *redis.Tx) error {
		body, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, redis.Nil) {
			return remote.ErrNotFound
		}

		if err != nil {
			return err
		}

		rec, err := remote.UnmarshalBody(id, body)
		if err != nil {
			return err
		}

		rec.Merge(patch)

		if body, err = remote.MarshalBody(rec); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, body)

			return nil
		})

		return err
	}, key)
	if err != nil {
		return fmt.Errorf("redis: update %s/%s: %w", c.path, id, err)
	}

	c.publish(ctx, ownerID)

	return nil
}

func (c *collection) Delete(ctx context.Context, ownerID, id string) error {
	if err := c.checkOwner(ctx, "delete", ownerID, id); err != nil {
		return err
	}

	_, err := c.client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, docsKey(c.path, ownerID), id)
		pipe.HDel(ctx, ownersKey(c.path), id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete %s/%s: %w", c.path, id, err)
	}

	c.publish(ctx, ownerID)

	return nil
}
