// Package sqlite is a remote.Backend stored in a single sqlite file. Documents are kept
// as JSON bodies in one table; live subscriptions are served from an in-process hub, so
// pushes only reach subscribers in the same process as the writer.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/rs/zerolog/log"

	// use the sqlite db driver.
	_ "github.com/mattn/go-sqlite3"
)

//go:embed base.sql
var baseSQL string

// Database manages the db connection and the hubs of its collections.
type Database struct {
	conn *sql.DB
	now  func() time.Time

	mu   sync.Mutex
	hubs map[string]*remote.Hub
}

// NewDatabase connects to the sqlite database at the given filename and initializes the
// structure if not present.
func NewDatabase(ctx context.Context, filename string) (*Database, error) {
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", filename))
	if err != nil {
		return nil, fmt.Errorf("error connecting to sqlite db at %s: %w", filename, err)
	}

	conn.SetMaxOpenConns(1)

	database := Database{
		conn: conn,
		now:  time.Now,
		hubs: map[string]*remote.Hub{},
	}

	if err := database.initialize(ctx); err != nil {
		conn.Close()

		return nil, err
	}

	log.Debug().Str("file", filename).Msg("sqlite database ready")

	return &database, nil
}

func (d *Database) initialize(ctx context.Context) error {
	// run idempotent setup sql to create empty tables if they don't exist
	if _, err := d.conn.ExecContext(ctx, baseSQL); err != nil {
		return fmt.Errorf("error running base sql: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("error closing sqlite db: %w", err)
	}

	return nil
}

// Collection returns the collection stored under path.
func (d *Database) Collection(path string) remote.Collection {
	d.mu.Lock()
	defer d.mu.Unlock()

	hub, ok := d.hubs[path]
	if !ok {
		hub = remote.NewHub()
		d.hubs[path] = hub
	}

	return &collection{db: d, path: path, hub: hub}
}

type collection struct {
	db   *Database
	path string
	hub  *remote.Hub
}

func (c *collection) Path() string {
	return c.path
}

func (c *collection) Subscribe(ctx context.Context, ownerID string) (remote.Subscription, error) {
	return c.hub.Subscribe(ctx, ownerID, c.load), nil
}

func (c *collection) load(ctx context.Context, ownerID string) ([]remote.Record, error) {
	rows, err := c.db.conn.QueryContext(ctx,
		`SELECT id, body FROM document
		  WHERE collection = $1 AND owner_id = $2
		  ORDER BY seq`,
		c.path, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", c.path, err)
	}
	defer rows.Close()

	records := []remote.Record{}

	for rows.Next() {
		var id, body string

		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", c.path, err)
		}

		rec, err := remote.UnmarshalBody(id, body)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", c.path, err)
	}

	return records, nil
}

// Create inserts rec under a new uuid. A missing createdAt is filled in.
func (c *collection) Create(ctx context.Context, rec remote.Record) (string, error) {
	now := c.db.now()
	id := uuid.NewString()

	record := rec.Clone()
	if _, ok := record[remote.FieldCreatedAt]; !ok {
		record[remote.FieldCreatedAt] = now
	}

	body, err := remote.MarshalBody(record)
	if err != nil {
		return "", err
	}

	_, err = c.db.conn.ExecContext(ctx,
		`INSERT INTO document (collection, id, owner_id, body, created_datetime, updated_datetime)
		     VALUES ($1, $2, $3, $4, $5, $6)`,
		c.path, id, record.Owner(), body, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("error adding document to %s: %w", c.path, err)
	}

	c.hub.Notify(record.Owner())

	return id, nil
}

// Update merges patch into the stored body inside a transaction.
func (c *collection) Update(ctx context.Context, ownerID, id string, patch remote.Record) error {
	tx, err := c.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting update of %s: %w", id, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Warn().Err(err).Str("id", id).Msg("error rolling back update")
		}
	}()

	var body string

	err = tx.QueryRowContext(ctx,
		`SELECT body FROM document WHERE collection = $1 AND id = $2 AND owner_id = $3`,
		c.path, id, ownerID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("error updating document %s: %w", id, remote.ErrNotFound)
	}

	if err != nil {
		return fmt.Errorf("error reading document %s: %w", id, err)
	}

	rec, err := remote.UnmarshalBody(id, body)
	if err != nil {
		return err
	}

	rec.Merge(patch)

	if body, err = remote.MarshalBody(rec); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE document SET body = $1, updated_datetime = $2
		  WHERE collection = $3 AND id = $4 AND owner_id = $5`,
		body, c.db.now(), c.path, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("error updating document %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing update of %s: %w", id, err)
	}

	c.hub.Notify(ownerID)

	return nil
}

// Delete removes a single document. Subcollections are not touched.
func (c *collection) Delete(ctx context.Context, ownerID, id string) error {
	res, err := c.db.conn.ExecContext(ctx,
		`DELETE FROM document WHERE collection = $1 AND id = $2 AND owner_id = $3`,
		c.path, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("error deleting document %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error deleting document %s: %w", id, err)
	}

	if n == 0 {
		return fmt.Errorf("error deleting document %s: %w", id, remote.ErrNotFound)
	}

	c.hub.Notify(ownerID)

	return nil
}
