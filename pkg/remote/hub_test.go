package remote_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, sub remote.Subscription) remote.Event {
	t.Helper()

	select {
	case event, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")

		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
	}

	return remote.Event{}
}

func quiet(t *testing.T, sub remote.Subscription) {
	t.Helper()

	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected push: %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPushesOnSubscribeAndNotify(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	var loads atomic.Int32

	hub := remote.NewHub()
	sub := hub.Subscribe(context.Background(), "alice", func(_ context.Context, owner string) ([]remote.Record, error) {
		n := loads.Add(1)

		return []remote.Record{{"id": owner, "n": n}}, nil
	})

	defer sub.Close()

	assert.Equal(int32(1), next(t, sub).Records[0]["n"])

	hub.Notify("bob")
	quiet(t, sub)

	hub.Notify("alice")
	assert.Equal(int32(2), next(t, sub).Records[0]["n"])

	hub.NotifyAll()
	assert.Equal(int32(3), next(t, sub).Records[0]["n"])
}

func TestHubCoalescesWakeups(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	hub := remote.NewHub()
	sub := hub.Subscribe(context.Background(), "alice", func(context.Context, string) ([]remote.Record, error) {
		return nil, nil
	})

	defer sub.Close()

	next(t, sub)

	for i := 0; i < 10; i++ {
		hub.Notify("alice")
	}

	// the loop is blocked delivering at most one reload, and one more wake-up is queued
	next(t, sub)

	select {
	case <-sub.Events():
	case <-time.After(50 * time.Millisecond):
	}

	quiet(t, sub)
	assert.Equal(1, hub.Len())
}

func TestHubDeliversLoadErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	hub := remote.NewHub()
	sub := hub.Subscribe(context.Background(), "alice", func(context.Context, string) ([]remote.Record, error) {
		return nil, boom
	})

	defer sub.Close()

	assert.ErrorIs(t, next(t, sub).Err, boom)
}

func TestHubClose(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	hub := remote.NewHub()
	sub := hub.Subscribe(context.Background(), "alice", func(context.Context, string) ([]remote.Record, error) {
		return nil, nil
	})

	assert.Equal(1, hub.Len())
	assert.Nil(sub.Close())
	assert.Nil(sub.Close())
	assert.Equal(0, hub.Len())

	hub.Notify("alice")

	for range sub.Events() {
	}
}

func TestBodyCodec(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	at := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	body, err := remote.MarshalBody(remote.Record{"id": "x", "name": "n", "createdAt": at})
	require.Nil(t, err)
	assert.NotContains(body, `"id"`)

	rec, err := remote.UnmarshalBody("x", body)
	require.Nil(t, err)
	assert.Equal("x", rec.ID())
	assert.Equal("2024-01-01T00:00:00Z", rec["createdAt"])

	_, err = remote.UnmarshalBody("y", "{")
	assert.ErrorContains(err, "error decoding document y")
}

func TestRecordMergeKeepsIdentity(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	rec := remote.Record{"id": "a", "userId": "alice", "name": "old"}
	rec.Merge(remote.Record{"id": "b", "userId": "mallory", "name": "new"})

	assert.Equal("a", rec.ID())
	assert.Equal("alice", rec.Owner())
	assert.Equal("new", rec["name"])
}
