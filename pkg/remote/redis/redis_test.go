package redis

import (
	"context"
	"testing"

	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	assert.Equal("tt:projects:docs:alice", docsKey(remote.Projects, "alice"))
	assert.Equal("tt:projects/p1/tasks:docs:alice", docsKey(remote.TasksPath("p1"), "alice"))
	assert.Equal("tt:colorLegends:owners", ownersKey(remote.ColorLegends))
	assert.Equal("tt:projects:changes", changesChannel(remote.Projects))
}

func TestNewIDsSortInCreationOrder(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	records := []remote.Record{}

	for i := 0; i < 50; i++ {
		id, err := newID()
		require.Nil(t, err)

		records = append(records, remote.Record{"id": id, "n": i})
	}

	shuffled := []remote.Record{}
	for i := len(records) - 1; i >= 0; i-- {
		shuffled = append(shuffled, records[i])
	}

	remote.SortByID(shuffled)

	for i, rec := range shuffled {
		assert.Equal(i, rec["n"])
	}
}

func TestConnectRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), Config{})
	assert.EqualError(t, err, "redis: address is empty")
}
