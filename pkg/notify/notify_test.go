package notify_test

import (
	"testing"

	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/stretchr/testify/assert"
)

func TestQueueDelivers(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	q := notify.NewQueue(4)
	notify.Successf(q, "Project created")
	notify.Errorf(q, "Failed to create project")

	first := <-q.C()
	assert.Equal(notify.Success, first.Level)
	assert.Equal("Project created", first.Message)

	second := <-q.C()
	assert.Equal(notify.Error, second.Level)
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	q := notify.NewQueue(2)
	q.Notify(notify.Success, "one")
	q.Notify(notify.Success, "two")
	q.Notify(notify.Success, "three")

	assert.Equal("two", (<-q.C()).Message)
	assert.Equal("three", (<-q.C()).Message)
	assert.Len(q.C(), 0)
}
