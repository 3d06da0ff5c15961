package connectivity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/connectivity"
	"github.com/stretchr/testify/assert"
)

func TestMonitorInitialState(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	assert.True(connectivity.NewMonitor(true).Online())
	assert.False(connectivity.NewMonitor(false).Online())
}

func TestMonitorCheck(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	m := connectivity.NewMonitor(true)
	assert.Nil(m.Check("sign in"))

	m.Handle(connectivity.BecameOffline)

	err := m.Check("sign in")
	assert.True(errors.Is(err, apperr.Offline))
	assert.Equal("sign in: offline", err.Error())

	m.Handle(connectivity.BecameOnline)
	assert.Nil(m.Check("sign in"))
}

func TestMonitorListeners(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	m := connectivity.NewMonitor(true)

	var seen []bool
	remove := m.OnChange(func(online bool) { seen = append(seen, online) })

	m.Handle(connectivity.BecameOffline)
	m.Handle(connectivity.BecameOffline)
	m.Handle(connectivity.BecameOnline)

	assert.Equal([]bool{false, true}, seen)

	remove()
	m.Handle(connectivity.BecameOffline)
	assert.Equal([]bool{false, true}, seen)
}

func TestMonitorRun(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	m := connectivity.NewMonitor(true)
	events := make(chan connectivity.Event, 2)
	events <- connectivity.BecameOffline
	events <- connectivity.BecameOnline
	close(events)

	changes := 0
	m.OnChange(func(bool) { changes++ })

	m.Run(context.Background(), events)

	assert.Equal(2, changes)
	assert.True(m.Online())
}
