package controller

import (
	"context"
	"errors"

	"github.com/matt-steen/timeline-tracker/pkg/syncstore"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const savingLabel = "Saving..."

// submit runs write off the event loop. While key is in flight, further submits for it
// are ignored and button, when given, reads savingLabel. done runs back on the event
// loop with the outcome; a failure has already been put on the status line. submit
// reports whether write was started.
func (c *Controller) submit(key string, button *tview.Button, write func(ctx context.Context) error, done func(error)) bool {
	if c.pending[key] || c.tracker.Busy(key) {
		log.Debug().Str("key", key).Msg("submit ignored; already in flight")

		return false
	}

	c.pending[key] = true

	label := ""
	if button != nil {
		label = button.GetLabel()
		button.SetLabel(savingLabel)
	}

	go func() {
		err := write(c.ctx)

		c.post(func() {
			delete(c.pending, key)

			if button != nil {
				button.SetLabel(label)
			}

			if err != nil && !errors.Is(err, syncstore.ErrInFlight) {
				log.Warn().Err(err).Str("key", key).Msg("error saving")
				c.showError(err)
			}

			if done != nil {
				done(err)
			}
		})
	}()

	return true
}

// leaveAfterSave returns a done func that closes the form page once its write succeeded,
// unless the user has already moved on.
func (c *Controller) leaveAfterSave(page string) func(error) {
	return func(err error) {
		if err == nil && c.page == page {
			c.leaveForm()
		}
	}
}
