// Package notify carries short user-facing messages (toasts) from the core to whatever
// presentation layer is listening. Sending never blocks the caller.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Level is the tone of a notification.
type Level int

// These constants are the notification levels.
const (
	Success Level = iota
	Error
)

func (l Level) String() string {
	if l == Error {
		return "error"
	}

	return "success"
}

// Notification is one toast.
type Notification struct {
	Level   Level
	Message string
	At      time.Time
}

// Notifier accepts notifications.
type Notifier interface {
	Notify(level Level, message string)
}

// Successf is shorthand for a success notification.
func Successf(n Notifier, message string) {
	n.Notify(Success, message)
}

// Errorf is shorthand for an error notification.
func Errorf(n Notifier, message string) {
	n.Notify(Error, message)
}

// Queue buffers notifications for a consumer. When the buffer is full the oldest
// notification is dropped.
type Queue struct {
	mu sync.Mutex
	ch chan Notification
}

// NewQueue returns a queue that holds up to size notifications.
func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}

	return &Queue{ch: make(chan Notification, size)}
}

// Notify logs the notification and enqueues it.
func (q *Queue) Notify(level Level, message string) {
	n := Notification{Level: level, Message: message, At: time.Now()}

	log.Debug().Str("level", level.String()).Msg(message)

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case q.ch <- n:
			return
		default:
		}

		select {
		case dropped := <-q.ch:
			log.Debug().Str("message", dropped.Message).Msg("notification dropped")
		default:
		}
	}
}

// C returns the channel notifications are delivered on.
func (q *Queue) C() <-chan Notification {
	return q.ch
}

// Discard is a Notifier that only logs.
type Discard struct{}

// Notify logs the message at debug level.
func (Discard) Notify(level Level, message string) {
	log.Debug().Str("level", level.String()).Msg(message)
}
