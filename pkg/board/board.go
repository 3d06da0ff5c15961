// Package board moves tasks between the status columns of a project board.
//
// Task status is a three-state machine with no forbidden edges. A move is a two-step
// gesture: BeginDrag tags a task as carried, and Drop commits the carried task to the
// target column with a single status update. Nothing is changed locally; the new column
// shows up when the task store receives the next push.
package board

import (
	"context"
	"sync"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/rs/zerolog/log"
)

// Updater is the write side of a task store.
type Updater interface {
	Update(ctx context.Context, id string, patch remote.Record) error
}

// Column is one board column.
type Column struct {
	Status model.TaskStatus
	Title  string
}

// Columns returns the board columns in display order. The order is for display only.
func Columns() []Column {
	return []Column{
		{Status: model.TaskTodo, Title: "To Do"},
		{Status: model.TaskInProgress, Title: "In Progress"},
		{Status: model.TaskDone, Title: "Done"},
	}
}

// Allowed reports whether a task may move from one status to another. Every move between
// valid statuses is allowed, including backward, skipping and same-column moves.
func Allowed(from, to model.TaskStatus) bool {
	return from.Valid() && to.Valid()
}

// Lane is a column with the tasks currently in it.
type Lane struct {
	Column
	Tasks []model.Task
}

// Lanes splits tasks into the board columns, keeping their relative order. Tasks with an
// unknown status are left out.
func Lanes(tasks []model.Task) []Lane {
	columns := Columns()
	lanes := make([]Lane, len(columns))
	index := map[model.TaskStatus]int{}

	for i, column := range columns {
		lanes[i] = Lane{Column: column, Tasks: []model.Task{}}
		index[column.Status] = i
	}

	for _, task := range tasks {
		i, ok := index[task.Status]
		if !ok {
			log.Warn().Str("id", task.ID).Str("status", string(task.Status)).Msg("task with unknown status")

			continue
		}

		lanes[i].Tasks = append(lanes[i].Tasks, task)
	}

	return lanes
}

// Board tracks the carried payload of a project board.
type Board struct {
	tasks Updater

	mu      sync.Mutex
	carried string
}

// New returns a board that writes through tasks.
func New(tasks Updater) *Board {
	return &Board{tasks: tasks}
}

// BeginDrag tags taskID as the carried payload, replacing any earlier one.
func (b *Board) BeginDrag(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.carried = taskID
}

// Carried returns the carried task id, if any.
func (b *Board) Carried() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.carried, b.carried != ""
}

// CancelDrag drops the payload without writing anything.
func (b *Board) CancelDrag() {
	b.BeginDrag("")
}

// Drop commits the carried task to the column for status and clears the payload. A drop
// with nothing carried does nothing. Dropping a task onto the column it is already in
// still issues the update.
func (b *Board) Drop(ctx context.Context, status model.TaskStatus) error {
	b.mu.Lock()
	taskID := b.carried
	b.carried = ""
	b.mu.Unlock()

	if taskID == "" {
		return nil
	}

	return b.Move(ctx, taskID, status)
}

// Move sets the status of taskID with exactly one update.
func (b *Board) Move(ctx context.Context, taskID string, status model.TaskStatus) error {
	if !status.Valid() {
		return apperr.Errorf(apperr.ValidationFailed, "move task", "unknown status %q", status)
	}

	log.Debug().Str("id", taskID).Str("status", string(status)).Msg("moving task")

	return b.tasks.Update(ctx, taskID, model.StatusPatch(status))
}
