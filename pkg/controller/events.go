package controller

import (
	"context"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/timeline-tracker/pkg/board"
	"github.com/matt-steen/timeline-tracker/pkg/connectivity"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/rs/zerolog/log"
)

type action = func(*tcell.EventKey) *tcell.EventKey

func (c *Controller) initEvents() {
	c.events = map[string]map[string]KeyEvent{
		pageTimeline:    {},
		pageBoard:       {},
		pageProjectForm: {},
		pageTaskForm:    {},
		pageColorForm:   {},
	}

	c.initTimelineEvents(c.events[pageTimeline])
	c.initBoardEvents(c.events[pageBoard])

	for _, page := range []string{pageProjectForm, pageTaskForm, pageColorForm} {
		c.initFormEvents(c.events[page])
	}

	c.initExitEvent(c.events[pageTimeline])
	c.initExitEvent(c.events[pageBoard])
	c.initOfflineEvent(c.events[pageTimeline])
	c.initOfflineEvent(c.events[pageBoard])
}

func (c *Controller) getExitAction() action {
	return func(key *tcell.EventKey) *tcell.EventKey {
		log.Info().Msg("terminating application")

		c.app.Stop()

		return nil
	}
}

func (c *Controller) initExitEvent(events map[string]KeyEvent) {
	events["q"] = KeyEvent{
		Description: "Exit",
		Action:      c.getExitAction(),
	}
}

// initOfflineEvent lets the user take the client offline by hand, the way a dropped
// network would.
func (c *Controller) initOfflineEvent(events map[string]KeyEvent) {
	events["o"] = KeyEvent{
		Description: "Toggle Offline",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			if c.monitor.Online() {
				c.monitor.Handle(connectivity.BecameOffline)
			} else {
				c.monitor.Handle(connectivity.BecameOnline)
			}

			return nil
		},
	}
}

func (c *Controller) initTimelineEvents(events map[string]KeyEvent) {
	events["["] = KeyEvent{
		Description: "Show Previous Month",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.window = c.window.Prev()
			c.refreshTimeline()

			return nil
		},
	}

	events["]"] = KeyEvent{
		Description: "Show Next Month",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.window = c.window.Next()
			c.refreshTimeline()

			return nil
		},
	}

	events["t"] = KeyEvent{
		Description: "Show Today",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.resetWindow()

			return nil
		},
	}

	events["Enter"] = KeyEvent{
		Description: "Show Board",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			if err := c.openBoard(c.selectedProject); err != nil {
				c.showError(err)
			}

			return nil
		},
	}

	events["n"] = KeyEvent{
		Description: "New Project",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.switchToProjectForm("")

			return nil
		},
	}

	events["e"] = KeyEvent{
		Description: "Edit Project",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			if c.selectedProject != "" {
				c.switchToProjectForm(c.selectedProject)
			}

			return nil
		},
	}

	events["x"] = KeyEvent{
		Description: "Delete Project",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			id := c.selectedProject
			if id == "" {
				return nil
			}

			c.submit("delete project "+id, nil, func(ctx context.Context) error {
				return c.tracker.DeleteProject(ctx, id)
			}, nil)

			return nil
		},
	}

	events["l"] = KeyEvent{
		Description: "Add Legend Color",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.switchToColorForm()

			return nil
		},
	}

	c.initProjectStatusEvents(events)
}

func (c *Controller) getProjectStatusAction(status model.ProjectStatus) action {
	return func(key *tcell.EventKey) *tcell.EventKey {
		id := c.selectedProject
		if id == "" {
			return nil
		}

		c.submit("project status "+id, nil, func(ctx context.Context) error {
			return c.tracker.SetProjectStatus(ctx, id, status)
		}, nil)

		return nil
	}
}

func (c *Controller) initProjectStatusEvents(events map[string]KeyEvent) {
	events["P"] = KeyEvent{
		Description: "Mark Planned",
		Action:      c.getProjectStatusAction(model.ProjectPlanned),
	}

	events["I"] = KeyEvent{
		Description: "Mark In Progress",
		Action:      c.getProjectStatusAction(model.ProjectInProgress),
	}

	events["C"] = KeyEvent{
		Description: "Mark Completed",
		Action:      c.getProjectStatusAction(model.ProjectCompleted),
	}
}

// getMoveAction moves the selected task straight to status.
func (c *Controller) getMoveAction(status model.TaskStatus) action {
	return func(key *tcell.EventKey) *tcell.EventKey {
		b, err := c.tracker.Board(c.boardProject)
		if err != nil {
			c.showError(err)

			return nil
		}

		id := c.selectedTask()
		if id == "" {
			return nil
		}

		c.submit("move task "+id, nil, func(ctx context.Context) error {
			return b.Move(ctx, id, status)
		}, nil)

		return nil
	}
}

func (c *Controller) initBoardEvents(events map[string]KeyEvent) {
	keys := map[model.TaskStatus]string{
		model.TaskTodo:       "T",
		model.TaskInProgress: "I",
		model.TaskDone:       "D",
	}

	for _, column := range board.Columns() {
		events[keys[column.Status]] = KeyEvent{
			Description: "Move to " + column.Title,
			Action:      c.getMoveAction(column.Status),
		}
	}

	events["Left"] = KeyEvent{
		Description: "Show Column Left",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.selectLane(c.selectedLane - 1)

			return nil
		},
	}

	events["Right"] = KeyEvent{
		Description: "Show Column Right",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.selectLane(c.selectedLane + 1)

			return nil
		},
	}

	events["Space"] = KeyEvent{
		Description: "Pick Up Task",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			b, err := c.tracker.Board(c.boardProject)
			if err != nil {
				c.showError(err)

				return nil
			}

			if id := c.selectedTask(); id != "" {
				b.BeginDrag(id)
				c.refreshBoard()
			}

			return nil
		},
	}

	events["Enter"] = KeyEvent{
		Description: "Drop Task Here",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			b, err := c.tracker.Board(c.boardProject)
			if err != nil {
				c.showError(err)

				return nil
			}

			id, carried := b.Carried()
			if !carried {
				return nil
			}

			status := board.Columns()[c.selectedLane].Status

			c.submit("move task "+id, nil, func(ctx context.Context) error {
				return b.Drop(ctx, status)
			}, func(error) {
				if c.page == pageBoard {
					c.refreshBoard()
				}
			})

			return nil
		},
	}

	events["n"] = KeyEvent{
		Description: "New Task",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.switchToTaskForm()

			return nil
		},
	}

	events["Esc"] = KeyEvent{
		Description: "Back to Timeline",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			if b, err := c.tracker.Board(c.boardProject); err == nil {
				if _, carried := b.Carried(); carried {
					b.CancelDrag()
					c.refreshBoard()

					return nil
				}
			}

			c.showTimeline()

			return nil
		},
	}
}

func (c *Controller) initFormEvents(events map[string]KeyEvent) {
	events["Esc"] = KeyEvent{
		Description: "Cancel",
		Action: func(key *tcell.EventKey) *tcell.EventKey {
			c.leaveForm()

			return nil
		},
	}
}
