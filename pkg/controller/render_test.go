package controller

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/board"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/matt-steen/timeline-tracker/pkg/timeline"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
)

func TestKeyName(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	assert.Equal("q", keyName(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
	assert.Equal("T", keyName(tcell.NewEventKey(tcell.KeyRune, 'T', tcell.ModShift)))
	assert.Equal("Space", keyName(tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone)))
	assert.Equal("Enter", keyName(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)))
	assert.Equal("Left", keyName(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone)))
}

func TestStatusLine(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	assert.Equal("[green]● online[-]", statusLine(true, notify.Notification{}))
	assert.Contains(statusLine(false, notify.Notification{}), "offline")

	line := statusLine(true, notify.Notification{Level: notify.Error, Message: "Failed to create project"})
	assert.Contains(line, "[red]Failed to create project")
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	verr := apperr.New(apperr.ValidationFailed, "validate project",
		&model.ValidationError{Field: "name", Code: "required", Message: "project name is required"})
	assert.Equal("project name is required", userMessage(verr))

	assert.Equal("You are offline. Some features may be limited.",
		userMessage(apperr.Errorf(apperr.Offline, "create", "offline")))
	assert.Equal("boom", userMessage(errors.New("boom")))
}

func TestTrack(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	bar := timeline.Bar{Left: 0, Width: 50, ClippedEnd: true}
	line := track(bar, timeline.Layout{}, 10, "#2563eb")

	assert.Equal(4, strings.Count(line, trackFill))
	assert.Equal(1, strings.Count(line, trackClipEnd))
	assert.Equal(5, strings.Count(line, trackBlank))
	assert.True(strings.HasPrefix(line, "[#2563eb]"+trackFill))

	today := timeline.Layout{Today: 95, TodayVisible: true}
	line = track(bar, today, 10, "#2563eb")
	assert.True(strings.HasSuffix(line, "[red]"+trackToday+"[-]"))

	degenerate := timeline.Bar{Left: 98, Width: 2, Degenerate: true}
	assert.Equal(1, strings.Count(track(degenerate, timeline.Layout{}, 10, "#000000"), trackThin))

	assert.Equal("", track(bar, today, 0, "#000000"))
}

func TestRuler(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	w := timeline.NewWindow(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 2)
	line := ruler(w, 24)

	assert.Len(line, 24)
	assert.Equal("Jan 24", line[:6])
	assert.Equal("Feb 24", line[12:18])
}

func TestTimelineContent(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := timeline.NewWindow(now, 6)
	projects := []model.Project{
		{
			ID:        "p1",
			Name:      "Launch [beta]",
			StartDate: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			Color:     "#2563eb",
			Status:    model.ProjectPlanned,
		},
	}

	content := &timelineContent{projects: projects, layout: timeline.Arrange(w, projects, now)}

	assert.Equal(2, content.GetRowCount())
	assert.Equal(4, content.GetColumnCount())
	assert.Equal("project", content.GetCell(0, 0).Text)
	assert.Equal("p1", content.GetCell(1, 0).GetReference())
	assert.Equal(tview.Escape("Launch [beta]"), content.GetCell(1, 0).Text)
	assert.Equal("Feb 15, 2024 - Mar 10, 2024", content.GetCell(1, 1).Text)
	assert.Contains(content.GetCell(1, 3).Text, trackFill)
	assert.Nil(content.GetCell(2, 0))

	assert.Equal(1, content.rowOf("p1"))
	assert.Equal(-1, content.rowOf("nope"))

	loading := &timelineContent{loading: true, layout: timeline.Layout{Window: w}}
	assert.Equal(2, loading.GetRowCount())
	assert.Contains(loading.GetCell(1, 0).Text, "loading")
}

func TestLaneContent(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	lanes := board.Lanes([]model.Task{
		{ID: "t1", Title: "Write copy", Status: model.TaskTodo},
		{ID: "t2", Title: "Ship it", Status: model.TaskDone},
		{ID: "t3", Title: "Draft plan", Status: model.TaskTodo},
	})

	content := &laneContent{lane: lanes[0], carried: "t3"}

	assert.Equal(3, content.GetRowCount())
	assert.Equal("To Do (2)", content.GetCell(0, 0).Text)
	assert.Equal("Write copy", content.GetCell(1, 0).Text)
	assert.Equal("[orange]» Draft plan", content.GetCell(2, 0).Text)

	task, ok := content.taskAt(2)
	assert.True(ok)
	assert.Equal("t3", task.ID)

	_, ok = content.taskAt(0)
	assert.False(ok)
}
