package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matt-steen/timeline-tracker/pkg/board"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/timeline"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineWindow(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	now := time.Date(2024, 5, 20, 10, 0, 0, 0, time.Local)

	w, err := timelineWindow(6, 3, false, "", now)
	assert.Nil(err)
	assert.Equal(6, w.Months)
	assert.Equal(time.May, w.Start.Month())

	w, err = timelineWindow(6, 3, true, "2024-01", now)
	assert.Nil(err)
	assert.Equal(3, w.Months)
	assert.Equal(time.January, w.Start.Month())

	_, err = timelineWindow(6, 3, false, "January", now)
	assert.ErrorContains(err, "want YYYY-MM")
}

func TestPlainTrack(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	bar := timeline.Bar{Left: 50, Width: 50, ClippedEnd: true}
	assert.Equal(".....####>", plainTrack(bar, timeline.Layout{}, 10))

	today := timeline.Layout{Today: 10, TodayVisible: true}
	assert.Equal(".|...####>", plainTrack(bar, today, 10))
}

func TestMonthRuler(t *testing.T) {
	t.Parallel()

	w := timeline.NewWindow(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3)
	assert.Equal(t, "Jan     Feb     Mar     ", monthRuler(w, 24))
}

func TestPrintBoard(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	p := model.Project{
		Name:      "Launch",
		StartDate: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:    model.ProjectInProgress,
	}
	lanes := board.Lanes([]model.Task{
		{ID: "t1", Title: "Write copy", Status: model.TaskTodo},
		{ID: "t2", Title: "Ship it", Status: model.TaskDone},
	})

	var out bytes.Buffer
	printBoard(&out, p, lanes)

	text := out.String()
	assert.Contains(text, "Launch  Feb 15, 2024 - Mar 10, 2024  [in-progress]")
	assert.Contains(text, "To Do (1)\n  t1  Write copy")
	assert.Contains(text, "In Progress (0)")
	assert.Contains(text, "Done (1)\n  t2  Ship it")
}

// useConfig points the commands at a fresh sqlite file for the length of the test.
func useConfig(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("backend: sqlite\nsqlite:\n  path: %s\nlog:\n  file: %s\nuser:\n  email: cli@example.com\n",
		filepath.Join(dir, "tracker.sqlite"), filepath.Join(dir, "debug.log"))
	require.Nil(t, os.WriteFile(path, []byte(body), 0o600))

	cfgFile, backendName, verbose = path, "", false

	t.Cleanup(func() { cfgFile = "" })
}

func run(t *testing.T, cmd *cobra.Command, runE func(*cobra.Command, []string) error, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer

	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := runE(cmd, args)

	return out.String(), err
}

func TestCommandsEndToEnd(t *testing.T) {
	useConfig(t)

	assert := assert.New(t)

	projectName, projectStart, projectEnd, projectColor = "Launch", "2024-02-15", "2024-03-10", ""
	projectPriority = string(model.PriorityHigh)

	out, err := run(t, projectAddCmd, runProjectAdd)
	require.Nil(t, err)

	projectID := strings.TrimSpace(out)
	assert.NotEmpty(projectID)

	taskTitle, taskDescription = "Write copy", ""

	out, err = run(t, taskAddCmd, runTaskAdd, projectID)
	require.Nil(t, err)
	assert.NotEmpty(strings.TrimSpace(out))

	timelineMonths, timelinePreview, timelineFrom = 6, false, "2024-01"

	out, err = run(t, timelineCmd, runTimeline)
	require.Nil(t, err)
	assert.Contains(out, "Jan 1, 2024 - Jun 30, 2024")
	assert.Contains(out, "planned 1, in progress 0, completed 0")
	assert.Contains(out, projectID)
	assert.Contains(out, "Launch")
	assert.Contains(out, "#")

	out, err = run(t, boardCmd, runBoard, projectID)
	require.Nil(t, err)
	assert.Contains(out, "To Do (1)")
	assert.Contains(out, "Write copy")

	_, err = run(t, boardCmd, runBoard, "missing")
	assert.ErrorContains(err, "no project")
}

func TestProjectAddRejectsBadInput(t *testing.T) {
	useConfig(t)

	projectName, projectStart, projectEnd, projectColor = "", "", "", ""
	projectPriority = string(model.PriorityMedium)

	_, err := run(t, projectAddCmd, runProjectAdd)
	assert.ErrorContains(t, err, "project name is required")

	projectName, projectStart = "Launch", "15/02/2024"

	_, err = run(t, projectAddCmd, runProjectAdd)
	assert.ErrorContains(t, err, "want YYYY-MM-DD")
}
