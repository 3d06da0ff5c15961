package controller

import (
	"fmt"
	"sort"
	"strings"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/board"
	"github.com/matt-steen/timeline-tracker/pkg/timeline"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

// headerRows fits the title plus the longest shortcut column.
const headerRows = 8

// getHeader returns the header used for a page.
// it shows the title at the top, followed by 3 columns listing keyboard shortcuts.
// the first column contains misc shortcuts, the second contains "Show ..." shortcuts,
// and the third contains "Move to ..." and "Mark ..." shortcuts. All three columns are sorted alphabetically.
func (c *Controller) getHeader(page string) *tview.Table {
	table := tview.NewTable().SetBorders(false).SetSelectable(false, false)

	shortcuts := map[int][]string{
		0: {},
		1: {},
		2: {},
	}

	for key, event := range c.events[page] {
		text := fmt.Sprintf("[orange]<%s>[white] %s", tview.Escape(key), event.Description)

		switch {
		case strings.HasPrefix(event.Description, "Show"):
			shortcuts[1] = append(shortcuts[1], text)
		case strings.HasPrefix(event.Description, "Move"), strings.HasPrefix(event.Description, "Mark"):
			shortcuts[2] = append(shortcuts[2], text)
		default:
			shortcuts[0] = append(shortcuts[0], text)
		}
	}

	for col := 0; col < 3; col++ {
		sort.Strings(shortcuts[col])
	}

	for row := 1; row-1 < len(shortcuts[0]) || row-1 < len(shortcuts[1]) || row-1 < len(shortcuts[2]); row++ {
		for col := 0; col < 3; col++ {
			if row-1 < len(shortcuts[col]) {
				table.SetCell(row, col, tview.NewTableCell(shortcuts[col][row-1]).SetExpansion(1))
			}
		}
	}

	c.headers[page] = table

	return table
}

func (c *Controller) setTitle(page, title string) {
	c.headers[page].SetCell(0, 0, tview.NewTableCell(fmt.Sprintf("[yellow]%s", title)))
}

func (c *Controller) getTimelineGrid() *tview.Grid {
	header := c.getHeader(pageTimeline)

	c.timelineTable = &timelineContent{layout: timeline.Layout{Window: c.window}}
	c.timelineView = tview.NewTable().SetBorders(false).
		SetContent(c.timelineTable).
		SetSelectable(true, false).
		SetFixed(1, 0)

	c.timelineView.SetSelectionChangedFunc(func(row, col int) {
		p, ok := c.timelineTable.projectAt(row)
		if !ok {
			c.selectedProject = ""

			return
		}

		c.selectedProject = p.ID

		log.Debug().Int("row", row).Str("id", p.ID).Msgf("selecting project '%s'", p.Name)
	})

	grid := tview.NewGrid().SetRows(headerRows, 0).SetBorders(true)
	grid.AddItem(header, 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(c.timelineView, 1, 0, 1, 1, 0, 0, true)

	return grid
}

func (c *Controller) showTimeline() {
	c.switchTo(pageTimeline)
	c.refreshTimeline()
	c.app.SetFocus(c.timelineView)
}

// resetWindow moves the timeline back to the window that holds today.
func (c *Controller) resetWindow() {
	c.window = timeline.NewWindow(c.opts.Now(), c.window.Months)
	c.refreshTimeline()
}

func (c *Controller) refreshTimeline() {
	view := c.tracker.Projects.View()

	c.timelineTable.projects = view.Items
	c.timelineTable.loading = view.Loading
	c.timelineTable.layout = timeline.Arrange(c.window, view.Items, c.opts.Now())

	title := "Timeline  " + timeline.RangeLabel(c.window.Start, c.window.End().AddDate(0, 0, -1))
	if view.Err != nil {
		title += "  [red]" + tview.Escape(userMessage(view.Err))
	}

	legend := c.tracker.Legend.Snapshot()
	for _, entry := range legend {
		title += fmt.Sprintf("  [%s]■[white] %s", entry.Color, tview.Escape(entry.Label))
	}

	c.setTitle(pageTimeline, title)

	row := c.timelineTable.rowOf(c.selectedProject)
	if row < 0 && len(view.Items) > 0 {
		row = 1
	}

	if row > 0 {
		c.timelineView.Select(row, 0)
	} else {
		c.selectedProject = ""
	}
}

func (c *Controller) getBoardGrid() *tview.Grid {
	header := c.getHeader(pageBoard)

	columns := board.Columns()
	c.lanes = make([]*laneContent, len(columns))
	c.laneViews = make([]*tview.Table, len(columns))

	grid := tview.NewGrid().SetRows(headerRows, 0).SetBorders(true)
	grid.AddItem(header, 0, 0, 1, len(columns), 0, 0, false)

	for i, column := range columns {
		c.lanes[i] = &laneContent{lane: board.Lane{Column: column}}
		c.laneViews[i] = tview.NewTable().SetBorders(false).
			SetContent(c.lanes[i]).
			SetSelectable(true, false).
			SetFixed(1, 0)

		grid.AddItem(c.laneViews[i], 1, i, 1, 1, 0, 0, i == 0)
	}

	return grid
}

// openBoard shows the board of projectID, attaching its task store on first use.
func (c *Controller) openBoard(projectID string) error {
	if projectID == "" {
		return apperr.Errorf(apperr.NotFound, "open board", "no project selected")
	}

	p, tasks, err := c.tracker.OpenProject(projectID)
	if err != nil {
		return err
	}

	if c.boardStop != nil {
		c.boardStop()
	}

	c.boardStop = tasks.OnChange(func() {
		c.post(c.refresh)
	})

	c.boardProject = p.ID
	c.boardName = p.Name
	c.selectedProject = p.ID

	c.switchTo(pageBoard)
	c.refreshBoard()
	c.selectLane(c.selectedLane)

	return nil
}

func (c *Controller) refreshBoard() {
	b, err := c.tracker.Board(c.boardProject)
	if err != nil {
		// the project was deleted while its board was open
		log.Debug().Err(err).Str("project", c.boardProject).Msg("board is gone")
		c.showTimeline()

		return
	}

	_, tasks, err := c.tracker.OpenProject(c.boardProject)
	if err != nil {
		c.showTimeline()

		return
	}

	view := tasks.View()
	carried, _ := b.Carried()

	for i, lane := range board.Lanes(view.Items) {
		c.lanes[i].lane = lane
		c.lanes[i].carried = carried
	}

	title := "Board  " + tview.Escape(c.boardName)
	if view.Loading {
		title += "  [gray]loading..."
	}

	if view.Err != nil {
		title += "  [red]" + tview.Escape(userMessage(view.Err))
	}

	c.setTitle(pageBoard, title)
}

func (c *Controller) selectLane(i int) {
	if i < 0 || i >= len(c.laneViews) {
		return
	}

	c.selectedLane = i

	view := c.laneViews[i]
	if row, _ := view.GetSelection(); row < 1 && view.GetRowCount() > 1 {
		view.Select(1, 0)
	}

	c.app.SetFocus(view)
}

// selectedTask returns the id of the highlighted task in the focused lane, or "".
func (c *Controller) selectedTask() string {
	row, _ := c.laneViews[c.selectedLane].GetSelection()

	task, ok := c.lanes[c.selectedLane].taskAt(row)
	if !ok {
		return ""
	}

	return task.ID
}
