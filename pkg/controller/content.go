package controller

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/timeline-tracker/pkg/board"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/timeline"
	"github.com/rivo/tview"
)

// monthColumns is the track width given to each month of the window.
const monthColumns = 12

func headerCell(text string, expansion int) *tview.TableCell {
	return tview.NewTableCell(text).SetExpansion(expansion).
		SetTextColor(tcell.ColorYellow).SetSelectable(false)
}

// timelineContent implements tview.TableContent for the project timeline. Row 0 is the
// header; row i+1 is project i with its bar.
type timelineContent struct {
	tview.TableContentReadOnly
	projects []model.Project
	layout   timeline.Layout
	loading  bool
}

func (t *timelineContent) width() int {
	return t.layout.Window.Months * monthColumns
}

func (t *timelineContent) projectAt(row int) (model.Project, bool) {
	if idx := row - 1; idx >= 0 && idx < len(t.projects) {
		return t.projects[idx], true
	}

	return model.Project{}, false
}

func (t *timelineContent) rowOf(id string) int {
	for i, p := range t.projects {
		if p.ID == id {
			return i + 1
		}
	}

	return -1
}

// GetCell returns the cell at the given position or nil if no cell.
func (t *timelineContent) GetCell(row, col int) *tview.TableCell {
	if row == 0 {
		switch col {
		case 0:
			return headerCell("project", 1)
		case 1:
			return headerCell("dates", 1)
		case 2:
			return headerCell("status", 0)
		case 3:
			return headerCell(ruler(t.layout.Window, t.width()), 0)
		}

		return nil
	}

	if t.loading && len(t.projects) == 0 {
		if row == 1 && col == 0 {
			return tview.NewTableCell("[gray]loading...").SetSelectable(false)
		}

		return nil
	}

	p, ok := t.projectAt(row)
	if !ok || row-1 >= len(t.layout.Bars) {
		return nil
	}

	switch col {
	case 0:
		return tview.NewTableCell(tview.Escape(p.Name)).SetExpansion(1).SetReference(p.ID)
	case 1:
		return tview.NewTableCell(timeline.RangeLabel(p.StartDate, p.EndDate)).SetExpansion(1)
	case 2:
		return tview.NewTableCell(string(p.Status))
	case 3:
		return tview.NewTableCell(track(t.layout.Bars[row-1], t.layout, t.width(), p.Color))
	}

	return nil
}

// GetRowCount returns the number of rows in the table.
func (t *timelineContent) GetRowCount() int {
	if t.loading && len(t.projects) == 0 {
		return 2
	}

	return len(t.projects) + 1
}

// GetColumnCount returns the number of columns in the table.
func (t *timelineContent) GetColumnCount() int {
	return 4
}

// laneContent implements tview.TableContent for one board column.
type laneContent struct {
	tview.TableContentReadOnly
	lane    board.Lane
	carried string
}

func (l *laneContent) taskAt(row int) (model.Task, bool) {
	if idx := row - 1; idx >= 0 && idx < len(l.lane.Tasks) {
		return l.lane.Tasks[idx], true
	}

	return model.Task{}, false
}

// GetCell returns the cell at the given position or nil if no cell.
func (l *laneContent) GetCell(row, col int) *tview.TableCell {
	if row == 0 {
		switch col {
		case 0:
			return headerCell(fmt.Sprintf("%s (%d)", l.lane.Title, len(l.lane.Tasks)), 1)
		case 1:
			return headerCell("description", descTitleRatio)
		}

		return nil
	}

	task, ok := l.taskAt(row)
	if !ok {
		return nil
	}

	switch col {
	case 0:
		title := tview.Escape(task.Title)
		if task.ID == l.carried {
			title = "[orange]» " + title
		}

		return tview.NewTableCell(title).SetExpansion(1).SetReference(task.ID)
	case 1:
		return tview.NewTableCell(tview.Escape(task.Description)).SetExpansion(descTitleRatio)
	}

	return nil
}

// GetRowCount returns the number of rows in the table.
func (l *laneContent) GetRowCount() int {
	return len(l.lane.Tasks) + 1
}

// GetColumnCount returns the number of columns in the table.
func (l *laneContent) GetColumnCount() int {
	return 2
}
