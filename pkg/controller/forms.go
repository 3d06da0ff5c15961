package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/tracker"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	dateLayout     = "2006-01-02"
	nameMax        = 50
	descriptionMax = 500
	dateMax        = 10
	colorMax       = 7
)

func (c *Controller) getFormGrid(page string, form *tview.Form) *tview.Grid {
	grid := tview.NewGrid().SetRows(3, 0).SetBorders(true)

	grid.AddItem(c.getHeader(page), 0, 0, 1, 1, 0, 0, false)
	grid.AddItem(form, 1, 0, 1, 1, 0, 0, true)

	return grid
}

func (c *Controller) switchToForm(page, title string, form *tview.Form) {
	if c.page != pageProjectForm && c.page != pageTaskForm && c.page != pageColorForm {
		c.returnTo = c.page
	}

	c.setTitle(page, title)
	form.SetFocus(0)
	c.switchTo(page)
	c.app.SetFocus(form)
}

// leaveForm goes back to the page the form was opened from.
func (c *Controller) leaveForm() {
	if c.returnTo == pageBoard {
		c.switchTo(pageBoard)
		c.refreshBoard()
		c.selectLane(c.selectedLane)

		return
	}

	c.showTimeline()
}

func inputField(form *tview.Form, label string) *tview.InputField {
	field, _ := form.GetFormItemByLabel(label).(*tview.InputField)

	return field
}

func dropDown(form *tview.Form, label string) *tview.DropDown {
	field, _ := form.GetFormItemByLabel(label).(*tview.DropDown)

	return field
}

func selectOption(dd *tview.DropDown, options []string, value string) {
	for i, option := range options {
		if option == value || strings.HasPrefix(option, value+" ") {
			dd.SetCurrentOption(i)

			return
		}
	}

	dd.SetCurrentOption(0)
}

// parseDay reads a form date in the local time zone.
func parseDay(field, value string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, apperr.New(apperr.ValidationFailed, "parse date", &model.ValidationError{
			Field:   field,
			Code:    "date",
			Message: fmt.Sprintf("%s must be a date like %s", field, dateLayout),
		})
	}

	return day, nil
}

// colorOptions lists the colors offered for a project, each followed by its legend
// label when it has one. current is kept as an option even when it is no longer offered.
func (c *Controller) colorOptions(current string) []string {
	labels := map[string]string{}
	for _, entry := range c.tracker.Legend.Snapshot() {
		if _, ok := labels[entry.Color]; !ok {
			labels[entry.Color] = entry.Label
		}
	}

	options := []string{}
	found := false

	for _, color := range c.tracker.ColorChoices() {
		found = found || color == current

		if label, ok := labels[color]; ok {
			options = append(options, color+" "+label)
		} else {
			options = append(options, color)
		}
	}

	if !found && current != "" {
		options = append(options, current)
	}

	return options
}

func projectStatuses() []string {
	return []string{
		string(model.ProjectPlanned),
		string(model.ProjectInProgress),
		string(model.ProjectCompleted),
	}
}

func priorities() []string {
	return []string{
		string(model.PriorityLow),
		string(model.PriorityMedium),
		string(model.PriorityHigh),
	}
}

func (c *Controller) initProjectForm() *tview.Form {
	c.projectForm = tview.NewForm().
		AddInputField("Name", "", nameMax, nil, nil).
		AddInputField("Description", "", descriptionMax, nil, nil).
		AddInputField("Start", "", dateMax, nil, nil).
		AddInputField("End", "", dateMax, nil, nil).
		AddDropDown("Color", []string{}, -1, nil).
		AddDropDown("Priority", priorities(), 1, nil).
		AddDropDown("Status", projectStatuses(), 0, nil)

	c.projectForm.AddButton("Save", func() {
		p, err := c.readProjectForm()
		if err != nil {
			c.showError(err)

			return
		}

		c.saveProject(p)
	})

	c.projectForm.AddButton("Cancel", c.leaveForm)

	return c.projectForm
}

// saveProject creates p, or updates it when it has an id, without waiting for the
// remote store.
func (c *Controller) saveProject(p model.Project) bool {
	if p.ID == "" {
		return c.submit(tracker.SubmitProject, c.projectForm.GetButton(0), func(ctx context.Context) error {
			log.Debug().Msgf("creating project '%s'", p.Name)

			_, err := c.tracker.AddProject(ctx, p)

			return err
		}, c.leaveAfterSave(pageProjectForm))
	}

	return c.submit(tracker.SubmitEdit(p.ID), c.projectForm.GetButton(0), func(ctx context.Context) error {
		log.Debug().Str("id", p.ID).Msgf("updating project '%s'", p.Name)

		return c.tracker.UpdateProject(ctx, p)
	}, c.leaveAfterSave(pageProjectForm))
}

func (c *Controller) readProjectForm() (model.Project, error) {
	form := c.projectForm

	start, err := parseDay("startDate", inputField(form, "Start").GetText())
	if err != nil {
		return model.Project{}, err
	}

	end, err := parseDay("endDate", inputField(form, "End").GetText())
	if err != nil {
		return model.Project{}, err
	}

	_, color := dropDown(form, "Color").GetCurrentOption()
	_, priority := dropDown(form, "Priority").GetCurrentOption()
	_, status := dropDown(form, "Status").GetCurrentOption()

	if fields := strings.Fields(color); len(fields) > 0 {
		color = fields[0]
	}

	return model.Project{
		ID:          c.editing,
		Name:        inputField(form, "Name").GetText(),
		Description: inputField(form, "Description").GetText(),
		StartDate:   start,
		EndDate:     end,
		Color:       color,
		Priority:    model.Priority(priority),
		Status:      model.ProjectStatus(status),
	}, nil
}

// switchToProjectForm opens the project form, prefilled from the project id or with the
// new-project defaults when id is empty.
func (c *Controller) switchToProjectForm(id string) {
	p := model.NewProjectDraft(model.Day(c.opts.Now()))
	title := "New Project"

	if id != "" {
		existing, err := c.tracker.Projects.Get(id)
		if err != nil {
			c.showError(err)

			return
		}

		p = existing
		title = "Edit Project"
	}

	c.editing = id
	form := c.projectForm

	inputField(form, "Name").SetText(p.Name)
	inputField(form, "Description").SetText(p.Description)
	inputField(form, "Start").SetText(p.StartDate.Format(dateLayout))
	inputField(form, "End").SetText(p.EndDate.Format(dateLayout))

	current := p.Color
	if id == "" {
		current = ""
	}

	colors := c.colorOptions(current)
	color := dropDown(form, "Color")
	color.SetOptions(colors, nil)
	selectOption(color, colors, current)

	selectOption(dropDown(form, "Priority"), priorities(), string(p.Priority))
	selectOption(dropDown(form, "Status"), projectStatuses(), string(p.Status))

	c.switchToForm(pageProjectForm, title, form)
}

func (c *Controller) initTaskForm() *tview.Form {
	c.taskForm = tview.NewForm().
		AddInputField("Title", "", nameMax, nil, nil).
		AddInputField("Description", "", descriptionMax, nil, nil)

	c.taskForm.AddButton("Save", func() {
		projectID := c.boardProject

		task := model.NewTaskDraft(projectID)
		task.Title = inputField(c.taskForm, "Title").GetText()
		task.Description = inputField(c.taskForm, "Description").GetText()

		c.submit(tracker.SubmitTask(projectID), c.taskForm.GetButton(0), func(ctx context.Context) error {
			log.Debug().Str("project", projectID).Msgf("creating task '%s'", task.Title)

			_, err := c.tracker.AddTask(ctx, projectID, task)

			return err
		}, c.leaveAfterSave(pageTaskForm))
	})

	c.taskForm.AddButton("Cancel", c.leaveForm)

	return c.taskForm
}

func (c *Controller) switchToTaskForm() {
	inputField(c.taskForm, "Title").SetText("")
	inputField(c.taskForm, "Description").SetText("")

	c.switchToForm(pageTaskForm, "New Task  "+tview.Escape(c.boardName), c.taskForm)
}

func (c *Controller) legendOptions() []string {
	entries := c.tracker.Legend.Snapshot()

	options := make([]string, len(entries))
	for i, entry := range entries {
		options[i] = entry.Color + " " + entry.Label
	}

	return options
}

func (c *Controller) initColorForm() *tview.Form {
	c.colorForm = tview.NewForm().
		AddInputField("Color", "", colorMax, nil, nil).
		AddInputField("Label", "", nameMax, nil, nil).
		AddDropDown("Legend", []string{}, -1, nil)

	c.colorForm.AddButton("Save", func() {
		entry := model.ColorLegendEntry{
			Color: inputField(c.colorForm, "Color").GetText(),
			Label: inputField(c.colorForm, "Label").GetText(),
		}

		c.submit(tracker.SubmitColor, c.colorForm.GetButton(0), func(ctx context.Context) error {
			_, err := c.tracker.AddColor(ctx, entry)

			return err
		}, c.leaveAfterSave(pageColorForm))
	})

	c.colorForm.AddButton("Remove", func() {
		idx, _ := dropDown(c.colorForm, "Legend").GetCurrentOption()

		entries := c.tracker.Legend.Snapshot()
		if idx < 0 || idx >= len(entries) {
			return
		}

		id := entries[idx].ID

		c.submit("remove color "+id, c.colorForm.GetButton(1), func(ctx context.Context) error {
			return c.tracker.RemoveColor(ctx, id)
		}, c.leaveAfterSave(pageColorForm))
	})

	c.colorForm.AddButton("Cancel", c.leaveForm)

	return c.colorForm
}

func (c *Controller) switchToColorForm() {
	inputField(c.colorForm, "Color").SetText(model.PaletteColors()[0])
	inputField(c.colorForm, "Label").SetText("")
	dropDown(c.colorForm, "Legend").SetOptions(c.legendOptions(), nil).SetCurrentOption(-1)

	c.switchToForm(pageColorForm, "Color Legend", c.colorForm)
}
