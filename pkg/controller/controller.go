package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matt-steen/timeline-tracker/pkg/connectivity"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/matt-steen/timeline-tracker/pkg/timeline"
	"github.com/matt-steen/timeline-tracker/pkg/tracker"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	pageTimeline    = "timeline"
	pageBoard       = "board"
	pageProjectForm = "projectForm"
	pageTaskForm    = "taskForm"
	pageColorForm   = "colorForm"

	// StartTimeline and StartBoard are the pages Options.Start may name.
	StartTimeline = pageTimeline
	StartBoard    = pageBoard

	descTitleRatio = 2
	toastTimeout   = 4 * time.Second
)

// Options configures a Controller.
type Options struct {
	// Months is the length of the timeline window.
	Months int

	// Start selects the page shown first: StartTimeline or StartBoard.
	Start string

	// ProjectID is the board opened first when Start is the board.
	ProjectID string

	Now func() time.Time
}

// Controller mediates between the tracker and the view.
type Controller struct {
	ctx     context.Context
	tracker *tracker.Tracker
	monitor *connectivity.Monitor
	toasts  *notify.Queue
	opts    Options

	app    *tview.Application
	pages  *tview.Pages
	status *tview.TextView

	// post runs a func on the event loop.
	post    func(func())
	pending map[string]bool

	page   string
	window timeline.Window
	toast  notify.Notification

	events  map[string]map[string]KeyEvent
	headers map[string]*tview.Table

	timelineTable   *timelineContent
	timelineView    *tview.Table
	selectedProject string

	boardProject string
	boardName    string
	boardStop    func()
	lanes        []*laneContent
	laneViews    []*tview.Table
	selectedLane int

	projectForm *tview.Form
	taskForm    *tview.Form
	colorForm   *tview.Form
	editing     string
	returnTo    string

	stops []func()
}

// KeyEvent defines an event associated with a keypress.
type KeyEvent struct {
	Description string
	Action      func(*tcell.EventKey) *tcell.EventKey
}

// NewController creates a new Controller to run the app. toasts is the queue the
// tracker's notifier writes to.
func NewController(
	ctx context.Context,
	t *tracker.Tracker,
	monitor *connectivity.Monitor,
	toasts *notify.Queue,
	opts Options,
) (*Controller, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if opts.Months < 1 {
		opts.Months = timeline.DefaultMonths
	}

	if opts.Start == "" {
		opts.Start = pageTimeline
	}

	if opts.Start != pageTimeline && opts.Start != pageBoard {
		return nil, fmt.Errorf("unknown start page %q", opts.Start)
	}

	c := Controller{
		ctx:     ctx,
		tracker: t,
		monitor: monitor,
		toasts:  toasts,
		opts:    opts,
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		status:  tview.NewTextView().SetDynamicColors(true),
		window:  timeline.NewWindow(opts.Now(), opts.Months),
		headers: map[string]*tview.Table{},
		pending: map[string]bool{},
	}

	c.post = func(f func()) {
		c.app.QueueUpdateDraw(f)
	}

	c.initEvents()

	return &c, nil
}

// Go builds the pages and runs the app until the user exits.
func (c *Controller) Go() error {
	c.pages.AddPage(pageTimeline, c.getTimelineGrid(), true, false)
	c.pages.AddPage(pageBoard, c.getBoardGrid(), true, false)
	c.pages.AddPage(pageProjectForm, c.getFormGrid(pageProjectForm, c.initProjectForm()), true, false)
	c.pages.AddPage(pageTaskForm, c.getFormGrid(pageTaskForm, c.initTaskForm()), true, false)
	c.pages.AddPage(pageColorForm, c.getFormGrid(pageColorForm, c.initColorForm()), true, false)

	root := tview.NewGrid().SetRows(0, 1).SetBorders(false)
	root.AddItem(c.pages, 0, 0, 1, 1, 0, 0, true)
	root.AddItem(c.status, 1, 0, 1, 1, 0, 0, false)

	c.watch()
	defer c.unwatch()

	if c.opts.Start == pageBoard {
		if err := c.openBoard(c.opts.ProjectID); err != nil {
			log.Warn().Err(err).Str("project", c.opts.ProjectID).Msg("error opening board; showing timeline")
			c.showTimeline()
		}
	} else {
		c.showTimeline()
	}

	if err := c.app.SetRoot(root, true).Run(); err != nil {
		return fmt.Errorf("error running terminal ui: %w", err)
	}

	return nil
}

// watch redraws on every store change and shows toasts as they arrive.
func (c *Controller) watch() {
	redraw := func() {
		c.post(c.refresh)
	}

	c.stops = append(c.stops,
		c.tracker.Projects.OnChange(redraw),
		c.tracker.Legend.OnChange(redraw),
		c.monitor.OnChange(func(bool) { redraw() }),
	)

	done := make(chan struct{})
	c.stops = append(c.stops, func() { close(done) })

	go func() {
		var expire <-chan time.Time

		for {
			select {
			case <-done:
				return
			case n := <-c.toasts.C():
				c.post(func() { c.showToast(n) })

				expire = time.After(toastTimeout)
			case <-expire:
				c.post(func() { c.showToast(notify.Notification{}) })

				expire = nil
			}
		}
	}()
}

func (c *Controller) unwatch() {
	for _, stop := range c.stops {
		stop()
	}

	c.stops = nil

	if c.boardStop != nil {
		c.boardStop()
		c.boardStop = nil
	}
}

// showToast replaces the toast on the status line; the zero Notification clears it.
func (c *Controller) showToast(n notify.Notification) {
	c.toast = n
	c.status.SetText(statusLine(c.monitor.Online(), n))
}

// refresh re-reads whatever the current page shows.
func (c *Controller) refresh() {
	switch c.page {
	case pageTimeline:
		c.refreshTimeline()
	case pageBoard:
		c.refreshBoard()
	}

	c.status.SetText(statusLine(c.monitor.Online(), c.toast))
}

func (c *Controller) keyboard(evt *tcell.EventKey) *tcell.EventKey {
	if k, ok := c.events[c.page][keyName(evt)]; ok {
		return k.Action(evt)
	}

	return evt
}

func (c *Controller) switchTo(page string) {
	c.page = page
	c.pages.SwitchToPage(page)
	c.app.SetInputCapture(c.keyboard)
}

// showError puts err on the status line.
func (c *Controller) showError(err error) {
	c.showToast(notify.Notification{Level: notify.Error, Message: userMessage(err)})
}
