// Package tracker puts the stores of one signed-in user together: their projects, their
// color legend, and the task board of every project they open.
package tracker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/board"
	"github.com/matt-steen/timeline-tracker/pkg/connectivity"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/notify"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/matt-steen/timeline-tracker/pkg/session"
	"github.com/matt-steen/timeline-tracker/pkg/syncstore"
	"github.com/matt-steen/timeline-tracker/pkg/timeline"
	"github.com/rs/zerolog/log"
)

// In-flight keys for the submit actions that must not be dispatched twice.
const (
	SubmitProject = "create project"
	SubmitColor   = "create color"
)

// SubmitTask is the in-flight key for creating a task in projectID.
func SubmitTask(projectID string) string {
	return "create task " + projectID
}

// SubmitEdit is the in-flight key for saving changes to projectID.
func SubmitEdit(projectID string) string {
	return "update project " + projectID
}

// Tracker owns the stores of the current owner.
type Tracker struct {
	backend  remote.Backend
	gate     syncstore.Gate
	notifier notify.Notifier

	Projects *syncstore.Store[model.Project]
	Legend   *syncstore.Store[model.ColorLegendEntry]

	inflight syncstore.InFlight

	mu     sync.Mutex
	ctx    context.Context
	owner  string
	boards map[string]*projectBoard
}

type projectBoard struct {
	tasks *syncstore.Store[model.Task]
	board *board.Board
}

// New returns a tracker with no owner. gate is consulted before every write; notifier
// receives the toasts of every store.
func New(backend remote.Backend, gate syncstore.Gate, notifier notify.Notifier) *Tracker {
	if notifier == nil {
		notifier = notify.Discard{}
	}

	t := &Tracker{
		backend:  backend,
		gate:     gate,
		notifier: notifier,
		ctx:      context.Background(),
		boards:   map[string]*projectBoard{},
	}

	t.Projects = syncstore.New(backend.Collection(remote.Projects), syncstore.Options[model.Project]{
		Decode:   model.ProjectFromRecord,
		Encode:   model.Project.Record,
		Validate: model.Project.Validate,
		Gate:     gate,
		Notifier: notifier,
		Messages: syncstore.DefaultMessages("Project"),
	})

	legendMessages := syncstore.DefaultMessages("Color")
	legendMessages.Created = "Color added to legend"
	legendMessages.CreateFailed = "Failed to add color"
	legendMessages.Deleted = "Color removed from legend"
	legendMessages.DeleteFailed = "Failed to remove color"

	t.Legend = syncstore.New(backend.Collection(remote.ColorLegends), syncstore.Options[model.ColorLegendEntry]{
		Decode:   model.ColorLegendEntryFromRecord,
		Encode:   model.ColorLegendEntry.Record,
		Validate: model.ColorLegendEntry.Validate,
		Gate:     gate,
		Notifier: notifier,
		Messages: legendMessages,
	})

	return t
}

// newestFirst is the only task order.
func newestFirst(a, b model.Task) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

// Owner returns the owner the tracker is attached to.
func (t *Tracker) Owner() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.owner
}

// Attach switches every store to ownerID. Boards opened for the previous owner are
// closed. An empty ownerID detaches everything.
func (t *Tracker) Attach(ctx context.Context, ownerID string) error {
	t.mu.Lock()
	t.ctx = ctx

	if ownerID != t.owner {
		for id, pb := range t.boards {
			pb.tasks.Detach()
			delete(t.boards, id)
		}
	}

	t.owner = ownerID
	t.mu.Unlock()

	log.Debug().Str("owner", ownerID).Msg("tracker attaching")

	errProjects := t.Projects.Attach(ctx, ownerID)
	errLegend := t.Legend.Attach(ctx, ownerID)

	if errProjects != nil {
		return errProjects
	}

	return errLegend
}

// Follow keeps the tracker attached to whoever is signed in to s. It attaches right
// away and returns a function that stops following.
func (t *Tracker) Follow(ctx context.Context, s *session.Session) func() {
	if err := t.Attach(ctx, s.UserID()); err != nil {
		log.Warn().Err(err).Msg("error attaching to signed-in user")
	}

	return s.OnAuthChange(func(user session.User, ok bool) {
		owner := ""
		if ok {
			owner = user.ID
		}

		if err := t.Attach(ctx, owner); err != nil {
			log.Warn().Err(err).Str("owner", owner).Msg("error attaching after sign-in change")
		}
	})
}

// WatchConnectivity turns connectivity flips into notifications. It returns a function
// that stops watching.
func (t *Tracker) WatchConnectivity(m *connectivity.Monitor) func() {
	return m.OnChange(func(online bool) {
		if online {
			notify.Successf(t.notifier, "Back online!")

			return
		}

		notify.Errorf(t.notifier, "You are offline. Some features may be limited.")
	})
}

// Close detaches every store.
func (t *Tracker) Close() {
	t.mu.Lock()
	for id, pb := range t.boards {
		pb.tasks.Detach()
		delete(t.boards, id)
	}

	t.owner = ""
	t.mu.Unlock()

	t.Projects.Detach()
	t.Legend.Detach()
}

// Busy reports whether the submit action key is in flight.
func (t *Tracker) Busy(key string) bool {
	return t.inflight.Busy(key)
}

// AddProject validates p and creates it. A second submit while the first is still
// waiting on the remote store fails with syncstore.ErrInFlight.
func (t *Tracker) AddProject(ctx context.Context, p model.Project) (string, error) {
	done, err := t.inflight.Begin(SubmitProject)
	if err != nil {
		return "", err
	}
	defer done()

	p.Normalize()

	return t.Projects.Create(ctx, p)
}

// ownProject fails with NotFound unless id is in the current owner's snapshot.
func (t *Tracker) ownProject(op, id string) error {
	if _, err := t.Projects.Get(id); err != nil {
		return apperr.Errorf(apperr.NotFound, op, "no project %q", id)
	}

	return nil
}

// UpdateProject writes the editable fields of p. Like AddProject, a second save of the
// same project while the first is in flight fails with syncstore.ErrInFlight.
func (t *Tracker) UpdateProject(ctx context.Context, p model.Project) error {
	if err := t.ownProject("update project", p.ID); err != nil {
		return err
	}

	done, err := t.inflight.Begin(SubmitEdit(p.ID))
	if err != nil {
		return err
	}
	defer done()

	p.Normalize()

	if err := p.Validate(); err != nil {
		return err
	}

	return t.Projects.Update(ctx, p.ID, model.ProjectPatch(p))
}

// SetProjectStatus changes only the status of a project.
func (t *Tracker) SetProjectStatus(ctx context.Context, id string, status model.ProjectStatus) error {
	switch status {
	case model.ProjectPlanned, model.ProjectInProgress, model.ProjectCompleted:
	default:
		return apperr.Errorf(apperr.ValidationFailed, "set project status", "unknown status %q", status)
	}

	if err := t.ownProject("set project status", id); err != nil {
		return err
	}

	return t.Projects.Update(ctx, id, model.ProjectStatusPatch(status))
}

// DeleteProject removes the project document. Its tasks are left in place.
func (t *Tracker) DeleteProject(ctx context.Context, id string) error {
	if err := t.ownProject("delete project", id); err != nil {
		return err
	}

	if err := t.Projects.Delete(ctx, id); err != nil {
		return err
	}

	log.Warn().Str("id", id).Str("collection", remote.TasksPath(id)).
		Msg("project deleted; its tasks are not removed")

	t.mu.Lock()
	pb, ok := t.boards[id]
	delete(t.boards, id)
	t.mu.Unlock()

	if ok {
		pb.tasks.Detach()
	}

	return nil
}

// OpenProject returns a project of the current owner and its task store, attaching the
// store on first use. An id that is not in the owner's snapshot is NotFound.
func (t *Tracker) OpenProject(id string) (model.Project, *syncstore.Store[model.Task], error) {
	p, err := t.Projects.Get(id)
	if err != nil {
		return model.Project{}, nil, apperr.Errorf(apperr.NotFound, "open project", "no project %q", id)
	}

	pb, err := t.projectBoard(id)
	if err != nil {
		return model.Project{}, nil, err
	}

	return p, pb.tasks, nil
}

// Board returns the board of an opened project.
func (t *Tracker) Board(projectID string) (*board.Board, error) {
	if _, err := t.Projects.Get(projectID); err != nil {
		return nil, apperr.Errorf(apperr.NotFound, "open board", "no project %q", projectID)
	}

	pb, err := t.projectBoard(projectID)
	if err != nil {
		return nil, err
	}

	return pb.board, nil
}

func (t *Tracker) projectBoard(projectID string) (*projectBoard, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pb, ok := t.boards[projectID]; ok {
		return pb, nil
	}

	tasks := syncstore.New(t.backend.Collection(remote.TasksPath(projectID)), syncstore.Options[model.Task]{
		Decode:   model.TaskFromRecord(projectID),
		Encode:   model.Task.Record,
		Validate: model.Task.Validate,
		Less:     newestFirst,
		Gate:     t.gate,
		Notifier: t.notifier,
		Messages: syncstore.DefaultMessages("Task"),
	})

	if err := tasks.Attach(t.ctx, t.owner); err != nil {
		return nil, err
	}

	pb := &projectBoard{tasks: tasks, board: board.New(tasks)}
	t.boards[projectID] = pb

	return pb, nil
}

// AddTask creates a task in an opened project.
func (t *Tracker) AddTask(ctx context.Context, projectID string, task model.Task) (string, error) {
	_, tasks, err := t.OpenProject(projectID)
	if err != nil {
		return "", err
	}

	done, err := t.inflight.Begin(SubmitTask(projectID))
	if err != nil {
		return "", err
	}
	defer done()

	task.Normalize()
	task.ProjectID = projectID

	if task.Status == "" {
		task.Status = model.TaskTodo
	}

	return tasks.Create(ctx, task)
}

// AddColor adds a legend entry.
func (t *Tracker) AddColor(ctx context.Context, entry model.ColorLegendEntry) (string, error) {
	done, err := t.inflight.Begin(SubmitColor)
	if err != nil {
		return "", err
	}
	defer done()

	entry.Normalize()

	return t.Legend.Create(ctx, entry)
}

// RemoveColor deletes a legend entry.
func (t *Tracker) RemoveColor(ctx context.Context, id string) error {
	if _, err := t.Legend.Get(id); err != nil {
		return apperr.Errorf(apperr.NotFound, "remove color", "no legend entry %q", id)
	}

	return t.Legend.Delete(ctx, id)
}

// ColorChoices returns the colors offered for a new project: the legend colors, or the
// default palette when the legend is empty.
func (t *Tracker) ColorChoices() []string {
	entries := t.Legend.Snapshot()
	if len(entries) == 0 {
		return model.PaletteColors()
	}

	colors := make([]string, 0, len(entries))
	seen := map[string]bool{}

	for _, entry := range entries {
		if seen[entry.Color] {
			continue
		}

		seen[entry.Color] = true
		colors = append(colors, entry.Color)
	}

	return colors
}

// Timeline lays the current projects out on w.
func (t *Tracker) Timeline(w timeline.Window, now time.Time) timeline.Layout {
	return timeline.Arrange(w, t.Projects.Snapshot(), now)
}

// ProjectsByStatus counts the current projects per status.
func (t *Tracker) ProjectsByStatus() map[model.ProjectStatus]int {
	counts := map[model.ProjectStatus]int{}
	for _, p := range t.Projects.Snapshot() {
		counts[p.Status]++
	}

	return counts
}

// OpenBoards returns the ids of the projects whose boards are attached, sorted.
func (t *Tracker) OpenBoards() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.boards))
	for id := range t.boards {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
