package model

import (
	"fmt"
	"time"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
)

// Document field names, matching the shape the remote store has always used.
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldStartDate   = "startDate"
	fieldEndDate     = "endDate"
	fieldColor       = "color"
	fieldPriority    = "priority"
	fieldStatus      = "status"
	fieldTitle       = "title"
	fieldProjectID   = "projectId"
	fieldLabel       = "label"
)

// recordReader pulls typed fields out of a record and remembers the first failure, so
// that a decoder can read every field and check once.
type recordReader struct {
	rec remote.Record
	err error
}

func (r *recordReader) fail(field, format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("field %s: %s", field, fmt.Sprintf(format, args...))
	}
}

func (r *recordReader) str(field string, required bool) string {
	v, ok := r.rec[field]
	if !ok || v == nil {
		if required {
			r.fail(field, "missing")
		}

		return ""
	}

	s, ok := v.(string)
	if !ok {
		r.fail(field, "expected string, got %T", v)
	}

	return s
}

func (r *recordReader) time(field string) time.Time {
	v, ok := r.rec[field]
	if !ok || v == nil {
		r.fail(field, "missing")

		return time.Time{}
	}

	switch t := v.(type) {
	case time.Time:
		return t
	case *time.Time:
		if t != nil {
			return *t
		}
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			r.fail(field, "bad timestamp %q", t)
		}

		return parsed
	}

	r.fail(field, "expected timestamp, got %T", v)

	return time.Time{}
}

func decodeFailed(op string, rec remote.Record, err error) error {
	return apperr.New(apperr.DecodeFailed, op, fmt.Errorf("document %q: %w", rec.ID(), err))
}

// ProjectFromRecord decodes and validates a project document.
func ProjectFromRecord(rec remote.Record) (Project, error) {
	r := &recordReader{rec: rec}
	p := Project{
		ID:          r.str(remote.FieldID, true),
		OwnerID:     r.str(remote.FieldOwner, true),
		Name:        r.str(fieldName, true),
		Description: r.str(fieldDescription, false),
		StartDate:   r.time(fieldStartDate),
		EndDate:     r.time(fieldEndDate),
		Color:       r.str(fieldColor, true),
		Priority:    Priority(r.str(fieldPriority, true)),
		Status:      ProjectStatus(r.str(fieldStatus, true)),
	}

	if r.err != nil {
		return Project{}, decodeFailed("decode project", rec, r.err)
	}

	if err := p.Validate(); err != nil {
		return Project{}, decodeFailed("decode project", rec, err)
	}

	return p, nil
}

// Record encodes the project for the remote store. The id is left out; the store
// assigns it.
func (p Project) Record() remote.Record {
	return remote.Record{
		remote.FieldOwner: p.OwnerID,
		fieldName:         p.Name,
		fieldDescription:  p.Description,
		fieldStartDate:    p.StartDate,
		fieldEndDate:      p.EndDate,
		fieldColor:        p.Color,
		fieldPriority:     string(p.Priority),
		fieldStatus:       string(p.Status),
	}
}

// ProjectPatch builds an update patch from the editable project fields.
func ProjectPatch(p Project) remote.Record {
	rec := p.Record()
	delete(rec, remote.FieldOwner)

	return rec
}

// TaskFromRecord decodes and validates a task document. The project id comes from the
// collection path when the document itself does not carry it.
func TaskFromRecord(projectID string) func(remote.Record) (Task, error) {
	return func(rec remote.Record) (Task, error) {
		r := &recordReader{rec: rec}
		t := Task{
			ID:          r.str(remote.FieldID, true),
			ProjectID:   r.str(fieldProjectID, false),
			OwnerID:     r.str(remote.FieldOwner, true),
			Title:       r.str(fieldTitle, true),
			Description: r.str(fieldDescription, false),
			Status:      TaskStatus(r.str(fieldStatus, true)),
			CreatedAt:   r.time(remote.FieldCreatedAt),
		}

		if r.err != nil {
			return Task{}, decodeFailed("decode task", rec, r.err)
		}

		if t.ProjectID == "" {
			t.ProjectID = projectID
		}

		if err := t.Validate(); err != nil {
			return Task{}, decodeFailed("decode task", rec, err)
		}

		return t, nil
	}
}

// Record encodes the task for the remote store.
func (t Task) Record() remote.Record {
	rec := remote.Record{
		remote.FieldOwner: t.OwnerID,
		fieldProjectID:    t.ProjectID,
		fieldTitle:        t.Title,
		fieldDescription:  t.Description,
		fieldStatus:       string(t.Status),
	}

	if !t.CreatedAt.IsZero() {
		rec[remote.FieldCreatedAt] = t.CreatedAt
	}

	return rec
}

// StatusPatch is the only update a task ever receives.
func StatusPatch(status TaskStatus) remote.Record {
	return remote.Record{fieldStatus: string(status)}
}

// ProjectStatusPatch changes a project's status.
func ProjectStatusPatch(status ProjectStatus) remote.Record {
	return remote.Record{fieldStatus: string(status)}
}

// ColorLegendEntryFromRecord decodes and validates a legend document.
func ColorLegendEntryFromRecord(rec remote.Record) (ColorLegendEntry, error) {
	r := &recordReader{rec: rec}
	c := ColorLegendEntry{
		ID:      r.str(remote.FieldID, true),
		OwnerID: r.str(remote.FieldOwner, true),
		Color:   r.str(fieldColor, true),
		Label:   r.str(fieldLabel, true),
	}

	if r.err != nil {
		return ColorLegendEntry{}, decodeFailed("decode color", rec, r.err)
	}

	if err := c.Validate(); err != nil {
		return ColorLegendEntry{}, decodeFailed("decode color", rec, err)
	}

	return c, nil
}

// Record encodes the legend entry for the remote store.
func (c ColorLegendEntry) Record() remote.Record {
	return remote.Record{
		remote.FieldOwner: c.OwnerID,
		fieldColor:        c.Color,
		fieldLabel:        c.Label,
	}
}
