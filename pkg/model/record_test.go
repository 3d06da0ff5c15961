package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/matt-steen/timeline-tracker/pkg/apperr"
	"github.com/matt-steen/timeline-tracker/pkg/model"
	"github.com/matt-steen/timeline-tracker/pkg/remote"
	"github.com/stretchr/testify/assert"
)

func TestProjectRecordRoundTrip(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	p := validProject()
	p.OwnerID = "alice"

	rec := p.Record()
	_, hasID := rec[remote.FieldID]
	assert.False(hasID)
	rec[remote.FieldID] = "p1"

	decoded, err := model.ProjectFromRecord(rec)
	assert.Nil(err)

	p.ID = "p1"
	assert.Equal(p, decoded)
}

func TestProjectFromRecordStringDates(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	rec := remote.Record{
		"id":        "p1",
		"userId":    "alice",
		"name":      "Launch",
		"startDate": "2024-02-15T00:00:00Z",
		"endDate":   "2024-03-10T00:00:00Z",
		"color":     "#ff0000",
		"priority":  "low",
		"status":    "in-progress",
	}

	p, err := model.ProjectFromRecord(rec)
	assert.Nil(err)
	assert.Equal(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), p.EndDate)
	assert.Equal("", p.Description)
}

func TestProjectFromRecordFailsClosed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(rec remote.Record)
	}{
		{"missing name", func(rec remote.Record) { delete(rec, "name") }},
		{"name not a string", func(rec remote.Record) { rec["name"] = 42 }},
		{"bad date", func(rec remote.Record) { rec["startDate"] = "next tuesday" }},
		{"date wrong type", func(rec remote.Record) { rec["endDate"] = true }},
		{"missing owner", func(rec remote.Record) { delete(rec, "userId") }},
		{"inverted range", func(rec remote.Record) { rec["endDate"] = rec["startDate"] }},
		{"unknown status", func(rec remote.Record) { rec["status"] = "paused" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert := assert.New(t)

			p := validProject()
			p.OwnerID = "alice"
			rec := p.Record()
			rec[remote.FieldID] = "p1"
			tt.mutate(rec)

			_, err := model.ProjectFromRecord(rec)
			assert.True(errors.Is(err, apperr.DecodeFailed))
			assert.Equal(apperr.DecodeFailed, apperr.KindOf(err))
		})
	}
}

func TestTaskFromRecord(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	created := time.Date(2024, time.January, 3, 8, 0, 0, 0, time.UTC)
	rec := remote.Record{
		"id":        "t1",
		"userId":    "alice",
		"title":     "Draft outline",
		"status":    "todo",
		"createdAt": created,
	}

	task, err := model.TaskFromRecord("p1")(rec)
	assert.Nil(err)
	assert.Equal("p1", task.ProjectID)
	assert.Equal(created, task.CreatedAt)
	assert.Equal(model.TaskTodo, task.Status)

	delete(rec, "createdAt")
	_, err = model.TaskFromRecord("p1")(rec)
	assert.Equal(apperr.DecodeFailed, apperr.KindOf(err))
}

func TestStatusPatch(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	assert.Equal(remote.Record{"status": "done"}, model.StatusPatch(model.TaskDone))
}

func TestProjectPatchKeepsOwner(t *testing.T) {
	t.Parallel()

	assert := assert.New(t)

	p := validProject()
	p.OwnerID = "alice"

	patch := model.ProjectPatch(p)
	_, hasOwner := patch[remote.FieldOwner]
	assert.False(hasOwner)
	assert.Equal("Website relaunch", patch["name"])
}
