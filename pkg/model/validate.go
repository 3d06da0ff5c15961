package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/matt-steen/timeline-tracker/pkg/apperr"
)

// MinProjectDays is the shortest span a project may cover, in whole days.
const MinProjectDays = 1

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("field"); name != "" {
			return name
		}

		return fld.Name
	})
}

// ValidationError describes the first field that violates an entity invariant.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// fieldMessages maps validator tags to messages; %s is the field name.
var fieldMessages = map[string]string{
	"required": "%s is required",
	"iscolor":  "%s must be a color value",
	"oneof":    "%s must be one of %s",
}

func fromFieldError(fe validator.FieldError) *ValidationError {
	msg, ok := fieldMessages[fe.Tag()]
	if !ok {
		return &ValidationError{Field: fe.Field(), Code: fe.Tag(), Message: fmt.Sprintf("%s is invalid", fe.Field())}
	}

	if strings.Count(msg, "%s") == 2 {
		msg = fmt.Sprintf(msg, fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	} else {
		msg = fmt.Sprintf(msg, fe.Field())
	}

	return &ValidationError{Field: fe.Field(), Code: fe.Tag(), Message: msg}
}

func structErr(op string, entity any) error {
	err := validate.Struct(entity)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return apperr.New(apperr.ValidationFailed, op, fromFieldError(fieldErrs[0]))
	}

	return apperr.New(apperr.ValidationFailed, op, err)
}

// ValidateSpan checks that start is strictly before end and that the span covers at
// least one whole day.
func ValidateSpan(start, end time.Time) error {
	if !start.Before(end) {
		return &ValidationError{Field: "endDate", Code: "after", Message: "end date must be after start date"}
	}

	if WholeDays(start, end) < MinProjectDays {
		return &ValidationError{Field: "endDate", Code: "min_duration", Message: "project must be at least 1 day long"}
	}

	return nil
}

// WholeDays counts the full calendar days from start to end, read as wall-clock times in
// start's location. A DST shift inside the span does not change the count.
func WholeDays(start, end time.Time) int {
	end = end.In(start.Location())

	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()

	days := int(time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).Sub(time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)).Hours() / 24)

	if days > 0 && clock(end) < clock(start) {
		days--
	}

	return days
}

// clock is the wall-clock time of day of t.
func clock(t time.Time) time.Duration {
	h, m, s := t.Clock()

	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}

// Normalize trims free-text fields in place.
func (p *Project) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Color = strings.TrimSpace(p.Color)
}

// Validate reports the first invariant the project violates.
func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperr.New(apperr.ValidationFailed, "validate project",
			&ValidationError{Field: "name", Code: "required", Message: "project name is required"})
	}

	if err := ValidateSpan(p.StartDate, p.EndDate); err != nil {
		return apperr.New(apperr.ValidationFailed, "validate project", err)
	}

	return structErr("validate project", p)
}

// Normalize trims free-text fields in place.
func (t *Task) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
}

// Validate reports the first invariant the task violates.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return apperr.New(apperr.ValidationFailed, "validate task",
			&ValidationError{Field: "title", Code: "required", Message: "task title is required"})
	}

	return structErr("validate task", t)
}

// Normalize trims free-text fields in place.
func (c *ColorLegendEntry) Normalize() {
	c.Label = strings.TrimSpace(c.Label)
	c.Color = strings.TrimSpace(c.Color)
}

// Validate reports the first invariant the entry violates.
func (c ColorLegendEntry) Validate() error {
	return structErr("validate color", c)
}
