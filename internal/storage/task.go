package storage

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNeedsAction Status = "needs-action"
	StatusInProcess   Status = "in-process"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNeedsAction, StatusInProcess, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Task is a single entry of the task list. ID and CreatedAt are fixed once
// the task is stored; Status and LoggedTime are the mutable fields.
type Task struct {
	ID          string
	Summary     string
	Description string
	CreatedAt   time.Time
	Status      Status
	LoggedTime  int64
}

// NewTask returns an open task with no identity; Store.Add assigns one.
func NewTask(summary, description string) Task {
	return Task{
		Summary:     singleLine(summary),
		Description: singleLine(description),
		Status:      StatusNeedsAction,
	}
}

// identify stamps t with a creation time and an id of the form
// "<created>@<host>".
func identify(t Task, now time.Time) Task {
	now = now.UTC().Round(0)
	t.CreatedAt = now
	t.ID = formatTime(now) + "@" + hostID()
	return t
}

func hostID() string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return uuid.NewString()
}

func singleLine(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(s)
	return strings.TrimSpace(s)
}

const (
	timeLayout      = time.RFC3339Nano
	naiveTimeLayout = "2006-01-02T15:04:05.999999999"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime accepts RFC 3339 and zone-less ISO timestamps, the latter
// interpreted in local time.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation(naiveTimeLayout, v, time.Local)
}

// Field names usable in filter predicates, in record order.
const (
	FieldID          = "id"
	FieldSummary     = "summary"
	FieldDescription = "description"
	FieldCreatedAt   = "createdAt"
	FieldStatus      = "status"
	FieldLoggedTime  = "loggedTime"
)

var fieldAccessors = map[string]func(Task) string{
	FieldID:          func(t Task) string { return t.ID },
	FieldSummary:     func(t Task) string { return t.Summary },
	FieldDescription: func(t Task) string { return t.Description },
	FieldCreatedAt:   func(t Task) string { return formatTime(t.CreatedAt) },
	FieldStatus:      func(t Task) string { return string(t.Status) },
	FieldLoggedTime:  func(t Task) string { return strconv.FormatInt(t.LoggedTime, 10) },
}

// FieldValue returns the serialized value of the named field.
func FieldValue(t Task, field string) (string, error) {
	get, ok := fieldAccessors[field]
	if !ok {
		return "", &SchemaError{Field: field}
	}
	return get(t), nil
}
