// Package selection maps the task store onto a filtered, sorted list with a
// scrolling selection, and applies list operations back to the store.
package selection

import (
	"cmp"
	"errors"
	"log/slog"
	"maps"
	"math"
	"slices"

	"taskmage/internal/storage"
)

var (
	ErrNoSelection  = errors.New("no task selected")
	ErrNegativeTime = errors.New("negative time")
)

type Direction int

const (
	Add Direction = iota
	Subtract
)

// Controller owns the current view of the store. The view is the store
// filtered by the current predicate and sorted by summary, then id.
type Controller struct {
	store  *storage.Store
	filter map[string][]string
	view   []storage.Task
	cursor Cursor
}

// New builds the initial view. An invalid filter is returned as a
// *storage.SchemaError.
func New(store *storage.Store, filter map[string][]string, height int) (*Controller, error) {
	c := &Controller{store: store}
	view, err := c.build(filter)
	if err != nil {
		return nil, err
	}
	c.filter = maps.Clone(filter)
	c.view = view
	c.cursor = NewCursor(height, len(view))
	return c, nil
}

func (c *Controller) build(filter map[string][]string) ([]storage.Task, error) {
	view, err := c.store.Filter(filter)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(view, func(a, b storage.Task) int {
		return cmp.Or(cmp.Compare(a.Summary, b.Summary), cmp.Compare(a.ID, b.ID))
	})
	return view, nil
}

// rebuild refreshes the view under the current filter, leaving the cursor
// for the caller to place.
func (c *Controller) rebuild() error {
	view, err := c.build(c.filter)
	if err != nil {
		return err
	}
	c.view = view
	return nil
}

func (c *Controller) View() []storage.Task {
	return slices.Clone(c.view)
}

// Window returns the part of the view inside the viewport.
func (c *Controller) Window() []storage.Task {
	if len(c.view) == 0 {
		return nil
	}
	end := min(c.cursor.Offset+c.cursor.Height, len(c.view))
	return slices.Clone(c.view[c.cursor.Offset:end])
}

func (c *Controller) Cursor() Cursor {
	return c.cursor
}

func (c *Controller) Filter() map[string][]string {
	return maps.Clone(c.filter)
}

func (c *Controller) Selected() (storage.Task, bool) {
	if c.cursor.Empty() {
		return storage.Task{}, false
	}
	return c.view[c.cursor.Selected], true
}

func (c *Controller) MoveNext() {
	c.cursor = c.cursor.Next(len(c.view))
}

func (c *Controller) MovePrev() {
	c.cursor = c.cursor.Prev(len(c.view))
}

func (c *Controller) SetHeight(height int) {
	c.cursor = c.cursor.Resize(height, len(c.view))
}

// SetFilter switches the view to a new predicate, keeping the selected
// task selected when it is still visible. On error the current filter is
// kept.
func (c *Controller) SetFilter(filter map[string][]string) error {
	view, err := c.build(filter)
	if err != nil {
		return err
	}
	selected, ok := c.Selected()
	c.filter = maps.Clone(filter)
	c.view = view
	pos := 0
	if ok {
		pos = max(c.position(selected.ID), 0)
	}
	c.cursor = c.cursor.Select(pos, len(c.view))
	return nil
}

// AddTask stores a new open task and selects it. When the current filter
// hides the new task the previous selection is kept. A save error is
// returned after the view has been updated, the task stays in memory.
func (c *Controller) AddTask(summary, description string) (storage.Task, error) {
	prev, hadPrev := c.Selected()
	t, err := c.store.Add(storage.NewTask(summary, description))
	if err != nil {
		return storage.Task{}, err
	}
	slog.Info("task added", "id", t.ID, "summary", t.Summary)
	saveErr := c.store.Save()

	if err := c.rebuild(); err != nil {
		return t, err
	}
	pos := c.position(t.ID)
	if pos < 0 && hadPrev {
		pos = max(c.position(prev.ID), 0)
	}
	c.cursor = c.cursor.Select(max(pos, 0), len(c.view))
	return t, saveErr
}

// CompleteSelected marks the selected task completed and refilters. The
// task now at the same position is selected, or the last one when the
// completed task was last.
func (c *Controller) CompleteSelected() (storage.Task, error) {
	selected, ok := c.Selected()
	if !ok {
		return storage.Task{}, ErrNoSelection
	}
	pos := c.cursor.Selected
	t, err := c.store.Update(selected.ID, func(t *storage.Task) {
		t.Status = storage.StatusCompleted
	})
	if err != nil {
		return storage.Task{}, err
	}
	slog.Info("task completed", "id", t.ID, "summary", t.Summary)
	saveErr := c.store.Save()

	if err := c.rebuild(); err != nil {
		return t, err
	}
	c.cursor = c.cursor.Select(pos, len(c.view))
	return t, saveErr
}

// LogTime adds or subtracts seconds from a task's logged time, never going
// below zero, and persists the store. The direction carries the sign, so
// seconds must not be negative.
func (c *Controller) LogTime(id string, seconds int64, dir Direction) (storage.Task, error) {
	if seconds < 0 {
		return storage.Task{}, ErrNegativeTime
	}
	delta := seconds
	if dir == Subtract {
		delta = -seconds
	}
	return c.adjustTime(id, delta)
}

// AccumulateElapsed adds a finished timing session to the task.
func (c *Controller) AccumulateElapsed(id string, elapsed int64) (storage.Task, error) {
	if elapsed < 0 {
		return storage.Task{}, ErrNegativeTime
	}
	return c.adjustTime(id, elapsed)
}

func (c *Controller) adjustTime(id string, delta int64) (storage.Task, error) {
	selected, hadSelected := c.Selected()
	t, err := c.store.Update(id, func(t *storage.Task) {
		t.LoggedTime = addSeconds(t.LoggedTime, delta)
	})
	if err != nil {
		return storage.Task{}, err
	}
	slog.Info("time logged", "id", t.ID, "delta", delta, "logged", t.LoggedTime)
	saveErr := c.store.Save()

	if err := c.rebuild(); err != nil {
		return t, err
	}
	if hadSelected {
		if pos := c.position(selected.ID); pos >= 0 {
			c.cursor = c.cursor.Select(pos, len(c.view))
			return t, saveErr
		}
	}
	c.cursor = c.cursor.Select(c.cursor.Selected, len(c.view))
	return t, saveErr
}

// addSeconds sums logged time, saturating at math.MaxInt64 and flooring
// at zero.
func addSeconds(logged, delta int64) int64 {
	if delta > 0 && logged > math.MaxInt64-delta {
		return math.MaxInt64
	}
	return max(logged+delta, 0)
}

func (c *Controller) position(id string) int {
	return slices.IndexFunc(c.view, func(t storage.Task) bool { return t.ID == id })
}
