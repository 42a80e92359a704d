package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Backend persists the complete task list.
type Backend interface {
	// Read returns ErrNotFound when nothing has been written yet.
	Read() ([]Task, error)
	Write(tasks []Task) error
	Close() error
	Location() string
}

// Store is the in-memory task list backed by a Backend. It is not safe
// for concurrent use.
type Store struct {
	backend Backend
	tasks   []Task
	now     func() time.Time
}

func New(backend Backend) *Store {
	return &Store{backend: backend, now: time.Now}
}

// Open returns a store for the given backend kind ("tsv" or "sqlite").
func Open(kind, path string) (*Store, error) {
	switch kind {
	case "", "tsv":
		return New(NewFileBackend(path)), nil
	case "sqlite":
		b, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return New(b), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Load replaces the in-memory tasks with the persisted ones. A store that
// has never been saved loads empty.
func (s *Store) Load() error {
	tasks, err := s.backend.Read()
	if errors.Is(err, ErrNotFound) {
		slog.Info("no task store yet, starting empty", "path", s.backend.Location())
		s.tasks = nil
		return nil
	}
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(tasks))
	for i, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			return &CorruptStoreError{Path: s.backend.Location(), Line: i + 1, Err: fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)}
		}
		seen[t.ID] = struct{}{}
	}
	s.tasks = tasks
	slog.Info("task store loaded", "path", s.backend.Location(), "tasks", len(tasks))
	return nil
}

// Save writes every task to the backend.
func (s *Store) Save() error {
	if err := s.backend.Write(s.tasks); err != nil {
		slog.Error("task store save failed", "path", s.backend.Location(), "error", err)
		return err
	}
	slog.Debug("task store saved", "path", s.backend.Location(), "tasks", len(s.tasks))
	return nil
}

// Add appends t in memory. A task without an id is given one along with
// its creation time, and one without a status is opened. Ids holding a tab
// or line break and unknown statuses are rejected so every stored task can
// be written and read back.
func (s *Store) Add(t Task) (Task, error) {
	t.Summary = singleLine(t.Summary)
	t.Description = singleLine(t.Description)
	if t.Summary == "" {
		return Task{}, ErrEmptySummary
	}
	if t.ID == "" {
		now := s.now()
		t = identify(t, now)
		// Two tasks created within the clock's resolution would share an id.
		for s.index(t.ID) >= 0 {
			now = now.Add(time.Microsecond)
			t = identify(t, now)
		}
	}
	if strings.ContainsAny(t.ID, "\t\r\n") {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidID, t.ID)
	}
	if t.Status == "" {
		t.Status = StatusNeedsAction
	}
	if !t.Status.Valid() {
		return Task{}, fmt.Errorf("%w %q", ErrBadStatus, t.Status)
	}
	t.LoggedTime = max(t.LoggedTime, 0)
	if s.index(t.ID) >= 0 {
		return Task{}, fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
	}
	s.tasks = append(s.tasks, t)
	return t, nil
}

// Update applies fn to the stored task with the given id. ID and CreatedAt
// are restored after fn runs and LoggedTime is floored at zero. An unknown
// status left by fn discards the change.
func (s *Store) Update(id string, fn func(*Task)) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	t := s.tasks[i]
	fn(&t)
	t.ID = s.tasks[i].ID
	t.CreatedAt = s.tasks[i].CreatedAt
	t.LoggedTime = max(t.LoggedTime, 0)
	if !t.Status.Valid() {
		return Task{}, fmt.Errorf("%w %q", ErrBadStatus, t.Status)
	}
	s.tasks[i] = t
	return t, nil
}

func (s *Store) Get(id string) (Task, bool) {
	i := s.index(id)
	if i < 0 {
		return Task{}, false
	}
	return s.tasks[i], true
}

func (s *Store) Tasks() []Task {
	return slices.Clone(s.tasks)
}

func (s *Store) Len() int {
	return len(s.tasks)
}

// Filter returns, in store order, the tasks whose fields all hold one of
// the allowed values. An empty predicate matches every task.
func (s *Store) Filter(predicate map[string][]string) ([]Task, error) {
	for field := range predicate {
		if _, ok := fieldAccessors[field]; !ok {
			return nil, &SchemaError{Field: field}
		}
	}
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if matches(t, predicate) {
			out = append(out, t)
		}
	}
	return out, nil
}

func matches(t Task, predicate map[string][]string) bool {
	for field, allowed := range predicate {
		if !slices.Contains(allowed, fieldAccessors[field](t)) {
			return false
		}
	}
	return true
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.tasks, func(t Task) bool { return t.ID == id })
}
