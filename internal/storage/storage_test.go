package storage

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.csv")
	s := New(NewFileBackend(path))
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func fixedTask(id, summary string, status Status, logged int64) Task {
	return Task{
		ID:          id,
		Summary:     summary,
		Description: "about " + summary,
		CreatedAt:   time.Date(2024, 3, 1, 9, 30, 0, 123456000, time.UTC),
		Status:      status,
		LoggedTime:  logged,
	}
}

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	s, _ := newFileStore(t)

	require.NoError(t, s.Load())
	assert.Equal(t, 0, s.Len())
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	s, path := newFileStore(t)

	want := []Task{
		fixedTask("a@host", "write report", StatusNeedsAction, 0),
		fixedTask("b@host", "call bank", StatusCompleted, 3600),
		fixedTask("c@host", "fix bike", StatusInProcess, 42),
		fixedTask("d@host", "old idea", StatusCancelled, 7),
	}
	want[2].Description = ""
	for _, task := range want {
		_, err := s.Add(task)
		require.NoError(t, err)
	}
	require.NoError(t, s.Save())

	reloaded := New(NewFileBackend(path))
	require.NoError(t, reloaded.Load())
	assert.Equal(t, want, reloaded.Tasks())
}

func TestStore_FileFormat(t *testing.T) {
	t.Parallel()
	s, path := newFileStore(t)

	_, err := s.Add(fixedTask("a@host", "write report", StatusNeedsAction, 90))
	require.NoError(t, err)
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a@host\twrite report\tabout write report\t2024-03-01T09:30:00.123456Z\tneeds-action\t90\n", string(data))
}

func TestStore_AddAssignsStableIdentity(t *testing.T) {
	t.Parallel()
	s, path := newFileStore(t)
	s.now = func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) }

	added, err := s.Add(NewTask("buy milk", "two litres"))
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)
	assert.Contains(t, added.ID, "2024-05-02T08:00:00Z@")
	assert.Equal(t, StatusNeedsAction, added.Status)
	assert.Zero(t, added.LoggedTime)

	for range 3 {
		require.NoError(t, s.Save())
		s = New(NewFileBackend(path))
		require.NoError(t, s.Load())
	}
	got, ok := s.Get(added.ID)
	require.True(t, ok)
	assert.Equal(t, added, got)
}

func TestStore_AddRejectsEmptySummaryAndDuplicates(t *testing.T) {
	t.Parallel()
	s, _ := newFileStore(t)

	_, err := s.Add(NewTask("  \t ", "x"))
	assert.ErrorIs(t, err, ErrEmptySummary)

	_, err = s.Add(fixedTask("a@host", "one", StatusNeedsAction, 0))
	require.NoError(t, err)
	_, err = s.Add(fixedTask("a@host", "two", StatusNeedsAction, 0))
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, s.Len())
}

func TestStore_AddRejectsInvalidStatusAndID(t *testing.T) {
	t.Parallel()
	s, path := newFileStore(t)

	for _, id := range []string{"a\tb", "a\nb", "a\rb"} {
		_, err := s.Add(Task{ID: id, Summary: "x"})
		assert.ErrorIs(t, err, ErrInvalidID, "id=%q", id)
	}
	_, err := s.Add(Task{ID: "c@h", Summary: "x", Status: "done"})
	assert.ErrorIs(t, err, ErrBadStatus)
	assert.Equal(t, 0, s.Len())

	added, err := s.Add(fixedTask("d@h", "x", "", 0))
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsAction, added.Status)
	require.NoError(t, s.Save())

	reloaded := New(NewFileBackend(path))
	require.NoError(t, reloaded.Load())
	assert.Equal(t, []Task{added}, reloaded.Tasks())
}

func TestStore_AddFlattensTabsAndNewlines(t *testing.T) {
	t.Parallel()
	s, path := newFileStore(t)

	added, err := s.Add(Task{Summary: "a\tb", Description: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "a b", added.Summary)
	assert.Equal(t, "line1 line2", added.Description)
	require.NoError(t, s.Save())

	reloaded := New(NewFileBackend(path))
	require.NoError(t, reloaded.Load())
	assert.Equal(t, []Task{added}, reloaded.Tasks())
}

func TestStore_LoadCorruptLineFails(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"too few fields":   "a@host\tsummary\tdesc\n",
		"bad status":       "a@host\tsummary\tdesc\t2024-03-01T09:30:00Z\tdone\t0\n",
		"bad logged time":  "a@host\tsummary\tdesc\t2024-03-01T09:30:00Z\tcompleted\tlots\n",
		"negative logged":  "a@host\tsummary\tdesc\t2024-03-01T09:30:00Z\tcompleted\t-5\n",
		"bad created time": "a@host\tsummary\tdesc\tyesterday\tcompleted\t0\n",
		"empty id":         "\tsummary\tdesc\t2024-03-01T09:30:00Z\tcompleted\t0\n",
		"duplicate id": "a@host\tone\t\t2024-03-01T09:30:00Z\tcompleted\t0\n" +
			"a@host\ttwo\t\t2024-03-01T09:30:00Z\tcompleted\t0\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s, path := newFileStore(t)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			err := s.Load()
			var corrupt *CorruptStoreError
			require.ErrorAs(t, err, &corrupt)
			assert.Equal(t, path, corrupt.Path)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestStore_LoadReportsLineNumber(t *testing.T) {
	t.Parallel()
	s, path := newFileStore(t)
	content := "a@host\tok\t\t2024-03-01T09:30:00Z\tneeds-action\t0\n" +
		"\n" +
		"garbage line\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	err := s.Load()
	var corrupt *CorruptStoreError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 3, corrupt.Line)
}

func TestStore_LoadAcceptsNaiveTimestamps(t *testing.T) {
	t.Parallel()
	s, path := newFileStore(t)
	content := "2013-05-01T12:34:56.789012@box\tlegacy\tfrom before\t2013-05-01T12:34:56.789012\tin-process\t120\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, s.Load())
	got, ok := s.Get("2013-05-01T12:34:56.789012@box")
	require.True(t, ok)
	assert.Equal(t, 2013, got.CreatedAt.Year())
	assert.Equal(t, 789012000, got.CreatedAt.Nanosecond())
	assert.Equal(t, StatusInProcess, got.Status)
	assert.Equal(t, int64(120), got.LoggedTime)

	require.NoError(t, s.Save())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := time.Date(2013, 5, 1, 12, 34, 56, 789012000, time.Local).UTC().Format(time.RFC3339Nano)
	assert.Contains(t, string(data), "\t"+want+"\t")
	assert.True(t, strings.HasSuffix(want, "Z"))
}

func TestStore_LoadOversizedRecordIsCorrupt(t *testing.T) {
	t.Parallel()
	s, path := newFileStore(t)
	content := "a@host\tok\t\t2024-03-01T09:30:00Z\tneeds-action\t0\n" +
		"b@host\t" + strings.Repeat("x", 2*1024*1024) + "\t\t2024-03-01T09:30:00Z\tneeds-action\t0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	err := s.Load()
	var corrupt *CorruptStoreError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 2, corrupt.Line)
	assert.ErrorIs(t, err, bufio.ErrTooLong)
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	s, path := newFileStore(t)

	_, err := s.Add(NewTask("one", ""))
	require.NoError(t, err)
	require.NoError(t, s.Save())
	require.NoError(t, s.Save())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tasks.csv", entries[0].Name())
}

func TestStore_SaveFailureKeepsPreviousFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.csv")
	s := New(NewFileBackend(path))
	_, err := s.Add(fixedTask("a@host", "first", StatusNeedsAction, 0))
	require.NoError(t, err)
	require.NoError(t, s.Save())
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A directory in place of the target makes the rename fail.
	blocked := New(NewFileBackend(filepath.Join(dir, "sub")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "child"), 0o755))
	_, err = blocked.Add(fixedTask("b@host", "second", StatusNeedsAction, 0))
	require.NoError(t, err)
	err = blocked.Save()
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, 1, blocked.Len())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStore_FilterConjunction(t *testing.T) {
	t.Parallel()
	s, _ := newFileStore(t)
	for _, task := range []Task{
		fixedTask("1", "e", StatusNeedsAction, 0),
		fixedTask("2", "d", StatusCompleted, 0),
		fixedTask("3", "c", StatusNeedsAction, 10),
		fixedTask("4", "b", StatusCompleted, 0),
		fixedTask("5", "a", StatusNeedsAction, 0),
	} {
		_, err := s.Add(task)
		require.NoError(t, err)
	}

	open, err := s.Filter(map[string][]string{FieldStatus: {"needs-action"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "5"}, ids(open))

	both, err := s.Filter(map[string][]string{
		FieldStatus:     {"needs-action"},
		FieldLoggedTime: {"0"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "5"}, ids(both))

	all, err := s.Filter(nil)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := s.Filter(map[string][]string{FieldStatus: {}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_FilterUnknownFieldIsSchemaError(t *testing.T) {
	t.Parallel()
	s, _ := newFileStore(t)
	_, err := s.Add(NewTask("one", ""))
	require.NoError(t, err)

	_, err = s.Filter(map[string][]string{"priority": {"high"}})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "priority", schemaErr.Field)
}

func TestStore_UpdateProtectsIdentityAndFloorsTime(t *testing.T) {
	t.Parallel()
	s, _ := newFileStore(t)
	orig, err := s.Add(fixedTask("a@host", "one", StatusNeedsAction, 40))
	require.NoError(t, err)

	got, err := s.Update("a@host", func(t *Task) {
		t.ID = "other"
		t.CreatedAt = time.Time{}
		t.Status = StatusCompleted
		t.LoggedTime -= 100
	})
	require.NoError(t, err)
	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.CreatedAt, got.CreatedAt)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Zero(t, got.LoggedTime)

	_, err = s.Update("a@host", func(t *Task) {
		t.Status = "done"
		t.LoggedTime = 7
	})
	assert.ErrorIs(t, err, ErrBadStatus)
	kept, _ := s.Get("a@host")
	assert.Equal(t, StatusCompleted, kept.Status)
	assert.Zero(t, kept.LoggedTime)

	_, err = s.Update("missing", func(*Task) {})
	assert.True(t, errors.Is(err, ErrTaskNotFound))
}

func TestFieldValue(t *testing.T) {
	t.Parallel()
	task := fixedTask("a@host", "one", StatusInProcess, 65)

	v, err := FieldValue(task, FieldLoggedTime)
	require.NoError(t, err)
	assert.Equal(t, "65", v)

	v, err = FieldValue(task, FieldCreatedAt)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T09:30:00.123456Z", v)

	_, err = FieldValue(task, "Summary")
	assert.Error(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()
	_, err := Open("json", "tasks.json")
	assert.Error(t, err)
}

func ids(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
