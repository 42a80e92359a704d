package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const recordFields = 6

// FileBackend keeps tasks in a tab-delimited file, one record per line:
// id, summary, description, createdAt, status, loggedTime.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Location() string { return b.path }

func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) Read() ([]Task, error) {
	f, err := os.Open(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &IOError{Op: "open", Path: b.path, Err: err}
	}
	defer f.Close()

	tasks, err := decodeRecords(f, b.path)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Write replaces the file atomically: records go to a temp file in the
// same directory which is then renamed over the target.
func (b *FileBackend) Write(tasks []Task) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return &IOError{Op: "create", Path: b.path, Err: err}
	}
	tmpPath := tmp.Name()
	fail := func(op string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return &IOError{Op: op, Path: b.path, Err: err}
	}

	w := bufio.NewWriter(tmp)
	if err := encodeRecords(w, tasks); err != nil {
		return fail("write", err)
	}
	if err := w.Flush(); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "close", Path: b.path, Err: err}
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "rename", Path: b.path, Err: err}
	}
	return nil
}

func encodeRecords(w io.Writer, tasks []Task) error {
	for _, t := range tasks {
		if _, err := io.WriteString(w, encodeRecord(t)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func encodeRecord(t Task) string {
	return strings.Join([]string{
		t.ID,
		singleLine(t.Summary),
		singleLine(t.Description),
		formatTime(t.CreatedAt),
		string(t.Status),
		strconv.FormatInt(t.LoggedTime, 10),
	}, "\t")
}

func decodeRecords(r io.Reader, path string) ([]Task, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var tasks []Task
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		t, err := decodeRecord(text)
		if err != nil {
			return nil, &CorruptStoreError{Path: path, Line: line, Err: err}
		}
		tasks = append(tasks, t)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &CorruptStoreError{Path: path, Line: line + 1, Err: err}
		}
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return tasks, nil
}

func decodeRecord(line string) (Task, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != recordFields {
		return Task{}, fmt.Errorf("expected %d fields, got %d", recordFields, len(fields))
	}
	return decodeFields(fields[0], fields[1], fields[2], fields[3], fields[4], fields[5])
}

func decodeFields(id, summary, description, created, status, logged string) (Task, error) {
	if id == "" {
		return Task{}, errors.New("empty id")
	}
	createdAt, err := parseTime(created)
	if err != nil {
		return Task{}, fmt.Errorf("createdAt: %w", err)
	}
	st := Status(status)
	if !st.Valid() {
		return Task{}, fmt.Errorf("%w %q", ErrBadStatus, status)
	}
	secs, err := strconv.ParseInt(logged, 10, 64)
	if err != nil {
		return Task{}, fmt.Errorf("loggedTime: %w", err)
	}
	if secs < 0 {
		return Task{}, fmt.Errorf("negative loggedTime %d", secs)
	}
	return Task{
		ID:          id,
		Summary:     summary,
		Description: description,
		CreatedAt:   createdAt,
		Status:      st,
		LoggedTime:  secs,
	}, nil
}
