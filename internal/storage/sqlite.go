package storage

import (
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteBackend keeps the task list in a single SQLite table. Every Write
// replaces the table contents inside one transaction.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

func OpenSQLite(dbPath string) (*SQLiteBackend, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, &IOError{Op: "mkdir", Path: dbPath, Err: err}
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, &IOError{Op: "open", Path: dbPath, Err: err}
	}
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db, path: dbPath}
	if err := b.ensureSchema(); err != nil {
		db.Close()
		return nil, &IOError{Op: "migrate", Path: dbPath, Err: err}
	}
	return b, nil
}

func (b *SQLiteBackend) Location() string { return b.path }

func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *SQLiteBackend) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	position INTEGER NOT NULL,
	id TEXT PRIMARY KEY,
	summary TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'needs-action',
	logged_time INTEGER NOT NULL DEFAULT 0
);`
	_, err := b.db.Exec(ddl)
	return err
}

func (b *SQLiteBackend) Read() ([]Task, error) {
	rows, err := b.db.Query(`SELECT id, summary, description, created_at, status, logged_time FROM tasks ORDER BY position;`)
	if err != nil {
		return nil, &IOError{Op: "read", Path: b.path, Err: err}
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var id, summary, description, created, status string
		var logged int64
		if err := rows.Scan(&id, &summary, &description, &created, &status, &logged); err != nil {
			return nil, &IOError{Op: "read", Path: b.path, Err: err}
		}
		t, err := decodeFields(id, summary, description, created, status, strconv.FormatInt(logged, 10))
		if err != nil {
			return nil, &CorruptStoreError{Path: b.path, Line: len(tasks) + 1, Err: err}
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &IOError{Op: "read", Path: b.path, Err: err}
	}
	if len(tasks) == 0 {
		return nil, ErrNotFound
	}
	return tasks, nil
}

func (b *SQLiteBackend) Write(tasks []Task) error {
	tx, err := b.db.Begin()
	if err != nil {
		return &IOError{Op: "write", Path: b.path, Err: err}
	}
	if err := writeRows(tx, tasks); err != nil {
		_ = tx.Rollback()
		return &IOError{Op: "write", Path: b.path, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &IOError{Op: "commit", Path: b.path, Err: err}
	}
	return nil
}

func writeRows(tx *sql.Tx, tasks []Task) error {
	if _, err := tx.Exec(`DELETE FROM tasks;`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO tasks (position, id, summary, description, created_at, status, logged_time) VALUES (?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, t := range tasks {
		if _, err := stmt.Exec(i, t.ID, t.Summary, t.Description, formatTime(t.CreatedAt), string(t.Status), t.LoggedTime); err != nil {
			return err
		}
	}
	return nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
