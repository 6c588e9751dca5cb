package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/HexSleeves/ponder/internal/errors"
	"github.com/HexSleeves/ponder/internal/llm"
)

// SQLiteFile is the database file name inside the storage directory.
const SQLiteFile = "conversations.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLiteStore keeps conversations as rows of a single SQLite table. The
// database is opened for each operation and closed before it returns.
type SQLiteStore struct {
	dir string
}

func NewSQLiteStore(dir string) *SQLiteStore {
	return &SQLiteStore{dir: dir}
}

func (s *SQLiteStore) path() string {
	return filepath.Join(s.dir, SQLiteFile)
}

// open returns a handle on the database. Only writers create the file and
// the table; when create is false and either is missing open returns
// (nil, nil) so reads have no side effects.
func (s *SQLiteStore) open(ctx context.Context, create bool) (*sql.DB, error) {
	p := s.path()
	if !create {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	} else if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, apperrors.IO("create storage dir", s.dir, err)
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, apperrors.IO("open database", p, err)
	}
	db.SetMaxOpenConns(1)

	if create {
		if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
			db.Close()
			return nil, apperrors.IO("migrate database", p, err)
		}
		return db, nil
	}

	var name string
	err = db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'conversations'`).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		db.Close()
		return nil, nil
	case err != nil:
		db.Close()
		return nil, apperrors.IO("open database", p, err)
	}
	return db, nil
}

func (s *SQLiteStore) Save(ctx context.Context, t llm.Transcript, id string) (string, error) {
	id, payload, err := prepare(t, id)
	if err != nil {
		return "", err
	}
	db, err := s.open(ctx, true)
	if err != nil {
		return "", err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		INSERT INTO conversations (id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		id, string(payload), time.Now().UTC())
	if err != nil {
		return "", apperrors.IO("save conversation", id, err)
	}
	return id, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (llm.Transcript, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	db, err := s.open(ctx, false)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, notFound(id)
	}
	defer db.Close()

	var payload string
	err = db.QueryRowContext(ctx, `SELECT payload FROM conversations WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, apperrors.IO("load conversation", id, err)
	}
	return Decode([]byte(payload))
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	db, err := s.open(ctx, false)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return []string{}, nil
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT id FROM conversations ORDER BY id`)
	if err != nil {
		return nil, apperrors.IO("list conversations", s.path(), err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
