package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/victornm/avidquiz/internal/domain"
)

// SQLiteStore keeps lessons created at runtime (AI generated) across restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer keeps SQLITE_BUSY away; reads are rare.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const query = `
	CREATE TABLE IF NOT EXISTS lessons (
		category   TEXT NOT NULL,
		title      TEXT NOT NULL,
		source     TEXT NOT NULL,
		body_json  TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (category, title)
	);`

	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) SaveLesson(ctx context.Context, l domain.Lesson) error {
	body, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal lesson: %w", err)
	}

	const stmt = `
	INSERT INTO lessons (category, title, source, body_json, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (category, title) DO UPDATE SET
		source = excluded.source,
		body_json = excluded.body_json;`

	if _, err := s.db.ExecContext(ctx, stmt, l.Category, l.Title, string(l.Source), string(body), time.Now().Unix()); err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}

	return nil
}

func (s *SQLiteStore) ListLessons(ctx context.Context) ([]domain.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body_json FROM lessons ORDER BY created_at, rowid;`)
	if err != nil {
		return nil, fmt.Errorf("query lessons: %w", err)
	}
	defer rows.Close()

	var out []domain.Lesson
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}

		var l domain.Lesson
		if err := json.Unmarshal([]byte(body), &l); err != nil {
			return nil, fmt.Errorf("decode lesson: %w", err)
		}
		out = append(out, l)
	}

	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
