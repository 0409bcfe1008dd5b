package leaderboard

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/avidquiz/internal/domain"
	"github.com/victornm/avidquiz/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS leaderboard_entries (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	score       INTEGER NOT NULL,
	mode        TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	submit_time TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS leaderboard_entries_mode_score ON leaderboard_entries (mode, score DESC);`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Insert(ctx context.Context, e domain.LeaderboardEntry) (int, error) {
	const stmt = `
WITH inserted AS (
	INSERT INTO leaderboard_entries (id, name, score, mode, category, submit_time)
	VALUES ($1, $2, $3, $4, $5, $6)
)
SELECT COUNT(*) + 1 FROM leaderboard_entries WHERE mode = $4 AND score > $3;`

	var rank int
	err := s.db.QueryRow(ctx, stmt, e.ID, e.Name, e.Score, string(e.Mode), e.Category, e.SubmitTime).Scan(&rank)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return 0, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("entry already exists: id=%s", e.ID),
			errors.WithCause(err))
	}

	if err != nil {
		return 0, err
	}

	return rank, nil
}

func (s *PostgresStore) Top(ctx context.Context, mode domain.Mode, limit int) ([]domain.LeaderboardEntry, error) {
	const stmt = `
SELECT id, name, score, mode, category, submit_time
FROM leaderboard_entries
WHERE $1 = '' OR mode = $1
ORDER BY score DESC, submit_time ASC
LIMIT $2;`

	rows, err := s.db.Query(ctx, stmt, string(mode), limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.LeaderboardEntry, error) {
		var e domain.LeaderboardEntry
		if err := r.Scan(&e.ID, &e.Name, &e.Score, &e.Mode, &e.Category, &e.SubmitTime); err != nil {
			return domain.LeaderboardEntry{}, err
		}
		return e, nil
	})
}
