// Package postgres provides a PostgreSQL-backed [content.Store].
//
// Words, sentences and exams live in their own tables. Exam sentences
// reference their exam and inherit its minimal-pair category. [Migrate]
// creates the tables idempotently and runs on every [NewStore].
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	item, err := store.Get(ctx, content.Ref{Kind: content.KindWord, ID: 1})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlContent = `
CREATE TABLE IF NOT EXISTS words (
    id          BIGINT       PRIMARY KEY,
    text        TEXT         NOT NULL,
    phonemes    TEXT         NOT NULL,
    category    TEXT         NOT NULL DEFAULT '',
    meaning     TEXT         NOT NULL DEFAULT '',
    definition  TEXT         NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_words_category ON words (category);

CREATE TABLE IF NOT EXISTS sentences (
    id          BIGINT       PRIMARY KEY,
    text        TEXT         NOT NULL,
    phonemes    TEXT         NOT NULL,
    category    TEXT         NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sentences_category ON sentences (category);

CREATE TABLE IF NOT EXISTS exams (
    id          BIGINT       PRIMARY KEY,
    category    TEXT         NOT NULL DEFAULT '',
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS exam_sentences (
    id          BIGINT       PRIMARY KEY,
    exam_id     BIGINT       NOT NULL REFERENCES exams (id) ON DELETE CASCADE,
    text        TEXT         NOT NULL,
    phonemes    TEXT         NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_exam_sentences_exam_id ON exam_sentences (exam_id);
`

// Migrate creates the content tables if they do not exist. It is idempotent
// and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlContent); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
