// Package sqlite provides a SQLite-backed [content.Store] for single-node
// deployments and local practice sets.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MrWong99/phonoscore/internal/content"
)

//go:embed schema.sql
var schemaSQL string

var (
	_ content.Store  = (*Store)(nil)
	_ content.Writer = (*Store)(nil)
)

// Store is a SQLite-backed [content.Store]. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and runs [Migrate]. Use ":memory:" for a
// throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Migrate runs the embedded schema statement by statement. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type kindQuery struct {
	selectSQL   string
	idCol       string
	categoryCol string
}

var queries = map[content.Kind]kindQuery{
	content.KindWord: {
		selectSQL:   `SELECT id, text, phonemes, category, meaning, definition, 0 FROM words`,
		idCol:       "id",
		categoryCol: "category",
	},
	content.KindSentence: {
		selectSQL:   `SELECT id, text, phonemes, category, '', '', 0 FROM sentences`,
		idCol:       "id",
		categoryCol: "category",
	},
	content.KindExam: {
		selectSQL: `SELECT s.id, s.text, s.phonemes, e.category, '', '', s.exam_id
		FROM exam_sentences s JOIN exams e ON e.id = s.exam_id`,
		idCol:       "s.id",
		categoryCol: "e.category",
	},
}

func queryFor(kind content.Kind) (kindQuery, error) {
	q, ok := queries[kind]
	if !ok {
		return kindQuery{}, fmt.Errorf("sqlite store: unknown kind %q", kind)
	}
	return q, nil
}

// Get implements [content.Store].
func (s *Store) Get(ctx context.Context, ref content.Ref) (*content.Item, error) {
	q, err := queryFor(ref.Kind)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, q.selectSQL+" WHERE "+q.idCol+" = ?", ref.ID)
	it, err := scanItem(row, ref.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", content.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: get %s: %w", ref, err)
	}
	return &it, nil
}

// List implements [content.Store].
func (s *Store) List(ctx context.Context, kind content.Kind, f content.Filter) ([]content.Item, error) {
	q, err := queryFor(kind)
	if err != nil {
		return nil, err
	}

	query := q.selectSQL
	var args []any
	if f.Category != "" {
		query += " WHERE " + q.categoryCol + " = ?"
		args = append(args, f.Category)
	}
	query += " ORDER BY " + q.idCol
	if f.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list %s: %w", kind, err)
	}
	items, err := collectItems(rows, kind)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list %s: %w", kind, err)
	}
	return items, nil
}

// Exam implements [content.Store].
func (s *Store) Exam(ctx context.Context, id int64) (*content.Exam, error) {
	e := content.Exam{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT category FROM exams WHERE id = ?`, id).Scan(&e.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: exam %d", content.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: get exam %d: %w", id, err)
	}

	q := queries[content.KindExam]
	rows, err := s.db.QueryContext(ctx, q.selectSQL+" WHERE s.exam_id = ? ORDER BY s.id", id)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: exam %d sentences: %w", id, err)
	}
	e.Sentences, err = collectItems(rows, content.KindExam)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: exam %d sentences: %w", id, err)
	}
	return &e, nil
}

// PutItem implements [content.Writer] for words and sentences.
func (s *Store) PutItem(ctx context.Context, it content.Item) error {
	var err error
	switch it.Kind {
	case content.KindWord:
		const q = `
		INSERT INTO words (id, text, phonemes, category, meaning, definition, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
		    text       = excluded.text,
		    phonemes   = excluded.phonemes,
		    category   = excluded.category,
		    meaning    = excluded.meaning,
		    definition = excluded.definition,
		    updated_at = CURRENT_TIMESTAMP`
		_, err = s.db.ExecContext(ctx, q, it.ID, it.Text, it.Phonemes, it.Category, it.Meaning, it.Definition)
	case content.KindSentence:
		const q = `
		INSERT INTO sentences (id, text, phonemes, category, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
		    text       = excluded.text,
		    phonemes   = excluded.phonemes,
		    category   = excluded.category,
		    updated_at = CURRENT_TIMESTAMP`
		_, err = s.db.ExecContext(ctx, q, it.ID, it.Text, it.Phonemes, it.Category)
	default:
		return fmt.Errorf("sqlite store: put %s: use PutExam for kind %q", it.Ref(), it.Kind)
	}
	if err != nil {
		return fmt.Errorf("sqlite store: put %s: %w", it.Ref(), err)
	}
	return nil
}

// PutExam implements [content.Writer]. The exam and its sentences are
// written in one transaction.
func (s *Store) PutExam(ctx context.Context, e content.Exam) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: put exam %d: %w", e.ID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const qExam = `
		INSERT INTO exams (id, category, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
		    category   = excluded.category,
		    updated_at = CURRENT_TIMESTAMP`
	if _, err = tx.ExecContext(ctx, qExam, e.ID, e.Category); err != nil {
		return fmt.Errorf("sqlite store: put exam %d: %w", e.ID, err)
	}

	const qSentence = `
		INSERT INTO exam_sentences (id, exam_id, text, phonemes, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
		    exam_id    = excluded.exam_id,
		    text       = excluded.text,
		    phonemes   = excluded.phonemes,
		    updated_at = CURRENT_TIMESTAMP`
	for _, it := range e.Sentences {
		if _, err = tx.ExecContext(ctx, qSentence, it.ID, e.ID, it.Text, it.Phonemes); err != nil {
			return fmt.Errorf("sqlite store: put exam %d sentence %d: %w", e.ID, it.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite store: put exam %d: commit: %w", e.ID, err)
	}
	return nil
}

// Ping implements [content.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements [content.Store].
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner, kind content.Kind) (content.Item, error) {
	it := content.Item{Kind: kind}
	err := row.Scan(&it.ID, &it.Text, &it.Phonemes, &it.Category, &it.Meaning, &it.Definition, &it.ExamID)
	return it, err
}

func collectItems(rows *sql.Rows, kind content.Kind) ([]content.Item, error) {
	defer rows.Close()
	var items []content.Item
	for rows.Next() {
		it, err := scanItem(rows, kind)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
