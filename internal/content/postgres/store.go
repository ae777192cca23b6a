package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/phonoscore/internal/content"
)

var (
	_ content.Store  = (*Store)(nil)
	_ content.Writer = (*Store)(nil)
)

// Store is a PostgreSQL-backed [content.Store]. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a connection pool to the database at dsn, pings it and
// runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// kindQuery holds the projection for one content kind. Every projection
// yields id, text, phonemes, category, meaning, definition, exam_id.
type kindQuery struct {
	selectSQL   string
	idCol       string
	categoryCol string
}

var queries = map[content.Kind]kindQuery{
	content.KindWord: {
		selectSQL:   `SELECT id, text, phonemes, category, meaning, definition, 0::BIGINT FROM words`,
		idCol:       "id",
		categoryCol: "category",
	},
	content.KindSentence: {
		selectSQL:   `SELECT id, text, phonemes, category, ''::TEXT, ''::TEXT, 0::BIGINT FROM sentences`,
		idCol:       "id",
		categoryCol: "category",
	},
	content.KindExam: {
		selectSQL: `SELECT s.id, s.text, s.phonemes, e.category, ''::TEXT, ''::TEXT, s.exam_id
		FROM exam_sentences s JOIN exams e ON e.id = s.exam_id`,
		idCol:       "s.id",
		categoryCol: "e.category",
	},
}

func queryFor(kind content.Kind) (kindQuery, error) {
	q, ok := queries[kind]
	if !ok {
		return kindQuery{}, fmt.Errorf("postgres store: unknown kind %q", kind)
	}
	return q, nil
}

// Get implements [content.Store].
func (s *Store) Get(ctx context.Context, ref content.Ref) (*content.Item, error) {
	q, err := queryFor(ref.Kind)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, q.selectSQL+" WHERE "+q.idCol+" = $1", ref.ID)
	it, err := scanItem(row, ref.Kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", content.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get %s: %w", ref, err)
	}
	return &it, nil
}

// List implements [content.Store].
func (s *Store) List(ctx context.Context, kind content.Kind, f content.Filter) ([]content.Item, error) {
	q, err := queryFor(kind)
	if err != nil {
		return nil, err
	}

	sql := q.selectSQL
	var args []any
	if f.Category != "" {
		sql += " WHERE " + q.categoryCol + " = $1"
		args = append(args, f.Category)
	}
	sql += " ORDER BY " + q.idCol
	if f.Limit > 0 {
		sql += " LIMIT " + strconv.Itoa(f.Limit)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list %s: %w", kind, err)
	}
	items, err := collectItems(rows, kind)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list %s: %w", kind, err)
	}
	return items, nil
}

// Exam implements [content.Store].
func (s *Store) Exam(ctx context.Context, id int64) (*content.Exam, error) {
	e := content.Exam{ID: id}
	err := s.pool.QueryRow(ctx, `SELECT category FROM exams WHERE id = $1`, id).Scan(&e.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: exam %d", content.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get exam %d: %w", id, err)
	}

	q := queries[content.KindExam]
	rows, err := s.pool.Query(ctx, q.selectSQL+" WHERE s.exam_id = $1 ORDER BY s.id", id)
	if err != nil {
		return nil, fmt.Errorf("postgres store: exam %d sentences: %w", id, err)
	}
	e.Sentences, err = collectItems(rows, content.KindExam)
	if err != nil {
		return nil, fmt.Errorf("postgres store: exam %d sentences: %w", id, err)
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
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
		    text       = EXCLUDED.text,
		    phonemes   = EXCLUDED.phonemes,
		    category   = EXCLUDED.category,
		    meaning    = EXCLUDED.meaning,
		    definition = EXCLUDED.definition,
		    updated_at = now()`
		_, err = s.pool.Exec(ctx, q, it.ID, it.Text, it.Phonemes, it.Category, it.Meaning, it.Definition)
	case content.KindSentence:
		const q = `
		INSERT INTO sentences (id, text, phonemes, category, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
		    text       = EXCLUDED.text,
		    phonemes   = EXCLUDED.phonemes,
		    category   = EXCLUDED.category,
		    updated_at = now()`
		_, err = s.pool.Exec(ctx, q, it.ID, it.Text, it.Phonemes, it.Category)
	default:
		return fmt.Errorf("postgres store: put %s: use PutExam for kind %q", it.Ref(), it.Kind)
	}
	if err != nil {
		return fmt.Errorf("postgres store: put %s: %w", it.Ref(), err)
	}
	return nil
}

// PutExam implements [content.Writer]. The exam and its sentences are
// written in one transaction.
func (s *Store) PutExam(ctx context.Context, e content.Exam) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		const qExam = `
		INSERT INTO exams (id, category, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET
		    category   = EXCLUDED.category,
		    updated_at = now()`
		if _, err := tx.Exec(ctx, qExam, e.ID, e.Category); err != nil {
			return err
		}

		const qSentence = `
		INSERT INTO exam_sentences (id, exam_id, text, phonemes, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
		    exam_id    = EXCLUDED.exam_id,
		    text       = EXCLUDED.text,
		    phonemes   = EXCLUDED.phonemes,
		    updated_at = now()`
		for _, it := range e.Sentences {
			if _, err := tx.Exec(ctx, qSentence, it.ID, e.ID, it.Text, it.Phonemes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres store: put exam %d: %w", e.ID, err)
	}
	return nil
}

// Ping implements [content.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanItem(row pgx.Row, kind content.Kind) (content.Item, error) {
	it := content.Item{Kind: kind}
	err := row.Scan(&it.ID, &it.Text, &it.Phonemes, &it.Category, &it.Meaning, &it.Definition, &it.ExamID)
	return it, err
}

func collectItems(rows pgx.Rows, kind content.Kind) ([]content.Item, error) {
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
