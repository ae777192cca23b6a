// Package content defines the practice material a pronunciation attempt is
// scored against: words, sentences and exam sentences, each carrying the
// target phoneme string.
//
// The [Store] interface is implemented by an in-memory store loaded from YAML
// ([NewMemoryStore], [LoadMemoryStore]), a PostgreSQL store (package postgres)
// and a SQLite store (package sqlite). Stores are read-only from the scoring
// pipeline's point of view.
package content

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrWong99/phonoscore/pkg/phoneme"
)

// ErrNotFound is returned when a referenced item or exam does not exist.
var ErrNotFound = errors.New("content: not found")

// Kind is the type of practice material.
type Kind string

const (
	KindWord     Kind = "word"
	KindSentence Kind = "sentence"
	KindExam     Kind = "exam"
)

// Kinds lists every valid kind.
var Kinds = []Kind{KindWord, KindSentence, KindExam}

// ParseKind validates s as a [Kind].
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindWord, KindSentence, KindExam:
		return k, nil
	}
	return "", fmt.Errorf("content: unknown kind %q", s)
}

// Ref identifies one item.
type Ref struct {
	Kind Kind  `json:"kind" yaml:"kind"`
	ID   int64 `json:"id" yaml:"id"`
}

// ParseRef builds a [Ref] from its path form.
func ParseRef(kind, id string) (Ref, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Ref{}, err
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return Ref{}, fmt.Errorf("content: invalid id %q", id)
	}
	return Ref{Kind: k, ID: n}, nil
}

func (r Ref) String() string {
	return string(r.Kind) + "/" + strconv.FormatInt(r.ID, 10)
}

// Item is one piece of practice material.
type Item struct {
	Kind Kind  `json:"kind" yaml:"kind"`
	ID   int64 `json:"id" yaml:"id"`

	// Text is the written word or sentence.
	Text string `json:"text" yaml:"text"`

	// Phonemes is the raw target phoneme string. It may contain stress and
	// length markers.
	Phonemes string `json:"phonemes" yaml:"phonemes"`

	// Category is a minimal-pair category such as "i-ɪ". Exam sentences
	// inherit the category of their exam.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// ExamID links an exam sentence to its exam.
	ExamID int64 `json:"exam_id,omitempty" yaml:"exam_id,omitempty"`

	// Meaning and Definition are optional word glosses.
	Meaning    string `json:"meaning,omitempty" yaml:"meaning,omitempty"`
	Definition string `json:"definition,omitempty" yaml:"definition,omitempty"`
}

// Ref returns the item's reference.
func (it Item) Ref() Ref { return Ref{Kind: it.Kind, ID: it.ID} }

// Exam is an ordered set of exam sentences sharing a category.
type Exam struct {
	ID        int64  `json:"id" yaml:"id"`
	Category  string `json:"category" yaml:"category"`
	Sentences []Item `json:"sentences" yaml:"-"`
}

// Filter narrows a listing.
type Filter struct {
	// Category, when set, keeps only items of that category.
	Category string
	// Limit, when positive, caps the number of items returned.
	Limit int
}

// Store gives read access to practice material. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the item behind ref or an error wrapping [ErrNotFound].
	Get(ctx context.Context, ref Ref) (*Item, error)

	// List returns items of kind ordered by ID.
	List(ctx context.Context, kind Kind, f Filter) ([]Item, error)

	// Exam returns an exam with its sentences ordered by ID.
	Exam(ctx context.Context, id int64) (*Exam, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error
}

// Validate checks an item against inv. Text and phonemes must be present and
// the category, when set, must be a valid minimal-pair category.
func (it Item) Validate(inv *phoneme.Inventory) error {
	var errs []error
	if _, err := ParseKind(string(it.Kind)); err != nil {
		errs = append(errs, err)
	}
	if it.ID <= 0 {
		errs = append(errs, fmt.Errorf("content: %s: id must be positive", it.Ref()))
	}
	if strings.TrimSpace(it.Text) == "" {
		errs = append(errs, fmt.Errorf("content: %s: text is empty", it.Ref()))
	}
	if len(inv.Parse(it.Phonemes)) == 0 {
		errs = append(errs, fmt.Errorf("content: %s: phonemes are empty", it.Ref()))
	}
	if it.Category != "" && !inv.ValidCategory(it.Category) {
		errs = append(errs, fmt.Errorf("content: %s: invalid category %q", it.Ref(), it.Category))
	}
	if it.Kind == KindExam && it.ExamID <= 0 {
		errs = append(errs, fmt.Errorf("content: %s: exam sentence without exam_id", it.Ref()))
	}
	return errors.Join(errs...)
}
