package content

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/phonoscore/pkg/phoneme"
)

// Document is the YAML layout read by [LoadMemoryStore].
//
//	words:
//	  - id: 1
//	    text: sheep
//	    phonemes: ʃiːp
//	    category: i-ɪ
//	sentences:
//	  - id: 1
//	    text: The ship is big.
//	    phonemes: ðə ʃɪp ɪz bɪɡ
//	exams:
//	  - id: 1
//	    category: i-ɪ
//	    sentences:
//	      - id: 10
//	        text: Sit in the seat.
//	        phonemes: sɪt ɪn ðə siːt
type Document struct {
	Words     []Item         `yaml:"words"`
	Sentences []Item         `yaml:"sentences"`
	Exams     []DocumentExam `yaml:"exams"`
}

// DocumentExam is an exam entry of a [Document].
type DocumentExam struct {
	ID        int64  `yaml:"id"`
	Category  string `yaml:"category"`
	Sentences []Item `yaml:"sentences"`
}

// MemoryStore is a [Store] held entirely in memory. It is immutable after
// construction and safe for concurrent use.
type MemoryStore struct {
	items map[Ref]Item
	exams map[int64]Exam
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a store from doc after validating every item against
// inv. Kinds in doc are implied by the section an item appears in.
func NewMemoryStore(doc Document, inv *phoneme.Inventory) (*MemoryStore, error) {
	s := &MemoryStore{
		items: make(map[Ref]Item),
		exams: make(map[int64]Exam),
	}

	var errs []error
	add := func(it Item) {
		if err := it.Validate(inv); err != nil {
			errs = append(errs, err)
			return
		}
		if _, dup := s.items[it.Ref()]; dup {
			errs = append(errs, fmt.Errorf("content: %s: duplicate id", it.Ref()))
			return
		}
		s.items[it.Ref()] = it
	}

	for _, it := range doc.Words {
		it.Kind = KindWord
		add(it)
	}
	for _, it := range doc.Sentences {
		it.Kind = KindSentence
		add(it)
	}
	for _, e := range doc.Exams {
		if _, dup := s.exams[e.ID]; dup || e.ID <= 0 {
			errs = append(errs, fmt.Errorf("content: exam %d: invalid or duplicate id", e.ID))
			continue
		}
		exam := Exam{ID: e.ID, Category: e.Category}
		for _, it := range e.Sentences {
			it.Kind = KindExam
			it.ExamID = e.ID
			if it.Category == "" {
				it.Category = e.Category
			}
			add(it)
			exam.Sentences = append(exam.Sentences, it)
		}
		slices.SortFunc(exam.Sentences, byID)
		s.exams[e.ID] = exam
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// DecodeDocument reads a YAML [Document] from r, rejecting unknown fields.
func DecodeDocument(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Document{}, fmt.Errorf("content: decode yaml: %w", err)
	}
	return doc, nil
}

// LoadMemoryStore reads a YAML [Document] from path.
func LoadMemoryStore(path string, inv *phoneme.Inventory) (*MemoryStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("content: open %q: %w", path, err)
	}
	defer f.Close()

	doc, err := DecodeDocument(f)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(doc, inv)
}

// Get implements [Store].
func (s *MemoryStore) Get(_ context.Context, ref Ref) (*Item, error) {
	it, ok := s.items[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return &it, nil
}

// List implements [Store].
func (s *MemoryStore) List(_ context.Context, kind Kind, f Filter) ([]Item, error) {
	var out []Item
	for _, it := range s.items {
		if it.Kind != kind || (f.Category != "" && it.Category != f.Category) {
			continue
		}
		out = append(out, it)
	}

	slices.SortFunc(out, byID)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Exam implements [Store].
func (s *MemoryStore) Exam(_ context.Context, id int64) (*Exam, error) {
	e, ok := s.exams[id]
	if !ok {
		return nil, fmt.Errorf("%w: exam %d", ErrNotFound, id)
	}
	e.Sentences = slices.Clone(e.Sentences)
	return &e, nil
}

// Ping implements [Store]. It always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements [Store]. It is a no-op.
func (s *MemoryStore) Close() error { return nil }

func byID(a, b Item) int { return cmp.Compare(a.ID, b.ID) }
