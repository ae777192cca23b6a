package content

import (
	"context"
	"fmt"

	"github.com/MrWong99/phonoscore/pkg/phoneme"
)

// Writer persists practice material. The SQL stores implement it so a YAML
// [Document] can seed them.
type Writer interface {
	// PutItem inserts or replaces a word or sentence.
	PutItem(ctx context.Context, it Item) error

	// PutExam inserts or replaces an exam together with its sentences.
	PutExam(ctx context.Context, e Exam) error
}

// Import validates doc against inv and writes it to w. Nothing is written
// when validation fails. It returns the number of items written, exam
// sentences included.
func Import(ctx context.Context, w Writer, doc Document, inv *phoneme.Inventory) (int, error) {
	src, err := NewMemoryStore(doc, inv)
	if err != nil {
		return 0, err
	}

	var n int
	for _, kind := range []Kind{KindWord, KindSentence} {
		items, _ := src.List(ctx, kind, Filter{})
		for _, it := range items {
			if err := w.PutItem(ctx, it); err != nil {
				return n, fmt.Errorf("content: import %s: %w", it.Ref(), err)
			}
			n++
		}
	}
	for _, de := range doc.Exams {
		e, _ := src.Exam(ctx, de.ID)
		if err := w.PutExam(ctx, *e); err != nil {
			return n, fmt.Errorf("content: import exam %d: %w", e.ID, err)
		}
		n += len(e.Sentences)
	}
	return n, nil
}
