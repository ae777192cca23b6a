package pronounce

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/phonoscore/internal/content"
	"github.com/MrWong99/phonoscore/pkg/align"
)

var (
	// ErrNotInExam is returned when an attempt references a sentence that
	// does not belong to the exam.
	ErrNotInExam = errors.New("pronounce: sentence not in exam")

	// ErrDuplicateAttempt is returned when one exam sentence has more than
	// one attempt.
	ErrDuplicateAttempt = errors.New("pronounce: duplicate attempt")
)

// Attempt is one produced phoneme string for an exam sentence.
type Attempt struct {
	SentenceID int64  `json:"sentence_id"`
	Produced   string `json:"produced"`
}

// ScoreExam scores every attempt against its exam sentence concurrently.
// Reports keep the order of attempts. The exam accuracy is the mean over the
// attempted sentences; sentences without an attempt are listed in
// Unanswered and do not count. Duplicate attempts for one sentence are
// rejected, and so is the whole exam when any attempt exceeds the phoneme
// limit.
func (s *Service) ScoreExam(ctx context.Context, examID int64, attempts []Attempt) (*ExamReport, error) {
	if s.store == nil {
		return nil, ErrNoContentStore
	}
	exam, err := s.store.Exam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("pronounce: exam %d: %w", examID, err)
	}

	byID := make(map[int64]*content.Item, len(exam.Sentences))
	for i := range exam.Sentences {
		byID[exam.Sentences[i].ID] = &exam.Sentences[i]
	}

	items := make([]*content.Item, len(attempts))
	seen := make(map[int64]struct{}, len(attempts))
	for i, a := range attempts {
		item, ok := byID[a.SentenceID]
		if !ok {
			return nil, fmt.Errorf("%w: exam %d sentence %d", ErrNotInExam, examID, a.SentenceID)
		}
		if _, dup := seen[a.SentenceID]; dup {
			return nil, fmt.Errorf("%w: exam %d sentence %d", ErrDuplicateAttempt, examID, a.SentenceID)
		}
		seen[a.SentenceID] = struct{}{}
		items[i] = item
	}

	reports := make([]*Report, len(attempts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.examConcurrency)
	for i, a := range attempts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := s.assessItem(gctx, items[i], a.Produced, SourceExam)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pronounce: exam %d: %w", examID, err)
	}

	out := &ExamReport{
		ExamID:   exam.ID,
		Category: exam.Category,
		Answered: len(attempts),
		Total:    len(exam.Sentences),
		Reports:  reports,
	}
	for _, it := range exam.Sentences {
		if _, ok := seen[it.ID]; !ok {
			out.Unanswered = append(out.Unanswered, it.ID)
		}
	}
	if len(reports) > 0 {
		var sum float64
		for _, r := range reports {
			sum += r.Accuracy
		}
		out.Accuracy = align.Round1(sum / float64(len(reports)))
	}
	return out, nil
}
