package pronounce

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/phonoscore/internal/content"
	"github.com/MrWong99/phonoscore/internal/observe"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
)

// AssessContent scores produced against the target of the item behind ref.
// Lookup errors wrap [content.ErrNotFound] when the item does not exist.
func (s *Service) AssessContent(ctx context.Context, ref content.Ref, produced string) (*Report, error) {
	item, err := s.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.assessItem(ctx, item, produced, SourceContent)
}

// AssessAudio recognizes audio and scores the result against the item behind
// ref. Empty audio returns [ErrEmptyAudio] before any lookup. A recognizer
// failure is returned as an error because there is nothing to score; a
// recognizer that hears nothing yields a silent report with accuracy 0.
func (s *Service) AssessAudio(ctx context.Context, ref content.Ref, audio recognizer.Audio) (*Report, error) {
	if len(audio.Data) == 0 {
		return nil, ErrEmptyAudio
	}
	if s.recognizer == nil {
		return nil, ErrNoRecognizer
	}

	item, err := s.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	produced, err := s.recognize(ctx, audio)
	if err != nil {
		return nil, err
	}
	return s.assessItem(ctx, item, produced, SourceAudio)
}

func (s *Service) lookup(ctx context.Context, ref content.Ref) (*content.Item, error) {
	if s.store == nil {
		return nil, ErrNoContentStore
	}
	item, err := s.store.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("pronounce: lookup %s: %w", ref, err)
	}
	return item, nil
}

func (s *Service) assessItem(ctx context.Context, item *content.Item, produced string, src Source) (*Report, error) {
	rep, err := s.compare(ctx, Request{Text: item.Text, Target: item.Phonemes, Produced: produced}, src)
	if err != nil {
		return nil, fmt.Errorf("pronounce: %s: %w", item.Ref(), err)
	}
	ref := item.Ref()
	rep.Content = &ref
	return rep, nil
}

func (s *Service) recognize(ctx context.Context, audio recognizer.Audio) (phonemes string, err error) {
	ctx, span := observe.StartSpan(ctx, "pronounce.recognize",
		trace.WithAttributes(attribute.Int("phonoscore.audio.bytes", len(audio.Data))),
	)
	defer func() { observe.EndSpan(span, err) }()

	if s.recognitionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.recognitionTimeout)
		defer cancel()
	}

	start := time.Now()
	phonemes, err = s.recognizer.Recognize(ctx, audio)
	s.metrics.RecognizerDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordProviderCall(ctx, s.recognizerName, "recognizer", err)
	if err != nil {
		observe.Logger(ctx).Warn("recognizer failed",
			"provider", s.recognizerName,
			"bytes", len(audio.Data),
			"err", err,
		)
		return "", fmt.Errorf("%w: %w", ErrRecognition, err)
	}
	return phonemes, nil
}
