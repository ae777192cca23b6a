package resilience

import (
	"context"

	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
)

// RecognizerFallback implements [recognizer.Provider] with failover across
// several phoneme recognition backends.
type RecognizerFallback struct {
	group *FallbackGroup[recognizer.Provider]
}

var _ recognizer.Provider = (*RecognizerFallback)(nil)

// NewRecognizerFallback creates a [RecognizerFallback] with primary preferred.
func NewRecognizerFallback(primary recognizer.Provider, primaryName string, cfg FallbackConfig) *RecognizerFallback {
	return &RecognizerFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional backend.
func (f *RecognizerFallback) AddFallback(name string, provider recognizer.Provider) {
	f.group.AddFallback(name, provider)
}

// Recognize asks the first healthy backend. Missing audio is the caller's
// error and is returned without trying further backends.
func (f *RecognizerFallback) Recognize(ctx context.Context, audio recognizer.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", recognizer.ErrNoAudio
	}
	phonemes, _, err := Do(ctx, f.group, func(ctx context.Context, p recognizer.Provider) (string, error) {
		return p.Recognize(ctx, audio)
	})
	return phonemes, err
}

// Check reports whether any backend's breaker is still accepting calls.
func (f *RecognizerFallback) Check(ctx context.Context) error {
	return f.group.Check(ctx)
}
