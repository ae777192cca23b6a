package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer/mock"
)

func TestRecognizerFallback_Failover(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Err: errors.New("503")}
	backup := &mock.Provider{Phonemes: "h ɛ l oʊ"}
	f := NewRecognizerFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	got, err := f.Recognize(context.Background(), recognizer.Audio{Data: []byte{1, 2}})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if got != "h ɛ l oʊ" {
		t.Errorf("Recognize = %q", got)
	}
	if primary.CallCount() != 1 || backup.CallCount() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.CallCount(), backup.CallCount())
	}
}

func TestRecognizerFallback_EmptyAudioSkipsBackends(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Phonemes: "a"}
	f := NewRecognizerFallback(primary, "primary", FallbackConfig{})

	_, err := f.Recognize(context.Background(), recognizer.Audio{})
	if !errors.Is(err, recognizer.ErrNoAudio) {
		t.Fatalf("err = %v, want ErrNoAudio", err)
	}
	if primary.CallCount() != 0 {
		t.Error("backend called for empty audio")
	}
}

func TestRecognizerFallback_AllFail(t *testing.T) {
	t.Parallel()

	f := NewRecognizerFallback(&mock.Provider{Err: errTest}, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1},
	})

	_, err := f.Recognize(context.Background(), recognizer.Audio{Data: []byte{1}})
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want ErrAllFailed wrapping errTest", err)
	}
	if err := f.Check(context.Background()); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Check = %v, want ErrCircuitOpen", err)
	}
}
