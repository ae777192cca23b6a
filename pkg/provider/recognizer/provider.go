// Package recognizer defines the boundary to a speech-to-phoneme model.
//
// A recognizer turns one recorded utterance into a phoneme string in the
// inventory's alphabet (for example "h ɛ l oʊ" or "hɛloʊ"). The string is
// opaque to this package; it is tokenized and normalized by the caller.
//
// Implementations must be safe for concurrent use.
package recognizer

import (
	"context"
	"errors"
)

// ErrNoAudio is returned when an Audio carries no bytes.
var ErrNoAudio = errors.New("recognizer: no audio data")

// PCMFormat describes raw 16-bit signed little-endian PCM.
type PCMFormat struct {
	SampleRate int
	Channels   int
}

// Audio is one recorded utterance.
type Audio struct {
	// Data is the encoded file (WAV, WebM, ...) or raw PCM when PCM is set.
	Data []byte

	// Filename is forwarded to the model server as an encoding hint.
	Filename string

	// PCM, if non-nil, marks Data as raw PCM in this format.
	PCM *PCMFormat
}

// Provider is the abstraction over any speech-to-phoneme backend.
type Provider interface {
	// Recognize returns the phoneme string for audio. An empty string with a
	// nil error means the model heard nothing.
	Recognize(ctx context.Context, audio Audio) (string, error)
}
