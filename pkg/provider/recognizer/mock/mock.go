// Package mock provides a test double for the recognizer.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
)

// RecognizeCall records a single invocation of Recognize.
type RecognizeCall struct {
	Ctx   context.Context
	Audio recognizer.Audio
}

// Provider is a mock implementation of recognizer.Provider.
type Provider struct {
	mu sync.Mutex

	// Phonemes is returned by Recognize.
	Phonemes string

	// Err, if non-nil, is returned as the error from Recognize.
	Err error

	// Calls records every invocation of Recognize in order.
	Calls []RecognizeCall
}

// Recognize records the call and returns Phonemes, Err.
func (p *Provider) Recognize(ctx context.Context, audio recognizer.Audio) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, RecognizeCall{Ctx: ctx, Audio: audio})
	if p.Err != nil {
		return "", p.Err
	}
	return p.Phonemes, nil
}

// CallCount returns the number of recorded calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

var _ recognizer.Provider = (*Provider)(nil)
