// Package ttstest provides an in-memory tts.Synthesizer for tests.
package ttstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/nadzzz/voicerelay/internal/tts"
)

// Synthesizer returns "audio:<text>" as audio/mpeg, or fails for texts
// listed in Fail.
type Synthesizer struct {
	Fail map[string]bool

	mu    sync.Mutex
	texts []string
}

// Name returns "fake".
func (s *Synthesizer) Name() string { return "fake" }

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }

// Synthesize records text and returns its fake audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.Fail[text] {
		return nil, fmt.Errorf("%w: refused %q", tts.ErrSynthesis, text)
	}
	return &tts.SynthesizeResult{Audio: Audio(text), ContentType: "audio/mpeg"}, nil
}

// Texts returns every text passed to Synthesize, in call order.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// Audio is the payload Synthesize returns for text.
func Audio(text string) []byte { return []byte("audio:" + text) }
