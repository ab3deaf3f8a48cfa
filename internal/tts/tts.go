// Package tts defines the interface for text-to-speech synthesis.
//
// voicerelay synthesizes each completed sentence of a streamed chat answer so
// the client can start playback before the answer is finished.
package tts

import (
	"context"
	"errors"
)

// ErrSynthesis wraps every failure returned by a Synthesizer.
var ErrSynthesis = errors.New("synthesis failed")

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Voice overrides the backend's configured voice.
	Voice string

	// Model overrides the backend's configured synthesis model.
	Model string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "openai", "piper").
	Name() string

	// Synthesize generates one encoded audio payload for text. It blocks
	// until the audio is complete or the call fails.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the encoded audio file (e.g., MP3 or WAV bytes).
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/mpeg").
	ContentType string
}
