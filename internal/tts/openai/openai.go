// Package openai implements the TTS Synthesizer using OpenAI's Audio Speech API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/openai/openai-go"

	"github.com/nadzzz/voicerelay/internal/config"
	"github.com/nadzzz/voicerelay/internal/tts"
)

// ContentType is the MIME type of every payload this backend returns.
const ContentType = "audio/mpeg"

// maxAudioSize bounds a single sentence's audio payload.
const maxAudioSize = 25 << 20

// Synthesizer produces MP3 speech through the OpenAI API.
type Synthesizer struct {
	client openai.Client
	model  string
	voice  string
}

// New creates a Synthesizer with the configured model and voice.
func New(client openai.Client, cfg config.OpenAITTSConfig) *Synthesizer {
	model, voice := cfg.Model, cfg.Voice
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	return &Synthesizer{client: client, model: model, voice: voice}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "openai" }

// Synthesize converts text to MP3 audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", tts.ErrSynthesis)
	}

	model, voice := s.model, s.voice
	if opts.Model != "" {
		model = opts.Model
	}
	if opts.Voice != "" {
		voice = opts.Voice
	}

	slog.Debug("openai synthesize", "model", model, "voice", voice, "text_length", len(text))

	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: speech request: %w", tts.ErrSynthesis, err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %w", tts.ErrSynthesis, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: %w", tts.ErrSynthesis, errEmptyAudio)
	}

	return &tts.SynthesizeResult{Audio: audio, ContentType: ContentType}, nil
}

// Close is a no-op; the client is shared and owned by the caller.
func (s *Synthesizer) Close() error { return nil }

var errEmptyAudio = errors.New("empty audio response")
