// Package relay implements the streaming relay between a chat backend, a
// speech synthesizer and one client stream.
//
// For each request the relay forwards every chat token to the client as it
// arrives, cuts the running text into sentences, synthesizes each sentence
// and forwards the audio, then closes the stream with a done marker. Audio
// failures never abort the stream; a chat failure replaces the done marker
// with a single error event.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/voicerelay/internal/chat"
	"github.com/nadzzz/voicerelay/internal/event"
	"github.com/nadzzz/voicerelay/internal/segment"
	"github.com/nadzzz/voicerelay/internal/tts"
)

// ErrEmptyInput is returned by Run when the user text is blank. Nothing has
// been sent to the sink when it is returned.
var ErrEmptyInput = errors.New("empty input")

// Sink receives the events of one stream in order. A Send error means the
// client is gone and the run is abandoned.
type Sink interface {
	Send(e event.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e event.Event) error

// Send calls f(e).
func (f SinkFunc) Send(e event.Event) error { return f(e) }

// Options tunes a Relay.
type Options struct {
	// SystemPrompt is sent ahead of every user message.
	SystemPrompt string

	// Model overrides the chat backend's default model.
	Model string

	// MinSentenceLength is the trimmed length a sentence must exceed to be
	// synthesized before the chat stream ends.
	MinSentenceLength int

	// Terminators lists the sentence boundary characters.
	Terminators string

	// Pipeline moves synthesis to a background worker so token forwarding
	// continues while audio is produced.
	Pipeline bool

	// QueueSize bounds the sentences waiting for the pipeline worker.
	QueueSize int
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MinSentenceLength: segment.DefaultMinLength,
		Terminators:       segment.DefaultTerminators,
		QueueSize:         8,
	}
}

// Relay is safe for concurrent use; each Run owns its own state.
type Relay struct {
	chat  chat.Streamer
	synth tts.Synthesizer // nil if TTS is disabled
	opts  Options
}

// New creates a Relay. synth may be nil to stream text only.
func New(streamer chat.Streamer, synth tts.Synthesizer, opts Options) *Relay {
	if opts.Terminators == "" {
		opts.Terminators = segment.DefaultTerminators
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 8
	}
	return &Relay{chat: streamer, synth: synth, opts: opts}
}

// Run streams the answer to text into sink.
//
// It returns ErrEmptyInput for blank text, or the sink's error if the client
// went away. Upstream chat failures are reported to the client as an error
// event and Run returns nil.
func (r *Relay) Run(ctx context.Context, text string, sink Sink) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	start := time.Now()
	logger := slog.With("request_id", uuid.NewString(), "chat_backend", r.chat.Name())
	logger.Info("relay started", "text_length", len(text), "pipeline", r.opts.Pipeline)
	logger.Debug("received input", "text", text)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stream, err := r.chat.Stream(ctx, chat.Request{
		System: r.opts.SystemPrompt,
		User:   text,
		Model:  r.opts.Model,
	})
	if err != nil {
		logger.Error("chat stream failed to open", "error", err)
		return sink.Send(event.Error(err))
	}
	defer stream.Close()

	if r.opts.Pipeline {
		sink = &lockedSink{sink: sink}
	}
	sp := r.newSpeaker(ctx, cancel, sink, logger)
	defer sp.stop()

	var (
		full    strings.Builder
		seg     = segment.NewWithTerminators(r.opts.MinSentenceLength, r.opts.Terminators)
		chunkID int
	)

	for stream.Next() {
		tok := stream.Token()
		if tok == "" {
			continue
		}
		full.WriteString(tok)
		sentence, complete := seg.Push(tok)

		if err := sink.Send(event.Token(tok)); err != nil {
			cancel(err)
			return fmt.Errorf("sending token: %w", err)
		}

		if complete && sp != nil {
			chunkID++
			if err := sp.speak(ctx, sentence, chunkID); err != nil {
				return err
			}
		}
	}

	// Let queued audio for completed sentences go out before anything else.
	if err := sp.stop(); err != nil {
		return err
	}
	if err := context.Cause(ctx); err != nil {
		logger.Info("relay abandoned", "error", err)
		return err
	}

	if err := stream.Err(); err != nil {
		logger.Error("chat stream failed", "error", err, "response_length", full.Len())
		return sink.Send(event.Error(err))
	}

	logger.Info("chat stream complete", "response_length", full.Len(), "sentences", chunkID)
	logger.Debug("chat response", "text", full.String())

	if sentence, ok := seg.Flush(); ok && sp != nil {
		if err := sp.synthesize(ctx, sentence, 0); err != nil {
			return err
		}
	}

	logger.Info("relay complete", "duration", time.Since(start))
	return sink.Send(event.Done())
}

// lockedSink serializes Send calls from the token loop and the synthesis worker.
type lockedSink struct {
	mu   sync.Mutex
	sink Sink
}

func (s *lockedSink) Send(e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink.Send(e)
}
