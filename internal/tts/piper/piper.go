// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. A synthesis is one
// short-lived connection: synthesize -> audio-start, audio-chunk*, audio-stop.
package piper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/voicerelay/internal/config"
	"github.com/nadzzz/voicerelay/internal/tts"
)

// ContentType is the MIME type of every payload this backend returns.
const ContentType = "audio/wav"

const (
	dialTimeout    = 10 * time.Second
	defaultTimeout = 30 * time.Second
)

// Synthesizer implements tts.Synthesizer using the Wyoming protocol.
type Synthesizer struct {
	endpoint string // host:port of the Piper Wyoming server
	voice    string
}

// New creates a new Piper synthesizer from config.
func New(cfg config.PiperConfig) *Synthesizer {
	endpoint := strings.TrimPrefix(cfg.Endpoint, "tcp://")
	return &Synthesizer{endpoint: endpoint, voice: cfg.Voice}
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "piper" }

// Synthesize sends text to the Piper server and returns the audio as WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", tts.ErrSynthesis)
	}
	if s.endpoint == "" {
		return nil, fmt.Errorf("%w: no piper endpoint configured", tts.ErrSynthesis)
	}

	voice := s.voice
	if opts.Voice != "" {
		voice = opts.Voice
	}

	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "endpoint", s.endpoint)

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to piper: %w", tts.ErrSynthesis, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}
	_ = conn.SetDeadline(deadline)

	// Unblock reads if the request is cancelled before the deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	req := event{Type: "synthesize", Data: map[string]any{"text": text}}
	if voice != "" {
		req.Data["voice"] = map[string]any{"name": voice}
	}
	if err := writeEvent(conn, req); err != nil {
		return nil, fmt.Errorf("%w: sending synthesize event: %w", tts.ErrSynthesis, err)
	}

	audio, err := readAudio(bufio.NewReader(conn))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tts.ErrSynthesis, err)
	}
	return &tts.SynthesizeResult{Audio: audio, ContentType: ContentType}, nil
}

// readAudio collects PCM until audio-stop and returns it as WAV.
func readAudio(r *bufio.Reader) ([]byte, error) {
	var (
		pcm        bytes.Buffer
		sampleRate = 22050
		channels   = 1
		width      = 2
	)

	for {
		evt, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			sampleRate = intField(evt.Data, "rate", sampleRate)
			channels = intField(evt.Data, "channels", channels)
			width = intField(evt.Data, "width", width)

		case "audio-chunk":
			pcm.Write(evt.Payload)

		case "audio-stop":
			if pcm.Len() == 0 {
				return nil, fmt.Errorf("piper returned no audio")
			}
			slog.Debug("piper audio-stop", "pcm_bytes", pcm.Len(), "rate", sampleRate)
			return pcmToWAV(pcm.Bytes(), sampleRate, channels, width), nil

		case "error":
			msg, _ := evt.Data["text"].(string)
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("piper error: %s", msg)

		default:
			slog.Debug("piper ignoring event", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }
