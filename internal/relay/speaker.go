package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nadzzz/voicerelay/internal/event"
	"github.com/nadzzz/voicerelay/internal/tts"
)

// previewLength caps how much of a sentence is logged.
const previewLength = 50

// speaker turns sentences into audio events for one run.
//
// Sequential speakers synthesize inline, pausing the token loop. Pipelined
// speakers hand sentences to a single FIFO worker, so audio events keep the
// order of their chunk ids. A nil *speaker means synthesis is disabled.
type speaker struct {
	synth  tts.Synthesizer
	sink   Sink
	logger *slog.Logger
	cancel context.CancelCauseFunc

	jobs chan job // nil when sequential
	done chan struct{}
	err  error // first sink error seen by the worker; read after done
}

type job struct {
	sentence string
	chunkID  int
}

func (r *Relay) newSpeaker(ctx context.Context, cancel context.CancelCauseFunc, sink Sink, logger *slog.Logger) *speaker {
	if r.synth == nil {
		return nil
	}
	sp := &speaker{
		synth:  r.synth,
		sink:   sink,
		logger: logger.With("tts_backend", r.synth.Name()),
		cancel: cancel,
	}
	if r.opts.Pipeline {
		sp.jobs = make(chan job, r.opts.QueueSize)
		sp.done = make(chan struct{})
		go sp.work(ctx)
	}
	return sp
}

// speak synthesizes sentence now, or queues it for the worker.
func (sp *speaker) speak(ctx context.Context, sentence string, chunkID int) error {
	if sp.jobs == nil {
		return sp.synthesize(ctx, sentence, chunkID)
	}
	select {
	case sp.jobs <- job{sentence: sentence, chunkID: chunkID}:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

func (sp *speaker) work(ctx context.Context) {
	defer close(sp.done)
	for j := range sp.jobs {
		if ctx.Err() != nil {
			continue
		}
		if err := sp.synthesize(ctx, j.sentence, j.chunkID); err != nil {
			sp.err = err
			sp.cancel(err)
		}
	}
}

// stop drains the worker and returns its sink error. It is idempotent.
func (sp *speaker) stop() error {
	if sp == nil || sp.jobs == nil {
		return nil
	}
	select {
	case <-sp.done:
	default:
		close(sp.jobs)
		<-sp.done
	}
	return sp.err
}

// synthesize produces and sends one audio event. Synthesis failures are
// logged and swallowed; only a failed Send is returned. chunkID 0 marks the
// trailing flush.
func (sp *speaker) synthesize(ctx context.Context, sentence string, chunkID int) error {
	logger := sp.logger.With("chunk_id", chunkID)
	logger.Info("generating speech", "preview", preview(sentence), "text_length", len(sentence))

	res, err := sp.synth.Synthesize(ctx, sentence, tts.SynthesizeOpts{})
	if err != nil {
		logger.Warn("speech synthesis failed, continuing", "error", err)
		return nil
	}

	if err := sp.sink.Send(event.Audio(res.Audio, res.ContentType, chunkID)); err != nil {
		return fmt.Errorf("sending audio chunk %d: %w", chunkID, err)
	}
	logger.Info("audio chunk sent", "audio_bytes", len(res.Audio))
	return nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLength {
		return s
	}
	return string(r[:previewLength]) + "..."
}
