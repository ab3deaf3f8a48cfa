// Package chattest provides an in-memory chat.Streamer for tests.
package chattest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nadzzz/voicerelay/internal/chat"
)

// Streamer replays Tokens for every request.
type Streamer struct {
	// Tokens are yielded in order by every stream.
	Tokens []string

	// OpenErr, if set, is returned by Stream.
	OpenErr error

	// StreamErr, if set, ends every stream after the last token.
	StreamErr error

	// Delay is slept before each token.
	Delay time.Duration

	mu     sync.Mutex
	calls  int
	last   chat.Request
	closed atomic.Int32
}

// Name returns "fake".
func (f *Streamer) Name() string { return "fake" }

// Close is a no-op.
func (f *Streamer) Close() error { return nil }

// Stream records req and returns a replaying stream bound to ctx.
func (f *Streamer) Stream(ctx context.Context, req chat.Request) (chat.Stream, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	f.mu.Unlock()
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return &stream{ctx: ctx, parent: f, idx: -1}, nil
}

// Calls returns how many streams were requested.
func (f *Streamer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastRequest returns the most recent request.
func (f *Streamer) LastRequest() chat.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Closed returns how many streams have been closed.
func (f *Streamer) Closed() int { return int(f.closed.Load()) }

type stream struct {
	ctx    context.Context
	parent *Streamer
	idx    int
	err    error
}

func (s *stream) Next() bool {
	if s.err != nil {
		return false
	}
	if d := s.parent.Delay; d > 0 {
		select {
		case <-time.After(d):
		case <-s.ctx.Done():
		}
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.idx++
	if s.idx < len(s.parent.Tokens) {
		return true
	}
	s.err = s.parent.StreamErr
	return false
}

func (s *stream) Token() string {
	if s.idx < 0 || s.idx >= len(s.parent.Tokens) {
		return ""
	}
	return s.parent.Tokens[s.idx]
}

func (s *stream) Err() error { return s.err }

func (s *stream) Close() error {
	s.parent.closed.Add(1)
	return nil
}
