// Package segment splits a streaming token feed into sentences for speech
// synthesis.
package segment

import (
	"strings"
	"unicode/utf8"
)

// DefaultTerminators are the characters that end a sentence.
const DefaultTerminators = ".!?\n"

// DefaultMinLength is the trimmed length a sentence must exceed before it is
// emitted mid-stream.
const DefaultMinLength = 3

// Segmenter accumulates tokens into a sentence buffer.
//
// A boundary is detected when the newest token contains a terminator. The
// buffered text is emitted only if its trimmed length exceeds the minimum;
// shorter text stays buffered and merges into the next sentence.
// A Segmenter is not safe for concurrent use.
type Segmenter struct {
	buf         strings.Builder
	minLength   int
	terminators string
}

// New returns a Segmenter using DefaultTerminators.
func New(minLength int) *Segmenter {
	return NewWithTerminators(minLength, DefaultTerminators)
}

// NewWithTerminators returns a Segmenter that treats every rune of
// terminators as a sentence boundary.
func NewWithTerminators(minLength int, terminators string) *Segmenter {
	if terminators == "" {
		terminators = DefaultTerminators
	}
	return &Segmenter{minLength: minLength, terminators: terminators}
}

// Push appends token to the buffer and returns a completed sentence, if any.
func (s *Segmenter) Push(token string) (string, bool) {
	s.buf.WriteString(token)
	if !strings.ContainsAny(token, s.terminators) {
		return "", false
	}
	sentence := strings.TrimSpace(s.buf.String())
	if utf8.RuneCountInString(sentence) <= s.minLength {
		return "", false
	}
	s.buf.Reset()
	return sentence, true
}

// Flush returns whatever is buffered, regardless of length, and resets the
// buffer. It reports false when the buffer holds only whitespace.
func (s *Segmenter) Flush() (string, bool) {
	sentence := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	return sentence, sentence != ""
}

// Len returns the number of buffered bytes.
func (s *Segmenter) Len() int { return s.buf.Len() }
