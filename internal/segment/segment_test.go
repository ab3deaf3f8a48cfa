package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// feed pushes every token and collects emitted sentences, then flushes.
func feed(s *Segmenter, tokens ...string) (sentences []string, trailing string) {
	for _, tok := range tokens {
		if sentence, ok := s.Push(tok); ok {
			sentences = append(sentences, sentence)
		}
	}
	trailing, _ = s.Flush()
	return sentences, trailing
}

func TestPushEmitsOnTerminator(t *testing.T) {
	s := New(DefaultMinLength)

	sentences, trailing := feed(s, "Hello", "!", " How", " are", " you", "?")

	assert.Equal(t, []string{"Hello!", "How are you?"}, sentences)
	assert.Empty(t, trailing)
}

func TestShortSentenceIsRetained(t *testing.T) {
	s := New(DefaultMinLength)

	sentence, ok := s.Push("Hi.")
	assert.False(t, ok)
	assert.Empty(t, sentence)
	assert.Equal(t, 3, s.Len())

	trailing, ok := s.Flush()
	assert.True(t, ok)
	assert.Equal(t, "Hi.", trailing)
	assert.Zero(t, s.Len())
}

func TestShortFragmentMergesIntoNextSentence(t *testing.T) {
	s := New(DefaultMinLength)

	sentences, trailing := feed(s, "Ok.", " Let", " me", " check", ".")

	assert.Equal(t, []string{"Ok. Let me check."}, sentences)
	assert.Empty(t, trailing)
}

func TestBoundaryOnlyChecksNewestToken(t *testing.T) {
	s := New(DefaultMinLength)

	// The buffer already contains a period but the new token does not.
	_, ok := s.Push("A.")
	assert.False(t, ok)
	_, ok = s.Push(" longer")
	assert.False(t, ok)

	sentence, ok := s.Push("\n")
	assert.True(t, ok)
	assert.Equal(t, "A. longer", sentence)
}

func TestTerminatorMidToken(t *testing.T) {
	s := New(DefaultMinLength)

	sentence, ok := s.Push("Sure. Then")
	assert.True(t, ok)
	assert.Equal(t, "Sure. Then", sentence)
}

func TestLengthCountsRunes(t *testing.T) {
	s := New(DefaultMinLength)

	// Four runes, eight bytes.
	_, ok := s.Push("äöü?")
	assert.True(t, ok)

	_, ok = s.Push("éé!")
	assert.False(t, ok)
}

func TestFlushWhitespaceOnly(t *testing.T) {
	s := New(DefaultMinLength)
	s.Push("  \t ")

	sentence, ok := s.Flush()
	assert.False(t, ok)
	assert.Empty(t, sentence)
}

func TestCustomTerminatorsAndMinLength(t *testing.T) {
	s := NewWithTerminators(0, "。")

	sentences, trailing := feed(s, "你好", "。", "再见.")

	assert.Equal(t, []string{"你好。"}, sentences)
	assert.Equal(t, "再见.", trailing)
}

func TestEmptyTerminatorsFallBackToDefault(t *testing.T) {
	s := NewWithTerminators(DefaultMinLength, "")

	sentence, ok := s.Push("Done now!")
	assert.True(t, ok)
	assert.Equal(t, "Done now!", sentence)
}
