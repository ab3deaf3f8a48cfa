// Package event defines the stream events relayed to clients and their
// Server-Sent Events framing.
package event

import (
	"encoding/json"
	"fmt"
	"io"
)

// Kind discriminates the members of the Event union.
type Kind int

const (
	KindToken Kind = iota
	KindAudio
	KindError
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindToken:
		return "token"
	case KindAudio:
		return "audio"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DoneMarker is the literal SSE payload that terminates a successful stream.
const DoneMarker = "[DONE]"

// Event is one frame of an outbound relay stream.
//
// Exactly one of the payload groups is populated, selected by Kind. Audio is
// serialized as standard base64 by encoding/json. A ChunkID of zero is
// omitted, which is how the trailing flush chunk is marked.
type Event struct {
	Kind Kind `json:"-"`

	Token string `json:"token,omitempty"`

	Audio     []byte `json:"audio_chunk,omitempty"`
	AudioMIME string `json:"audio_mime,omitempty"`
	ChunkID   int    `json:"chunk_id,omitempty"`

	Error string `json:"error,omitempty"`

	// Done is only serialized by transports without an SSE done marker.
	Done bool `json:"done,omitempty"`
}

// Token returns a token fragment event.
func Token(s string) Event {
	return Event{Kind: KindToken, Token: s}
}

// Audio returns an audio chunk event. chunkID 0 marks an unsequenced chunk.
func Audio(audio []byte, mime string, chunkID int) Event {
	return Event{Kind: KindAudio, Audio: audio, AudioMIME: mime, ChunkID: chunkID}
}

// Error returns an error event carrying err's message.
func Error(err error) Event {
	return Event{Kind: KindError, Error: err.Error()}
}

// Done returns the end-of-stream event.
func Done() Event {
	return Event{Kind: KindDone, Done: true}
}

// WriteSSE writes e as a single "data:" frame. The done event is written as
// the literal DoneMarker.
func WriteSSE(w io.Writer, e Event) error {
	if e.Kind == KindDone {
		_, err := io.WriteString(w, "data: "+DoneMarker+"\n\n")
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", e.Kind, err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return nil
}
