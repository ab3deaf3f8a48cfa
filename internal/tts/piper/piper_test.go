package piper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/voicerelay/internal/config"
	"github.com/nadzzz/voicerelay/internal/tts"
)

// fakePiper accepts one connection, records the request and replies with events.
func fakePiper(t *testing.T, reply []event) (addr string, requests <-chan *event) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })

	ch := make(chan *event, 1)
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := readEvent(bufio.NewReader(conn))
		if err != nil {
			close(ch)
			return
		}
		ch <- req
		for _, evt := range reply {
			if err := writeEvent(conn, evt); err != nil {
				return
			}
		}
	}()
	return lis.Addr().String(), ch
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	addr, requests := fakePiper(t, []event{
		{Type: "audio-start", Data: map[string]any{"rate": 16000, "width": 2, "channels": 1}},
		{Type: "audio-chunk", Data: map[string]any{"rate": 16000}, Payload: pcm[:4]},
		{Type: "audio-chunk", Payload: pcm[4:]},
		{Type: "audio-stop"},
	})

	s := New(config.PiperConfig{Endpoint: "tcp://" + addr, Voice: "en_US-lessac-medium"})
	res, err := s.Synthesize(t.Context(), "Hello there.", tts.SynthesizeOpts{})
	require.NoError(t, err)

	req := <-requests
	require.NotNil(t, req)
	assert.Equal(t, "synthesize", req.Type)
	assert.Equal(t, "Hello there.", req.Data["text"])
	assert.Equal(t, map[string]any{"name": "en_US-lessac-medium"}, req.Data["voice"])

	assert.Equal(t, "audio/wav", res.ContentType)
	require.Len(t, res.Audio, 44+len(pcm))

	var hdr wavHeader
	require.NoError(t, binary.Read(bytes.NewReader(res.Audio[:44]), binary.LittleEndian, &hdr))
	assert.Equal(t, "RIFF", string(hdr.ChunkID[:]))
	assert.Equal(t, "WAVE", string(hdr.Format[:]))
	assert.EqualValues(t, 16000, hdr.SampleRate)
	assert.EqualValues(t, 1, hdr.NumChannels)
	assert.EqualValues(t, 16, hdr.BitsPerSample)
	assert.EqualValues(t, 32000, hdr.ByteRate)
	assert.EqualValues(t, len(pcm), hdr.Subchunk2Size)
	assert.Equal(t, pcm, res.Audio[44:])
}

func TestSynthesizeServerError(t *testing.T) {
	addr, _ := fakePiper(t, []event{
		{Type: "error", Data: map[string]any{"text": "voice not found"}},
	})

	s := New(config.PiperConfig{Endpoint: addr})
	_, err := s.Synthesize(t.Context(), "Hello.", tts.SynthesizeOpts{Voice: "xx"})
	assert.ErrorIs(t, err, tts.ErrSynthesis)
	assert.ErrorContains(t, err, "voice not found")
}

func TestSynthesizeNoAudio(t *testing.T) {
	addr, _ := fakePiper(t, []event{{Type: "audio-start"}, {Type: "audio-stop"}})

	s := New(config.PiperConfig{Endpoint: addr})
	_, err := s.Synthesize(t.Context(), "Hello.", tts.SynthesizeOpts{})
	assert.ErrorIs(t, err, tts.ErrSynthesis)
	assert.ErrorContains(t, err, "no audio")
}

func TestSynthesizeUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	s := New(config.PiperConfig{Endpoint: addr})
	_, err = s.Synthesize(t.Context(), "Hello.", tts.SynthesizeOpts{})
	assert.ErrorIs(t, err, tts.ErrSynthesis)
}

func TestSynthesizeValidation(t *testing.T) {
	_, err := New(config.PiperConfig{Endpoint: "localhost:10200"}).Synthesize(t.Context(), "", tts.SynthesizeOpts{})
	assert.ErrorIs(t, err, tts.ErrSynthesis)

	_, err = New(config.PiperConfig{}).Synthesize(t.Context(), "Hi.", tts.SynthesizeOpts{})
	assert.ErrorIs(t, err, tts.ErrSynthesis)
}

func TestEventRoundTripInlineData(t *testing.T) {
	// Older Wyoming peers put data inline in the header line.
	raw := `{"type":"audio-start","data":{"rate":24000}}` + "\n"
	evt, err := readEvent(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)
	assert.Equal(t, "audio-start", evt.Type)
	assert.Equal(t, 24000, intField(evt.Data, "rate", 0))
	assert.Equal(t, 7, intField(evt.Data, "width", 7))
}

func TestReadEventRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		"12 0\n",
		`{"data":{}}` + "\n",
		`{"type":"x","payload_length":999999999}` + "\n",
		`{"type":"x","payload_length":4}` + "\nab",
	} {
		_, err := readEvent(bufio.NewReader(bytes.NewBufferString(raw)))
		assert.Error(t, err, raw)
	}
}

func TestSynthesizeHonoursCancellation(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })
	go func() {
		conn, err := lis.Accept()
		if err == nil {
			// Never answer.
			time.Sleep(2 * time.Second)
			conn.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = New(config.PiperConfig{Endpoint: lis.Addr().String()}).Synthesize(ctx, "Hello.", tts.SynthesizeOpts{})
	assert.ErrorIs(t, err, tts.ErrSynthesis)
	assert.Less(t, time.Since(start), time.Second)
}
