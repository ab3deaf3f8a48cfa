package piper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// maxEventPart bounds the data and payload sections of one event.
const maxEventPart = 16 << 20

// event is a Wyoming protocol message.
//
// On the wire an event is a JSON header line, followed by data_length bytes
// of JSON data and payload_length bytes of binary payload:
//
//	{"type":"audio-chunk","data_length":43,"payload_length":2048}\n
//	{"rate":22050,"width":2,"channels":1}<2048 bytes of PCM>
type event struct {
	Type    string
	Data    map[string]any
	Payload []byte
}

type eventHeader struct {
	Type          string         `json:"type"`
	Data          map[string]any `json:"data,omitempty"`
	DataLength    int            `json:"data_length,omitempty"`
	PayloadLength int            `json:"payload_length,omitempty"`
}

// writeEvent sends evt, placing its data in a separate section.
func writeEvent(w io.Writer, evt event) error {
	var dataBytes []byte
	if len(evt.Data) > 0 {
		var err error
		if dataBytes, err = json.Marshal(evt.Data); err != nil {
			return fmt.Errorf("marshalling %s data: %w", evt.Type, err)
		}
	}

	header, err := json.Marshal(eventHeader{
		Type:          evt.Type,
		DataLength:    len(dataBytes),
		PayloadLength: len(evt.Payload),
	})
	if err != nil {
		return fmt.Errorf("marshalling %s header: %w", evt.Type, err)
	}

	bw := bufio.NewWriter(w)
	bw.Write(header)
	bw.WriteByte('\n')
	bw.Write(dataBytes)
	bw.Write(evt.Payload)
	return bw.Flush()
}

// readEvent reads the next event. Data sent inline in the header and data
// sent in a separate section are merged.
func readEvent(r *bufio.Reader) (*event, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var hdr eventHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return nil, fmt.Errorf("invalid wyoming header %q: %w", line, err)
	}
	if hdr.Type == "" {
		return nil, fmt.Errorf("wyoming header without type: %q", line)
	}
	if hdr.DataLength < 0 || hdr.DataLength > maxEventPart || hdr.PayloadLength < 0 || hdr.PayloadLength > maxEventPart {
		return nil, fmt.Errorf("wyoming %s event too large (data %d, payload %d)", hdr.Type, hdr.DataLength, hdr.PayloadLength)
	}

	evt := &event{Type: hdr.Type, Data: hdr.Data}
	if evt.Data == nil {
		evt.Data = map[string]any{}
	}

	if hdr.DataLength > 0 {
		buf := make([]byte, hdr.DataLength)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading %s data: %w", hdr.Type, err)
		}
		var extra map[string]any
		if err := json.Unmarshal(buf, &extra); err != nil {
			return nil, fmt.Errorf("decoding %s data: %w", hdr.Type, err)
		}
		for k, v := range extra {
			evt.Data[k] = v
		}
	}

	if hdr.PayloadLength > 0 {
		evt.Payload = make([]byte, hdr.PayloadLength)
		if _, err := io.ReadFull(r, evt.Payload); err != nil {
			return nil, fmt.Errorf("reading %s payload: %w", hdr.Type, err)
		}
	}

	return evt, nil
}

// intField returns data[key] as an int, or def when absent.
func intField(data map[string]any, key string, def int) int {
	if v, ok := data[key].(float64); ok {
		return int(v)
	}
	return def
}
