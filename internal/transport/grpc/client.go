package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/nadzzz/voicerelay/internal/event"
)

// Client calls the Relay service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Chat sends text and returns the stream of answer events.
func (c *Client) Chat(ctx context.Context, text string, opts ...grpc.CallOption) (*ChatStream, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], "/"+ServiceName+"/Chat", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&ChatRequest{Text: text}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &ChatStream{stream: stream}, nil
}

// ChatStream yields the events of one Chat call.
type ChatStream struct {
	stream grpc.ClientStream
}

// Recv returns the next event. It returns io.EOF after the done event of a
// successful answer, and a status error if the call failed.
func (s *ChatStream) Recv() (event.Event, error) {
	var e event.Event
	if err := s.stream.RecvMsg(&e); err != nil {
		return event.Event{}, err
	}
	e.Kind = kindOf(e)
	return e, nil
}

// kindOf restores the discriminator, which is not part of the JSON form.
func kindOf(e event.Event) event.Kind {
	switch {
	case e.Done:
		return event.KindDone
	case e.Error != "":
		return event.KindError
	case len(e.Audio) > 0:
		return event.KindAudio
	default:
		return event.KindToken
	}
}
