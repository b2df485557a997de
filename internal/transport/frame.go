// Package transport carries the sync channel over websockets.
//
// Every websocket message is one msgpack frame. The event payload travels
// as an opaque byte buffer in Data and is decoded by whoever handles the
// event. A frame with a non-zero ID is a request: the receiver answers
// with a frame carrying the same ID and Ack set.
package transport

import (
	"github.com/conneroisu/widgetsync/internal/codec"
	"github.com/conneroisu/widgetsync/internal/errors"
)

// Frame is one websocket message.
type Frame struct {
	Event string `msgpack:"event"`
	Data  []byte `msgpack:"data"`
	ID    uint64 `msgpack:"id,omitempty"`
	Ack   bool   `msgpack:"ack,omitempty"`
}

func encodeFrame(f Frame) ([]byte, error) {
	return codec.Encode(f)
}

func decodeFrame(b []byte) (Frame, error) {
	var f Frame
	if err := codec.DecodeInto(b, &f); err != nil {
		return Frame{}, err
	}
	if f.Event == "" && !f.Ack {
		return Frame{}, errors.NewCodecError(errors.ErrCodeDecode, "frame has no event name", nil)
	}
	return f, nil
}
