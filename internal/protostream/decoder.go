// Package protostream frames a byte stream of varint length-delimited
// protobuf messages, the wire shape Bazel writes for
// --output=streamed_proto. It has no knowledge of message schemas; it
// only carves the stream into individual message payloads.
package protostream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
)

// ErrTruncatedStream is returned when the stream ends in the middle of
// a varint length prefix or a message body.
var ErrTruncatedStream = errors.New("protostream: truncated stream")

// Decoder reads successive length-delimited message frames from an
// underlying reader.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r for length-delimited framing.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next reads and returns the next message's raw payload. It returns
// io.EOF when the stream ends cleanly on a frame boundary, and
// ErrTruncatedStream when it ends mid varint or mid message.
func (d *Decoder) Next() ([]byte, error) {
	size, err := binary.ReadUvarint(d.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading length prefix: %v", ErrTruncatedStream, err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading message body: %v", ErrTruncatedStream, err)
	}
	return buf, nil
}

// Frames returns a lazy sequence of (payload, error) pairs. Iteration
// stops after the first error; io.EOF is not surfaced to the sequence,
// it simply ends it.
func (d *Decoder) Frames() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			frame, err := d.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield(nil, err)
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}
