package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
)

// Decoder incrementally reassembles framed progress messages from arbitrary
// byte chunks, the way they arrive on a streamed HTTP body.
type Decoder struct {
	buf        []byte
	terminated bool
}

// NewDecoder creates an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns every progress message that became
// complete with it. Messages are returned in wire order. An unparsable
// frame or a stray byte between frames is a protocol violation.
func (d *Decoder) Feed(chunk []byte) ([]model.Progress, error) {
	d.buf = append(d.buf, chunk...)

	var messages []model.Progress
	for len(d.buf) > 0 {
		switch d.buf[0] {
		case StreamTerminator:
			d.terminated = true
			d.buf = d.buf[1:]
		case FrameStart:
			end := bytes.IndexByte(d.buf, FrameEnd)
			if end < 0 {
				// Incomplete frame; wait for more bytes.
				return messages, nil
			}
			var msg model.Progress
			if err := json.Unmarshal(d.buf[1:end], &msg); err != nil {
				return messages, fmt.Errorf("%w: frame body is not valid JSON: %v", common.ErrProtocolViolation, err)
			}
			d.buf = d.buf[end+1:]
			messages = append(messages, msg)
		default:
			return messages, fmt.Errorf("%w: unexpected byte 0x%02x between frames", common.ErrProtocolViolation, d.buf[0])
		}
	}

	return messages, nil
}

// Terminated reports whether the stream terminator has been received.
func (d *Decoder) Terminated() bool {
	return d.terminated
}

// Close checks that the stream ended gracefully. A connection that closed
// without delivering the terminator is a protocol violation.
func (d *Decoder) Close() error {
	if !d.terminated {
		return fmt.Errorf("%w: stream closed without terminator", common.ErrProtocolViolation)
	}
	return nil
}

// DecodeAll reads r to EOF and returns the full message sequence, verifying
// graceful termination.
func DecodeAll(r io.Reader) ([]model.Progress, error) {
	d := NewDecoder()

	var messages []model.Progress
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			msgs, feedErr := d.Feed(chunk[:n])
			messages = append(messages, msgs...)
			if feedErr != nil {
				return messages, feedErr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return messages, fmt.Errorf("failed to read stream: %w", err)
		}
	}

	if err := d.Close(); err != nil {
		return messages, err
	}
	return messages, nil
}
