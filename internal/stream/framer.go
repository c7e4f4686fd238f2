// Package stream implements the text-framing wire protocol that multiplexes
// progress messages and terminal errors over a single chunked HTTP body.
//
// Each content frame is a start marker byte, one JSON-encoded progress
// message, and an end marker byte; the whole stream ends with a single
// terminator byte. The markers are the ASCII STX, ETX, and EOT controls.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/quillsync/quillsync/internal/common"
	"github.com/quillsync/quillsync/internal/model"
)

// Wire framing byte values.
const (
	FrameStart       byte = 0x02
	FrameEnd         byte = 0x03
	StreamTerminator byte = 0x04
)

// Encoder serializes progress messages onto a byte stream, flushing after
// every frame so the consumer sees progress as it is produced.
type Encoder struct {
	w     io.Writer
	flush func()
}

// NewEncoder creates an encoder on top of w. When w implements
// http.Flusher, every frame is flushed to the client as it is written.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		e.flush = f.Flush
	}
	return e
}

// Encode writes one framed progress message.
func (e *Encoder) Encode(p model.Progress) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	frame := make([]byte, 0, len(payload)+2)
	frame = append(frame, FrameStart)
	frame = append(frame, payload...)
	frame = append(frame, FrameEnd)

	if _, err := e.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	e.flush()
	return nil
}

// Terminate writes the stream terminator byte.
func (e *Encoder) Terminate() error {
	if _, err := e.w.Write([]byte{StreamTerminator}); err != nil {
		return fmt.Errorf("failed to write terminator: %w", err)
	}
	e.flush()
	return nil
}

// Drain pulls a provider's progress sequence to completion and frames every
// element. A terminal fault from the sequence becomes one final error-typed
// frame; the terminator byte is written unconditionally, even when the
// sequence produced nothing at all.
//
// A returned error means the underlying writer failed, which on an HTTP
// response body indicates the client went away. Sequence faults are never
// returned: they are delivered in-band.
func (e *Encoder) Drain(seq iter.Seq2[string, error]) error {
	for msg, err := range seq {
		if err != nil {
			if encErr := e.Encode(model.Error(common.UserMessage(err))); encErr != nil {
				_ = e.Terminate()
				return encErr
			}
			break
		}
		if encErr := e.Encode(model.Message(msg)); encErr != nil {
			_ = e.Terminate()
			return encErr
		}
	}

	return e.Terminate()
}
