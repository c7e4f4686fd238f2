// Package model defines the core data structures for quillsync.
package model

// ProgressType discriminates the two kinds of content frames on the sync
// stream.
type ProgressType string

// Progress frame types.
const (
	ProgressMessage ProgressType = "message"
	ProgressError   ProgressType = "error"
)

// Progress is one unit of sync progress as seen by the caller. Messages are
// delivered in emission order; an error is always the last content frame
// before the stream terminates.
type Progress struct {
	Type ProgressType `json:"type"`
	Data string       `json:"data"`
}

// Message builds a message-typed progress frame.
func Message(data string) Progress {
	return Progress{Type: ProgressMessage, Data: data}
}

// Error builds an error-typed progress frame.
func Error(data string) Progress {
	return Progress{Type: ProgressError, Data: data}
}
