// Package sink provides the destination for the final stage's decoded output
// and for shell diagnostics.
package sink

import (
	"io"

	"github.com/pkg/errors"
)

// Sink receives decoded text for display. The text already uses the
// terminal's carriage-return/line-feed convention.
type Sink interface {
	Write(text string) error
}

// Writer adapts an io.Writer to the Sink interface.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Sink writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write implements Sink.
func (s *Writer) Write(text string) error {
	_, err := io.WriteString(s.w, text)

	return errors.Wrap(err, "sink")
}
