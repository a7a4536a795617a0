package handler

import (
	"io"
)

// StreamHandler writes lines to an io.Writer such as os.Stdout. The stream is
// never closed by the handler.
type StreamHandler struct {
	*Base
	w io.Writer
}

func NewStream(name string, w io.Writer, reporter *ErrorReporter) *StreamHandler {
	h := &StreamHandler{w: w}
	h.Base = newBase(name, reporter, func(line []byte) error {
		_, err := h.w.Write(line)
		return err
	})
	return h
}

func (h *StreamHandler) Writer() io.Writer { return h.w }

func (h *StreamHandler) Flush() error {
	if f, ok := h.w.(interface{ Flush() error }); ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		return f.Flush()
	}
	return nil
}

func (h *StreamHandler) Close() error {
	return h.Flush()
}
