// Package stream relays a provider's completion event stream to callers as
// plain UTF-8 text.
package stream

import (
	"errors"
	"io"
	"sync"
)

// ErrConsumerClosed is returned by Emit once the consumer stopped reading.
var ErrConsumerClosed = errors.New("stream consumer closed")

// Stream is the consumer side: an io.ReadCloser over emitted text deltas.
// Read blocks until the producer emits, closes or fails. A failed stream
// returns the producer's error from Read after all emitted bytes are consumed.
// Closing the stream makes the producer's next Emit fail.
type Stream struct {
	r    *io.PipeReader
	once sync.Once
	gone chan struct{}
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	return s.r.Read(p) //nolint:wrapcheck // producer errors are surfaced as-is
}

// Close stops consumption; pending and future emits fail with ErrConsumerClosed.
func (s *Stream) Close() error {
	s.once.Do(func() { close(s.gone) })
	return s.r.CloseWithError(ErrConsumerClosed) //nolint:wrapcheck // never fails
}

// Controller is the producer side with the three stream operations.
type Controller struct {
	w    *io.PipeWriter
	once sync.Once
	done chan struct{}
	gone <-chan struct{}
}

// New returns a connected consumer/producer pair. Emission is unbuffered:
// Emit returns only after the consumer has read the bytes.
func New() (*Stream, *Controller) {
	r, w := io.Pipe()
	gone := make(chan struct{})
	return &Stream{r: r, gone: gone}, &Controller{w: w, done: make(chan struct{}), gone: gone}
}

// Emit hands b to the consumer, blocking until it is fully read.
func (c *Controller) Emit(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	select {
	case <-c.done:
		return io.ErrClosedPipe
	default:
	}
	if _, err := c.w.Write(b); err != nil {
		return err //nolint:wrapcheck // ErrConsumerClosed or io.ErrClosedPipe
	}
	return nil
}

// Close ends the stream normally; the consumer sees io.EOF.
func (c *Controller) Close() {
	c.finish(nil)
}

// Fail ends the stream with err; the consumer's Read returns it.
func (c *Controller) Fail(err error) {
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	c.finish(err)
}

// Canceled is closed once the consumer closed its side.
func (c *Controller) Canceled() <-chan struct{} {
	return c.gone
}

// Done is closed once Close or Fail was called.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) finish(err error) {
	c.once.Do(func() {
		_ = c.w.CloseWithError(err)
		close(c.done)
	})
}
