package stream

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestStream_EmitThenClose(t *testing.T) {
	s, c := New()
	go func() {
		_ = c.Emit([]byte("SELECT "))
		_ = c.Emit(nil)
		_ = c.Emit([]byte("1"))
		c.Close()
	}()

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "SELECT 1" {
		t.Errorf("got %q", got)
	}
}

func TestStream_FailSurfacesAfterData(t *testing.T) {
	boom := errors.New("boom")
	s, c := New()
	go func() {
		_ = c.Emit([]byte("partial"))
		c.Fail(boom)
	}()

	got, err := io.ReadAll(s)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if string(got) != "partial" {
		t.Errorf("got %q", got)
	}
}

func TestStream_FailNilIsUnexpectedEOF(t *testing.T) {
	s, c := New()
	go c.Fail(nil)

	if _, err := io.ReadAll(s); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestController_TerminalStateIsFinal(t *testing.T) {
	s, c := New()
	c.Close()
	c.Fail(errors.New("late"))

	select {
	case <-c.Done():
	default:
		t.Fatal("Done must be closed after Close")
	}
	if err := c.Emit([]byte("x")); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("emit after close: expected io.ErrClosedPipe, got %v", err)
	}
	if _, err := io.ReadAll(s); err != nil {
		t.Errorf("first terminal call wins, expected clean EOF, got %v", err)
	}
}

func TestStream_ConsumerCloseFailsEmit(t *testing.T) {
	s, c := New()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = s.Close()

	select {
	case <-c.Canceled():
	case <-time.After(time.Second):
		t.Fatal("Canceled not signalled")
	}
	if err := c.Emit([]byte("x")); !errors.Is(err, ErrConsumerClosed) {
		t.Errorf("expected ErrConsumerClosed, got %v", err)
	}
}
