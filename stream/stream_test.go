package stream

import (
	"bytes"
	"testing"
)

func TestBoundedPush(t *testing.T) {
	s := New(4)
	n := s.Push([]byte("abcdef"))
	if n != 4 {
		t.Fatalf("Push truncation: got %d, want 4", n)
	}
	if s.BytesPushed() != 4 {
		t.Fatalf("BytesPushed = %d, want 4", s.BytesPushed())
	}
	if got := s.Peek(); !bytes.Equal(got, []byte("abcd")) {
		t.Fatalf("Peek = %q, want %q", got, "abcd")
	}
	s.Pop(4)
	if s.IsFinished() {
		t.Fatal("stream finished before Close")
	}
	s.Close()
	if !s.IsFinished() {
		t.Fatal("stream should be finished: closed and drained")
	}
}

func TestPushNoopWhenClosed(t *testing.T) {
	s := New(10)
	s.Close()
	if n := s.Push([]byte("x")); n != 0 {
		t.Fatalf("Push after Close: got %d, want 0", n)
	}
}

func TestPushEmptyIsNoop(t *testing.T) {
	s := New(10)
	if n := s.Push(nil); n != 0 {
		t.Fatalf("Push(nil) = %d, want 0", n)
	}
}

func TestStickyError(t *testing.T) {
	s := New(10)
	if s.HasError() {
		t.Fatal("fresh stream should not have error")
	}
	errA := errTest("a")
	errB := errTest("b")
	s.SetError(errA)
	s.SetError(errB)
	if s.Error() != errA {
		t.Fatalf("Error() = %v, want first error %v", s.Error(), errA)
	}
}

func TestInvariantAfterOps(t *testing.T) {
	s := New(16)
	s.Push([]byte("hello world"))
	if s.BytesPushed()-s.BytesPopped() != uint64(s.BytesBuffered()) {
		t.Fatal("pushed - popped != buffered invariant broken")
	}
	s.Pop(5)
	if s.BytesPushed()-s.BytesPopped() != uint64(s.BytesBuffered()) {
		t.Fatal("pushed - popped != buffered invariant broken after pop")
	}
	if uint64(s.BytesBuffered()) > 16 {
		t.Fatal("buffered exceeds capacity")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
