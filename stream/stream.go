// Package stream implements a bounded, single-producer/single-consumer byte
// stream with writer and reader halves, an EOF (close) signal, and a sticky
// error flag observable from both halves.
package stream

import "github.com/patchnet/corestack/internal"

// Stream is a fixed-capacity FIFO byte buffer split into a writer half
// (Push/Close/AvailableCapacity/BytesPushed) and a reader half
// (Peek/Pop/IsFinished/BytesPopped/BytesBuffered). The zero value is not
// usable; construct with New.
type Stream struct {
	ring        internal.Ring
	capacity    int
	closed      bool
	err         error
	bytesPushed uint64
	bytesPopped uint64
}

// New returns a Stream with the given fixed capacity in bytes.
func New(capacity int) *Stream {
	return &Stream{
		ring:     internal.Ring{Buf: make([]byte, capacity)},
		capacity: capacity,
	}
}

// Push appends data to the stream, truncated to AvailableCapacity if
// necessary. It is a no-op if the stream is closed, errored, or has zero
// available capacity, and returns the number of bytes actually buffered.
func (s *Stream) Push(data []byte) int {
	if s.closed || s.err != nil || len(data) == 0 {
		return 0
	}
	avail := s.AvailableCapacity()
	if avail == 0 {
		return 0
	}
	if len(data) > avail {
		data = data[:avail]
	}
	n, err := s.ring.Write(data)
	if err != nil {
		s.SetError(err)
		return 0
	}
	s.bytesPushed += uint64(n)
	return n
}

// Close sets the closed (EOF) flag on the writer half. Idempotent.
func (s *Stream) Close() { s.closed = true }

// IsClosed reports whether Close has been called.
func (s *Stream) IsClosed() bool { return s.closed }

// AvailableCapacity returns the number of bytes that can still be pushed
// before the stream is full.
func (s *Stream) AvailableCapacity() int { return s.capacity - s.ring.Buffered() }

// BytesPushed returns the cumulative count of bytes successfully pushed.
func (s *Stream) BytesPushed() uint64 { return s.bytesPushed }

// Peek returns a copy of all buffered, unread bytes, including those that
// wrap around the end of the backing storage, or nil when none are buffered.
// It does not advance the read position; use Pop for that.
func (s *Stream) Peek() []byte {
	buffered := s.ring.Buffered()
	if buffered == 0 {
		return nil
	}
	b := make([]byte, buffered)
	n, _ := s.ring.ReadPeek(b)
	return b[:n]
}

// Pop removes exactly n bytes from the front of the buffered data. The
// caller must ensure n <= BytesBuffered(); Pop panics otherwise, matching
// the precondition documented for the reader half.
func (s *Stream) Pop(n int) {
	if n == 0 {
		return
	}
	if err := s.ring.ReadDiscard(n); err != nil {
		panic("stream: pop exceeds buffered bytes")
	}
	s.bytesPopped += uint64(n)
}

// IsFinished reports whether the stream is closed and fully drained.
func (s *Stream) IsFinished() bool { return s.closed && s.ring.Buffered() == 0 }

// BytesPopped returns the cumulative count of bytes read out via Pop.
func (s *Stream) BytesPopped() uint64 { return s.bytesPopped }

// BytesBuffered returns the number of bytes currently held, unread.
func (s *Stream) BytesBuffered() int { return s.ring.Buffered() }

// SetError marks the stream errored. Sticky: once set, HasError always
// reports true and Error returns the first error recorded.
func (s *Stream) SetError(err error) {
	if s.err == nil {
		s.err = err
	}
}

// HasError reports whether SetError has been called.
func (s *Stream) HasError() bool { return s.err != nil }

// Error returns the sticky error, or nil if none was set.
func (s *Stream) Error() error { return s.err }
