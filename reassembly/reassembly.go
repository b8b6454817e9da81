// Package reassembly places out-of-order byte substrings into a bounded
// stream.Stream, delivering contiguous prefixes to the stream as they become
// available and tracking the eventual end-of-stream index.
package reassembly

import (
	"sort"

	"github.com/patchnet/corestack/internal"
	"github.com/patchnet/corestack/stream"
)

// segment is a pending, not-yet-assembled substring starting at absolute
// stream index first.
type segment struct {
	first uint64
	data  []byte
}

func (s segment) end() uint64 { return s.first + uint64(len(s.data)) }

// Reassembler owns a stream.Stream writer and a set of pending out-of-order
// substrings, keyed by their absolute position in the stream. Substrings are
// kept sorted and non-overlapping; Insert splices new data in, splitting
// neighbors at interval boundaries as needed.
type Reassembler struct {
	out          *stream.Stream
	pending      []segment // sorted by .first, non-overlapping
	totalPending uint64
	endIndex     *uint64
}

// New returns a Reassembler that writes assembled bytes to out.
func New(out *stream.Stream) *Reassembler {
	return &Reassembler{out: out}
}

// BytesPending returns the total size, in bytes, of all substrings currently
// held out-of-order (not yet contiguous with the stream's pushed prefix).
func (r *Reassembler) BytesPending() uint64 { return r.totalPending }

// Insert delivers a substring of the original byte stream, known to start at
// absolute offset firstIndex. isLast indicates data's last byte is the final
// byte of the stream.
func (r *Reassembler) Insert(firstIndex uint64, data []byte, isLast bool) {
	if len(data) == 0 {
		if r.endIndex == nil && isLast {
			end := firstIndex
			r.endIndex = &end
		}
		r.tryClose()
		return
	}

	if r.out.IsClosed() || r.out.AvailableCapacity() == 0 {
		return
	}

	unassembled := r.out.BytesPushed()
	unacceptable := unassembled + uint64(r.out.AvailableCapacity())

	if firstIndex+uint64(len(data)) <= unassembled || firstIndex >= unacceptable {
		return
	}

	if firstIndex+uint64(len(data)) > unacceptable {
		data = data[:unacceptable-firstIndex]
		isLast = false
	}

	if firstIndex < unassembled {
		data = data[unassembled-firstIndex:]
		firstIndex = unassembled
	}

	if r.endIndex == nil && isLast {
		end := firstIndex + uint64(len(data))
		r.endIndex = &end
	}

	r.splice(firstIndex, data)
	r.flushContiguous()
	r.tryClose()
}

// splice inserts data at firstIndex into r.pending, replacing any existing
// substrings overlapping [firstIndex, firstIndex+len(data)), preserving the
// bytes of overlapping neighbors that fall outside the new interval.
func (r *Reassembler) splice(firstIndex uint64, data []byte) {
	lo := r.splitAt(firstIndex)
	hi := r.splitAt(firstIndex + uint64(len(data)))

	for _, s := range r.pending[lo:hi] {
		r.totalPending -= uint64(len(s.data))
	}
	r.totalPending += uint64(len(data))

	tail := append([]segment{}, r.pending[hi:]...)
	r.pending = append(r.pending[:lo], segment{first: firstIndex, data: data})
	r.pending = append(r.pending, tail...)
}

// splitAt ensures no stored segment straddles pos, splitting one if
// necessary, and returns the index into r.pending where a segment starting
// exactly at pos would be (or is).
func (r *Reassembler) splitAt(pos uint64) int {
	i := sort.Search(len(r.pending), func(i int) bool { return r.pending[i].first >= pos })
	if i < len(r.pending) && r.pending[i].first == pos {
		return i
	}
	if i == 0 {
		return i
	}
	prev := &r.pending[i-1]
	if prev.end() > pos {
		splitOff := pos - prev.first
		newSeg := segment{first: pos, data: prev.data[splitOff:]}
		prev.data = prev.data[:splitOff]
		r.pending = append(r.pending, segment{})
		copy(r.pending[i+1:], r.pending[i:])
		r.pending[i] = newSeg
		return i
	}
	return i
}

// flushContiguous pushes pending segments into the stream while the
// earliest one starts exactly at the stream's current write position.
func (r *Reassembler) flushContiguous() {
	for len(r.pending) > 0 && r.pending[0].first == r.out.BytesPushed() {
		s := r.pending[0]
		r.totalPending -= uint64(len(s.data))
		r.out.Push(s.data)
		r.pending = r.pending[1:]
	}
	if len(r.pending) == 0 && cap(r.pending) > 0 {
		// Once drained, truncate to length zero and keep whatever capacity
		// remains after the front was sliced off. The space before the
		// slice's current start is not reclaimed.
		internal.SliceReuse(&r.pending, 0)
	}
}

func (r *Reassembler) tryClose() {
	if r.endIndex != nil && *r.endIndex == r.out.BytesPushed() {
		r.out.Close()
	}
}
