package tcp

import (
	"log/slog"
	"math"

	"github.com/patchnet/corestack/reassembly"
	"github.com/patchnet/corestack/seqnum"
	"github.com/patchnet/corestack/stream"
)

// Receiver translates inbound TCP segments into stream bytes via a
// reassembly.Reassembler, and reports back an ACK/window via Send.
type Receiver struct {
	logger

	reassembler *reassembly.Reassembler
	out         *stream.Stream

	zeroPoint    seqnum.Value
	haveZeroPt   bool
}

// NewReceiver returns a Receiver that assembles inbound payload into out.
func NewReceiver(out *stream.Stream, log *slog.Logger) *Receiver {
	return &Receiver{
		logger:      logger{log: log},
		reassembler: reassembly.New(out),
		out:         out,
	}
}

// Receive processes an inbound segment, establishing the connection's zero
// point from the first SYN seen and feeding payload bytes to the
// reassembler at their absolute stream index.
func (r *Receiver) Receive(seg Segment) {
	if r.out.HasError() {
		return
	}
	if seg.RST {
		r.out.SetError(errStreamReset)
		return
	}
	if !r.haveZeroPt {
		if !seg.SYN {
			r.trace("tcp receiver: dropping segment before SYN")
			return
		}
		r.zeroPoint = seg.Seqno
		r.haveZeroPt = true
	}

	checkpoint := r.out.BytesPushed() + 1
	abs := seqnum.Unwrap(seg.Seqno, r.zeroPoint, checkpoint)
	synBit := uint64(0)
	if seg.SYN {
		synBit = 1
	}
	streamIndex := abs + synBit - 1 // payload byte 0 of the SYN segment sits at stream index 0.

	r.reassembler.Insert(streamIndex, seg.Payload, seg.FIN)
}

// Send returns the current ACK/window state to report back to the sender.
func (r *Receiver) Send() Ack {
	window := r.out.AvailableCapacity()
	if window > math.MaxUint16 {
		window = math.MaxUint16
	}
	ack := Ack{WindowSize: uint16(window), RST: r.out.HasError()}
	if !r.haveZeroPt {
		return ack
	}
	ackAbs := r.out.BytesPushed() + 1
	if r.out.IsClosed() {
		ackAbs++
	}
	ack.Ackno = seqnum.Wrap(ackAbs, r.zeroPoint)
	ack.HasAckno = true
	return ack
}
