package tcp

import (
	"log/slog"

	"github.com/patchnet/corestack/clock"
	"github.com/patchnet/corestack/seqnum"
	"github.com/patchnet/corestack/stream"
)

// Sender segments outbound bytes from a stream.Stream reader into TCP
// segments, retransmitting the oldest outstanding segment on RTO expiry
// with exponential backoff.
type Sender struct {
	logger

	in  *stream.Stream
	isn seqnum.Value

	initialRTOms uint64
	timer        *clock.Timer

	nextAbsSeqno      uint64
	ackAbsSeqno       uint64
	totalOutstanding  uint64
	totalRetransmit   uint64
	windowSize        uint16
	synSent, finSent  bool
	outstandingQueue  []Segment
}

// NewSender returns a Sender reading from in, starting at sequence number
// isn, with the given initial retransmission timeout in milliseconds.
func NewSender(in *stream.Stream, isn seqnum.Value, initialRTOms uint64, log *slog.Logger) *Sender {
	return &Sender{
		logger:       logger{log: log},
		in:           in,
		isn:          isn,
		initialRTOms: initialRTOms,
		timer:        clock.NewTimer(initialRTOms),
	}
}

// SequenceNumbersInFlight returns the total sequence-number length of all
// currently unacknowledged outstanding segments.
func (s *Sender) SequenceNumbersInFlight() uint64 { return s.totalOutstanding }

// ConsecutiveRetransmissions returns the retransmission count since the
// last segment was freshly acknowledged.
func (s *Sender) ConsecutiveRetransmissions() uint64 { return s.totalRetransmit }

// Push fills the peer's advertised window with new segments, invoking
// transmit for each one generated. A zero advertised window is treated as a
// window of one, to allow window probing.
func (s *Sender) Push(transmit func(Segment)) {
	effectiveWindow := uint64(s.windowSize)
	if effectiveWindow == 0 {
		effectiveWindow = 1
	}
	for effectiveWindow > s.totalOutstanding {
		if s.finSent {
			break
		}
		seg := s.makeEmptyMessage()
		if !s.synSent {
			seg.SYN = true
			s.synSent = true
		}

		remaining := effectiveWindow - s.totalOutstanding
		payloadLen := remaining - seg.SequenceLength()
		if payloadLen > MaxPayloadSize {
			payloadLen = MaxPayloadSize
		}

		var payload []byte
		for s.in.BytesBuffered() > 0 && uint64(len(payload)) < payloadLen {
			chunk := s.in.Peek()
			want := payloadLen - uint64(len(payload))
			if uint64(len(chunk)) > want {
				chunk = chunk[:want]
			}
			payload = append(payload, chunk...)
			s.in.Pop(len(chunk))
		}
		seg.Payload = payload

		if !s.finSent && remaining > seg.SequenceLength() && s.in.IsFinished() {
			seg.FIN = true
			s.finSent = true
		}

		if seg.SequenceLength() == 0 {
			break
		}

		transmit(seg)
		s.trace("tcp sender: transmit", slog.Bool("syn", seg.SYN), slog.Bool("fin", seg.FIN), slog.Int("payload", len(seg.Payload)))
		if !s.timer.IsActive() {
			s.timer.Start()
		}
		s.nextAbsSeqno += seg.SequenceLength()
		s.totalOutstanding += seg.SequenceLength()
		s.outstandingQueue = append(s.outstandingQueue, seg)
	}
}

// makeEmptyMessage constructs a segment carrying the current sequence
// number, no flags except RST mirroring the input stream's error state, and
// an empty payload.
func (s *Sender) makeEmptyMessage() Segment {
	return Segment{
		Seqno: seqnum.Wrap(s.nextAbsSeqno, s.isn),
		RST:   s.in.HasError(),
	}
}

// MakeEmptyMessage is the exported form of makeEmptyMessage, used to emit a
// pure ACK or window probe carrying no new data.
func (s *Sender) MakeEmptyMessage() Segment { return s.makeEmptyMessage() }

// Receive processes an Ack from the receiver, advancing the outstanding
// queue and resetting the retransmission timer on fresh acknowledgment.
func (s *Sender) Receive(ack Ack) {
	if s.in.HasError() {
		return
	}
	if ack.RST {
		s.in.SetError(errStreamReset)
		return
	}
	s.windowSize = ack.WindowSize
	if !ack.HasAckno {
		return
	}

	recvAckAbs := seqnum.Unwrap(ack.Ackno, s.isn, s.nextAbsSeqno)
	if recvAckAbs > s.nextAbsSeqno {
		s.trace("tcp sender: dropping ack", slog.Any("err", errFutureAck))
		return
	}

	acked := false
	for len(s.outstandingQueue) > 0 {
		msg := s.outstandingQueue[0]
		if s.ackAbsSeqno+msg.SequenceLength() > recvAckAbs {
			break
		}
		acked = true
		s.ackAbsSeqno += msg.SequenceLength()
		s.totalOutstanding -= msg.SequenceLength()
		s.outstandingQueue = s.outstandingQueue[1:]
	}

	if acked {
		s.totalRetransmit = 0
		s.timer.Reload(s.initialRTOms)
		if len(s.outstandingQueue) == 0 {
			s.timer.Stop()
		} else {
			s.timer.Start()
		}
	}
}

// Tick advances the retransmission timer by elapsedMs and, on expiry,
// retransmits the oldest outstanding segment, applying exponential RTO
// backoff unless the peer's last advertised window was zero (window
// probing never backs off).
func (s *Sender) Tick(elapsedMs uint64, transmit func(Segment)) {
	if !s.timer.Tick(elapsedMs).Expired() {
		return
	}
	if len(s.outstandingQueue) == 0 {
		return
	}
	transmit(s.outstandingQueue[0])
	if s.windowSize != 0 {
		s.totalRetransmit++
		s.timer.ExponentialBackoff()
		s.debug("tcp sender: retransmit", slog.Uint64("count", s.totalRetransmit))
	}
	s.timer.Reset()
}
