// Package tcp implements the sender and receiver halves of a single TCP
// connection's stream logic: segmenting outbound bytes with retransmission
// and RTO backoff, and reassembling inbound segments into a byte stream
// with ACK/window feedback. It does not implement connection setup beyond
// SYN/FIN sequencing, congestion control beyond the retransmission timer, or
// any TCP option negotiation.
package tcp

import (
	"errors"
	"log/slog"

	"github.com/patchnet/corestack/internal"
	"github.com/patchnet/corestack/seqnum"
)

// MaxPayloadSize bounds the payload carried by a single outbound segment.
const MaxPayloadSize = 1000

var (
	errFutureAck   = errors.New("tcp: ack exceeds next sequence number")
	errStreamReset = errors.New("tcp: stream reset by peer")
)

// Segment is the message passed between a TCPSender and a TCPReceiver: a
// sequence number, optional SYN/FIN/RST flags, and payload bytes.
type Segment struct {
	Seqno   seqnum.Value
	SYN     bool
	Payload []byte
	FIN     bool
	RST     bool
}

// SequenceLength is the number of sequence-number slots the segment
// occupies: one for SYN, one per payload byte, one for FIN.
func (s Segment) SequenceLength() uint64 {
	n := uint64(len(s.Payload))
	if s.SYN {
		n++
	}
	if s.FIN {
		n++
	}
	return n
}

// Ack is the message a TCPReceiver sends back to a TCPSender: an optional
// acknowledgment number (absent until a SYN has been seen), the receiver's
// advertised window, and a reset flag mirroring a stream error.
type Ack struct {
	Ackno      seqnum.Value
	HasAckno   bool
	WindowSize uint16
	RST        bool
}

type logger struct{ log *slog.Logger }

func (l logger) error(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelError, msg, attrs...)
}
func (l logger) info(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelInfo, msg, attrs...)
}
func (l logger) debug(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, slog.LevelDebug, msg, attrs...)
}
func (l logger) trace(msg string, attrs ...slog.Attr) {
	internal.LogAttrs(l.log, internal.LevelTrace, msg, attrs...)
}
