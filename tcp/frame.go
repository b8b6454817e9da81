package tcp

import (
	"encoding/binary"
	"errors"

	"github.com/patchnet/corestack/seqnum"
	"github.com/patchnet/corestack/wire"
)

// sizeHeader is the fixed TCP header length in bytes, excluding options.
const sizeHeader = 20

// flag bit positions within the 13:14 offset+flags field's low byte.
const (
	flagFIN = 1 << 0
	flagSYN = 1 << 1
	flagRST = 1 << 2
	flagPSH = 1 << 3
	flagACK = 1 << 4
	flagURG = 1 << 5
)

// NewFrame returns a Frame with data set to buf. An error is returned if the
// buffer is smaller than the fixed TCP header size.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{}, errors.New("tcp: short buffer")
	}
	return Frame{buf: buf}, nil
}

// Frame is a buffer-view codec over a raw TCP segment, mirroring the
// ethernet/arp/ipv4 frame codecs: field accessors read and write directly
// into the backing slice without copying.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (tfrm Frame) RawData() []byte { return tfrm.buf }

// SourcePort returns the source port field.
func (tfrm Frame) SourcePort() uint16 { return binary.BigEndian.Uint16(tfrm.buf[0:2]) }

// SetSourcePort sets the source port field.
func (tfrm Frame) SetSourcePort(p uint16) { binary.BigEndian.PutUint16(tfrm.buf[0:2], p) }

// DestinationPort returns the destination port field.
func (tfrm Frame) DestinationPort() uint16 { return binary.BigEndian.Uint16(tfrm.buf[2:4]) }

// SetDestinationPort sets the destination port field.
func (tfrm Frame) SetDestinationPort(p uint16) { binary.BigEndian.PutUint16(tfrm.buf[2:4], p) }

// Seq returns the sequence number field.
func (tfrm Frame) Seq() uint32 { return binary.BigEndian.Uint32(tfrm.buf[4:8]) }

// SetSeq sets the sequence number field.
func (tfrm Frame) SetSeq(v uint32) { binary.BigEndian.PutUint32(tfrm.buf[4:8], v) }

// Ack returns the acknowledgment number field.
func (tfrm Frame) Ack() uint32 { return binary.BigEndian.Uint32(tfrm.buf[8:12]) }

// SetAck sets the acknowledgment number field.
func (tfrm Frame) SetAck(v uint32) { binary.BigEndian.PutUint32(tfrm.buf[8:12], v) }

// DataOffset returns the header length in 32-bit words, as encoded in the
// high nibble of byte 12.
func (tfrm Frame) DataOffset() uint8 { return tfrm.buf[12] >> 4 }

// SetDataOffset sets the header length in 32-bit words.
func (tfrm Frame) SetDataOffset(words uint8) {
	tfrm.buf[12] = tfrm.buf[12]&0x0f | words<<4
}

func (tfrm Frame) flags() uint16 { return binary.BigEndian.Uint16(tfrm.buf[12:14]) & 0x1ff }

func (tfrm Frame) setFlags(f uint16) {
	v := binary.BigEndian.Uint16(tfrm.buf[12:14])
	v = v&^0x1ff | f&0x1ff
	binary.BigEndian.PutUint16(tfrm.buf[12:14], v)
}

// Window returns the advertised window size field.
func (tfrm Frame) Window() uint16 { return binary.BigEndian.Uint16(tfrm.buf[14:16]) }

// SetWindow sets the advertised window size field.
func (tfrm Frame) SetWindow(w uint16) { binary.BigEndian.PutUint16(tfrm.buf[14:16], w) }

// CRC returns the checksum field.
func (tfrm Frame) CRC() uint16 { return binary.BigEndian.Uint16(tfrm.buf[16:18]) }

// SetCRC sets the checksum field.
func (tfrm Frame) SetCRC(c uint16) { binary.BigEndian.PutUint16(tfrm.buf[16:18], c) }

// Urgent returns the urgent pointer field.
func (tfrm Frame) Urgent() uint16 { return binary.BigEndian.Uint16(tfrm.buf[18:20]) }

// SetUrgent sets the urgent pointer field.
func (tfrm Frame) SetUrgent(u uint16) { binary.BigEndian.PutUint16(tfrm.buf[18:20], u) }

// Payload returns the segment data following the header, sized by
// DataOffset. Call ValidateSize first to avoid a panic on malformed input.
func (tfrm Frame) Payload() []byte {
	off := int(tfrm.DataOffset()) * 4
	return tfrm.buf[off:]
}

// ClearHeader zeros the fixed header region.
func (tfrm Frame) ClearHeader() {
	for i := range tfrm.buf[:sizeHeader] {
		tfrm.buf[i] = 0
	}
}

var (
	errShort  = errors.New("tcp: buffer shorter than data offset")
	errBadOff = errors.New("tcp: data offset smaller than header")
)

// ValidateSize checks the frame's DataOffset field against the backing
// buffer's length.
func (tfrm Frame) ValidateSize(v *wire.Validator) {
	off := int(tfrm.DataOffset()) * 4
	if off < sizeHeader {
		v.AddError(errBadOff)
	}
	if off > len(tfrm.buf) {
		v.AddError(errShort)
	}
}

// CalculateCRC computes the Internet checksum over the TCP header, options
// and payload using the pseudo-header crc already folded in by the caller
// (see ipv4.Frame.CRCWriteTCPPseudo).
func (tfrm Frame) CalculateCRC(pseudo *wire.CRC791) uint16 {
	pseudo.WritePadded(tfrm.buf)
	return wire.NeverZero(pseudo.Sum16())
}

// PutSegment encodes seg into the frame, overwriting the header and payload
// region. The caller is responsible for sizing buf to fit seg.Payload and
// for setting ports, window and checksum separately.
func (tfrm Frame) PutSegment(seg Segment) {
	tfrm.ClearHeader()
	tfrm.SetSeq(uint32(seg.Seqno))
	tfrm.SetDataOffset(sizeHeader / 4)
	var f uint16
	if seg.SYN {
		f |= flagSYN
	}
	if seg.FIN {
		f |= flagFIN
	}
	if seg.RST {
		f |= flagRST
	}
	tfrm.setFlags(f)
	copy(tfrm.buf[sizeHeader:], seg.Payload)
}

// Segment decodes the frame's flags, sequence number and payload into a
// Segment. The caller resolves ackno/window into an Ack separately via
// HasACK, Ack and Window.
func (tfrm Frame) Segment() Segment {
	f := tfrm.flags()
	return Segment{
		Seqno:   seqnum.Value(tfrm.Seq()),
		SYN:     f&flagSYN != 0,
		FIN:     f&flagFIN != 0,
		RST:     f&flagRST != 0,
		Payload: tfrm.Payload(),
	}
}

// HasACK reports whether the segment's ACK control bit is set, which gates
// whether Ack() carries a meaningful acknowledgment number.
func (tfrm Frame) HasACK() bool { return tfrm.flags()&flagACK != 0 }

// SetACK sets or clears the ACK control bit.
func (tfrm Frame) SetACK(has bool) {
	f := tfrm.flags()
	if has {
		f |= flagACK
	} else {
		f &^= flagACK
	}
	tfrm.setFlags(f)
}
