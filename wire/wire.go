// Package wire holds the small set of helpers shared by the frame codecs
// (ethernet, arp, ipv4): the Internet checksum and a tiny error-accumulating
// Validator used by each frame's ValidateSize method.
package wire

import "errors"

// IPProto identifies the payload protocol carried by an IPv4 datagram.
type IPProto uint8

const (
	IPProtoICMP IPProto = 1
	IPProtoTCP  IPProto = 6
	IPProtoUDP  IPProto = 17
)

func (p IPProto) String() string {
	switch p {
	case IPProtoICMP:
		return "ICMP"
	case IPProtoTCP:
		return "TCP"
	case IPProtoUDP:
		return "UDP"
	default:
		return "proto(?)"
	}
}

var (
	ErrShortBuffer     = errors.New("wire: short buffer")
	ErrZeroDestination = errors.New("wire: zero destination")
)

// Validator accumulates validation errors from a frame's ValidateSize (and
// related) methods so callers can batch-check a frame before trusting its
// size-derived fields.
type Validator struct {
	accum []error
}

// AddError records a validation failure. Every error recorded is kept;
// Err returns the single error, or all of them joined when there are more.
func (v *Validator) AddError(err error) {
	v.accum = append(v.accum, err)
}

// HasError reports whether any error has been recorded since the last Reset.
func (v *Validator) HasError() bool { return len(v.accum) > 0 }

// Err returns the accumulated error, or nil if none were recorded.
func (v *Validator) Err() error {
	switch len(v.accum) {
	case 0:
		return nil
	case 1:
		return v.accum[0]
	default:
		return errors.Join(v.accum...)
	}
}

// ErrPop returns Err and resets the validator for reuse.
func (v *Validator) ErrPop() error {
	err := v.Err()
	v.Reset()
	return err
}

// Reset clears all accumulated errors.
func (v *Validator) Reset() { v.accum = v.accum[:0] }
