// Package seqnum implements the 32-bit wrapping sequence number arithmetic
// used by TCP streams: converting between an absolute 64-bit stream index
// and the wire's 32-bit wrapping representation, and back, disambiguating
// the wraparound with a checkpoint near the expected value.
package seqnum

import "fmt"

// Value is a 32-bit wrapping sequence number as carried on the wire. Two
// Values distance apart by exactly 2^32 are indistinguishable; Unwrap uses a
// nearby checkpoint to pick the intended absolute index.
type Value uint32

// Add returns v shifted by n, wrapping around at 2^32 as unsigned arithmetic does.
func (v Value) Add(n uint32) Value { return v + Value(n) }

// Sub returns the wrapping difference v-u as an unsigned 32-bit value.
func (v Value) Sub(u Value) uint32 { return uint32(v - u) }

func (v Value) String() string { return fmt.Sprintf("%d", uint32(v)) }

// Wrap converts an absolute stream index n into its wrapping wire
// representation relative to isn (the "zero point" / initial sequence number).
func Wrap(n uint64, isn Value) Value {
	return isn.Add(uint32(n))
}

// Unwrap returns the absolute index corresponding to v, chosen as the value
// nearest to checkpoint among all absolute indices that wrap to v relative to isn.
func Unwrap(v, isn Value, checkpoint uint64) uint64 {
	const base = uint64(1) << 32
	const maskLow32 = base - 1
	const maskHigh32 = ^uint64(maskLow32)

	nLow32 := uint64(v.Sub(isn))
	cLow32 := checkpoint & maskLow32
	res := (checkpoint & maskHigh32) | nLow32

	switch {
	case res >= base && nLow32 > cLow32 && (nLow32-cLow32) > base/2:
		return res - base
	case res < maskHigh32 && cLow32 > nLow32 && (cLow32-nLow32) > base/2:
		return res + base
	default:
		return res
	}
}
