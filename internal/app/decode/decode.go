// Package decode turns register snapshots into float readings.
//
// Every value spans two consecutive registers. The controller sends the low
// half of the IEEE-754 binary32 pattern first, so for words (w0, w1) the bit
// pattern is w1<<16 | w0. The word order is fixed by the wire and is not
// configurable.
package decode

import (
	"math"

	"github.com/ghalamif/ModFlow/internal/domain"
)

// Decode converts a snapshot of exactly expected registers into a reading.
// It fails without decoding anything when the length is odd or differs from
// expected.
func Decode(s domain.Snapshot, expected int) (domain.Reading, error) {
	n := len(s.Words)
	if n%2 != 0 {
		return nil, &domain.DecodeError{Got: n, Want: expected, Reason: "odd register count"}
	}
	if n != expected {
		return nil, &domain.DecodeError{Got: n, Want: expected, Reason: "register count mismatch"}
	}

	out := make(domain.Reading, n/2)
	for i := range out {
		out[i] = Float(s.Words[2*i], s.Words[2*i+1])
	}
	return out, nil
}

// Float assembles one value from its first (low) and second (high) register.
func Float(first, second uint16) float32 {
	return math.Float32frombits(uint32(second)<<16 | uint32(first))
}

// Words splits one value into its first (low) and second (high) register.
func Words(v float32) (first, second uint16) {
	bits := math.Float32bits(v)
	return uint16(bits), uint16(bits >> 16)
}

// Encode is the inverse of Decode.
func Encode(r domain.Reading) []uint16 {
	out := make([]uint16, 0, len(r)*2)
	for _, v := range r {
		lo, hi := Words(v)
		out = append(out, lo, hi)
	}
	return out
}
