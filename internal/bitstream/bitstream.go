// Package bitstream supplies fixed-length bit sequences (bitstreams) to the
// statistical test drivers. A bitstream is the unit of one test iteration.
// Sources cover offline files in the two common interchange formats, a
// seeded generator for self-tests, and a live assembler fed by broker
// messages from the device under test.
package bitstream

import "context"

// Bits is an ordered sequence of bits, one byte per bit, each 0 or 1.
type Bits []uint8

// FromBytes expands data into at most n bits, most significant bit of each
// byte first. When data holds fewer than n bits the result is truncated to
// what is available.
func FromBytes(data []byte, n int64) Bits {
	if n > int64(len(data))*8 {
		n = int64(len(data)) * 8
	}
	if n <= 0 {
		return nil
	}

	bits := make(Bits, n)
	for i := int64(0); i < n; i++ {
		bits[i] = (data[i/8] >> (7 - uint(i%8))) & 1
	}
	return bits
}

// BytesForBits returns the number of whole bytes needed to carry n bits.
func BytesForBits(n int64) int64 {
	return (n + 7) / 8
}

// Source yields one bitstream per call. Implementations must be safe for
// concurrent use: worker threads pull their iterations from a shared source.
// Next blocks until a bitstream is available, the source is exhausted, or
// the context is cancelled.
type Source interface {
	Next(ctx context.Context) (Bits, error)
}
