package bitstream

import "testing"

func TestFromBytesMSBFirst(t *testing.T) {
	t.Parallel()

	bits := FromBytes([]byte{0xA5}, 8)
	want := Bits{1, 0, 1, 0, 0, 1, 0, 1}
	if len(bits) != len(want) {
		t.Fatalf("expected %d bits, got %d", len(want), len(bits))
	}
	for i := range want {
		if bits[i] != want[i] {
			t.Fatalf("expected bit %d at position %d, got %d", want[i], i, bits[i])
		}
	}
}

func TestFromBytesTruncatesToAvailable(t *testing.T) {
	t.Parallel()

	bits := FromBytes([]byte{0xFF}, 20)
	if len(bits) != 8 {
		t.Fatalf("expected 8 bits from one byte, got %d", len(bits))
	}

	bits = FromBytes([]byte{0xF0, 0x00}, 4)
	if len(bits) != 4 {
		t.Fatalf("expected 4 bits, got %d", len(bits))
	}
	for i, b := range bits {
		if b != 1 {
			t.Fatalf("expected bit 1 at position %d, got %d", i, b)
		}
	}

	if bits := FromBytes(nil, 8); bits != nil {
		t.Fatalf("expected nil bits from empty data, got %v", bits)
	}
}

func TestBytesForBits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bits int64
		want int64
	}{
		{bits: 1, want: 1},
		{bits: 8, want: 1},
		{bits: 9, want: 2},
		{bits: 1048576, want: 131072},
	}
	for _, tc := range tests {
		if got := BytesForBits(tc.bits); got != tc.want {
			t.Fatalf("expected %d bytes for %d bits, got %d", tc.want, tc.bits, got)
		}
	}
}
