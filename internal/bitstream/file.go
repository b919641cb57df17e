package bitstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// File format identifiers accepted by NewFileSource.
const (
	FormatASCII = "ascii" // one '0' or '1' character per bit, whitespace ignored
	FormatRaw   = "raw"   // packed binary, most significant bit first
)

// ErrExhausted is returned by Next when the underlying file cannot supply
// another full bitstream.
var ErrExhausted = errors.New("bitstream: source exhausted")

// FileSource reads consecutive n-bit streams from a single file. Reads are
// serialized internally so multiple workers may share one source.
type FileSource struct {
	mu      sync.Mutex
	reader  *bufio.Reader
	file    *os.File
	bits    int64
	format  string
	scratch []byte
}

// NewFileSource opens path and prepares to serve bitstreams of n bits in the
// given format (FormatASCII or FormatRaw).
func NewFileSource(path, format string, n int64) (*FileSource, error) {
	if n <= 0 {
		return nil, fmt.Errorf("bitstream: bit length must be positive, got %d", n)
	}
	if format != FormatASCII && format != FormatRaw {
		return nil, fmt.Errorf("bitstream: unknown format %q", format)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bitstream: open %s: %w", path, err)
	}

	return &FileSource{
		reader:  bufio.NewReaderSize(file, 1<<16),
		file:    file,
		bits:    n,
		format:  format,
		scratch: make([]byte, BytesForBits(n)),
	}, nil
}

// Next returns the next bitstream from the file. Once the file cannot supply
// a full stream, Next returns ErrExhausted.
func (s *FileSource) Next(ctx context.Context) (Bits, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == FormatASCII {
		return s.nextASCII()
	}
	return s.nextRaw()
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *FileSource) nextRaw() (Bits, error) {
	if _, err := io.ReadFull(s.reader, s.scratch); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrExhausted
		}
		return nil, fmt.Errorf("bitstream: read %s: %w", s.file.Name(), err)
	}
	return FromBytes(s.scratch, s.bits), nil
}

func (s *FileSource) nextASCII() (Bits, error) {
	bits := make(Bits, 0, s.bits)
	for int64(len(bits)) < s.bits {
		c, err := s.reader.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrExhausted
			}
			return nil, fmt.Errorf("bitstream: read %s: %w", s.file.Name(), err)
		}

		switch c {
		case '0':
			bits = append(bits, 0)
		case '1':
			bits = append(bits, 1)
		case ' ', '\t', '\n', '\r':
			// interchange files wrap lines freely
		default:
			return nil, fmt.Errorf("bitstream: %s: unexpected character %q", s.file.Name(), c)
		}
	}
	return bits, nil
}
