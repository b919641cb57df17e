package bitstream

import (
	"context"
	"sync"
)

// Assembler accumulates raw entropy bytes pushed from a live source (the
// MQTT ingest path) and serves them as fixed-length bitstreams. Producers
// call AddBytes from the broker callback; worker threads block in Next until
// a full bitstream worth of bytes has arrived. All methods are safe for
// concurrent use.
type Assembler struct {
	mu      sync.Mutex
	buf     []byte
	need    int64 // bytes per bitstream
	bits    int64
	max     int // buffered byte cap
	dropped uint64
	notify  chan struct{}
	done    chan struct{}
	closed  bool
}

// NewAssembler returns an assembler serving bitstreams of n bits. maxBuffered
// caps the backlog in bytes; when the cap would be exceeded the newest bytes
// are discarded and counted. A non-positive cap defaults to 64 bitstreams.
func NewAssembler(n int64, maxBuffered int) *Assembler {
	need := BytesForBits(n)
	if maxBuffered <= 0 {
		maxBuffered = int(need) * 64
	}
	if maxBuffered < int(need) {
		maxBuffered = int(need)
	}

	return &Assembler{
		buf:    make([]byte, 0, maxBuffered),
		need:   need,
		bits:   n,
		max:    maxBuffered,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// AddBytes appends raw entropy bytes to the backlog. Bytes beyond the
// configured cap are discarded and counted as dropped. Returns the number of
// bytes accepted.
func (a *Assembler) AddBytes(p []byte) int {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return 0
	}

	room := a.max - len(a.buf)
	accepted := len(p)
	if accepted > room {
		a.dropped += uint64(accepted - room)
		accepted = room
	}
	a.buf = append(a.buf, p[:accepted]...)
	a.mu.Unlock()

	select {
	case a.notify <- struct{}{}:
	default:
	}
	return accepted
}

// Next blocks until a full bitstream is available, the assembler is closed
// with an empty backlog, or the context is cancelled. A closed assembler
// drains its remaining complete bitstreams before reporting ErrExhausted.
func (a *Assembler) Next(ctx context.Context) (Bits, error) {
	for {
		a.mu.Lock()
		if int64(len(a.buf)) >= a.need {
			raw := make([]byte, a.need)
			copy(raw, a.buf[:a.need])
			a.buf = append(a.buf[:0], a.buf[a.need:]...)
			a.mu.Unlock()

			// Another waiter may also have enough bytes now.
			select {
			case a.notify <- struct{}{}:
			default:
			}
			return FromBytes(raw, a.bits), nil
		}
		closed := a.closed
		a.mu.Unlock()

		if closed {
			return nil, ErrExhausted
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-a.done:
		case <-a.notify:
		}
	}
}

// Close stops accepting new bytes and wakes all blocked Next callers.
func (a *Assembler) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()
	close(a.done)
}

// Dropped returns the total number of bytes discarded due to the backlog cap.
func (a *Assembler) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Buffered returns the current backlog size in bytes.
func (a *Assembler) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}
