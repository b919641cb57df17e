// Package store provides an append-only, index-addressable record log used
// to accumulate one result per test iteration. Records are stored in fixed
// size chunks so that an append never relocates previously stored records.
package store

// DefaultChunk is the number of records allocated per chunk when no explicit
// chunk size is given.
const DefaultChunk = 1024

// OrderedLog accumulates records in append order. Appends must be serialized
// by the caller (the run's shared-state lock); once appends have finished the
// log may be read concurrently.
type OrderedLog[T any] struct {
	chunkSize int
	chunks    [][]T
	count     int
}

// NewOrderedLog returns an empty log. chunkSize controls the allocation
// granularity and defaults to DefaultChunk when non-positive. sizeHint, when
// positive, pre-allocates chunk headers for the expected record count.
func NewOrderedLog[T any](chunkSize, sizeHint int) *OrderedLog[T] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunk
	}

	log := &OrderedLog[T]{chunkSize: chunkSize}
	if sizeHint > 0 {
		log.chunks = make([][]T, 0, (sizeHint+chunkSize-1)/chunkSize)
	}
	return log
}

// Append stores value at the end of the log and returns its index.
func (l *OrderedLog[T]) Append(value T) int {
	chunk := l.count / l.chunkSize
	if chunk == len(l.chunks) {
		l.chunks = append(l.chunks, make([]T, 0, l.chunkSize))
	}

	l.chunks[chunk] = append(l.chunks[chunk], value)
	index := l.count
	l.count++
	return index
}

// Get returns the record stored at index. It panics when index is out of
// range, mirroring slice indexing.
func (l *OrderedLog[T]) Get(index int) T {
	if index < 0 || index >= l.count {
		panic("store: index out of range")
	}
	return l.chunks[index/l.chunkSize][index%l.chunkSize]
}

// Count returns the number of records appended so far.
func (l *OrderedLog[T]) Count() int {
	return l.count
}

// Stride visits every step-th record starting at offset, in index order.
// It is used to walk one partition of an interleaved result log.
func (l *OrderedLog[T]) Stride(offset, step int, visit func(index int, value T)) {
	if step <= 0 {
		step = 1
	}
	for i := offset; i >= 0 && i < l.count; i += step {
		visit(i, l.Get(i))
	}
}
