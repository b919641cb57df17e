package store

import "testing"

func TestOrderedLogAppendAndGet(t *testing.T) {
	t.Parallel()

	log := NewOrderedLog[int](4, 0)
	for i := 0; i < 11; i++ {
		if idx := log.Append(i * 10); idx != i {
			t.Fatalf("expected append index %d, got %d", i, idx)
		}
	}

	if log.Count() != 11 {
		t.Fatalf("expected count 11, got %d", log.Count())
	}
	for i := 0; i < 11; i++ {
		if got := log.Get(i); got != i*10 {
			t.Fatalf("expected %d at index %d, got %d", i*10, i, got)
		}
	}
}

func TestOrderedLogDefaultsChunkSize(t *testing.T) {
	t.Parallel()

	log := NewOrderedLog[string](0, 10)
	log.Append("a")
	if log.chunkSize != DefaultChunk {
		t.Fatalf("expected default chunk size %d, got %d", DefaultChunk, log.chunkSize)
	}
}

func TestOrderedLogGetPanicsOutOfRange(t *testing.T) {
	t.Parallel()

	log := NewOrderedLog[int](4, 0)
	log.Append(1)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-range index")
		}
	}()
	log.Get(1)
}

func TestOrderedLogStride(t *testing.T) {
	t.Parallel()

	log := NewOrderedLog[int](3, 0)
	for i := 0; i < 10; i++ {
		log.Append(i)
	}

	tests := []struct {
		name   string
		offset int
		step   int
		want   []int
	}{
		{name: "every third from zero", offset: 0, step: 3, want: []int{0, 3, 6, 9}},
		{name: "every third from one", offset: 1, step: 3, want: []int{1, 4, 7}},
		{name: "step beyond count", offset: 2, step: 100, want: []int{2}},
		{name: "offset beyond count", offset: 42, step: 3, want: nil},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var got []int
			log.Stride(tc.offset, tc.step, func(index int, value int) {
				if value != index {
					t.Fatalf("expected value %d at index %d, got %d", index, index, value)
				}
				got = append(got, value)
			})

			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}
