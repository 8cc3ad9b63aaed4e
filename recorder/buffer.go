package recorder

import "sync"

// Buffer accumulates PCM chunks from the capture callback. Drain removes
// everything buffered in one step, so a chunk is returned exactly once.
type Buffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

// Append copies p; capture backends reuse their slices.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)

	b.mu.Lock()
	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk)
	b.mu.Unlock()
}

// Drain returns the concatenation of all buffered chunks in arrival order and
// empties the buffer. It returns nil when nothing is buffered.
func (b *Buffer) Drain() []byte {
	b.mu.Lock()
	chunks, size := b.chunks, b.size
	b.chunks, b.size = nil, 0
	b.mu.Unlock()

	if size == 0 {
		return nil
	}
	out := make([]byte, 0, size)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	b.chunks, b.size = nil, 0
	b.mu.Unlock()
}
