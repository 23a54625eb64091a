// Package pool provides pooled byte buffers for BLTE chunk temporaries.
//
// BLTE decoding and building both churn through many short-lived byte
// slices (one per chunk), and chunk sizes in practice cluster into two
// bands: small metadata-ish chunks and large payload chunks. Rather than
// a single pool with one default size (which wastes memory for small
// chunks and re-allocates for large ones), two size-classed pools are
// kept, mirroring the two thresholds spec.md's Open Questions call out
// (64KiB, 1MiB) as implementation hints rather than semantics.
package pool

import "sync"

// Size-class thresholds for chunk buffer pooling. These are performance
// hints, not format constants: any BLTE chunk size is valid regardless of
// which pool it happens to be served from.
const (
	SmallClassSize = 64 * 1024       // 64KiB
	LargeClassSize = 1024 * 1024     // 1MiB
)

// Buffer is a reusable byte slice wrapper. Reset keeps the underlying
// array so repeated Get/Put cycles avoid reallocating.
type Buffer struct {
	B []byte
}

// Reset truncates the buffer to zero length without releasing capacity.
func (b *Buffer) Reset() { b.B = b.B[:0] }

// Bytes returns the buffer's current contents.
func (b *Buffer) Bytes() []byte { return b.B }

// Write appends data to the buffer, growing it if needed.
func (b *Buffer) Write(data []byte) { b.B = append(b.B, data...) }

var smallPool = sync.Pool{
	New: func() any { return &Buffer{B: make([]byte, 0, SmallClassSize)} },
}

var largePool = sync.Pool{
	New: func() any { return &Buffer{B: make([]byte, 0, LargeClassSize)} },
}

// Get returns a Buffer with at least hint bytes of capacity, drawn from
// the small or large size-class pool depending on hint.
func Get(hint int) *Buffer {
	if hint > SmallClassSize {
		buf, _ := largePool.Get().(*Buffer)
		if cap(buf.B) < hint {
			buf.B = make([]byte, 0, hint)
		}

		return buf
	}

	buf, _ := smallPool.Get().(*Buffer)

	return buf
}

// Put resets buf and returns it to the pool matching its capacity.
func Put(buf *Buffer) {
	buf.Reset()
	if cap(buf.B) > SmallClassSize {
		largePool.Put(buf)
	} else {
		smallPool.Put(buf)
	}
}
