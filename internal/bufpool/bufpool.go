// Package bufpool provides a size-classed byte-slice pool used to avoid an
// allocation per encoded record on the write path.
package bufpool

import (
	"math/bits"
	"sync"
)

const maximumPoolCnt = 32

// pools[id] holds buffers whose capacity is in (2^(id+7), 2^(id+8)].
var pools [maximumPoolCnt]sync.Pool

// Get returns a zero-length buffer with capacity for at least dataLen
// bytes, either reused from the pool or freshly allocated.
func Get(dataLen int) []byte {
	id, poolCap := classify(dataLen)
	if b := pools[id].Get(); b != nil {
		return b.([]byte)[:0]
	}
	return make([]byte, 0, poolCap)
}

// Put returns buf to the pool for later reuse. Callers must not use buf
// after calling Put.
func Put(buf []byte) {
	capacity := cap(buf)
	id, poolCap := classify(capacity)
	if capacity != poolCap {
		// only buffers of exactly their class's capacity are pooled, so
		// Get never hands out less capacity than it was asked for
		return
	}
	pools[id].Put(buf[:0]) //nolint:staticcheck // reset length, keep capacity
}

func classify(size int) (int, int) {
	size--
	size = max(size, 0)
	size >>= 8
	id := bits.Len(uint(size))
	id = min(id, maximumPoolCnt-1)
	return id, 1 << (id + 8)
}
