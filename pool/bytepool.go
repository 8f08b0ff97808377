// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

// BytePool recycles byte slices of at least a nominal capacity. Slices that
// grew far beyond it are left to the GC so one oversized item does not pin
// memory forever.
type BytePool struct {
	size int
	sp   *SyncPool[*[]byte]
}

// NewBytePool creates a pool of slices with capacity size.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = 512
	}
	bp := &BytePool{size: size}
	bp.sp = NewSyncPool(func() *[]byte {
		b := make([]byte, 0, size)
		return &b
	})
	bp.sp.Reset = func(b *[]byte) *[]byte {
		*b = (*b)[:0]
		return b
	}
	return bp
}

// Get returns an empty slice with capacity of at least Size.
func (b *BytePool) Get() *[]byte {
	return b.sp.Get()
}

// Put returns buf to the pool. buf must not be used afterwards.
func (b *BytePool) Put(buf *[]byte) {
	if buf == nil || cap(*buf) > 4*b.size {
		return
	}
	b.sp.Put(buf)
}

// Size returns the nominal capacity.
func (b *BytePool) Size() int { return b.size }
