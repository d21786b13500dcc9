// Package pool provides pooled read buffers.
package pool

import "sync"

var bufferPool sync.Pool

// GetBuffer returns a buffer of length size from the pool.
//
// Return the buffer to the pool with PutBuffer.
func GetBuffer(size int) *[]byte {
	if v := bufferPool.Get(); v != nil {
		b, _ := v.(*[]byte)
		if cap(*b) >= size {
			*b = (*b)[:size]
			return b
		}
	}

	b := make([]byte, size)

	return &b
}

// PutBuffer returns b to the pool.
//
// b cannot be accessed after returning to the pool.
func PutBuffer(b *[]byte) {
	if b == nil {
		return
	}
	bufferPool.Put(b)
}
