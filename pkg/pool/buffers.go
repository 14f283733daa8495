// Package pool holds typed wrappers around sync.Pool.
package pool

import (
	"bytes"
	"sync"
)

// maxRetainedBuffer is the capacity above which a returned buffer is dropped
// instead of pooled, so one huge payload does not pin its memory forever.
const maxRetainedBuffer = 1 << 20

// Buffers is a strongly typed wrapper around a sync.Pool for *bytes.Buffer.
type Buffers struct {
	p sync.Pool
}

// NewBuffers returns an empty pool.
func NewBuffers() *Buffers {
	return &Buffers{
		p: sync.Pool{
			New: func() interface{} {
				return &bytes.Buffer{}
			},
		},
	}
}

// Get returns an empty buffer.
func (p *Buffers) Get() *bytes.Buffer {
	buffer := p.p.Get().(*bytes.Buffer)
	buffer.Reset()
	return buffer
}

// Put returns b to the pool.  b must not be used afterwards.
func (p *Buffers) Put(b *bytes.Buffer) {
	if b.Cap() > maxRetainedBuffer {
		return
	}
	p.p.Put(b)
}
