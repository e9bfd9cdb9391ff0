package raster

import (
	"image/png"
	"sync"
)

// bufferPool reuses png encoder scratch buffers across images.
type bufferPool struct {
	pool sync.Pool
}

func (p *bufferPool) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *bufferPool) Put(b *png.EncoderBuffer) {
	p.pool.Put(b)
}
