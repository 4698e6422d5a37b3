package screen

import (
	"fmt"
	"log"
)

// Alignment of frame buffer start addresses in bytes.
const Alignment = 256

// FrameBuffer is an aligned region of memory holding one frame.
type FrameBuffer struct {
	// Pool the buffer was carved from.
	Pool PoolKind

	// Size of the allocation including alignment slack.
	Size int

	// Addr is the aligned address of Pix.
	Addr uint64

	// Pix starts at the aligned address and runs to the end of the
	// allocation. It holds at least the requested number of bytes.
	Pix []byte

	block *Block
	pool  Pool
}

// Offset returns the distance between the start of the underlying allocation
// and the aligned start of the buffer.
func (fb *FrameBuffer) Offset() int {
	if fb.block == nil {
		return 0
	}
	return int(fb.Addr - fb.block.Addr)
}

// Released reports if the buffer was returned to its pool.
func (fb *FrameBuffer) Released() bool {
	return fb.block == nil
}

// Strider computes hardware row strides.
type Strider interface {
	RowStride(mode VideoMode, width, bpp int) int
}

// Allocator sizes frame buffers and carves them out of memory pools.
type Allocator struct {
	stride Strider
	video  Pool
	fast   Pool
	held   int
}

// NewAllocator returns an allocator using the strides of s. The fast pool
// may be nil.
func NewAllocator(s Strider, video, fast Pool) *Allocator {
	return &Allocator{
		stride: s,
		video:  video,
		fast:   fast,
	}
}

// ShadowSize returns the number of bytes to allocate for a shadow surface of
// width by height pixels with rowBits bits per pixel, including the
// alignment slack.
func (a *Allocator) ShadowSize(mode VideoMode, width, height, rowBits int) int {
	return a.stride.RowStride(mode, width, rowBits)*height + Alignment - 1
}

// ComputeSize returns the number of bytes to allocate for one hardware
// buffer. Double line modes need twice the rows, 4 bit modes half the bytes.
func (a *Allocator) ComputeSize(mode VideoMode, width, height, rowBits int) int {
	size := a.ShadowSize(mode, width, height, rowBits)
	if mode.Flags&DoubleLine != 0 {
		size <<= 1
	}
	if mode.Depth == 4 {
		size >>= 1
	}
	return size
}

func (a *Allocator) pool(kind PoolKind) Pool {
	if kind == FastPool && a.fast != nil {
		return a.fast
	}
	return a.video
}

// carve allocates a buffer whose aligned region holds at least size bytes.
func (a *Allocator) carve(p Pool, size int) (*FrameBuffer, error) {
	b, err := p.Alloc(size)
	if err != nil {
		return nil, err
	}
	if b.Addr%Alignment != 0 {
		p.Free(b)
		if b, err = p.Alloc(size + Alignment - 1); err != nil {
			return nil, err
		}
	}
	var (
		addr = (b.Addr + Alignment - 1) &^ (Alignment - 1)
		off  = int(addr - b.Addr)
	)
	a.held++
	return &FrameBuffer{
		Pool:  p.Kind(),
		Size:  len(b.Mem),
		Addr:  addr,
		Pix:   b.Mem[off:],
		block: b,
		pool:  p,
	}, nil
}

// Allocate returns count buffers of size bytes from the pool of kind. If
// any allocation fails, the buffers allocated by this call are released.
func (a *Allocator) Allocate(kind PoolKind, count, size int) ([]*FrameBuffer, error) {
	p := a.pool(kind)
	buffers := make([]*FrameBuffer, 0, count)
	for i := 0; i < count; i++ {
		fb, err := a.carve(p, size)
		if err != nil {
			a.Release(buffers...)
			return nil, fmt.Errorf("%w: buffer %d of %d (%d KB): %v", ErrAllocationFailed, i+1, count, size>>10, err)
		}
		buffers = append(buffers, fb)
	}
	return buffers, nil
}

// AllocateShadow returns a zeroed buffer of size bytes, preferring fast
// memory over video memory.
func (a *Allocator) AllocateShadow(size int) (*FrameBuffer, error) {
	var (
		fb  *FrameBuffer
		err error
	)
	if a.fast != nil {
		if fb, err = a.carve(a.fast, size); err != nil && debug {
			log.Printf("screen: no fast memory for %d KB shadow buffer: %v", size>>10, err)
		}
	}
	if fb == nil {
		if fb, err = a.carve(a.video, size); err != nil {
			return nil, fmt.Errorf("%w: can not allocate %d KB for shadow buffer: %v", ErrAllocationFailed, size>>10, err)
		}
	}
	for i := range fb.Pix {
		fb.Pix[i] = 0
	}
	return fb, nil
}

// Release returns buffers to their pools. Releasing a buffer twice or a nil
// buffer is a no-op.
func (a *Allocator) Release(buffers ...*FrameBuffer) {
	for _, fb := range buffers {
		if fb == nil || fb.block == nil {
			continue
		}
		fb.pool.Free(fb.block)
		fb.block = nil
		fb.Pix = nil
		a.held--
	}
}

// Held returns the number of buffers allocated and not yet released.
func (a *Allocator) Held() int {
	return a.held
}

// Available returns the free bytes in the video pool, or -1 if unbounded.
func (a *Allocator) Available() int {
	return a.video.Available()
}
