package screen

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrPoolExhausted is returned by pools that can't satisfy an allocation.
var ErrPoolExhausted = errors.New("screen: memory pool exhausted")

// PoolKind identifies a class of memory.
type PoolKind int

// Pool kinds.
const (
	// VideoPool memory can be displayed by the hardware.
	VideoPool PoolKind = iota

	// FastPool memory is faster for the CPU but can't be displayed.
	FastPool
)

func (k PoolKind) String() string {
	switch k {
	case VideoPool:
		return "video"
	case FastPool:
		return "fast"
	default:
		return fmt.Sprintf("PoolKind(%d)", int(k))
	}
}

// Block is a chunk of memory handed out by a Pool.
type Block struct {
	// Addr is the address of the first byte of Mem.
	Addr uint64

	// Mem is the memory of the block.
	Mem []byte
}

// Pool hands out blocks of memory of one kind.
type Pool interface {
	// Kind returns the kind of memory in the pool.
	Kind() PoolKind

	// Alloc returns a block of at least size bytes.
	Alloc(size int) (*Block, error)

	// Free returns a block to the pool.
	Free(*Block)

	// Available returns the number of free bytes, or -1 if the pool is unbounded.
	Available() int
}

// HeapPool allocates blocks on the Go heap.
type HeapPool struct {
	kind PoolKind
	used int
}

// NewHeapPool returns an unbounded pool of the given kind.
func NewHeapPool(kind PoolKind) *HeapPool {
	return &HeapPool{kind: kind}
}

func (p *HeapPool) Kind() PoolKind { return p.kind }

func (p *HeapPool) Alloc(size int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("screen: invalid %s allocation of %d bytes", p.kind, size)
	}
	mem := make([]byte, size)
	p.used += size
	return &Block{
		Addr: uint64(uintptr(unsafe.Pointer(&mem[0]))),
		Mem:  mem,
	}, nil
}

func (p *HeapPool) Free(b *Block) {
	if b == nil || b.Mem == nil {
		return
	}
	p.used -= len(b.Mem)
	b.Mem = nil
}

func (p *HeapPool) Available() int { return -1 }

// Used returns the number of bytes currently handed out.
func (p *HeapPool) Used() int { return p.used }

type extent struct {
	off, size int
}

// ArenaPool carves blocks out of a fixed memory region, first fit.
//
// Blocks start at multiples of the placement granularity relative to the
// region base.
type ArenaPool struct {
	kind        PoolKind
	mem         []byte
	base        uint64
	granularity int
	used        []extent // sorted by offset
}

// NewArenaPool returns a pool over mem, which is located at address base.
// A granularity below 1 places blocks at any byte.
func NewArenaPool(kind PoolKind, mem []byte, base uint64, granularity int) *ArenaPool {
	if granularity < 1 {
		granularity = 1
	}
	return &ArenaPool{
		kind:        kind,
		mem:         mem,
		base:        base,
		granularity: granularity,
	}
}

func (p *ArenaPool) Kind() PoolKind { return p.kind }

// Base returns the address of the first byte of the arena.
func (p *ArenaPool) Base() uint64 { return p.base }

// Len returns the arena size in bytes.
func (p *ArenaPool) Len() int { return len(p.mem) }

func (p *ArenaPool) roundUp(n int) int {
	return (n + p.granularity - 1) / p.granularity * p.granularity
}

func (p *ArenaPool) Alloc(size int) (*Block, error) {
	if size <= 0 {
		return nil, fmt.Errorf("screen: invalid %s allocation of %d bytes", p.kind, size)
	}

	var (
		off = 0
		at  = len(p.used)
	)
	for i, e := range p.used {
		if off+size <= e.off {
			at = i
			break
		}
		off = p.roundUp(e.off + e.size)
	}
	if off+size > len(p.mem) {
		return nil, fmt.Errorf("%w: %d bytes requested from %s pool, %d available", ErrPoolExhausted, size, p.kind, p.Available())
	}

	p.used = append(p.used, extent{})
	copy(p.used[at+1:], p.used[at:])
	p.used[at] = extent{off: off, size: size}

	mem := p.mem[off : off+size : off+size]
	for i := range mem {
		mem[i] = 0
	}
	return &Block{
		Addr: p.base + uint64(off),
		Mem:  mem,
	}, nil
}

func (p *ArenaPool) Free(b *Block) {
	if b == nil || b.Mem == nil {
		return
	}
	off, ok := p.Offset(b.Addr)
	if !ok {
		return
	}
	for i, e := range p.used {
		if e.off == off {
			p.used = append(p.used[:i], p.used[i+1:]...)
			break
		}
	}
	b.Mem = nil
}

func (p *ArenaPool) Available() int {
	n := len(p.mem)
	for _, e := range p.used {
		n -= e.size
	}
	return n
}

// Offset returns the position of addr relative to the arena base.
func (p *ArenaPool) Offset(addr uint64) (int, bool) {
	if addr < p.base || addr >= p.base+uint64(len(p.mem)) {
		return 0, false
	}
	return int(addr - p.base), true
}

// Interface checks
var (
	_ Pool = (*HeapPool)(nil)
	_ Pool = (*ArenaPool)(nil)
)
