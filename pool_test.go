package screen

import (
	"errors"
	"testing"
)

func TestArenaPool(t *testing.T) {
	p := NewArenaPool(VideoPool, make([]byte, 1024), 0x1000, 16)

	a, err := p.Alloc(100)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Alloc(100)
	if err != nil {
		t.Fatal(err)
	}
	if a.Addr != 0x1000 {
		t.Errorf("expected first block at 0x1000, got %#x", a.Addr)
	}
	if b.Addr != 0x1070 {
		t.Errorf("expected second block at 0x1070, got %#x", b.Addr)
	}
	if v := p.Available(); v != 1024-200 {
		t.Errorf("expected %d bytes available, got %d", 1024-200, v)
	}

	// First fit reuses the hole left by a
	p.Free(a)
	c, err := p.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != 0x1000 {
		t.Errorf("expected block in hole at 0x1000, got %#x", c.Addr)
	}

	if _, err = p.Alloc(2048); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("expected ErrPoolExhausted, got %v", err)
	}

	p.Free(b)
	p.Free(b)
	p.Free(c)
	if v := p.Available(); v != 1024 {
		t.Errorf("expected all memory available, got %d", v)
	}
}

func TestArenaPoolZeroes(t *testing.T) {
	p := NewArenaPool(FastPool, make([]byte, 64), 0, 1)
	a, _ := p.Alloc(64)
	for i := range a.Mem {
		a.Mem[i] = 0xff
	}
	p.Free(a)
	b, err := p.Alloc(64)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range b.Mem {
		if v != 0 {
			t.Fatalf("byte %d not cleared: %#02x", i, v)
		}
	}
}

func TestHeapPool(t *testing.T) {
	p := NewHeapPool(FastPool)
	if p.Kind() != FastPool {
		t.Errorf("expected fast pool, got %s", p.Kind())
	}
	b, err := p.Alloc(300)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Mem) != 300 || b.Addr == 0 {
		t.Errorf("unexpected block of %d bytes at %#x", len(b.Mem), b.Addr)
	}
	if p.Used() != 300 {
		t.Errorf("expected 300 bytes used, got %d", p.Used())
	}
	p.Free(b)
	if p.Used() != 0 {
		t.Errorf("expected 0 bytes used, got %d", p.Used())
	}
	if _, err = p.Alloc(0); err == nil {
		t.Error("expected error for empty allocation")
	}
	if p.Available() != -1 {
		t.Error("expected heap pool to be unbounded")
	}
}
