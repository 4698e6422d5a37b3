package screen

import (
	"errors"
	"math/rand"
	"testing"
)

type modeList []VideoMode

func (l modeList) EnumerateModes(dst ModeAdder, reserveOnly bool) {
	for _, mode := range l {
		dst.AddMode(mode, reserveOnly)
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		Bits int
		Want DepthClass
	}{
		{1, Class8},
		{4, Class8},
		{8, Class8},
		{15, Class16},
		{16, Class16},
		{24, Class24},
		{32, Class32},
		{0, Class8},
		{64, Class32},
	}
	for _, test := range tests {
		if v := ClassOf(test.Bits); v != test.Want {
			t.Errorf("ClassOf(%d): expected %s, got %s", test.Bits, test.Want, v)
		}
	}
}

func TestVideoModeClass(t *testing.T) {
	tests := []struct {
		Depth int
		Want  DepthClass
	}{
		{1, Class8},
		{2, Class8},
		{4, Class8},
		{8, Class8},
		{15, Class16},
		{16, Class16},
		{24, Class24},
		{32, Class32},
	}
	for _, test := range tests {
		if v := (VideoMode{Depth: test.Depth}).Class(); v != test.Want {
			t.Errorf("depth %d: expected %s, got %s", test.Depth, test.Want, v)
		}
	}
}

func TestCatalogSorted(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		var (
			modes    modeList
			distinct = make(map[[2]int]bool)
			n        = 1 + rnd.Intn(20)
		)
		for j := 0; j < n; j++ {
			mode := VideoMode{
				Width:  (1 + rnd.Intn(8)) * 80,
				Height: (1 + rnd.Intn(6)) * 100,
				Depth:  8,
			}
			modes = append(modes, mode)
			distinct[[2]int{mode.Width, mode.Height}] = true
		}

		var c Catalog
		c.Build(modes)

		if c.Reserved(Class8) != len(modes) {
			t.Fatalf("expected %d reserved, got %d", len(modes), c.Reserved(Class8))
		}
		if c.Len(Class8) != len(distinct) {
			t.Fatalf("expected %d distinct modes, got %d", len(distinct), c.Len(Class8))
		}
		list := c.List(Class8)
		for j := 1; j < len(list); j++ {
			a, b := list[j-1], list[j]
			if !(a.Width > b.Width || (a.Width == b.Width && a.Height > b.Height)) {
				t.Fatalf("modes %s and %s out of order in %v", a, b, list)
			}
		}
	}
}

func TestCatalogClasses(t *testing.T) {
	var c Catalog
	c.Build(modeList{
		{Width: 320, Height: 200, Depth: 4, Flags: ChunkyToPlanar},
		{Width: 640, Height: 480, Depth: 8, Flags: ChunkyToPlanar},
		{Width: 320, Height: 240, Depth: 16},
		{Width: 320, Height: 200, Depth: 15},
		{Width: 640, Height: 480, Depth: 24},
		{Width: 640, Height: 480, Depth: 32},
		{Width: 800, Height: 600, Depth: 32},
	})

	for _, test := range []struct {
		Class DepthClass
		Want  int
	}{
		{Class8, 2},
		{Class16, 2},
		{Class24, 1},
		{Class32, 2},
	} {
		if v := c.Len(test.Class); v != test.Want {
			t.Errorf("%s: expected %d modes, got %d", test.Class, test.Want, v)
		}
	}

	rects := c.Rects(Class32)
	if len(rects) != 2 || rects[0].Dx() != 800 || rects[1].Dy() != 480 {
		t.Errorf("unexpected 32-bit rects %v", rects)
	}

	mode, err := c.Lookup(Class8, 320, 200)
	if err != nil {
		t.Fatal(err)
	}
	if mode.Depth != 4 || mode.Flags != ChunkyToPlanar {
		t.Errorf("unexpected mode %s", mode)
	}
	if _, err = c.Lookup(Class8, 320, 240); !errors.Is(err, ErrModeNotFound) {
		t.Errorf("expected ErrModeNotFound, got %v", err)
	}
}

func TestCatalogDuplicates(t *testing.T) {
	var c Catalog
	c.Build(modeList{
		{Width: 320, Height: 200, Depth: 4, Data: "first"},
		{Width: 320, Height: 200, Depth: 8, Data: "second"},
		{Width: 320, Height: 200, Depth: 2, Data: "third"},
	})
	if v := c.Len(Class8); v != 1 {
		t.Fatalf("expected 1 mode, got %d", v)
	}
	if mode, _ := c.Lookup(Class8, 320, 200); mode.Data != "first" {
		t.Errorf("expected first mode to be kept, got %v", mode.Data)
	}
}

func TestCatalogEmpty(t *testing.T) {
	var c Catalog
	if _, err := c.Lookup(Class8, 320, 200); !errors.Is(err, ErrModeNotFound) {
		t.Errorf("expected ErrModeNotFound before Build, got %v", err)
	}
	if c.Built() {
		t.Error("expected catalog not to be built")
	}

	c.Build(modeList{{Width: 320, Height: 200, Depth: 8}})
	c.Reset()
	if c.Len(Class8) != 0 || c.Built() {
		t.Error("expected Reset to empty the catalog")
	}
	if v := c.List(DepthClass(9)); v != nil {
		t.Errorf("expected no modes for invalid class, got %v", v)
	}
}
