package pixel_test

import (
	"testing"

	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// --- Offset arithmetic ---

func TestOffset(t *testing.T) {
	topo := pixel.DefaultTopology()

	tests := []struct {
		universe int
		want     int
		ok       bool
	}{
		{universe: 0, ok: false},
		{universe: 1, want: 0, ok: true},
		{universe: 2, want: 170, ok: true},
		{universe: 3, want: 340, ok: true},
		{universe: 4, ok: false},
		{universe: -1, ok: false},
		{universe: 32767, ok: false},
	}

	for _, tt := range tests {
		got, ok := topo.Offset(tt.universe)
		if ok != tt.ok {
			t.Errorf("Offset(%d) ok=%v, want %v", tt.universe, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("Offset(%d)=%d, want %d", tt.universe, got, tt.want)
		}
	}

	if topo.PixelCount() != 510 {
		t.Errorf("PixelCount()=%d, want 510", topo.PixelCount())
	}
}

// --- Decode ---

func TestDecodeFullPrimaryUniverse(t *testing.T) {
	payload := make([]byte, 512)
	payload[0], payload[1], payload[2] = 255, 0, 0
	payload[511] = 128

	seg, ok := pixel.Decode(pixel.DefaultTopology(), 1, payload)
	if !ok {
		t.Fatal("Decode() ignored universe 1")
	}

	if len(seg.Pixels) != 170 {
		t.Fatalf("len(Pixels)=%d, want 170", len(seg.Pixels))
	}
	if seg.Pixels[0] != (pixel.Color{255, 0, 0, 0}) {
		t.Errorf("Pixels[0]=%v, want [255 0 0 0]", seg.Pixels[0])
	}
	if !seg.HasBrightness() || *seg.Brightness != 128 {
		t.Errorf("Brightness=%v, want 128", seg.Brightness)
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}

	seg, ok := pixel.Decode(pixel.DefaultTopology(), 2, payload)
	if !ok {
		t.Fatal("Decode() ignored universe 2")
	}

	if len(seg.Pixels) != 100 {
		t.Fatalf("len(Pixels)=%d, want 100 (300/3)", len(seg.Pixels))
	}
	last := seg.Pixels[99]
	if last != pixel.RGB(payload[297], payload[298], payload[299]) {
		t.Errorf("Pixels[99]=%v", last)
	}
	if seg.HasBrightness() {
		t.Error("universe 2 must never carry brightness")
	}
}

func TestDecodePartialTriplet(t *testing.T) {
	// 7 bytes: two whole pixels and one dangling byte
	seg, ok := pixel.Decode(pixel.DefaultTopology(), 3, []byte{1, 2, 3, 4, 5, 6, 7})
	if !ok {
		t.Fatal("Decode() ignored universe 3")
	}
	if len(seg.Pixels) != 2 {
		t.Fatalf("len(Pixels)=%d, want 2", len(seg.Pixels))
	}
	if seg.Pixels[1] != pixel.RGB(4, 5, 6) {
		t.Errorf("Pixels[1]=%v", seg.Pixels[1])
	}
}

func TestDecodeBrightnessRules(t *testing.T) {
	topo := pixel.DefaultTopology()

	tests := []struct {
		name     string
		universe int
		length   int
		want     bool
	}{
		{"primary full", 1, 512, true},
		{"primary short", 1, 510, false},
		{"primary empty", 1, 0, false},
		{"secondary full", 2, 512, false},
		{"tertiary full", 3, 512, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.length)
			if tt.length > 0 {
				payload[tt.length-1] = 42
			}
			seg, ok := pixel.Decode(topo, tt.universe, payload)
			if !ok {
				t.Fatal("Decode() ignored in-range universe")
			}
			if seg.HasBrightness() != tt.want {
				t.Errorf("HasBrightness()=%v, want %v", seg.HasBrightness(), tt.want)
			}
		})
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	for _, u := range []int{0, 4, 100} {
		if _, ok := pixel.Decode(pixel.DefaultTopology(), u, make([]byte, 512)); ok {
			t.Errorf("Decode(universe=%d) accepted, want ignored", u)
		}
	}
}

func TestDecodeCustomTopology(t *testing.T) {
	topo := pixel.Topology{PixelsPerUniverse: 4, UniverseCount: 2}

	seg, ok := pixel.Decode(topo, 2, make([]byte, 30))
	if !ok {
		t.Fatal("Decode() ignored universe 2")
	}
	if len(seg.Pixels) != 4 {
		t.Errorf("len(Pixels)=%d, want 4 (capped by topology)", len(seg.Pixels))
	}
	if off, _ := topo.Offset(2); off != 4 {
		t.Errorf("Offset(2)=%d, want 4", off)
	}
}

func TestPackRGB(t *testing.T) {
	got := pixel.PackRGB([]pixel.Color{{9, 8, 7, 6}, pixel.RGB(1, 2, 3)})
	want := []byte{9, 8, 7, 1, 2, 3}
	if string(got) != string(want) {
		t.Errorf("PackRGB = %v, want %v (fourth channel dropped)", got, want)
	}
}
