package hardware

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

func TestParseColorOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    ColorOrder
		wantErr bool
	}{
		{"rgb", OrderRGB, false},
		{"BGR", OrderBGR, false},
		{" Rgb ", OrderRGB, false},
		{"grb", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseColorOrder(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColorOrder(%q) error = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownColorOrder) {
			t.Errorf("ParseColorOrder(%q) error = %v, want ErrUnknownColorOrder", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseColorOrder(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColorOrderPut(t *testing.T) {
	c := pixel.RGB(1, 2, 3)
	var b [3]byte

	OrderRGB.Put(b[:], c)
	if b != [3]byte{1, 2, 3} {
		t.Errorf("rgb = %v", b)
	}
	OrderBGR.Put(b[:], c)
	if b != [3]byte{3, 2, 1} {
		t.Errorf("bgr = %v", b)
	}
}

func TestScale(t *testing.T) {
	tests := []struct{ v, b, want uint8 }{
		{255, 255, 255},
		{255, 0, 0},
		{200, 127, 100},
		{0, 255, 0},
	}
	for _, tt := range tests {
		if got := scale(tt.v, tt.b); got != tt.want {
			t.Errorf("scale(%d, %d) = %d, want %d", tt.v, tt.b, got, tt.want)
		}
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(Config{Driver: "laser", Count: 10}); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("unknown driver error = %v", err)
	}
	if _, err := Open(Config{Driver: DriverMemory, Count: 0}); err == nil {
		t.Error("zero pixel count accepted")
	}

	s, err := Open(Config{Driver: DriverMemory, Count: 10})
	if err != nil {
		t.Fatalf("Open(memory) failed: %v", err)
	}
	if s.Len() != 10 {
		t.Errorf("Len() = %d, want 10", s.Len())
	}
}

type fakeWriter struct {
	written [][]byte
	halted  bool
	err     error
}

func (f *fakeWriter) Write(p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.written = append(f.written, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeWriter) Halt() error {
	f.halted = true
	return nil
}

func TestSPIRender(t *testing.T) {
	w := &fakeWriter{}
	s := newSPI(w, 2, OrderBGR)

	s.Leds()[0] = pixel.RGB(255, 0, 10)
	s.Leds()[1] = pixel.RGB(0, 255, 0)
	s.SetBrightness(255)

	if err := s.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if err := s.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	want := []byte{10, 0, 255, 0, 255, 0}
	if len(w.written) != 1 || !bytes.Equal(w.written[0], want) {
		t.Errorf("written = %v, want %v", w.written, want)
	}

	s.SetBrightness(0)
	_ = s.Render()
	if !bytes.Equal(w.written[1], make([]byte, 6)) {
		t.Errorf("brightness 0 written = %v, want all zero", w.written[1])
	}

	if err := s.Close(); err != nil || !w.halted {
		t.Errorf("Close() err=%v halted=%v", err, w.halted)
	}
}

func TestSPIRenderError(t *testing.T) {
	boom := errors.New("bus fault")
	s := newSPI(&fakeWriter{err: boom}, 1, OrderRGB)
	if err := s.Render(); !errors.Is(err, boom) {
		t.Errorf("Render() error = %v, want %v", err, boom)
	}
}

func TestBlank(t *testing.T) {
	m := NewMemory(3)
	for i := range m.Leds() {
		m.Leds()[i] = pixel.RGB(9, 9, 9)
	}
	if err := Blank(m); err != nil {
		t.Fatalf("Blank failed: %v", err)
	}
	for i, c := range m.Rendered() {
		if c != pixel.EmptyColor {
			t.Errorf("pixel %d = %v after Blank", i, c)
		}
	}
}
