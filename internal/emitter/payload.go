package emitter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Julusian/rpi-ws281x-artnet/internal/framestore"
	"github.com/Julusian/rpi-ws281x-artnet/internal/pixel"
)

// FramePayload is the msgpack document published on the preview topic.
// Pixels is packed RGB, three bytes per pixel.
type FramePayload struct {
	Seq        uint64 `msgpack:"seq"`
	Brightness uint8  `msgpack:"brightness"`
	Pixels     []byte `msgpack:"pixels"`
	TakenAtMS  int64  `msgpack:"taken_at_ms"`
}

// EncodeFrame packs a frame for the preview topic.
func EncodeFrame(frame framestore.Frame) ([]byte, error) {
	p := FramePayload{
		Seq:        frame.Seq,
		Brightness: frame.Brightness,
		Pixels:     pixel.PackRGB(frame.Pixels),
		TakenAtMS:  frame.TakenAt.UnixMilli(),
	}
	b, err := msgpack.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame %d: %w", frame.Seq, err)
	}
	return b, nil
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(b []byte) (framestore.Frame, error) {
	var p FramePayload
	if err := msgpack.Unmarshal(b, &p); err != nil {
		return framestore.Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	if len(p.Pixels)%pixel.BytesPerPixel != 0 {
		return framestore.Frame{}, fmt.Errorf("failed to decode frame: %d pixel bytes is not a multiple of 3", len(p.Pixels))
	}

	pixels := make([]pixel.Color, len(p.Pixels)/pixel.BytesPerPixel)
	for i := range pixels {
		o := i * pixel.BytesPerPixel
		pixels[i] = pixel.RGB(p.Pixels[o], p.Pixels[o+1], p.Pixels[o+2])
	}
	return framestore.Frame{
		Seq:        p.Seq,
		Brightness: p.Brightness,
		Pixels:     pixels,
		TakenAt:    time.UnixMilli(p.TakenAtMS),
	}, nil
}

func marshalStatus(status map[string]interface{}) ([]byte, error) {
	if _, ok := status["timestamp"]; !ok {
		status["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	return json.Marshal(status)
}
