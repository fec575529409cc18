//go:build ws281x

package hardware

import (
	"testing"

	ws2811 "github.com/rpi-ws281x/rpi-ws281x-go"
)

func TestWS281xOptionsLeaveDefaultsAlone(t *testing.T) {
	before := ws2811.DefaultOptions.Channels[0]

	a := ws281xOptions(Config{Count: 510, GPIOPin: 12, Frequency: 800000, DMAChannel: 10})
	b := ws281xOptions(Config{Count: 60, GPIOPin: 18, Frequency: 800000, DMAChannel: 5, ColorOrder: OrderBGR})

	got := ws2811.DefaultOptions.Channels[0]
	if got.LedCount != before.LedCount || got.GpioPin != before.GpioPin || got.StripeType != before.StripeType {
		t.Errorf("DefaultOptions.Channels[0] changed: %+v, was %+v", got, before)
	}
	if a.Channels[0].LedCount != 510 || a.Channels[0].GpioPin != 12 {
		t.Errorf("first options overwritten by second: %+v", a.Channels[0])
	}
	if a.Channels[0].StripeType != ws2811.WS2811StripRGB {
		t.Errorf("rgb stripe type = %#x", a.Channels[0].StripeType)
	}
	if b.Channels[0].StripeType != ws2811.WS2811StripBGR || b.DmaNum != 5 {
		t.Errorf("bgr options = %+v", b)
	}
}
