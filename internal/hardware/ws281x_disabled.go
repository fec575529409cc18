//go:build !ws281x

package hardware

import "errors"

// ErrWS281xDisabled is returned when the binary was built without cgo ws281x support.
var ErrWS281xDisabled = errors.New("ws281x driver not compiled in (rebuild with -tags ws281x)")

func openWS281x(Config) (Strip, error) {
	return nil, ErrWS281xDisabled
}
