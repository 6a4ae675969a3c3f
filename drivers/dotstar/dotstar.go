// Package dotstar drives the single APA102 ("DotStar") RGB LED fitted to
// boards such as the TinyPICO. The LED sits behind two power-control lines
// that are active low, and is refreshed with one fixed 12-byte SPI frame:
//
//	00 00 00 00 | E0|bri | B G R | FF FF FF FF
//
// where bri is the 5-bit global brightness.
//
// The Device is not safe for concurrent use; it expects a single owner.
package dotstar

import (
	"boardcode-go/x/mathx"

	"tinygo.org/x/drivers"
)

// FrameLen is the size of every frame written to the bus.
const FrameLen = 12

// SPIFrequency is the clock rate the TinyPICO wiring is rated for.
const SPIFrequency = 20_000_000

const (
	headerBase = 0xE0
	fieldMask  = 0x1F
)

// Pin is a digital output line.
type Pin interface {
	Set(high bool)
}

// PinFunc adapts a plain setter (for example machine.Pin.Set) to Pin.
type PinFunc func(high bool)

func (f PinFunc) Set(high bool) { f(high) }

// Device is one Dotstar LED with its power gates.
type Device struct {
	bus         drivers.SPI
	detectPower Pin
	power       Pin

	rgb        [3]uint32
	brightness float32
	powered    bool

	buf [FrameLen]byte
}

// New creates a Device. The bus must already be configured (clock, data-out
// and frequency); New does not touch the hardware.
func New(bus drivers.SPI, detectPower, power Pin) *Device {
	return &Device{
		bus:         bus,
		detectPower: detectPower,
		power:       power,
		brightness:  1,
	}
}

// Configure powers the LED and resets the colour to black at full
// brightness. Nothing is written to the bus until the first update.
func (d *Device) Configure() {
	d.rgb = [3]uint32{}
	d.brightness = 1
	d.SetPower(true)
}

// SetPower drives both control lines: on pulls them low, off drives them high.
func (d *Device) SetPower(on bool) {
	level := !on
	d.detectPower.Set(level)
	d.power.Set(level)
	d.powered = on
}

// SetBrightness clamps v to [0,1], stores it and refreshes the LED.
func (d *Device) SetBrightness(v float32) error {
	d.brightness = mathx.Clamp01(v)
	return d.Show()
}

// SetColor applies c and refreshes the LED.
func (d *Device) SetColor(c Color) error {
	if br, ok := c.Brightness(); ok {
		d.brightness = br
	}
	r, g, b := c.Channels()
	d.rgb = [3]uint32{r, g, b}
	return d.Show()
}

// Off blanks the LED without touching power or brightness.
func (d *Device) Off() error {
	d.rgb = [3]uint32{}
	return d.Show()
}

// Show writes the current state to the bus. Bus errors are returned as is.
func (d *Device) Show() error {
	d.buf = d.Frame()
	return d.bus.Tx(d.buf[:], nil)
}

// Frame encodes the current state without writing it.
func (d *Device) Frame() [FrameLen]byte {
	return EncodeFrame(BrightnessField(d.brightness), d.rgb[0], d.rgb[1], d.rgb[2])
}

// Color returns the stored channels. Blue may exceed 255 after a packed
// colour wider than 24 bits.
func (d *Device) Color() (r, g, b uint32) { return d.rgb[0], d.rgb[1], d.rgb[2] }

// Brightness returns the stored brightness scalar.
func (d *Device) Brightness() float32 { return d.brightness }

// Field returns the 5-bit brightness the next frame will carry.
func (d *Device) Field() uint8 { return BrightnessField(d.brightness) }

// Powered reports the last SetPower state.
func (d *Device) Powered() bool { return d.powered }

// BrightnessField maps a brightness scalar to the 5-bit header field:
// (32 - round(32 - b*31)) & 0x1F with b clamped to [0,1] and ties rounded up.
func BrightnessField(brightness float32) uint8 {
	b := float64(mathx.Clamp01(brightness))
	return uint8((32 - mathx.RoundHalfUp(32-b*31)) & fieldMask)
}

// EncodeFrame lays out one frame. Channels are truncated to their low byte.
func EncodeFrame(field uint8, r, g, b uint32) [FrameLen]byte {
	return [FrameLen]byte{
		0x00, 0x00, 0x00, 0x00,
		headerBase | (field & fieldMask), byte(b), byte(g), byte(r),
		0xFF, 0xFF, 0xFF, 0xFF,
	}
}
