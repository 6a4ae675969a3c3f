package dotstar

type colorKind uint8

const (
	kindRGB colorKind = iota
	kindRGBBrightness
	kindPacked
)

// Color is one of the accepted colour inputs. Build it with Packed, RGB or
// RGBWithBrightness; the zero value is RGB black.
type Color struct {
	kind       colorKind
	packed     uint32
	r, g, b    uint8
	brightness float32
}

// Packed takes an integer laid out as 0xBBGGRR: the lowest byte is red, the
// next is green and everything above bit 16 is blue. Blue is not masked, so
// values above 0xFFFFFF carry a blue channel wider than a byte; only its low
// byte reaches the wire. Brightness is left as is.
func Packed(v uint32) Color { return Color{kind: kindPacked, packed: v} }

// RGB sets the three channels and resets brightness to full.
func RGB(r, g, b uint8) Color { return Color{kind: kindRGB, r: r, g: g, b: b} }

// RGBWithBrightness sets the three channels and the global brightness
// (nominally 0..1, clamped when the frame is encoded).
func RGBWithBrightness(r, g, b uint8, brightness float32) Color {
	return Color{kind: kindRGBBrightness, r: r, g: g, b: b, brightness: brightness}
}

// Channels returns the red, green and blue values this colour resolves to.
func (c Color) Channels() (r, g, b uint32) {
	if c.kind == kindPacked {
		return c.packed & 0xFF, (c.packed >> 8) & 0xFF, c.packed >> 16
	}
	return uint32(c.r), uint32(c.g), uint32(c.b)
}

// Brightness reports the brightness the colour imposes, if any.
// Packed colours leave the current brightness untouched.
func (c Color) Brightness() (float32, bool) {
	switch c.kind {
	case kindRGB:
		return 1, true
	case kindRGBBrightness:
		return c.brightness, true
	default:
		return 0, false
	}
}
