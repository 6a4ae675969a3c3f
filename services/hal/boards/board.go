// Package boards holds the static peripheral tables of supported boards:
// which controllers exist, their default wiring, and named pins.
// Tables are values; accessors hand out copies so a Board cannot be
// mutated through them.
package boards

import "sort"

// IOKind is an I/O class a board can provide.
type IOKind string

const (
	IOAnalog      IOKind = "analog"
	IODigital     IOKind = "digital"
	IODigitalBank IOKind = "digitalbank"
	IOI2C         IOKind = "i2c"
	IOPulseCount  IOKind = "pulsecount"
	IOPWM         IOKind = "pwm"
	IOSerial      IOKind = "serial"
	IOSMBus       IOKind = "smbus"
	IOSPI         IOKind = "spi"
)

// NoPin marks an unused signal.
const NoPin = -1

type I2CBinding struct {
	Port  int
	Data  int
	Clock int
	Hz    uint32 // 0 => provider default
}

type SPIBinding struct {
	Port  int
	Clock int
	Out   int
	In    int // NoPin when write-only
	Hz    uint32
}

type SerialBinding struct {
	Port     int
	Receive  int
	Transmit int
	Baud     uint32 // 0 => provider default
}

// DotstarBinding wires an onboard APA102 and its two power lines.
type DotstarBinding struct {
	DetectPower int
	Power       int
	SPI         SPIBinding
}

// Board describes what the PCB/SoC offers.
type Board struct {
	Name             string
	GPIOMin, GPIOMax int

	io      []IOKind
	i2c     map[string]I2CBinding
	spi     map[string]SPIBinding
	serial  map[string]SerialBinding
	pins    map[string]int
	dotstar *DotstarBinding
}

// Supports reports whether the board provides an I/O kind.
func (b Board) Supports(k IOKind) bool {
	for _, x := range b.io {
		if x == k {
			return true
		}
	}
	return false
}

// IO lists the board's I/O kinds.
func (b Board) IO() []IOKind { return append([]IOKind(nil), b.io...) }

func (b Board) I2C(name string) (I2CBinding, bool) {
	v, ok := b.i2c[name]
	return v, ok
}

func (b Board) SPI(name string) (SPIBinding, bool) {
	v, ok := b.spi[name]
	return v, ok
}

func (b Board) Serial(name string) (SerialBinding, bool) {
	v, ok := b.serial[name]
	return v, ok
}

// Pin resolves a named pin (e.g. "DOTSTAR_PWR").
func (b Board) Pin(name string) (int, bool) {
	v, ok := b.pins[name]
	return v, ok
}

// PinNames returns the named pins in sorted order.
func (b Board) PinNames() []string {
	out := make([]string, 0, len(b.pins))
	for k := range b.pins {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dotstar returns the onboard APA102 wiring, if the board has one.
func (b Board) Dotstar() (DotstarBinding, bool) {
	if b.dotstar == nil {
		return DotstarBinding{}, false
	}
	return *b.dotstar, true
}

// InRange reports whether n is a GPIO number on this board.
func (b Board) InRange(n int) bool { return n >= b.GPIOMin && n <= b.GPIOMax }

var registry = map[string]Board{}

func register(b Board) Board {
	if _, dup := registry[b.Name]; dup {
		panic("duplicate board: " + b.Name)
	}
	registry[b.Name] = b
	return b
}

// Lookup returns a registered board by name.
func Lookup(name string) (Board, bool) {
	b, ok := registry[name]
	return b, ok
}
