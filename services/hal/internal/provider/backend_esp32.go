//go:build esp32

package provider

import (
	"machine"

	"boardcode-go/errcode"
	"boardcode-go/services/hal/internal/core"
	"boardcode-go/services/hal/internal/provider/setups"

	"tinygo.org/x/drivers"
)

// ---- GPIO handle ----

type esp32GPIO struct {
	p machine.Pin
	n int
}

func (g *esp32GPIO) Number() int { return g.n }

func (g *esp32GPIO) ConfigureInput(pull core.Pull) error {
	var mode machine.PinMode
	switch pull {
	case core.PullUp:
		mode = machine.PinInputPullup
	case core.PullDown:
		mode = machine.PinInputPulldown
	default:
		mode = machine.PinInput
	}
	g.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (g *esp32GPIO) ConfigureOutput(initial bool) error {
	g.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	g.p.Set(initial)
	return nil
}

func (g *esp32GPIO) Set(b bool) { g.p.Set(b) }
func (g *esp32GPIO) Get() bool  { return g.p.Get() }
func (g *esp32GPIO) Toggle()    { g.p.Set(!g.p.Get()) }

// ---- Backend ----

// ESP32Backend drives TinyGo machine pins and the two general-purpose SPI
// controllers (port 0 = HSPI, port 1 = VSPI).
type ESP32Backend struct {
	gpio map[int]*esp32GPIO
}

var _ Backend = (*ESP32Backend)(nil)

func NewESP32Backend() *ESP32Backend {
	return &ESP32Backend{gpio: make(map[int]*esp32GPIO)}
}

func (b *ESP32Backend) GPIO(n int) (core.GPIOHandle, error) {
	if g, ok := b.gpio[n]; ok {
		return g, nil
	}
	g := &esp32GPIO{p: machine.Pin(n), n: n}
	b.gpio[n] = g
	return g, nil
}

// ReleaseGPIO puts the pin back to input.
func (b *ESP32Backend) ReleaseGPIO(n int) {
	machine.Pin(n).Configure(machine.PinConfig{Mode: machine.PinInput})
}

func (b *ESP32Backend) OpenSPI(p setups.SPIPlan) (drivers.SPI, error) {
	sdi := machine.NoPin
	if p.SDI >= 0 {
		sdi = machine.Pin(p.SDI)
	}
	cfg := machine.SPIConfig{
		Frequency: p.Hz,
		SCK:       machine.Pin(p.SCK),
		SDO:       machine.Pin(p.SDO),
		SDI:       sdi,
		Mode:      0,
	}
	switch p.Port {
	case 0:
		hw := machine.SPI0
		if err := hw.Configure(cfg); err != nil {
			return nil, err
		}
		return hw, nil
	case 1:
		hw := machine.SPI1
		if err := hw.Configure(cfg); err != nil {
			return nil, err
		}
		return hw, nil
	default:
		return nil, errcode.UnknownBus
	}
}

func (b *ESP32Backend) Close() error { return nil }
