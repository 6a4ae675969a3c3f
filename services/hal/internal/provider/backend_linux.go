//go:build linux && !tinygo

package provider

import (
	"fmt"
	"sync"

	"boardcode-go/errcode"
	"boardcode-go/services/hal/internal/core"
	"boardcode-go/services/hal/internal/provider/setups"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

// GPIO line backends for LinuxBackend.
const (
	GPIOCdev   = "cdev"   // character device via go-gpiocdev
	GPIOPeriph = "periph" // periph.io gpioreg ("GPIO<n>")
)

type LinuxOptions struct {
	GPIO     string // GPIOCdev (default) or GPIOPeriph
	Chip     string // gpiochip name for cdev, e.g. "gpiochip0"
	Consumer string // cdev consumer label
}

// LinuxBackend drives SPI through periph.io spidev ports and control lines
// through either the GPIO character device or periph's gpioreg.
type LinuxBackend struct {
	mu    sync.Mutex
	opts  LinuxOptions
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
	ports []spi.PortCloser
}

var _ Backend = (*LinuxBackend)(nil)

func NewLinuxBackend(opts LinuxOptions) (*LinuxBackend, error) {
	if opts.GPIO == "" {
		opts.GPIO = GPIOCdev
	}
	if opts.Chip == "" {
		opts.Chip = "gpiochip0"
	}
	if opts.Consumer == "" {
		opts.Consumer = "boardcode"
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	b := &LinuxBackend{opts: opts, lines: make(map[int]*gpiocdev.Line)}
	switch opts.GPIO {
	case GPIOCdev:
		chip, err := gpiocdev.NewChip(opts.Chip, gpiocdev.WithConsumer(opts.Consumer))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", opts.Chip, err)
		}
		b.chip = chip
	case GPIOPeriph:
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "linux backend", Msg: "gpio backend " + opts.GPIO}
	}
	return b, nil
}

func (b *LinuxBackend) GPIO(n int) (core.GPIOHandle, error) {
	if b.chip == nil {
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if p == nil {
			return nil, errcode.UnknownPin
		}
		return &periphGPIO{p: p, n: n}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	l, err := b.chip.RequestLine(n, gpiocdev.AsInput)
	if err != nil {
		return nil, fmt.Errorf("request line %d: %w", n, err)
	}
	b.lines[n] = l
	return &cdevGPIO{l: l, n: n}, nil
}

func (b *LinuxBackend) ReleaseGPIO(n int) {
	if b.chip == nil {
		if p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n)); p != nil {
			_ = p.In(gpio.Float, gpio.NoEdge)
		}
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.lines[n]; ok {
		_ = l.Close()
		delete(b.lines, n)
	}
}

func (b *LinuxBackend) OpenSPI(p setups.SPIPlan) (drivers.SPI, error) {
	port, err := spireg.Open(p.Device)
	if err != nil {
		return nil, err
	}
	conn, err := port.Connect(physic.Frequency(p.Hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	b.mu.Lock()
	b.ports = append(b.ports, port)
	b.mu.Unlock()
	return &periphSPI{c: conn}, nil
}

func (b *LinuxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for n, l := range b.lines {
		keep(l.Close())
		delete(b.lines, n)
	}
	for _, p := range b.ports {
		keep(p.Close())
	}
	b.ports = nil
	if b.chip != nil {
		keep(b.chip.Close())
		b.chip = nil
	}
	return first
}

// ---- cdev line ----

type cdevGPIO struct {
	l *gpiocdev.Line
	n int
}

func (g *cdevGPIO) Number() int { return g.n }

func (g *cdevGPIO) ConfigureInput(pull core.Pull) error {
	return g.l.Reconfigure(gpiocdev.AsInput, cdevBias(pull))
}

func cdevBias(pull core.Pull) gpiocdev.LineBias {
	switch pull {
	case core.PullUp:
		return gpiocdev.WithPullUp
	case core.PullDown:
		return gpiocdev.WithPullDown
	default:
		return gpiocdev.WithBiasDisabled
	}
}

func (g *cdevGPIO) ConfigureOutput(initial bool) error {
	return g.l.Reconfigure(gpiocdev.AsOutput(level(initial)))
}

func (g *cdevGPIO) Set(v bool) { _ = g.l.SetValue(level(v)) }

func (g *cdevGPIO) Get() bool {
	v, err := g.l.Value()
	return err == nil && v != 0
}

func (g *cdevGPIO) Toggle() { g.Set(!g.Get()) }

func level(v bool) int {
	if v {
		return 1
	}
	return 0
}

// ---- periph pin ----

type periphGPIO struct {
	p gpio.PinIO
	n int
}

func (g *periphGPIO) Number() int { return g.n }

func (g *periphGPIO) ConfigureInput(pull core.Pull) error {
	pp := gpio.Float
	switch pull {
	case core.PullUp:
		pp = gpio.PullUp
	case core.PullDown:
		pp = gpio.PullDown
	}
	return g.p.In(pp, gpio.NoEdge)
}

func (g *periphGPIO) ConfigureOutput(initial bool) error { return g.p.Out(gpio.Level(initial)) }
func (g *periphGPIO) Set(v bool)                         { _ = g.p.Out(gpio.Level(v)) }
func (g *periphGPIO) Get() bool                          { return g.p.Read() == gpio.High }
func (g *periphGPIO) Toggle()                            { g.Set(!g.Get()) }

// ---- periph SPI ----

// periphSPI adapts a periph spi.Conn to drivers.SPI.
type periphSPI struct {
	c spi.Conn
}

func (s *periphSPI) Tx(w, r []byte) error { return s.c.Tx(w, r) }

func (s *periphSPI) Transfer(b byte) (byte, error) {
	var r [1]byte
	if err := s.c.Tx([]byte{b}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}
