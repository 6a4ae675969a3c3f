package provider

import (
	"sync"

	"boardcode-go/services/hal/internal/core"
	"boardcode-go/services/hal/internal/provider/setups"

	"tinygo.org/x/drivers"
)

// SimBackend stands in for hardware on hosts without GPIO/SPI and in tests.
// Pins remember every level driven; SPI buses record every frame written.
type SimBackend struct {
	mu     sync.Mutex
	pins   map[int]*SimPin
	spi    map[string]*SimSPI
	closed bool
}

var _ Backend = (*SimBackend)(nil)

func NewSimBackend() *SimBackend {
	return &SimBackend{pins: map[int]*SimPin{}, spi: map[string]*SimSPI{}}
}

func (b *SimBackend) GPIO(n int) (core.GPIOHandle, error) {
	return b.Pin(n), nil
}

func (b *SimBackend) ReleaseGPIO(n int) {
	b.Pin(n).ConfigureInput(core.PullNone)
}

func (b *SimBackend) OpenSPI(p setups.SPIPlan) (drivers.SPI, error) {
	return b.SPI(p.ID), nil
}

func (b *SimBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (b *SimBackend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Pin returns the simulated pin n, creating it on first use.
func (b *SimBackend) Pin(n int) *SimPin {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[n]
	if !ok {
		p = &SimPin{n: n}
		b.pins[n] = p
	}
	return p
}

// SPI returns the simulated bus with the given ID, creating it on first use.
func (b *SimBackend) SPI(id string) *SimSPI {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.spi[id]
	if !ok {
		s = &SimSPI{}
		b.spi[id] = s
	}
	return s
}

// ---- SimPin ----

type SimPin struct {
	mu      sync.Mutex
	n       int
	level   bool
	output  bool
	pull    core.Pull
	history []bool
}

func (p *SimPin) Number() int { return p.n }

func (p *SimPin) ConfigureInput(pull core.Pull) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output, p.pull = false, pull
	switch pull {
	case core.PullUp:
		p.level = true
	case core.PullDown:
		p.level = false
	}
	return nil
}

func (p *SimPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = true
	p.drive(initial)
	return nil
}

func (p *SimPin) Set(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drive(v)
}

func (p *SimPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *SimPin) Toggle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drive(!p.level)
}

// caller holds lock
func (p *SimPin) drive(v bool) {
	p.level = v
	p.history = append(p.history, v)
}

// Output reports whether the pin is configured as an output.
func (p *SimPin) Output() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

// History returns every level driven so far, oldest first.
func (p *SimPin) History() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.history...)
}

// ---- SimSPI ----

type SimSPI struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (s *SimSPI) Tx(w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, append([]byte(nil), w...))
	for i := range r {
		r[i] = 0
	}
	return nil
}

func (s *SimSPI) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := s.Tx([]byte{b}, r[:])
	return r[0], err
}

// FailWith makes every later transfer return err; nil restores the bus.
func (s *SimSPI) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Frames returns copies of every write so far.
func (s *SimSPI) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	for i, f := range s.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Last returns the most recent write, or nil.
func (s *SimSPI) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return append([]byte(nil), s.frames[len(s.frames)-1]...)
}
