package provider

import (
	"sync"
	"time"

	"boardcode-go/errcode"
	"boardcode-go/services/hal/boards"
	"boardcode-go/services/hal/internal/core"
	"boardcode-go/services/hal/internal/provider/setups"

	"tinygo.org/x/drivers"
)

// DefaultSPITimeout bounds both queueing and completion of one SPI transfer.
const DefaultSPITimeout = 250 * time.Millisecond

// Backend is the platform half of a registry: it turns pin numbers and SPI
// plans into hardware handles.
type Backend interface {
	GPIO(n int) (core.GPIOHandle, error)
	ReleaseGPIO(n int)
	OpenSPI(p setups.SPIPlan) (drivers.SPI, error)
	Close() error
}

// Ensure the registry satisfies the contract at compile time.
var _ core.ResourceRegistry = (*Registry)(nil)

type pinOwner struct {
	devID string
	fn    core.PinFunc
	bus   bool // reserved by a planned bus
}

// Registry hands out exclusive pin and SPI claims on top of a Backend.
type Registry struct {
	mu sync.Mutex

	board boards.Board
	be    Backend

	pinOwners map[int]pinOwner

	spiOwners map[core.ResourceID]*spiOwner
	spiCfg    map[core.ResourceID]core.SPIConfig
	spiClaims map[core.ResourceID]string // bus id -> devID
	timeout   time.Duration
}

type Option func(*Registry)

// WithSPITimeout overrides DefaultSPITimeout; 0 disables the deadline.
func WithSPITimeout(d time.Duration) Option {
	return func(r *Registry) { r.timeout = d }
}

// NewRegistry opens every SPI bus in the plan and reserves all bus pins.
func NewRegistry(board boards.Board, plan setups.ResourcePlan, be Backend, opts ...Option) (*Registry, error) {
	r := &Registry{
		board:     board,
		be:        be,
		pinOwners: make(map[int]pinOwner),
		spiOwners: make(map[core.ResourceID]*spiOwner),
		spiCfg:    make(map[core.ResourceID]core.SPIConfig),
		spiClaims: make(map[core.ResourceID]string),
		timeout:   DefaultSPITimeout,
	}
	for _, o := range opts {
		o(r)
	}

	for n, id := range plan.Pins() {
		if !board.InRange(n) {
			return nil, &errcode.E{C: errcode.UnknownPin, Op: "plan", Msg: id}
		}
		r.pinOwners[n] = pinOwner{devID: id, bus: true}
	}

	for _, p := range plan.SPI {
		hw, err := be.OpenSPI(p)
		if err != nil {
			r.Close()
			return nil, errcode.Wrap(errcode.UnknownBus, "open "+p.ID, err)
		}
		id := core.ResourceID(p.ID)
		r.spiOwners[id] = newSPIOwner(id, hw)
		r.spiCfg[id] = core.SPIConfig{ID: id, Clock: p.SCK, Out: p.SDO, In: p.SDI, Hz: p.Hz, Port: p.Port}
	}
	return r, nil
}

// Board returns the board the registry validates pins against.
func (r *Registry) Board() boards.Board { return r.board }

func (r *Registry) ClaimPin(devID string, n int, fn core.PinFunc) (core.PinHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.board.InRange(n) {
		return nil, errcode.UnknownPin
	}
	if owner, inUse := r.pinOwners[n]; inUse && owner.devID != "" {
		return nil, errcode.PinInUse
	}
	switch fn {
	case core.FuncGPIOIn, core.FuncGPIOOut:
	default:
		return nil, errcode.Unsupported
	}
	g, err := r.be.GPIO(n)
	if err != nil {
		return nil, errcode.Wrap(errcode.IOError, "claim pin", err)
	}
	r.pinOwners[n] = pinOwner{devID: devID, fn: fn}
	return &pinHandle{n: n, fn: fn, gpio: g}, nil
}

func (r *Registry) ReleasePin(devID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.pinOwners[n]; ok && owner.devID == devID && !owner.bus {
		r.be.ReleaseGPIO(n)
		delete(r.pinOwners, n)
	}
}

func (r *Registry) ClaimSPI(devID string, id core.ResourceID) (core.SPIBus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.spiOwners[id]
	if o == nil {
		return nil, errcode.UnknownBus
	}
	if owner, taken := r.spiClaims[id]; taken && owner != devID {
		return nil, errcode.BusInUse
	}
	r.spiClaims[id] = devID
	return &driversSPI{o: o, cfg: r.spiCfg[id], timeout: r.timeout}, nil
}

func (r *Registry) ReleaseSPI(devID string, id core.ResourceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.spiClaims[id]; ok && owner == devID {
		delete(r.spiClaims, id)
	}
}

// Close stops the per-bus workers and releases backend handles.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, o := range r.spiOwners {
		o.stop()
		delete(r.spiOwners, id)
	}
	return r.be.Close()
}

// ---- PinHandle ----

type pinHandle struct {
	n    int
	fn   core.PinFunc
	gpio core.GPIOHandle
}

func (h *pinHandle) Pin() int { return h.n }

func (h *pinHandle) AsGPIO() core.GPIOHandle {
	if h.fn != core.FuncGPIOIn && h.fn != core.FuncGPIOOut {
		panic("pin not claimed for GPIO")
	}
	return h.gpio
}
