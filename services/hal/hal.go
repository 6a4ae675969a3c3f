// Package hal hosts devices behind the bus: it applies the HAL config
// published on config/hal, claims pins and buses from a platform registry,
// and serves hal/cap/<domain>/<kind>/<name>/control/<verb>.
package hal

import (
	"context"

	"boardcode-go/bus"
	"boardcode-go/services/hal/boards"
	"boardcode-go/services/hal/internal/core"
	"boardcode-go/services/hal/internal/provider"
	"boardcode-go/services/hal/internal/provider/setups"
	"boardcode-go/types"

	// Register device builders.
	_ "boardcode-go/services/hal/devices/dotstar"
	_ "boardcode-go/services/hal/devices/gpio_dout"
)

type (
	Plan       = setups.ResourcePlan
	SPIPlan    = setups.SPIPlan
	SimBackend = provider.SimBackend
)

// GPIO line backends for the Linux platform.
const (
	GPIOCdev   = "cdev"
	GPIOPeriph = "periph"
)

// PlanFor derives the default resource plan for a board.
func PlanFor(b boards.Board) Plan { return setups.PlanFor(b) }

// TinyPICOSetup is the stock device list for the TinyPICO.
func TinyPICOSetup() types.HALConfig { return setups.TinyPICOSetup }

// DotstarDevice returns a HAL device entry for a board's onboard Dotstar.
func DotstarDevice(b boards.Board, id string) types.HALDevice {
	return types.HALDevice{ID: id, Type: "dotstar", Params: setups.DotstarParams(b, id)}
}

// Platform owns the resource registry handed to the HAL.
type Platform struct {
	reg *provider.Registry
}

func (p *Platform) Board() boards.Board { return p.reg.Board() }

// Close stops bus workers and releases hardware handles.
func (p *Platform) Close() error { return p.reg.Close() }

func newPlatform(b boards.Board, plan Plan, be provider.Backend) (*Platform, error) {
	reg, err := provider.NewRegistry(b, plan, be)
	if err != nil {
		return nil, err
	}
	return &Platform{reg: reg}, nil
}

// NewSimPlatform backs the HAL with simulated pins and SPI buses.
func NewSimPlatform(b boards.Board, plan Plan) (*Platform, *SimBackend, error) {
	be := provider.NewSimBackend()
	p, err := newPlatform(b, plan, be)
	if err != nil {
		return nil, nil, err
	}
	return p, be, nil
}

// Run serves the HAL on conn until ctx is cancelled. Devices are closed
// before it returns.
func Run(ctx context.Context, conn *bus.Connection, p *Platform) {
	core.NewHAL(conn, core.Resources{Reg: p.reg}).Run(ctx)
}

// Topic helpers for HAL clients.

func TopicConfigHAL() bus.Topic { return core.TopicConfigHAL() }
func TopicState() bus.Topic     { return core.TopicHALState() }

func CapValue(domain, kind, name string) bus.Topic  { return core.CapValue(domain, kind, name) }
func CapStatus(domain, kind, name string) bus.Topic { return core.CapStatus(domain, kind, name) }
func CapCtrl(domain, kind, name, verb string) bus.Topic {
	return core.CapCtrl(domain, kind, name, verb)
}
