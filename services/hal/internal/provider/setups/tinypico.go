package setups

import (
	"boardcode-go/services/hal/boards"
	dotstardev "boardcode-go/services/hal/devices/dotstar"
	"boardcode-go/types"
)

// TinyPICOPlan wires i2c0 (21/22), uart1 (tx 1, rx 3) and the Dotstar on spi1
// (clock 12, data 2, 20 MHz).
var TinyPICOPlan = PlanFor(boards.TinyPICO)

// TinyPICOSetup hosts the onboard Dotstar as hal/cap/io/rgb/status.
var TinyPICOSetup = types.HALConfig{
	Devices: []types.HALDevice{
		{ID: "status", Type: "dotstar", Params: DotstarParams(boards.TinyPICO, "status")},
	},
}

// DotstarParams builds device params from a board's Dotstar binding. The
// zero Params is returned when the board has none.
func DotstarParams(b boards.Board, name string) dotstardev.Params {
	ds, ok := b.Dotstar()
	if !ok {
		return dotstardev.Params{}
	}
	return dotstardev.Params{
		Bus:       SPIID(ds.SPI.Port),
		DetectPin: ds.DetectPower,
		PowerPin:  ds.Power,
		Domain:    "io",
		Name:      name,
	}
}
