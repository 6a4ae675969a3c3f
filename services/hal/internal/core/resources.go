package core

import (
	"tinygo.org/x/drivers"
)

type ResourceID string // e.g. "spi1", "i2c0"

// ---- Pins ----

// PinFunc is the function a pin is claimed for.
type PinFunc uint8

const (
	FuncGPIOIn PinFunc = iota
	FuncGPIOOut
)

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOHandle interface {
	Number() int
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(bool)
	Get() bool
	Toggle()
}

// PinHandle is a claimed pin; AsGPIO panics when the claim was for another
// function.
type PinHandle interface {
	Pin() int
	AsGPIO() GPIOHandle
}

// ---- SPI ----

// SPIConfig is the wiring and clock of one SPI controller.
type SPIConfig struct {
	ID    ResourceID
	Port  int
	Clock int // GPIO numbers; In may be -1 when unused
	Out   int
	In    int
	Hz    uint32
}

// SPIBus is a claimed SPI controller. Tx calls are serialised by the
// provider, so the handle may be used from any goroutine.
type SPIBus interface {
	drivers.SPI
	Config() SPIConfig
}

// ---- Device → HAL telemetry (single shape) ----
// By default an Event is a value update published retained to .../value.
// IsEvent publishes to .../event instead. A non-empty Err publishes only
// .../status=degraded.

type Event struct {
	Addr     CapAddr
	Payload  any
	TSms     int64
	Err      string
	IsEvent  bool
	EventTag string
}

// EventEmitter is provided by the HAL. Emit must not block; false means the
// event was dropped.
type EventEmitter interface {
	Emit(ev Event) bool
}

// ---- HAL-injected resources ----

type Resources struct {
	Reg ResourceRegistry
	Pub EventEmitter
}

// ResourceRegistry hands out exclusive claims on pins and buses.
type ResourceRegistry interface {
	ClaimPin(devID string, n int, fn PinFunc) (PinHandle, error)
	ReleasePin(devID string, n int)

	ClaimSPI(devID string, id ResourceID) (SPIBus, error)
	ReleaseSPI(devID string, id ResourceID)
}
