package core

import (
	"context"

	"boardcode-go/errcode"
	"boardcode-go/types"
)

// ---- Capability & device model ----

// CapAddr is the public address of a capability: hal/cap/<domain>/<kind>/<name>.
type CapAddr struct {
	Domain string
	Kind   string
	Name   string
}

type CapabilitySpec struct {
	Domain string // empty => inferred from Kind
	Kind   types.Kind
	Name   string // empty => device ID
	Info   types.Info
}

// EnqueueResult is the immediate outcome of a control verb. Values produced
// by the verb travel separately as Events.
type EnqueueResult struct {
	OK    bool
	Error errcode.Code
}

// Device is one logical device hosted by the HAL. All methods are called from
// the HAL loop goroutine. Control may perform one bounded bus transaction (the
// provider's SPI timeout applies) but must not wait on anything else. Events
// emitted during Control are published before the reply is sent.
type Device interface {
	ID() string
	Capabilities() []CapabilitySpec
	Init(ctx context.Context) error
	Control(addr CapAddr, verb string, payload any) (EnqueueResult, error)
	Close() error // release claimed resources
}

// Builder input
type BuilderInput struct {
	ID, Type string
	Params   any
	Res      Resources
}

type Builder interface {
	Build(ctx context.Context, in BuilderInput) (Device, error)
}
