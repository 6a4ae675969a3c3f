package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindLED    Kind = "led"
	KindSwitch Kind = "switch"
	KindRGB    Kind = "rgb"
)

// CapabilityAddress identifies a public capability on the bus.
type CapabilityAddress struct {
	Domain string `json:"domain"` // e.g. "io","power"
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
}
