package core

import (
	"sync"

	"boardcode-go/types"
)

var (
	regMu    sync.RWMutex
	builders = map[string]Builder{}
)

// RegisterBuilder makes a device type available to HAL configs. Device
// packages call it from init.
func RegisterBuilder(typ string, b Builder) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := builders[typ]; exists {
		panic("duplicate device builder: " + typ)
	}
	builders[typ] = b
}

func lookupBuilder(typ string) (Builder, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := builders[typ]
	return b, ok
}

// Public HAL config type is in boardcode-go/types
type HALConfig = types.HALConfig
type HALDevice = types.HALDevice
