//go:build linux && !tinygo

package hal

import (
	"boardcode-go/services/hal/boards"
	"boardcode-go/services/hal/internal/provider"
)

type LinuxOptions = provider.LinuxOptions

// NewLinuxPlatform drives the plan's SPI buses through spidev (each SPIPlan
// needs Device set) and control lines through cdev or periph.
func NewLinuxPlatform(b boards.Board, plan Plan, opts LinuxOptions) (*Platform, error) {
	be, err := provider.NewLinuxBackend(opts)
	if err != nil {
		return nil, err
	}
	p, err := newPlatform(b, plan, be)
	if err != nil {
		_ = be.Close()
		return nil, err
	}
	return p, nil
}
