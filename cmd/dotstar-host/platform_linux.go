//go:build linux && !tinygo

package main

import (
	"boardcode-go/services/config"
	"boardcode-go/services/hal"
)

func newPlatform(cfg *config.Config) (*hal.Platform, error) {
	if cfg.Platform == config.PlatformSim {
		p, _, err := hal.NewSimPlatform(cfg.BoardInfo(), cfg.Plan())
		return p, err
	}
	return hal.NewLinuxPlatform(cfg.BoardInfo(), cfg.Plan(), hal.LinuxOptions{
		GPIO:     cfg.GPIO.Backend,
		Chip:     cfg.GPIO.Chip,
		Consumer: "dotstar-host",
	})
}
