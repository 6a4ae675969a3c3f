//go:build !linux || tinygo

package main

import (
	"boardcode-go/errcode"
	"boardcode-go/services/config"
	"boardcode-go/services/hal"
)

func newPlatform(cfg *config.Config) (*hal.Platform, error) {
	if cfg.Platform != config.PlatformSim {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "platform", Msg: cfg.Platform + " needs linux"}
	}
	p, _, err := hal.NewSimPlatform(cfg.BoardInfo(), cfg.Plan())
	return p, err
}
