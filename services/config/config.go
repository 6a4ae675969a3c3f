// Package config loads the host YAML configuration and publishes its
// sections as retained messages under config/<service>.
package config

import (
	"context"
	"fmt"
	"os"

	"boardcode-go/bus"
	"boardcode-go/errcode"
	"boardcode-go/services/bridge"
	"boardcode-go/services/hal"
	"boardcode-go/services/hal/boards"
	"boardcode-go/types"

	"gopkg.in/yaml.v3"
)

// Platforms.
const (
	PlatformLinux = "linux"
	PlatformSim   = "sim"
)

type Log struct {
	Level  string `yaml:"level"`  // zerolog level name
	Format string `yaml:"format"` // "console" | "json"
}

type SPI struct {
	Dev     string `yaml:"dev"`      // e.g. /dev/spidev1.0
	SpeedHz uint32 `yaml:"speed_hz"` // 0 => board default
}

type GPIO struct {
	Backend string `yaml:"backend"` // "cdev" | "periph"
	Chip    string `yaml:"chip"`    // e.g. gpiochip0
}

type Heartbeat struct {
	IntervalS int `yaml:"interval_s"`
}

type Config struct {
	Board     string            `yaml:"board"`
	Platform  string            `yaml:"platform"` // "linux" | "sim"
	Log       Log               `yaml:"log"`
	SPI       SPI               `yaml:"spi,omitempty"`
	GPIO      GPIO              `yaml:"gpio,omitempty"`
	Bridge    bridge.Config     `yaml:"bridge,omitempty"`
	Heartbeat Heartbeat         `yaml:"heartbeat,omitempty"`
	Devices   []types.HALDevice `yaml:"devices,omitempty"`
}

// Default is a TinyPICO served by the simulator with the bridge disabled.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Board == "" {
		c.Board = "tinypico"
	}
	if c.Platform == "" {
		c.Platform = PlatformSim
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.GPIO.Backend == "" {
		c.GPIO.Backend = hal.GPIOCdev
	}
	if c.GPIO.Chip == "" {
		c.GPIO.Chip = "gpiochip0"
	}
	if c.Heartbeat.IntervalS <= 0 {
		c.Heartbeat.IntervalS = 10
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) Validate() error {
	if _, ok := boards.Lookup(c.Board); !ok {
		return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "unknown board " + c.Board}
	}
	switch c.Platform {
	case PlatformLinux:
		if c.SPI.Dev == "" {
			return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "spi.dev required on linux"}
		}
	case PlatformSim:
	default:
		return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "platform " + c.Platform}
	}
	switch c.GPIO.Backend {
	case hal.GPIOCdev, hal.GPIOPeriph:
	default:
		return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "gpio backend " + c.GPIO.Backend}
	}
	seen := map[string]bool{}
	for _, d := range c.Devices {
		if d.ID == "" || d.Type == "" {
			return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "device needs id and type"}
		}
		if seen[d.ID] {
			return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "duplicate device " + d.ID}
		}
		seen[d.ID] = true
	}
	return nil
}

// BoardInfo returns the configured board table.
func (c *Config) BoardInfo() boards.Board {
	b, _ := boards.Lookup(c.Board)
	return b
}

// Plan is the board's default plan with the host SPI device and clock applied.
func (c *Config) Plan() hal.Plan {
	p := hal.PlanFor(c.BoardInfo())
	for i := range p.SPI {
		p.SPI[i].Device = c.SPI.Dev
		if c.SPI.SpeedHz != 0 {
			p.SPI[i].Hz = c.SPI.SpeedHz
		}
	}
	return p
}

// HALConfig lists the configured devices, or the board's onboard Dotstar as
// "status" when none are configured.
func (c *Config) HALConfig() types.HALConfig {
	if len(c.Devices) > 0 {
		return types.HALConfig{Devices: append([]types.HALDevice(nil), c.Devices...)}
	}
	if _, ok := c.BoardInfo().Dotstar(); !ok {
		return types.HALConfig{}
	}
	return types.HALConfig{Devices: []types.HALDevice{hal.DotstarDevice(c.BoardInfo(), "status")}}
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

const configPrefix = "config"

type Service struct {
	cfg *Config
}

func NewService(cfg *Config) *Service { return &Service{cfg: cfg} }

// Start publishes the hal, heartbeat and (when an address is set) bridge
// sections as retained messages.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pub := func(key string, v any) {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, key), v, true))
	}
	pub("hal", s.cfg.HALConfig())
	pub("heartbeat", map[string]any{"interval": float64(s.cfg.Heartbeat.IntervalS)})
	if s.cfg.Bridge.Redis.Addr != "" {
		pub("bridge", s.cfg.Bridge)
	}
	return nil
}
