// Command dotstar-host runs the HAL on a Linux host wired to a TinyPICO-style
// Dotstar (or on the simulator), and bridges it to Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"boardcode-go/bus"
	"boardcode-go/services/bridge"
	"boardcode-go/services/config"
	"boardcode-go/services/hal"
	"boardcode-go/services/heartbeat"
	"boardcode-go/types"
)

func main() {
	var (
		configPath = flag.String("config", "boardcode.yaml", "path to the YAML config")
		platformF  = flag.String("platform", "", "override platform: linux | sim")
		levelF     = flag.String("log-level", "", "override log level")
		initPath   = flag.String("write-default", "", "write a default config to this path and exit")
	)
	flag.Parse()

	// ---- Logging (format refined once config is loaded) ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	if *initPath != "" {
		if err := config.Save(*initPath, config.Default()); err != nil {
			log.Fatal().Err(err).Str("path", *initPath).Msg("write default config")
		}
		log.Info().Str("path", *initPath).Msg("default config written")
		return
	}

	cfg, err := config.Load(*configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", *configPath).Msg("no config file; using defaults")
		cfg = config.Default()
	case err != nil:
		log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
	}
	if *platformF != "" {
		cfg.Platform = *platformF
	}
	if *levelF != "" {
		cfg.Log.Level = *levelF
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform, err := newPlatform(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("platform", cfg.Platform).Msg("platform init failed")
	}
	log.Info().Str("board", cfg.Board).Str("platform", cfg.Platform).Msg("platform ready")

	b := bus.NewBus(32)
	mon := b.NewConnection("monitor")
	go monitor(ctx, mon)

	halDone := make(chan struct{})
	go func() {
		hal.Run(ctx, b.NewConnection("hal"), platform)
		close(halDone)
	}()

	if cfg.Bridge.Redis.Addr != "" {
		go bridge.Start(ctx, b.NewConnection("bridge"), bridge.WithLogger(log.With().Str("svc", "bridge").Logger()))
	}

	hbLog := log.With().Str("svc", "heartbeat").Logger()
	hb := &heartbeat.Service{Log: func(m string) { hbLog.Debug().Msg(m) }}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	if err := config.NewService(cfg).Start(ctx, b.NewConnection("config")); err != nil {
		log.Fatal().Err(err).Msg("config publish failed")
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	<-halDone
	if err := platform.Close(); err != nil {
		log.Warn().Err(err).Msg("platform close")
	}
}

func setupLogging(c config.Log) {
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		log.Warn().Str("level", c.Level).Msg("unknown log level; using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if c.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// monitor logs HAL state changes and capability status/value updates.
func monitor(ctx context.Context, conn *bus.Connection) {
	state := conn.Subscribe(hal.TopicState())
	caps := conn.Subscribe(bus.T("hal", "cap", "#"))
	bst := conn.Subscribe(bus.T("bridge", "state"))
	defer conn.Disconnect()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-state.Channel():
			if s, ok := m.Payload.(types.HALState); ok {
				log.Info().Str("level", s.Level).Str("status", s.Status).Msg("hal")
			}
		case m := <-bst.Channel():
			if p, ok := m.Payload.(map[string]any); ok {
				log.Info().Fields(p).Msg("bridge")
			}
		case m := <-caps.Channel():
			switch p := m.Payload.(type) {
			case types.CapabilityStatus:
				ev := log.Debug()
				if p.Link == types.LinkDegraded {
					ev = log.Warn().Str("error", p.Error)
				}
				ev.Interface("topic", m.Topic).Str("link", string(p.Link)).Msg("capability status")
			case types.DotstarValue:
				log.Info().
					Uint32("r", p.R).Uint32("g", p.G).Uint32("b", p.B).
					Float32("brightness", p.Brightness).
					Uint8("field", p.Field).
					Bool("powered", p.Powered).
					Msg("dotstar")
			}
		}
	}
}
