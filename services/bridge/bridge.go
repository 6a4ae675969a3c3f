// Package bridge mirrors Dotstar state into Redis and feeds Redis list
// commands back to the HAL as control requests.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"boardcode-go/bus"
	"boardcode-go/types"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// Start runs the bridge until ctx is cancelled. It listens for config on
// {"config","bridge"} and (re)connects to Redis on every new config.
func Start(ctx context.Context, conn *bus.Connection, opts ...Option) {
	s := &Service{
		conn:       conn,
		stateTopic: bus.T("bridge", "state"),
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is expected on "config/bridge" as a Config value, a JSON string or
// bytes, or a decoded map.
type Config struct {
	Redis RedisConfig `json:"redis" yaml:"redis"`
	// Names lists the Dotstars whose command lists are read; default "status".
	Names []string `json:"names,omitempty" yaml:"names,omitempty"`
	// CommandTimeoutMS bounds each HAL request; default 2000.
	CommandTimeoutMS int `json:"command_timeout_ms,omitempty" yaml:"command_timeout_ms,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"` // default "dotstar"
}

func (c RedisConfig) prefix() string {
	if c.Prefix == "" {
		return "dotstar"
	}
	return c.Prefix
}

func (c Config) names() []string {
	if len(c.Names) == 0 {
		return []string{"status"}
	}
	return c.Names
}

func (c Config) commandTimeout() time.Duration {
	if c.CommandTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.CommandTimeoutMS) * time.Millisecond
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic
	log        zerolog.Logger

	mu      sync.Mutex
	curRun  context.CancelFunc
	domains map[string]string // dotstar name -> HAL domain, learnt from values
}

// run waits for config and supervises a single link instance.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.T("config", "bridge"))
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.log.Warn().Err(err).Msg("bad bridge config")
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	if cfg.Redis.Addr == "" {
		s.publishState("error", "store_init_failed", errors.New("redis addr required"))
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		st, err := Dial(ctx, cfg.Redis)
		if err != nil {
			delay := backoff()
			s.log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Dur("retry", delay).Msg("redis dial failed")
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.log.Info().Str("addr", cfg.Redis.Addr).Msg("redis link up")
		s.publishState("up", "link_established", nil)
		err = s.handleLink(ctx, st, cfg)
		_ = st.Close()
		if err != nil {
			delay := backoff()
			s.log.Warn().Err(err).Dur("retry", delay).Msg("redis link lost")
			s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		return
	}
}

// handleLink mirrors values out and commands in until ctx ends or the store fails.
func (s *Service) handleLink(ctx context.Context, st Store, cfg Config) error {
	vals := s.conn.Subscribe(bus.T("hal", "cap", "+", "rgb", "+", "value"))
	defer s.conn.Unsubscribe(vals)

	linkCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.readCommands(linkCtx, st, cfg) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case m := <-vals.Channel():
			v, ok := m.Payload.(types.DotstarValue)
			if !ok {
				continue
			}
			domain, _ := m.Topic.At(2).(string)
			name, _ := m.Topic.At(4).(string)
			s.learnDomain(name, domain)
			if err := st.Mirror(ctx, name, v); err != nil {
				return err
			}
		}
	}
}

func (s *Service) readCommands(ctx context.Context, st Store, cfg Config) error {
	for {
		name, text, err := st.Pop(ctx, cfg.names(), time.Second)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrNoCommand):
			continue
		case err != nil:
			return err
		}

		cmd, err := ParseCommand(text)
		if err != nil {
			s.log.Warn().Err(err).Str("name", name).Str("cmd", text).Msg("rejected command")
			continue
		}
		s.forward(ctx, name, cmd, cfg.commandTimeout())
	}
}

// forward sends one command to the HAL and logs a failed reply.
func (s *Service) forward(ctx context.Context, name string, cmd Command, timeout time.Duration) {
	topic := bus.T("hal", "cap", s.domainOf(name), "rgb", name, "control", cmd.Verb)
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := s.conn.RequestWait(rctx, s.conn.NewMessage(topic, cmd.Payload, false))
	if err != nil {
		s.log.Warn().Err(err).Str("name", name).Str("verb", cmd.Verb).Msg("hal request failed")
		return
	}
	if e, ok := reply.Payload.(types.ErrorReply); ok {
		s.log.Warn().Str("name", name).Str("verb", cmd.Verb).Str("code", e.Error).Msg("hal rejected command")
		return
	}
	s.log.Debug().Str("name", name).Str("verb", cmd.Verb).Msg("command applied")
}

func (s *Service) learnDomain(name, domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.domains == nil {
		s.domains = map[string]string{}
	}
	s.domains[name] = domain
}

func (s *Service) domainOf(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.domains[name]; ok && d != "" {
		return d
	}
	return "io"
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case Config:
		return v, nil
	case *Config:
		if v == nil {
			return cfg, errors.New("nil config")
		}
		return *v, nil
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, err
		}
	case map[string]any:
		// Already a decoded object; re-marshal for simplicity.
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, payload, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
