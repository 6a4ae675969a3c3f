package heartbeat

import (
	"context"
	"time"

	"boardcode-go/bus"
)

var topicConfigHeartbeat = bus.T("config", "heartbeat")

// Service logs a heartbeat line and calls Beat on every tick. The interval is
// reconfigured by {"interval": <seconds>} on config/heartbeat.
type Service struct {
	// Log receives each line; nil prints to the console.
	Log func(msg string)
	// Beat, when set, runs on every tick (e.g. to blink a status LED).
	Beat func(n uint32)
	// Interval before the first config arrives; 0 means one second.
	Interval time.Duration
}

func (s *Service) logf(msg string) {
	if s.Log != nil {
		s.Log(msg)
		return
	}
	println("Info:", msg)
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	iv := s.Interval
	if iv <= 0 {
		iv = time.Second
	}
	tick := time.NewTicker(iv)
	defer tick.Stop()

	var n uint32
	for {
		select {
		case <-ctx.Done():
			s.logf("heartbeat service stopping")
			return
		case t := <-tick.C:
			n++
			s.logf(t.Format("15:04:05") + " heartbeat")
			if s.Beat != nil {
				s.Beat(n)
			}
		case msg := <-cfgSub.Channel():
			if d, ok := intervalOf(msg.Payload); ok {
				tick.Reset(d)
				s.logf("heartbeat interval set to " + d.String())
			}
		}
	}
}

func intervalOf(p any) (time.Duration, bool) {
	m, ok := p.(map[string]any)
	if !ok {
		return 0, false
	}
	var secs float64
	switch v := m["interval"].(type) {
	case float64:
		secs = v
	case int:
		secs = float64(v)
	default:
		return 0, false
	}
	if secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
