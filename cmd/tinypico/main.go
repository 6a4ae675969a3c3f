//go:build esp32

// Command tinypico: HAL bring-up on a TinyPICO with the onboard Dotstar as
// a status light.
//
//	tinygo flash -target esp32-coreboard-v2 ./cmd/tinypico
//
// Boot progress: amber once the HAL is ready, green once services are
// running, red if the green write was refused. The heartbeat then pulses
// brightness.
package main

import (
	"context"
	"time"

	"boardcode-go/bus"
	"boardcode-go/services/hal"
	"boardcode-go/services/hal/boards"
	"boardcode-go/services/heartbeat"
	"boardcode-go/types"
)

func printTopic(prefix string, t bus.Topic) {
	print(prefix, " ")
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			print("/")
		}
		if s, ok := t.At(i).(string); ok {
			print(s)
		} else {
			print("?")
		}
	}
	println()
}

func main() {
	// Allow USB serial to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot", boards.TinyPICO.Name)
	ctx := context.Background()

	b := bus.NewBus(8)
	halConn := b.NewConnection("hal")
	ui := b.NewConnection("ui")

	platform, err := hal.NewESP32Platform(boards.TinyPICO, hal.PlanFor(boards.TinyPICO))
	if err != nil {
		println("[main] platform init failed:", err.Error())
		for {
			time.Sleep(time.Hour)
		}
	}

	state := ui.Subscribe(hal.TopicState())
	go hal.Run(ctx, halConn, platform)

	println("[main] publishing config/hal")
	ui.Publish(ui.NewMessage(hal.TopicConfigHAL(), hal.TinyPICOSetup(), true))
	waitReady(state)
	ui.Unsubscribe(state)

	status := newStatusLight(ctx, ui)
	if !status.color(0xFF, 0x80, 0x00, 0.3) {
		println("[main] status light unavailable")
	}

	mon := ui.Subscribe(bus.T("hal", "cap", "+", "+", "+", "status"))
	go func() {
		for m := range mon.Channel() {
			if s, ok := m.Payload.(types.CapabilityStatus); ok && s.Link == types.LinkDegraded {
				printTopic("[monitor] degraded:", m.Topic)
			}
		}
	}()

	hb := &heartbeat.Service{
		Beat: func(n uint32) {
			br := float32(0.1)
			if n%2 == 0 {
				br = 0.4
			}
			status.brightness(br)
		},
	}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))
	ui.Publish(ui.NewMessage(bus.T("config", "heartbeat"), map[string]any{"interval": 1.0}, true))
	if !status.color(0x00, 0xFF, 0x00, 0.3) {
		status.color(0xFF, 0x00, 0x00, 1)
	}
	println("[main] up")

	select {}
}

func waitReady(sub *bus.Subscription) {
	for m := range sub.Channel() {
		if st, ok := m.Payload.(types.HALState); ok {
			println("[main] hal state:", st.Level, st.Status)
			if st.Level == "ready" {
				return
			}
		}
	}
}

// statusLight drives hal/cap/io/rgb/status through control requests.
type statusLight struct {
	ctx  context.Context
	conn *bus.Connection
}

func newStatusLight(ctx context.Context, conn *bus.Connection) *statusLight {
	return &statusLight{ctx: ctx, conn: conn}
}

func (s *statusLight) call(verb string, payload any) bool {
	ctx, cancel := context.WithTimeout(s.ctx, 500*time.Millisecond)
	defer cancel()
	reply, err := s.conn.RequestWait(ctx, s.conn.NewMessage(hal.CapCtrl("io", "rgb", "status", verb), payload, false))
	if err != nil {
		println("[status]", verb, "error:", err.Error())
		return false
	}
	if e, ok := reply.Payload.(types.ErrorReply); ok {
		println("[status]", verb, "rejected:", e.Error)
		return false
	}
	return true
}

func (s *statusLight) color(r, g, b uint8, br float32) bool {
	return s.call("set_color", types.RGBBrightnessSet{R: r, G: g, B: b, Brightness: br})
}

func (s *statusLight) brightness(v float32) bool {
	return s.call("set_brightness", types.BrightnessSet{Value: v})
}
