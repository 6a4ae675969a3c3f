package hal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardcode-go/bus"
	"boardcode-go/services/hal/boards"
	"boardcode-go/types"
)

func TestRunWithSimPlatform(t *testing.T) {
	p, sim, err := NewSimPlatform(boards.TinyPICO, PlanFor(boards.TinyPICO))
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "tinypico", p.Board().Name)

	b := bus.NewBus(32)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { Run(ctx, b.NewConnection("hal"), p); close(done) }()
	defer func() { cancel(); <-done }()

	c := b.NewConnection("test")
	state := c.Subscribe(TopicState())
	c.Publish(c.NewMessage(TopicConfigHAL(), types.HALConfig{Devices: []types.HALDevice{
		DotstarDevice(boards.TinyPICO, "status"),
	}}, true))
	waitReady(t, state)

	rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
	defer rcancel()
	reply, err := c.RequestWait(rctx, c.NewMessage(CapCtrl("io", "rgb", "status", "set_color"), types.PackedSet{Value: 0x0000FF}, false))
	require.NoError(t, err)
	assert.Equal(t, types.OKReply{OK: true}, reply.Payload)
	assert.Equal(t, []byte{0, 0, 0, 0, 0xFF, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, sim.SPI("spi1").Last())
}

func TestTinyPICOSetupMatchesDotstarDevice(t *testing.T) {
	cfg := TinyPICOSetup()
	require.Len(t, cfg.Devices, 1)
	assert.Equal(t, DotstarDevice(boards.TinyPICO, "status"), cfg.Devices[0])
}

func waitReady(t *testing.T, sub *bus.Subscription) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == "ready" {
				return
			}
		case <-deadline:
			t.Fatal("hal never became ready")
		}
	}
}
