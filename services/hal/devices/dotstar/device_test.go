package dotstardev_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardcode-go/bus"
	"boardcode-go/errcode"
	"boardcode-go/services/hal/boards"
	dotstardev "boardcode-go/services/hal/devices/dotstar"
	"boardcode-go/services/hal/internal/core"
	"boardcode-go/services/hal/internal/provider"
	"boardcode-go/services/hal/internal/provider/setups"
	"boardcode-go/types"
)

type rig struct {
	be   *provider.SimBackend
	conn *bus.Connection
}

func startTinyPICO(t *testing.T, cfg types.HALConfig) *rig {
	t.Helper()
	be := provider.NewSimBackend()
	reg, err := provider.NewRegistry(boards.TinyPICO, setups.TinyPICOPlan, be)
	require.NoError(t, err)

	b := bus.NewBus(32)
	h := core.NewHAL(b.NewConnection("hal"), core.Resources{Reg: reg})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { h.Run(ctx); close(done) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = reg.Close()
	})

	conn := b.NewConnection("test")
	ready := conn.Subscribe(core.TopicHALState())
	conn.Publish(conn.NewMessage(core.TopicConfigHAL(), cfg, true))
	for {
		m := recv(t, ready)
		if m.Payload.(types.HALState).Level == "ready" {
			break
		}
	}
	conn.Unsubscribe(ready)
	return &rig{be: be, conn: conn}
}

func recv(t *testing.T, s *bus.Subscription) *bus.Message {
	t.Helper()
	select {
	case m := <-s.Channel():
		return m
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func (r *rig) control(t *testing.T, verb string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg := r.conn.NewMessage(core.CapCtrl("io", "rgb", "status", verb), payload, false)
	reply, err := r.conn.RequestWait(ctx, msg)
	require.NoError(t, err)
	return reply.Payload
}

// value waits for the retained value matching pred.
func (r *rig) value(t *testing.T, pred func(types.DotstarValue) bool) types.DotstarValue {
	t.Helper()
	s := r.conn.Subscribe(core.CapValue("io", "rgb", "status"))
	defer r.conn.Unsubscribe(s)
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-s.Channel():
			if v := m.Payload.(types.DotstarValue); pred(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timeout waiting for value")
		}
	}
}

func TestInfoAndInitialState(t *testing.T) {
	r := startTinyPICO(t, setups.TinyPICOSetup)

	s := r.conn.Subscribe(core.CapInfo("io", "rgb", "status"))
	info := recv(t, s).Payload.(types.Info)
	assert.Equal(t, "dotstar", info.Driver)
	assert.Equal(t, types.DotstarInfo{Bus: "spi1", Hz: 20_000_000, DetectPin: 9, PowerPin: 13, ClockPin: 12, DataPin: 2}, info.Detail)

	v := r.value(t, func(types.DotstarValue) bool { return true })
	assert.Equal(t, types.DotstarValue{Brightness: 1, Field: 31, Powered: true}, v)

	// Powered on, nothing written yet.
	assert.False(t, r.be.Pin(9).Get())
	assert.False(t, r.be.Pin(13).Get())
	assert.Empty(t, r.be.SPI("spi1").Frames())
}

func TestSetColorWhite(t *testing.T) {
	r := startTinyPICO(t, setups.TinyPICOSetup)

	assert.Equal(t, types.OKReply{OK: true}, r.control(t, "set_color", types.PackedSet{Value: 0xFFFFFF}))
	assert.Equal(t, types.OKReply{OK: true}, r.control(t, "set_brightness", types.BrightnessSet{Value: 1}))

	assert.Equal(t, []byte{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, r.be.SPI("spi1").Last())
	v := r.value(t, func(v types.DotstarValue) bool { return v.R == 0xFF })
	assert.Equal(t, types.DotstarValue{R: 0xFF, G: 0xFF, B: 0xFF, Brightness: 1, Field: 31, Powered: true}, v)
}

func TestSetColorWithBrightness(t *testing.T) {
	r := startTinyPICO(t, setups.TinyPICOSetup)

	assert.Equal(t, types.OKReply{OK: true}, r.control(t, "set_color", types.RGBBrightnessSet{R: 10, G: 20, B: 30, Brightness: 0.5}))

	f := r.be.SPI("spi1").Last()
	require.Len(t, f, 12)
	assert.Equal(t, []byte{30, 20, 10}, f[5:8])
	v := r.value(t, func(v types.DotstarValue) bool { return v.R == 10 })
	assert.Equal(t, float32(0.5), v.Brightness)
	assert.Equal(t, uint8(15), v.Field)
}

func TestSetPowerOff(t *testing.T) {
	r := startTinyPICO(t, setups.TinyPICOSetup)

	assert.Equal(t, types.OKReply{OK: true}, r.control(t, "set_power", types.PowerSet{On: false}))
	assert.True(t, r.be.Pin(9).Get())
	assert.True(t, r.be.Pin(13).Get())
	r.value(t, func(v types.DotstarValue) bool { return !v.Powered })

	assert.Equal(t, types.OKReply{OK: true}, r.control(t, "set_power", &types.PowerSet{On: true}))
	assert.False(t, r.be.Pin(13).Get())
}

func TestOffAndRead(t *testing.T) {
	r := startTinyPICO(t, setups.TinyPICOSetup)

	r.control(t, "set_color", types.RGBSet{R: 200, G: 100, B: 50})
	assert.Equal(t, types.OKReply{OK: true}, r.control(t, "off", nil))
	assert.Equal(t, []byte{0, 0, 0, 0, 0xFF, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}, r.be.SPI("spi1").Last())

	n := len(r.be.SPI("spi1").Frames())
	assert.Equal(t, types.OKReply{OK: true}, r.control(t, "read", nil))
	assert.Len(t, r.be.SPI("spi1").Frames(), n, "read does not write")
}

func TestControlErrors(t *testing.T) {
	r := startTinyPICO(t, setups.TinyPICOSetup)

	assert.Equal(t, types.ErrorReply{Error: string(errcode.InvalidPayload)}, r.control(t, "set_color", "red"))
	assert.Equal(t, types.ErrorReply{Error: string(errcode.InvalidPayload)}, r.control(t, "set_brightness", nil))
	assert.Equal(t, types.ErrorReply{Error: string(errcode.InvalidPayload)}, r.control(t, "set_power", types.BrightnessSet{}))
	assert.Equal(t, types.ErrorReply{Error: string(errcode.Unsupported)}, r.control(t, "blink", nil))
}

func TestBusFailureDegrades(t *testing.T) {
	r := startTinyPICO(t, setups.TinyPICOSetup)
	r.be.SPI("spi1").FailWith(errors.New("spi: stalled"))

	status := r.conn.Subscribe(core.CapStatus("io", "rgb", "status"))
	assert.Equal(t, types.ErrorReply{Error: string(errcode.IOError)}, r.control(t, "set_color", types.RGBSet{R: 1}))

	deadline := time.After(time.Second)
	for {
		select {
		case m := <-status.Channel():
			if s := m.Payload.(types.CapabilityStatus); s.Link == types.LinkDegraded {
				assert.Equal(t, string(errcode.IOError), s.Error)
				return
			}
		case <-deadline:
			t.Fatal("no degraded status")
		}
	}
}

func TestSecondDotstarOnSameBusFails(t *testing.T) {
	cfg := types.HALConfig{Devices: append(append([]types.HALDevice(nil), setups.TinyPICOSetup.Devices...),
		types.HALDevice{ID: "other", Type: "dotstar", Params: dotstardev.Params{Bus: "spi1", DetectPin: 4, PowerPin: 5}},
	)}
	r := startTinyPICO(t, cfg)

	// The second device cannot claim spi1 and is skipped.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := r.conn.RequestWait(ctx, r.conn.NewMessage(core.CapCtrl("io", "rgb", "other", "read"), nil, false))
	require.NoError(t, err)
	assert.Equal(t, types.ErrorReply{Error: string(errcode.UnknownCapability)}, reply.Payload)
}

func TestCloseReleasesClaims(t *testing.T) {
	be := provider.NewSimBackend()
	reg, err := provider.NewRegistry(boards.TinyPICO, setups.TinyPICOPlan, be)
	require.NoError(t, err)
	defer reg.Close()

	b := bus.NewBus(32)
	h := core.NewHAL(b.NewConnection("hal"), core.Resources{Reg: reg})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { h.Run(ctx); close(done) }()

	conn := b.NewConnection("test")
	state := conn.Subscribe(core.TopicHALState())
	conn.Publish(conn.NewMessage(core.TopicConfigHAL(), setups.TinyPICOSetup, true))
	for recv(t, state).Payload.(types.HALState).Level != "ready" {
	}
	cancel()
	<-done

	_, err = reg.ClaimSPI("next", "spi1")
	assert.NoError(t, err)
	_, err = reg.ClaimPin("next", 13, core.FuncGPIOOut)
	assert.NoError(t, err)
}
