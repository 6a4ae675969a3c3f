// bridge/bridge_test.go
package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardcode-go/bus"
	"boardcode-go/types"
)

// ---- fake store ----

type mirrored struct {
	name string
	v    types.DotstarValue
}

type fakeStore struct {
	mirrors chan mirrored
	cmds    chan [2]string // name, text
	popErr  chan error

	mu     sync.Mutex
	names  []string
	closed bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		mirrors: make(chan mirrored, 16),
		cmds:    make(chan [2]string, 16),
		popErr:  make(chan error, 1),
	}
}

func (f *fakeStore) Mirror(_ context.Context, name string, v types.DotstarValue) error {
	f.mirrors <- mirrored{name, v}
	return nil
}

func (f *fakeStore) Pop(ctx context.Context, names []string, wait time.Duration) (string, string, error) {
	f.mu.Lock()
	f.names = names
	f.mu.Unlock()
	select {
	case c := <-f.cmds:
		return c[0], c[1], nil
	case err := <-f.popErr:
		return "", "", err
	case <-ctx.Done():
		return "", "", ctx.Err()
	case <-time.After(wait):
		return "", "", ErrNoCommand
	}
}

func (f *fakeStore) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func withDial(t *testing.T, d func(context.Context, RedisConfig) (Store, error)) {
	t.Helper()
	prev := Dial
	Dial = d
	t.Cleanup(func() { Dial = prev })
}

func startBridge(t *testing.T) (*bus.Connection, *bus.Subscription) {
	t.Helper()
	b := bus.NewBus(32)
	conn := b.NewConnection("bridge_test")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Start(ctx, b.NewConnection("bridge"))

	state := conn.Subscribe(bus.T("bridge", "state"))
	assertLevelStatus(t, nextStatePayload(t, state, 500*time.Millisecond), "idle", "awaiting_config")
	return conn, state
}

var testCfg = Config{Redis: RedisConfig{Addr: "localhost:6379"}}

// ---- tests ----

func TestBridge_LinkUpAndMirrorsValues(t *testing.T) {
	st := newFakeStore()
	withDial(t, func(context.Context, RedisConfig) (Store, error) { return st, nil })
	conn, state := startBridge(t)

	conn.Publish(conn.NewMessage(bus.T("config", "bridge"), testCfg, false))
	assertLevelStatus(t, nextStatePayload(t, state, time.Second), "up", "link_established")

	v := types.DotstarValue{R: 10, G: 20, B: 30, Brightness: 0.5, Field: 15, Powered: true}
	// The value subscription is made after "up"; retained values are replayed.
	conn.Publish(conn.NewMessage(bus.T("hal", "cap", "io", "rgb", "status", "value"), v, true))

	select {
	case m := <-st.mirrors:
		assert.Equal(t, mirrored{"status", v}, m)
	case <-time.After(time.Second):
		t.Fatal("value not mirrored")
	}
}

func TestBridge_ForwardsCommandsToHAL(t *testing.T) {
	st := newFakeStore()
	withDial(t, func(context.Context, RedisConfig) (Store, error) { return st, nil })
	conn, state := startBridge(t)

	ctrl := conn.Subscribe(bus.T("hal", "cap", "power", "rgb", "status", "control", "+"))
	got := make(chan *bus.Message, 4)
	go func() {
		for m := range ctrl.Channel() {
			got <- m
			conn.Reply(m, types.OKReply{OK: true}, false)
		}
	}()
	t.Cleanup(func() { conn.Unsubscribe(ctrl) })

	conn.Publish(conn.NewMessage(bus.T("config", "bridge"), `{"redis":{"addr":"x:1"}}`, false))
	assertLevelStatus(t, nextStatePayload(t, state, time.Second), "up", "link_established")

	// Learn the domain from a value first.
	conn.Publish(conn.NewMessage(bus.T("hal", "cap", "power", "rgb", "status", "value"), types.DotstarValue{}, true))
	<-st.mirrors

	st.cmds <- [2]string{"status", "bogus"}
	st.cmds <- [2]string{"status", "rgb 1 2 3"}

	select {
	case m := <-got:
		assert.Equal(t, "set_color", m.Topic.At(6))
		assert.Equal(t, types.RGBSet{R: 1, G: 2, B: 3}, m.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("command not forwarded")
	}

	st.mu.Lock()
	assert.Equal(t, []string{"status"}, st.names)
	st.mu.Unlock()
}

func TestBridge_DialFailureRetries(t *testing.T) {
	withDial(t, func(context.Context, RedisConfig) (Store, error) { return nil, errors.New("connection refused") })
	conn, state := startBridge(t)

	conn.Publish(conn.NewMessage(bus.T("config", "bridge"), testCfg, false))
	p := nextStatePayload(t, state, time.Second)
	assertLevelStatus(t, p, "degraded", "dial_failed_retrying")
	assert.Contains(t, p["error"], "connection refused")
}

func TestBridge_StoreFailureDropsLink(t *testing.T) {
	st := newFakeStore()
	withDial(t, func(context.Context, RedisConfig) (Store, error) { return st, nil })
	conn, state := startBridge(t)

	conn.Publish(conn.NewMessage(bus.T("config", "bridge"), testCfg, false))
	assertLevelStatus(t, nextStatePayload(t, state, time.Second), "up", "link_established")

	st.popErr <- errors.New("EOF")
	assertLevelStatus(t, nextStatePayload(t, state, time.Second), "degraded", "link_lost_retrying")

	st.mu.Lock()
	assert.True(t, st.closed)
	st.mu.Unlock()
}

func TestBridge_BadConfig(t *testing.T) {
	conn, state := startBridge(t)

	conn.Publish(conn.NewMessage(bus.T("config", "bridge"), `{"redis":`, false))
	assertLevelStatus(t, nextStatePayload(t, state, time.Second), "error", "config_decode_failed")

	conn.Publish(conn.NewMessage(bus.T("config", "bridge"), Config{}, false))
	assertLevelStatus(t, nextStatePayload(t, state, time.Second), "error", "store_init_failed")
}

func TestDecodeConfig(t *testing.T) {
	want := Config{Redis: RedisConfig{Addr: "r:6379", DB: 2}, Names: []string{"a"}}
	for _, in := range []any{
		want,
		&want,
		`{"redis":{"addr":"r:6379","db":2},"names":["a"]}`,
		[]byte(`{"redis":{"addr":"r:6379","db":2},"names":["a"]}`),
		map[string]any{"redis": map[string]any{"addr": "r:6379", "db": 2}, "names": []any{"a"}},
	} {
		got, err := decodeConfig(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := decodeConfig(42)
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	assert.Equal(t, []string{"status"}, c.names())
	assert.Equal(t, 2*time.Second, c.commandTimeout())
	assert.Equal(t, "dotstar", c.Redis.prefix())
}

func TestBackoffSeq(t *testing.T) {
	next := backoffSeq(100*time.Millisecond, 350*time.Millisecond)
	var got []time.Duration
	for i := 0; i < 4; i++ {
		got = append(got, next())
	}
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}, got)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func nextStatePayload(t *testing.T, sub *bus.Subscription, d time.Duration) map[string]any {
	t.Helper()
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m := <-sub.Channel():
		p, ok := m.Payload.(map[string]any)
		if !ok {
			t.Fatalf("state payload type: got %T, want map[string]any", m.Payload)
		}
		return p
	case <-timer.C:
		t.Fatalf("timeout waiting for bridge/state")
		return nil
	}
}

func assertLevelStatus(t *testing.T, payload map[string]any, wantLevel, wantStatus string) {
	t.Helper()
	gotLevel, _ := payload["level"].(string)
	gotStatus, _ := payload["status"].(string)
	if gotLevel != wantLevel || gotStatus != wantStatus {
		t.Fatalf("unexpected state: level=%q status=%q, want level=%q status=%q (payload=%v)",
			gotLevel, gotStatus, wantLevel, wantStatus, payload)
	}
}
