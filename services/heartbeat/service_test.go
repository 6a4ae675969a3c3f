package heartbeat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"boardcode-go/bus"
)

func TestBeatsAndReconfigures(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("hb")

	lines := make(chan string, 64)
	beats := make(chan uint32, 64)
	s := &Service{
		Log:      func(m string) { lines <- m },
		Beat:     func(n uint32) { beats <- n },
		Interval: time.Hour,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, s.Start(ctx, conn))

	conn.Publish(conn.NewMessage(bus.T("config", "heartbeat"), map[string]any{"interval": 0.02}, true))

	select {
	case n := <-beats:
		assert.Equal(t, uint32(1), n)
	case <-time.After(time.Second):
		t.Fatal("no beat after reconfiguration")
	}

	var sawInterval bool
	for len(lines) > 0 {
		if strings.Contains(<-lines, "interval set to 20ms") {
			sawInterval = true
		}
	}
	assert.True(t, sawInterval)
}

func TestIntervalOf(t *testing.T) {
	d, ok := intervalOf(map[string]any{"interval": 2.0})
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	d, ok = intervalOf(map[string]any{"interval": 3})
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, d)

	for _, bad := range []any{nil, "2", map[string]any{}, map[string]any{"interval": 0.0}, map[string]any{"interval": "1"}} {
		_, ok := intervalOf(bad)
		assert.False(t, ok, "%#v", bad)
	}
}
