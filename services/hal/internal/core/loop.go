package core

import (
	"context"

	"boardcode-go/bus"
	"boardcode-go/errcode"
	"boardcode-go/types"
	"boardcode-go/x/timex"
)

const eventQueueLen = 16

type capKey struct {
	domain string
	kind   string
	name   string
}

type HAL struct {
	conn *bus.Connection
	res  Resources

	// Device registry
	dev   map[string]Device // devID -> device
	order []string          // init order, closed in reverse

	// Capability index: (domain,kind,name) -> devID
	capIndex map[capKey]string

	// Single-threaded publication of device events
	evCh chan Event
}

func NewHAL(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		dev:      map[string]Device{},
		capIndex: map[capKey]string{},
		evCh:     make(chan Event, eventQueueLen),
	}
	// HAL provides the emitter to devices.
	h.res.Pub = h
	return h
}

// Run serves config and control traffic until ctx is cancelled, then closes
// every device it built.
func (h *HAL) Run(ctx context.Context) {
	cfgSub := h.conn.Subscribe(TopicConfigHAL())
	ctrlSub := h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(cfgSub)
	defer h.conn.Unsubscribe(ctrlSub)

	h.pubHALState("idle", "awaiting_config")
	ready := false
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.pubHALState("stopped", "context_cancelled")
			return
		case msg := <-cfgSub.Channel():
			cfg, code := As[types.HALConfig](msg.Payload)
			if code != "" {
				println("[hal] ignoring config payload:", string(code))
				continue
			}
			// applyConfig is additive: devices already present are kept.
			h.applyConfig(ctx, cfg)
			if !ready {
				ready = true
				h.pubHALState("ready", "")
			}
		case m := <-ctrlSub.Channel():
			if !ready {
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m)
		case ev := <-h.evCh:
			// All device→HAL telemetry is published from this goroutine.
			h.handleEvent(ev)
		}
	}
}

func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for i := range cfg.Devices {
		dc := cfg.Devices[i]
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			println("[hal] no builder for type:", dc.Type, "id:", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{
			ID:     dc.ID,
			Type:   dc.Type,
			Params: dc.Params,
			Res:    h.res,
		})
		if err != nil {
			println("[hal] build failed for:", dc.ID, "err:", err.Error())
			continue
		}
		if err := dev.Init(ctx); err != nil {
			println("[hal] init failed for:", dc.ID, "err:", err.Error())
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev
		h.order = append(h.order, dev.ID())

		// Register capabilities, publish retained info + initial status.
		for _, cs := range dev.Capabilities() {
			k := string(cs.Kind)
			domain := cs.Domain
			if domain == "" {
				domain = defaultDomainFor(k)
			}
			name := cs.Name
			if name == "" {
				name = dev.ID()
			}
			h.capIndex[capKey{domain: domain, kind: k, name: name}] = dev.ID()

			h.conn.Publish(h.conn.NewMessage(CapInfo(domain, k, name), cs.Info, true))
			h.conn.Publish(h.conn.NewMessage(
				CapStatus(domain, k, name),
				types.CapabilityStatus{Link: types.LinkDown, TSms: timex.NowMs()},
				true,
			))
		}
	}
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() < 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, _ := msg.Topic.At(2).(string)
	kind, _ := msg.Topic.At(3).(string)
	name, _ := msg.Topic.At(4).(string)
	verb, _ := msg.Topic.At(6).(string)

	ownerID, ok := h.capIndex[capKey{domain: domain, kind: kind, name: name}]
	if !ok {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}
	dev := h.dev[ownerID]

	res, err := dev.Control(CapAddr{Domain: domain, Kind: kind, Name: name}, verb, msg.Payload)
	// Publish what the verb emitted before the reply, so a client that reads
	// the retained value after its reply sees the new state.
	h.drainEvents()
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	if res.OK {
		h.replyOK(msg)
		return
	}
	code := res.Error
	if code == "" {
		code = errcode.Busy
	}
	h.replyErr(msg, code)
}

func (h *HAL) handleEvent(ev Event) {
	d, k, n := ev.Addr.Domain, ev.Addr.Kind, ev.Addr.Name

	// Error → retained status:degraded; no value/event published.
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			CapStatus(d, k, n),
			types.CapabilityStatus{Link: types.LinkDegraded, TSms: ev.TSms, Error: ev.Err},
			true,
		))
		return
	}

	switch {
	case ev.IsEvent && ev.EventTag != "":
		h.conn.Publish(h.conn.NewMessage(capEventTagged(d, k, n, ev.EventTag), ev.Payload, false))
	case ev.IsEvent:
		h.conn.Publish(h.conn.NewMessage(CapEvent(d, k, n), ev.Payload, false))
	default:
		h.conn.Publish(h.conn.NewMessage(CapValue(d, k, n), ev.Payload, true))
	}
	h.conn.Publish(h.conn.NewMessage(
		CapStatus(d, k, n),
		types.CapabilityStatus{Link: types.LinkUp, TSms: ev.TSms},
		true,
	))
}

func (h *HAL) drainEvents() {
	for {
		select {
		case ev := <-h.evCh:
			h.handleEvent(ev)
		default:
			return
		}
	}
}

func (h *HAL) closeAll() {
	for i := len(h.order) - 1; i >= 0; i-- {
		id := h.order[i]
		if err := h.dev[id].Close(); err != nil {
			println("[hal] close failed for:", id, "err:", err.Error())
		}
		delete(h.dev, id)
	}
	h.order = nil
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		TopicHALState(),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

func defaultDomainFor(kind string) string {
	switch kind {
	case "switch":
		return "power"
	default:
		return "io"
	}
}

// ---- HAL as EventEmitter (enqueue to single publisher) ----

func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}
