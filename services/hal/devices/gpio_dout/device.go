package gpio_dout

import (
	"context"

	"boardcode-go/errcode"
	"boardcode-go/services/hal/internal/core"
	"boardcode-go/types"
	"boardcode-go/x/timex"
)

type Params struct {
	Pin       int
	ActiveLow bool
	Initial   bool
	Domain    string
	Name      string
}

type Role int

const (
	RoleLED Role = iota
	RoleSwitch
)

// role describes how one output line is presented on the bus.
type role struct {
	kind   types.Kind
	domain string
	info   func(pin int) any
	value  func(on bool) any
	decode func(payload any) (on bool, ok bool)
}

var roles = map[Role]role{
	RoleLED: {
		kind:   types.KindLED,
		domain: "io",
		info:   func(pin int) any { return types.LEDInfo{Pin: pin} },
		value: func(on bool) any {
			if on {
				return types.LEDValue{Level: 1}
			}
			return types.LEDValue{Level: 0}
		},
		decode: func(p any) (bool, bool) {
			v, code := core.As[types.LEDSet](p)
			return v.Level, code == "" && p != nil
		},
	},
	RoleSwitch: {
		kind:   types.KindSwitch,
		domain: "power",
		info:   func(pin int) any { return types.SwitchInfo{Pin: pin} },
		value:  func(on bool) any { return types.SwitchValue{On: on} },
		decode: func(p any) (bool, bool) {
			v, code := core.As[types.SwitchSet](p)
			return v.On, code == "" && p != nil
		},
	},
}

// line maps logical on/off onto an output's electrical level.
type line struct {
	h         core.GPIOHandle
	activeLow bool
}

func (l line) level(on bool) bool { return on != l.activeLow }
func (l line) set(on bool)        { l.h.Set(l.level(on)) }
func (l line) on() bool           { return l.h.Get() != l.activeLow }

// Device is a single GPIO output exposed as an LED or a switch.
type Device struct {
	id      string
	pinN    int
	out     line
	initial bool
	role    role
	addr    core.CapAddr
	pub     core.EventEmitter
	reg     core.ResourceRegistry
}

func New(r Role, id string, p Params, h core.GPIOHandle, res core.Resources) *Device {
	rs := roles[r]
	addr := core.CapAddr{Domain: p.Domain, Kind: string(rs.kind), Name: p.Name}
	if addr.Domain == "" {
		addr.Domain = rs.domain
	}
	if addr.Name == "" {
		addr.Name = id
	}
	return &Device{
		id:      id,
		pinN:    p.Pin,
		out:     line{h: h, activeLow: p.ActiveLow},
		initial: p.Initial,
		role:    rs,
		addr:    addr,
		pub:     res.Pub,
		reg:     res.Reg,
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   d.role.kind,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "gpio_dout",
			Detail:        d.role.info(d.out.h.Number()),
		},
	}}
}

func (d *Device) Init(context.Context) error {
	if err := d.out.h.ConfigureOutput(d.out.level(d.initial)); err != nil {
		return err
	}
	d.emit()
	return nil
}

// Close releases the output line.
func (d *Device) Close() error {
	if d.reg != nil {
		d.reg.ReleasePin(d.id, d.pinN)
	}
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	switch verb {
	case "set":
		on, ok := d.role.decode(payload)
		if !ok {
			return core.EnqueueResult{Error: errcode.InvalidPayload}, nil
		}
		d.out.set(on)
	case "toggle":
		d.out.set(!d.out.on())
	case "read":
	default:
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}
	d.emit()
	return core.EnqueueResult{OK: true}, nil
}

func (d *Device) emit() {
	_ = d.pub.Emit(core.Event{
		Addr:    d.addr,
		Payload: d.role.value(d.out.on()),
		TSms:    timex.NowMs(),
	})
}
