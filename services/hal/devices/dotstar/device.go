package dotstardev

import (
	"context"

	"boardcode-go/drivers/dotstar"
	"boardcode-go/errcode"
	"boardcode-go/services/hal/internal/core"
	"boardcode-go/types"
	"boardcode-go/x/timex"
)

// Device hosts one Dotstar. All calls come from the HAL loop; the SPI handle
// is serialised and time-bounded by the provider.
type Device struct {
	id     string
	addr   core.CapAddr
	params Params

	res    core.Resources
	bus    core.SPIBus
	detect core.GPIOHandle
	power  core.GPIOHandle

	led *dotstar.Device
}

func newDevice(id string, p Params, bus core.SPIBus, detect, power core.GPIOHandle, res core.Resources) *Device {
	return &Device{
		id:     id,
		addr:   core.CapAddr{Domain: p.Domain, Kind: string(types.KindRGB), Name: p.Name},
		params: p,
		res:    res,
		bus:    bus,
		detect: detect,
		power:  power,
		led:    dotstar.New(bus, detect, power),
	}
}

func (d *Device) ID() string { return d.id }

func (d *Device) Capabilities() []core.CapabilitySpec {
	cfg := d.bus.Config()
	return []core.CapabilitySpec{{
		Domain: d.addr.Domain,
		Kind:   types.KindRGB,
		Name:   d.addr.Name,
		Info: types.Info{
			SchemaVersion: 1,
			Driver:        "dotstar",
			Detail: types.DotstarInfo{
				Bus:       d.params.Bus,
				Hz:        cfg.Hz,
				DetectPin: d.params.DetectPin,
				PowerPin:  d.params.PowerPin,
				ClockPin:  cfg.Clock,
				DataPin:   cfg.Out,
			},
		},
	}}
}

// Init powers the LED on and publishes the initial (black) state. Nothing is
// written to the bus until the first update.
func (d *Device) Init(ctx context.Context) error {
	if err := d.detect.ConfigureOutput(false); err != nil {
		return err
	}
	if err := d.power.ConfigureOutput(false); err != nil {
		return err
	}
	d.led.Configure()
	d.emitValue()
	return nil
}

func (d *Device) Close() error {
	reg := d.res.Reg
	reg.ReleasePin(d.id, d.params.PowerPin)
	reg.ReleasePin(d.id, d.params.DetectPin)
	reg.ReleaseSPI(d.id, core.ResourceID(d.params.Bus))
	return nil
}

func (d *Device) Control(_ core.CapAddr, verb string, payload any) (core.EnqueueResult, error) {
	var err error
	switch verb {
	case "set_color":
		c, code := colorOf(payload)
		if code != "" {
			return core.EnqueueResult{Error: code}, nil
		}
		err = d.led.SetColor(c)
	case "set_brightness":
		p, code := core.As[types.BrightnessSet](payload)
		if code != "" || payload == nil {
			return core.EnqueueResult{Error: errcode.InvalidPayload}, nil
		}
		err = d.led.SetBrightness(p.Value)
	case "set_power":
		p, code := core.As[types.PowerSet](payload)
		if code != "" || payload == nil {
			return core.EnqueueResult{Error: errcode.InvalidPayload}, nil
		}
		d.led.SetPower(p.On)
	case "off":
		err = d.led.Off()
	case "read":
	default:
		return core.EnqueueResult{Error: errcode.Unsupported}, nil
	}

	if err != nil {
		code := errcode.Of(err)
		if code == errcode.Error {
			code = errcode.IOError
		}
		_ = d.res.Pub.Emit(core.Event{Addr: d.addr, TSms: timex.NowMs(), Err: string(code)})
		return core.EnqueueResult{Error: code}, nil
	}
	d.emitValue()
	return core.EnqueueResult{OK: true}, nil
}

// colorOf maps a set_color payload onto the driver's colour variants.
func colorOf(payload any) (dotstar.Color, errcode.Code) {
	switch p := payload.(type) {
	case types.RGBSet:
		return dotstar.RGB(p.R, p.G, p.B), ""
	case *types.RGBSet:
		if p != nil {
			return dotstar.RGB(p.R, p.G, p.B), ""
		}
	case types.RGBBrightnessSet:
		return dotstar.RGBWithBrightness(p.R, p.G, p.B, p.Brightness), ""
	case *types.RGBBrightnessSet:
		if p != nil {
			return dotstar.RGBWithBrightness(p.R, p.G, p.B, p.Brightness), ""
		}
	case types.PackedSet:
		return dotstar.Packed(p.Value), ""
	case *types.PackedSet:
		if p != nil {
			return dotstar.Packed(p.Value), ""
		}
	}
	return dotstar.Color{}, errcode.InvalidPayload
}

func (d *Device) emitValue() {
	r, g, b := d.led.Color()
	_ = d.res.Pub.Emit(core.Event{
		Addr: d.addr,
		Payload: types.DotstarValue{
			R: r, G: g, B: b,
			Brightness: d.led.Brightness(),
			Field:      d.led.Field(),
			Powered:    d.led.Powered(),
		},
		TSms: timex.NowMs(),
	})
}
