package gpio_dout

import (
	"context"

	"boardcode-go/errcode"
	"boardcode-go/services/hal/internal/core"
)

func init() {
	core.RegisterBuilder("gpio_led", builderLED{})
	core.RegisterBuilder("gpio_switch", builderSwitch{})
}

type builderLED struct{}
type builderSwitch struct{}

func (builderLED) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	return build(RoleLED, in)
}

func (builderSwitch) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	return build(RoleSwitch, in)
}

func build(r Role, in core.BuilderInput) (core.Device, error) {
	p, err := parseParams(in.Params)
	if err != nil {
		return nil, err
	}
	ph, err := in.Res.Reg.ClaimPin(in.ID, p.Pin, core.FuncGPIOOut)
	if err != nil {
		return nil, err
	}
	return New(r, in.ID, p, ph.AsGPIO(), in.Res), nil
}

// parseParams accepts Params, *Params, or a decoded YAML/JSON map with keys
// pin, active_low, initial, domain and name.
func parseParams(v any) (Params, error) {
	switch p := v.(type) {
	case Params:
		return p, nil
	case *Params:
		if p == nil {
			return Params{}, errcode.InvalidParams
		}
		return *p, nil
	case map[string]any:
		return paramsFromMap(p)
	default:
		return Params{}, errcode.InvalidParams
	}
}

func paramsFromMap(m map[string]any) (Params, error) {
	p := Params{Pin: -1}
	var ok bool
	for k, v := range m {
		switch k {
		case "pin":
			switch n := v.(type) {
			case int:
				p.Pin, ok = n, true
			case float64:
				p.Pin, ok = int(n), n == float64(int(n))
			default:
				ok = false
			}
		case "active_low":
			p.ActiveLow, ok = v.(bool)
		case "initial":
			p.Initial, ok = v.(bool)
		case "domain":
			p.Domain, ok = v.(string)
		case "name":
			p.Name, ok = v.(string)
		default:
			ok = true
		}
		if !ok {
			return Params{}, &errcode.E{C: errcode.InvalidParams, Op: "gpio params", Msg: k}
		}
	}
	if p.Pin < 0 {
		return Params{}, &errcode.E{C: errcode.InvalidParams, Op: "gpio params", Msg: "pin"}
	}
	return p, nil
}
