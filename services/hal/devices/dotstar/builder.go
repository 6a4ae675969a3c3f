package dotstardev

import (
	"context"

	"boardcode-go/errcode"
	"boardcode-go/services/hal/internal/core"
)

// Params defines wiring for one Dotstar.
type Params struct {
	Bus       string // e.g. "spi1" (required)
	DetectPin int    // power-detect control line, active low
	PowerPin  int    // LED supply gate, active low
	Domain    string // default "io"
	Name      string // default device ID
}

// Builder registration.
func init() { core.RegisterBuilder("dotstar", builder{}) }

type builder struct{}

func (builder) Build(ctx context.Context, in core.BuilderInput) (core.Device, error) {
	p, err := parseParams(in.Params)
	if err != nil {
		return nil, err
	}
	if p.Bus == "" || p.DetectPin < 0 || p.PowerPin < 0 || p.DetectPin == p.PowerPin {
		return nil, errcode.InvalidParams
	}
	if p.Domain == "" {
		p.Domain = "io"
	}
	if p.Name == "" {
		p.Name = in.ID
	}

	reg := in.Res.Reg
	bus, err := reg.ClaimSPI(in.ID, core.ResourceID(p.Bus))
	if err != nil {
		return nil, err
	}
	detect, err := reg.ClaimPin(in.ID, p.DetectPin, core.FuncGPIOOut)
	if err != nil {
		reg.ReleaseSPI(in.ID, core.ResourceID(p.Bus))
		return nil, err
	}
	power, err := reg.ClaimPin(in.ID, p.PowerPin, core.FuncGPIOOut)
	if err != nil {
		reg.ReleasePin(in.ID, p.DetectPin)
		reg.ReleaseSPI(in.ID, core.ResourceID(p.Bus))
		return nil, err
	}

	return newDevice(in.ID, p, bus, detect.AsGPIO(), power.AsGPIO(), in.Res), nil
}

// parseParams accepts Params, *Params, or a decoded YAML/JSON map with keys
// bus, detect_pin, power_pin, domain and name.
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
	p := Params{DetectPin: -1, PowerPin: -1}
	var ok bool
	for k, v := range m {
		switch k {
		case "bus":
			p.Bus, ok = v.(string)
		case "domain":
			p.Domain, ok = v.(string)
		case "name":
			p.Name, ok = v.(string)
		case "detect_pin":
			p.DetectPin, ok = asInt(v)
		case "power_pin":
			p.PowerPin, ok = asInt(v)
		default:
			ok = true
		}
		if !ok {
			return Params{}, &errcode.E{C: errcode.InvalidParams, Op: "dotstar params", Msg: k}
		}
	}
	return p, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
