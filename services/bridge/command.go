package bridge

import (
	"strconv"
	"strings"

	"boardcode-go/errcode"
	"boardcode-go/types"
)

// Command is one parsed list entry, ready to be sent as a HAL control verb.
type Command struct {
	Verb    string
	Payload any
}

// ParseCommand turns a text command into a control verb and payload:
//
//	color #RRGGBB        set_color (packed, keeps brightness)
//	packed <n>           set_color with a raw packed 0xBBGGRR value
//	rgb R G B [BR]       set_color (brightness reset to 1, or BR)
//	brightness V         set_brightness
//	power on|off         set_power
//	off                  off
//	read                 read
func ParseCommand(s string) (Command, error) {
	f := strings.Fields(strings.ToLower(s))
	if len(f) == 0 {
		return Command{}, badCommand("empty")
	}
	args := f[1:]
	switch f[0] {
	case "color":
		if len(args) != 1 {
			return Command{}, badCommand("color takes one hex value")
		}
		rgb, err := parseHexRGB(args[0])
		if err != nil {
			return Command{}, err
		}
		r, g, b := rgb>>16, (rgb>>8)&0xFF, rgb&0xFF
		return Command{Verb: "set_color", Payload: types.PackedSet{Value: b<<16 | g<<8 | r}}, nil

	case "packed":
		if len(args) != 1 {
			return Command{}, badCommand("packed takes one value")
		}
		v, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return Command{}, badCommand("packed value " + args[0])
		}
		return Command{Verb: "set_color", Payload: types.PackedSet{Value: uint32(v)}}, nil

	case "rgb":
		if len(args) != 3 && len(args) != 4 {
			return Command{}, badCommand("rgb takes 3 or 4 values")
		}
		var c [3]uint8
		for i := range c {
			v, err := strconv.ParseUint(args[i], 10, 8)
			if err != nil {
				return Command{}, badCommand("channel " + args[i])
			}
			c[i] = uint8(v)
		}
		if len(args) == 3 {
			return Command{Verb: "set_color", Payload: types.RGBSet{R: c[0], G: c[1], B: c[2]}}, nil
		}
		br, err := parseFloat(args[3])
		if err != nil {
			return Command{}, err
		}
		return Command{Verb: "set_color", Payload: types.RGBBrightnessSet{R: c[0], G: c[1], B: c[2], Brightness: br}}, nil

	case "brightness":
		if len(args) != 1 {
			return Command{}, badCommand("brightness takes one value")
		}
		v, err := parseFloat(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Verb: "set_brightness", Payload: types.BrightnessSet{Value: v}}, nil

	case "power":
		if len(args) != 1 {
			return Command{}, badCommand("power takes on or off")
		}
		switch args[0] {
		case "on":
			return Command{Verb: "set_power", Payload: types.PowerSet{On: true}}, nil
		case "off":
			return Command{Verb: "set_power", Payload: types.PowerSet{On: false}}, nil
		}
		return Command{}, badCommand("power " + args[0])

	case "off", "read":
		if len(args) != 0 {
			return Command{}, badCommand(f[0] + " takes no arguments")
		}
		return Command{Verb: f[0]}, nil
	}
	return Command{}, badCommand("unknown command " + f[0])
}

func parseHexRGB(s string) (uint32, error) {
	h := strings.TrimPrefix(strings.TrimPrefix(s, "#"), "0x")
	if len(h) != 6 {
		return 0, badCommand("colour " + s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return 0, badCommand("colour " + s)
	}
	return uint32(v), nil
}

func parseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, badCommand("number " + s)
	}
	return float32(v), nil
}

func badCommand(msg string) error {
	return &errcode.E{C: errcode.InvalidPayload, Op: "parse command", Msg: msg}
}
