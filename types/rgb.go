package types

// ---- RGB (Dotstar) capability ----

// DotstarInfo is published under hal/cap/<domain>/rgb/<name>/info.
type DotstarInfo struct {
	Bus       string `json:"bus"`
	Hz        uint32 `json:"hz"`
	DetectPin int    `json:"detect_pin"`
	PowerPin  int    `json:"power_pin"`
	ClockPin  int    `json:"clock_pin,omitempty"`
	DataPin   int    `json:"data_pin,omitempty"`
}

// DotstarValue is published (retained) after every successful update.
// Channels are wider than a byte because a packed colour does not mask blue.
type DotstarValue struct {
	R          uint32  `json:"r"`
	G          uint32  `json:"g"`
	B          uint32  `json:"b"`
	Brightness float32 `json:"brightness"`
	Field      uint8   `json:"field"` // 5-bit header brightness actually sent
	Powered    bool    `json:"powered"`
}

// Controls for verb "set_color". Exactly one shape is sent per request.

type RGBSet struct {
	R, G, B uint8
}

type RGBBrightnessSet struct {
	R, G, B    uint8
	Brightness float32
}

type PackedSet struct {
	Value uint32 // 0xBBGGRR
}

// BrightnessSet is the payload for verb "set_brightness" (0..1, clamped).
type BrightnessSet struct {
	Value float32
}

// PowerSet is the payload for verb "set_power".
type PowerSet struct {
	On bool
}
