package types

// ---- LED capability payloads (single GPIO) ----

type LEDInfo struct {
	Pin int `json:"pin"`
}

type LEDValue struct {
	Level uint8 `json:"level"` // 0 or 1
}

type LEDSet struct {
	Level bool `json:"level"`
}

// ---- Switch capability payloads (single GPIO) ----

type SwitchInfo struct {
	Pin int `json:"pin"`
}

type SwitchValue struct {
	On bool `json:"on"`
}

type SwitchSet struct {
	On bool `json:"on"`
}
