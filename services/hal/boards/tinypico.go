package boards

// TinyPICO (ESP32-PICO-D4) with its onboard Dotstar.
// Ref: https://github.com/tinypico/tinypico-micropython (tinypico-helper)
var TinyPICO = register(Board{
	Name:    "tinypico",
	GPIOMin: 0,
	GPIOMax: 39,

	io: []IOKind{
		IOAnalog, IODigital, IODigitalBank, IOI2C, IOPulseCount,
		IOPWM, IOSerial, IOSMBus, IOSPI,
	},
	i2c: map[string]I2CBinding{
		"default": {Port: 0, Data: 21, Clock: 22},
	},
	spi: map[string]SPIBinding{
		"default": {Port: 1, Clock: 18, In: 19, Out: 23},
	},
	serial: map[string]SerialBinding{
		"default": {Port: 1, Receive: 3, Transmit: 1},
	},
	pins: map[string]int{
		"DETECT_PWR":   9,
		"DOTSTAR_CLK":  12,
		"DOTSTAR_DATA": 2,
		"DOTSTAR_PWR":  13,
	},
	dotstar: &DotstarBinding{
		DetectPower: 9,
		Power:       13,
		SPI:         SPIBinding{Port: 1, Clock: 12, Out: 2, In: NoPin, Hz: 20_000_000},
	},
})
