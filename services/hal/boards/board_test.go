package boards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTinyPICOTable(t *testing.T) {
	b, ok := Lookup("tinypico")
	require.True(t, ok)

	i2c, ok := b.I2C("default")
	require.True(t, ok)
	assert.Equal(t, I2CBinding{Port: 0, Data: 21, Clock: 22}, i2c)

	spi, ok := b.SPI("default")
	require.True(t, ok)
	assert.Equal(t, SPIBinding{Port: 1, Clock: 18, In: 19, Out: 23}, spi)

	ser, ok := b.Serial("default")
	require.True(t, ok)
	assert.Equal(t, SerialBinding{Port: 1, Receive: 3, Transmit: 1}, ser)

	for name, want := range map[string]int{"DETECT_PWR": 9, "DOTSTAR_CLK": 12, "DOTSTAR_DATA": 2, "DOTSTAR_PWR": 13} {
		got, ok := b.Pin(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	assert.Equal(t, []string{"DETECT_PWR", "DOTSTAR_CLK", "DOTSTAR_DATA", "DOTSTAR_PWR"}, b.PinNames())

	_, ok = b.Pin("LED")
	assert.False(t, ok)
}

func TestTinyPICODotstarMatchesNamedPins(t *testing.T) {
	b := TinyPICO
	ds, ok := b.Dotstar()
	require.True(t, ok)

	clk, _ := b.Pin("DOTSTAR_CLK")
	data, _ := b.Pin("DOTSTAR_DATA")
	pwr, _ := b.Pin("DOTSTAR_PWR")
	detect, _ := b.Pin("DETECT_PWR")

	assert.Equal(t, clk, ds.SPI.Clock)
	assert.Equal(t, data, ds.SPI.Out)
	assert.Equal(t, pwr, ds.Power)
	assert.Equal(t, detect, ds.DetectPower)
	assert.Equal(t, 1, ds.SPI.Port)
	assert.Equal(t, uint32(20_000_000), ds.SPI.Hz)
	assert.Equal(t, NoPin, ds.SPI.In)
}

func TestSupportsAllIOKinds(t *testing.T) {
	for _, k := range []IOKind{IOAnalog, IODigital, IODigitalBank, IOI2C, IOPulseCount, IOPWM, IOSerial, IOSMBus, IOSPI} {
		assert.True(t, TinyPICO.Supports(k), string(k))
	}
	assert.False(t, TinyPICO.Supports("can"))
	assert.Len(t, TinyPICO.IO(), 9)
}

func TestAccessorsReturnCopies(t *testing.T) {
	io := TinyPICO.IO()
	io[0] = "mutated"
	assert.True(t, TinyPICO.Supports(IOAnalog))
}

func TestInRange(t *testing.T) {
	assert.True(t, TinyPICO.InRange(0))
	assert.True(t, TinyPICO.InRange(39))
	assert.False(t, TinyPICO.InRange(40))
	assert.False(t, TinyPICO.InRange(-1))
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("pico")
	assert.False(t, ok)
}
