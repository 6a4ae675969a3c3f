package dotstardev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardcode-go/drivers/dotstar"
	"boardcode-go/errcode"
	"boardcode-go/types"
)

func TestParseParamsTyped(t *testing.T) {
	want := Params{Bus: "spi1", DetectPin: 9, PowerPin: 13, Name: "status"}

	got, err := parseParams(want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = parseParams(&want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = parseParams((*Params)(nil))
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = parseParams("spi1")
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestParseParamsMap(t *testing.T) {
	// YAML decodes integers as int, JSON as float64.
	for _, m := range []map[string]any{
		{"bus": "spi1", "detect_pin": 9, "power_pin": 13, "domain": "io", "name": "status"},
		{"bus": "spi1", "detect_pin": 9.0, "power_pin": 13.0, "domain": "io", "name": "status", "note": "ignored"},
	} {
		got, err := parseParams(m)
		require.NoError(t, err)
		assert.Equal(t, Params{Bus: "spi1", DetectPin: 9, PowerPin: 13, Domain: "io", Name: "status"}, got)
	}

	_, err := parseParams(map[string]any{"bus": 1})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = parseParams(map[string]any{"bus": "spi1", "power_pin": 13.5})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	// Missing pins stay negative so the builder rejects them.
	got, err := parseParams(map[string]any{"bus": "spi1"})
	require.NoError(t, err)
	assert.Equal(t, -1, got.DetectPin)
	assert.Equal(t, -1, got.PowerPin)
}

func TestColorOf(t *testing.T) {
	cases := []struct {
		in   any
		want dotstar.Color
	}{
		{types.RGBSet{R: 1, G: 2, B: 3}, dotstar.RGB(1, 2, 3)},
		{&types.RGBSet{R: 1, G: 2, B: 3}, dotstar.RGB(1, 2, 3)},
		{types.RGBBrightnessSet{R: 10, G: 20, B: 30, Brightness: 0.5}, dotstar.RGBWithBrightness(10, 20, 30, 0.5)},
		{&types.RGBBrightnessSet{R: 10, G: 20, B: 30, Brightness: 0.5}, dotstar.RGBWithBrightness(10, 20, 30, 0.5)},
		{types.PackedSet{Value: 0xFFFFFF}, dotstar.Packed(0xFFFFFF)},
		{&types.PackedSet{Value: 0x123456}, dotstar.Packed(0x123456)},
	}
	for _, c := range cases {
		got, code := colorOf(c.in)
		assert.Empty(t, code)
		assert.Equal(t, c.want, got)
	}

	for _, bad := range []any{nil, "red", (*types.RGBSet)(nil), types.BrightnessSet{Value: 1}} {
		_, code := colorOf(bad)
		assert.Equal(t, errcode.InvalidPayload, code, "%#v", bad)
	}
}
