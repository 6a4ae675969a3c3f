//go:build esp32

package hal

import (
	"boardcode-go/services/hal/boards"
	"boardcode-go/services/hal/internal/provider"
)

// NewESP32Platform drives machine pins and the ESP32 SPI controllers.
func NewESP32Platform(b boards.Board, plan Plan) (*Platform, error) {
	return newPlatform(b, plan, provider.NewESP32Backend())
}
