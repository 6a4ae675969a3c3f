package setups

import (
	"strconv"

	"boardcode-go/services/hal/boards"
)

// ResourcePlan specifies wiring and operating parameters chosen by a setup.
// Providers consume this plan to instantiate resource owners and to reserve
// the pins each bus occupies.
type ResourcePlan struct {
	I2C  []I2CPlan
	SPI  []SPIPlan
	UART []UARTPlan
}

type I2CPlan struct {
	ID  string // e.g. "i2c0"
	SDA int    // GPIO number
	SCL int    // GPIO number
	Hz  uint32 // bus frequency
}

type SPIPlan struct {
	ID   string // e.g. "spi1"
	Port int
	SCK  int
	SDO  int
	SDI  int // boards.NoPin when write-only
	Hz   uint32

	// Device names the host-side port (periph spireg name, e.g. "/dev/spidev1.0").
	// Unused on firmware.
	Device string
}

type UARTPlan struct {
	ID   string // e.g. "uart1"
	TX   int    // GPIO number
	RX   int    // GPIO number
	Baud uint32 // initial baud (format can be added later)
}

// Pins returns every GPIO the plan wires to a bus, keyed by pin, valued by bus ID.
func (p ResourcePlan) Pins() map[int]string {
	out := map[int]string{}
	add := func(id string, pins ...int) {
		for _, n := range pins {
			if n != boards.NoPin {
				out[n] = id
			}
		}
	}
	for _, b := range p.I2C {
		add(b.ID, b.SDA, b.SCL)
	}
	for _, b := range p.SPI {
		add(b.ID, b.SCK, b.SDO, b.SDI)
	}
	for _, b := range p.UART {
		add(b.ID, b.TX, b.RX)
	}
	return out
}

// PlanFor derives a plan from a board's default I2C and serial bindings and,
// when present, its onboard Dotstar SPI wiring.
func PlanFor(b boards.Board) ResourcePlan {
	var p ResourcePlan
	if i2c, ok := b.I2C("default"); ok {
		p.I2C = append(p.I2C, I2CPlan{
			ID:  "i2c" + strconv.Itoa(i2c.Port),
			SDA: i2c.Data,
			SCL: i2c.Clock,
			Hz:  orDefault(i2c.Hz, 400_000),
		})
	}
	if ser, ok := b.Serial("default"); ok {
		p.UART = append(p.UART, UARTPlan{
			ID:   "uart" + strconv.Itoa(ser.Port),
			TX:   ser.Transmit,
			RX:   ser.Receive,
			Baud: orDefault(ser.Baud, 115_200),
		})
	}
	if ds, ok := b.Dotstar(); ok {
		p.SPI = append(p.SPI, SPIPlan{
			ID:   SPIID(ds.SPI.Port),
			Port: ds.SPI.Port,
			SCK:  ds.SPI.Clock,
			SDO:  ds.SPI.Out,
			SDI:  ds.SPI.In,
			Hz:   ds.SPI.Hz,
		})
	} else if spi, ok := b.SPI("default"); ok {
		p.SPI = append(p.SPI, SPIPlan{
			ID:   SPIID(spi.Port),
			Port: spi.Port,
			SCK:  spi.Clock,
			SDO:  spi.Out,
			SDI:  spi.In,
			Hz:   orDefault(spi.Hz, 1_000_000),
		})
	}
	return p
}

// SPIID names the SPI resource for a controller port.
func SPIID(port int) string { return "spi" + strconv.Itoa(port) }

func orDefault(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}
