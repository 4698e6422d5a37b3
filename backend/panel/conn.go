package panel

import (
	"errors"
	"fmt"
	"log"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// Conn errors.
var (
	ErrResetPin = errors.New("panel: reset GPIO pin is invalid")
	ErrDCPin    = errors.New("panel: data/command (DC) GPIO pin is invalid")
)

// Conn is the connection interface for communicating with hardware.
type Conn interface {
	String() string

	// Close the connection.
	Close() error

	// Reset sets the reset pin to the provided level.
	Reset(gpio.Level) error

	// Command sends a command byte with optional arguments.
	Command(byte, ...byte) error

	// Data sends data bytes.
	Data(...byte) error
}

// SPIConfig describes the SPI bus configuration.
type SPIConfig struct {
	// Port name as known by spireg, empty for the first port.
	Port string `yaml:"port"`

	// SpeedHz is the bus clock.
	SpeedHz uint32 `yaml:"speed_hz"`

	// Mode is the SPI mode (0-3).
	Mode int `yaml:"mode"`

	// DataLow inverts the DC pin: data is sent with DC low.
	DataLow bool `yaml:"data_low"`

	// BatchSize is the largest single transfer.
	BatchSize int `yaml:"batch_size"`

	// Reset and DC are GPIO pin names.
	Reset string `yaml:"reset"`
	DC    string `yaml:"dc"`
}

// DefaultSPIConfig are the default configuration values.
var DefaultSPIConfig = SPIConfig{
	SpeedHz:   40_000_000,
	Mode:      3,
	BatchSize: 4096,
	Reset:     "GPIO25",
	DC:        "GPIO24",
}

// ValidSPISpeeds are common valid SPI bus speeds.
var ValidSPISpeeds = []uint32{
	500_000,
	1_000_000,
	2_000_000,
	4_000_000,
	8_000_000,
	16_000_000,
	20_000_000,
	24_000_000,
	28_000_000,
	32_000_000,
	36_000_000,
	40_000_000,
	48_000_000,
	50_000_000,
	52_000_000,
}

type spiConn struct {
	port      spi.PortCloser
	bus       spi.Conn
	reset     gpio.PinOut
	dc        gpio.PinOut
	dcLevel   gpio.Level
	dcValid   bool
	dataLow   bool
	batchSize int
}

// OpenSPI opens the SPI port and GPIO pins named in config. The host
// drivers must be initialised with host.Init first.
func OpenSPI(config *SPIConfig) (Conn, error) {
	if config == nil {
		config = &DefaultSPIConfig
	}
	var (
		reset = gpioreg.ByName(config.Reset)
		dc    = gpioreg.ByName(config.DC)
	)
	if reset == nil || reset == gpio.INVALID {
		return nil, ErrResetPin
	}
	if dc == nil || dc == gpio.INVALID {
		return nil, ErrDCPin
	}

	port, err := spireg.Open(config.Port)
	if err != nil {
		return nil, err
	}
	c, err := NewSPI(port, dc, reset, config)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return c, nil
}

// NewSPI returns a connection over an open SPI port.
func NewSPI(port spi.PortCloser, dc, reset gpio.PinOut, config *SPIConfig) (Conn, error) {
	if config == nil {
		config = &DefaultSPIConfig
	}
	if dc == nil {
		return nil, ErrDCPin
	}

	speed := config.SpeedHz
	if speed == 0 {
		speed = DefaultSPIConfig.SpeedHz
	}
	var valid bool
	for _, v := range ValidSPISpeeds {
		if valid = v == speed; valid {
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("panel: invalid SPI speed %dHz", speed)
	}
	if config.Mode < 0 || config.Mode > 3 {
		return nil, fmt.Errorf("panel: invalid SPI mode %d", config.Mode)
	}

	bus, err := port.Connect(physic.Frequency(speed)*physic.Hertz, spi.Mode(config.Mode), 8)
	if err != nil {
		return nil, err
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultSPIConfig.BatchSize
	}
	if l, ok := bus.(conn.Limits); ok && l.MaxTxSize() > 0 && l.MaxTxSize() < batchSize {
		batchSize = l.MaxTxSize()
	}

	return &spiConn{
		port:      port,
		bus:       bus,
		reset:     reset,
		dc:        dc,
		dataLow:   config.DataLow,
		batchSize: batchSize,
	}, nil
}

func (c *spiConn) String() string {
	return fmt.Sprintf("SPI %s", c.bus)
}

func (c *spiConn) Close() error {
	return c.port.Close()
}

func (c *spiConn) Reset(level gpio.Level) error {
	if c.reset == nil {
		return nil
	}
	return c.reset.Out(level)
}

func (c *spiConn) updateDC(level gpio.Level) error {
	if !c.dcValid || c.dcLevel != level {
		if err := c.dc.Out(level); err != nil {
			return err
		}
		c.dcLevel = level
		c.dcValid = true
	}
	return nil
}

func (c *spiConn) Command(cmnd byte, data ...byte) (err error) {
	if err = c.updateDC(gpio.Level(c.dataLow)); err != nil {
		return
	}
	if err = c.bus.Tx([]byte{cmnd}, nil); err != nil {
		return
	}
	if len(data) > 0 {
		return c.Data(data...)
	}
	return
}

func (c *spiConn) Data(data ...byte) (err error) {
	if len(data) == 0 {
		return
	}
	if err = c.updateDC(gpio.Level(!c.dataLow)); err != nil {
		return
	}
	return c.writeChunked(data)
}

func (c *spiConn) writeChunked(data []byte) (err error) {
	if debug && len(data) > c.batchSize {
		log.Printf("panel: write %d bytes of data in %d chunks", len(data), (len(data)+c.batchSize-1)/c.batchSize)
	}
	for len(data) > 0 {
		n := len(data)
		if n > c.batchSize {
			n = c.batchSize
		}
		if err = c.bus.Tx(data[:n], nil); err != nil {
			return
		}
		data = data[n:]
	}
	return
}
