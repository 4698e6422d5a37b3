package panel

import (
	"fmt"
	"strings"
	"time"
)

// Controller is a panel controller chip.
type Controller string

// Supported controllers.
const (
	ST7789 Controller = "st7789"
	ST7735 Controller = "st7735"
)

// ParseController parses a controller name.
func ParseController(name string) (Controller, error) {
	switch c := Controller(strings.ToLower(name)); c {
	case ST7789, ST7735:
		return c, nil
	case "":
		return ST7789, nil
	default:
		return "", fmt.Errorf("panel: unsupported controller %q", name)
	}
}

// Commands shared by the ST77xx controllers (MIPI DCS).
const (
	cmdSWRESET = 0x01 // Software Reset
	cmdSLPOUT  = 0x11 // Sleep Out
	cmdNORON   = 0x13 // Normal Display Mode On
	cmdINVON   = 0x21 // Display Inversion On
	cmdDISPOFF = 0x28 // Display Off
	cmdDISPON  = 0x29 // Display On
	cmdCASET   = 0x2A // Column Address Set
	cmdRASET   = 0x2B // Row Address Set
	cmdRAMWR   = 0x2C // Memory Write
	cmdTEOFF   = 0x34 // Tearing Effect Line Off
	cmdTEON    = 0x35 // Tearing Effect Line On
	cmdMADCTL  = 0x36 // Memory Data Access Control
	cmdCOLMOD  = 0x3A // Interface Pixel Format
)

// ST7789 registers (from st7789.pdf).
const (
	st7789PORCTRL   = 0xB2 // Porch Setting
	st7789GCTRL     = 0xB7 // Gate Control
	st7789VCOMS     = 0xBB // VCOM Setting
	st7789LCMCTRL   = 0xC0 // LCM Control
	st7789VDVVRHEN  = 0xC2 // VDV and VRH Command Enable
	st7789VRHS      = 0xC3 // VRH Set
	st7789VDVSET    = 0xC4 // VDV Set
	st7789VCMOFSET  = 0xC5 // VCOM Offset Set
	st7789FRCTR2    = 0xC6 // Frame Rate Control in Normal Mode
	st7789PWCTRL1   = 0xD0 // Power Control 1
	st7789PVGAMCTRL = 0xE0 // Positive Voltage Gamma Control
	st7789NVGAMCTRL = 0xE1 // Negative Voltage Gamma Control
)

// ST7735 registers (from st7735.pdf).
const (
	st7735FRMCTR1 = 0xB1
	st7735FRMCTR2 = 0xB2
	st7735FRMCTR3 = 0xB3
	st7735INVCTR  = 0xB4
	st7735PWCTR1  = 0xC0
	st7735PWCTR2  = 0xC1
	st7735PWCTR3  = 0xC2
	st7735PWCTR4  = 0xC3
	st7735PWCTR5  = 0xC4
	st7735VMCTR1  = 0xC5
	st7735GMCTRP1 = 0xE0
	st7735GMCTRN1 = 0xE1
)

// Memory Data Access Control (MADCTL) bit fields.
const (
	_                     byte = 1 << iota // D0: reserved
	_                                      // D1: reserved
	madDisplayDataLatch                    // D2: MH
	madBGR                                 // D3: RGB
	madLineAddressOrder                    // D4: ML
	madPageColumnOrder                     // D5: MV
	madColumnAddressOrder                  // D6: MX
	madPageAddressOrder                    // D7: MY
)

// MADCTL values for the four orientations.
const (
	madRotate0   byte = 0
	madRotate90       = madColumnAddressOrder | madPageColumnOrder
	madRotate180      = madColumnAddressOrder | madPageAddressOrder
	madRotate270      = madPageAddressOrder | madPageColumnOrder
)

type controller struct {
	name          string
	width, height int // default size
	columns, rows int // frame memory size
	reset         bool
	init          [][]byte
}

var controllers = map[Controller]controller{
	ST7789: {
		name:    "ST7789",
		width:   240,
		height:  240,
		columns: 240,
		rows:    320,
		init: [][]byte{
			{cmdMADCTL, madRotate0},
			{cmdCOLMOD, 0x05},           // 16-bit/pixel (RGB 5-6-5-bit input)
			{st7789PORCTRL, 0x0C, 0x0C}, // Porch Setting: default
			{st7789GCTRL, 0x35},         // Gate Control: 13.26V / -10.43V (default)
			{st7789VCOMS, 0x1A},         // VCOM Setting: 0.75V
			{st7789LCMCTRL, 0x2C},
			{st7789VDVVRHEN, 0x01},
			{st7789VRHS, 0x0B},
			{st7789VDVSET, 0x20},   // VDV Set: 0V
			{st7789VCMOFSET, 0x20}, // VCOM Offset Set: 0V
			{st7789FRCTR2, 0x0F},   // 60Hz
			{st7789PWCTRL1, 0xA4, 0xA1},
			{cmdINVON},
			{st7789PVGAMCTRL, 0x00, 0x19, 0x1E, 0x0A, 0x09, 0x15, 0x3D, 0x44, 0x51, 0x12, 0x03, 0x00, 0x3F, 0x3F},
			{st7789NVGAMCTRL, 0x00, 0x18, 0x1E, 0x0A, 0x09, 0x25, 0x3F, 0x43, 0x52, 0x33, 0x03, 0x00, 0x3F, 0x3F},
		},
	},
	ST7735: {
		name:    "ST7735",
		width:   128,
		height:  160,
		columns: 132,
		rows:    162,
		reset:   true,
		init: [][]byte{
			{st7735FRMCTR1, 0x01, 0x2C, 0x2D},
			{st7735FRMCTR2, 0x01, 0x2C, 0x2D},
			{st7735FRMCTR3, 0x01, 0x2C, 0x2D, 0x01, 0x2C, 0x2D},
			{st7735INVCTR, 0x07},
			{st7735PWCTR1, 0xA2, 0x02, 0x84},
			{st7735PWCTR2, 0xC5},
			{st7735PWCTR3, 0x0A, 0x00},
			{st7735PWCTR4, 0x8A, 0x2A},
			{st7735PWCTR5, 0x8A, 0xEE},
			{st7735VMCTR1, 0x0E},
			{cmdMADCTL, madRotate0},
			{cmdCOLMOD, 0x05}, // 16-bits per pixel
			{st7735GMCTRP1, 0x02, 0x1C, 0x07, 0x12, 0x37, 0x32, 0x29, 0x2D, 0x29, 0x25, 0x2B, 0x39, 0x00, 0x01, 0x03, 0x10},
			{st7735GMCTRN1, 0x03, 0x1D, 0x07, 0x06, 0x2E, 0x2C, 0x29, 0x2D, 0x2E, 0x2E, 0x37, 0x3F, 0x00, 0x00, 0x02, 0x10},
			{cmdNORON},
		},
	},
}

// settle is the time a controller needs after reset and sleep out.
const settle = 150 * time.Millisecond
