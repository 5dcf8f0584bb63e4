// Package si5351 drives a Silicon Labs Si5351 clock generator over I²C as the
// audio master clock source. CLK0 is fed from PLLA through multisynth 0 in
// integer mode.
package si5351

import (
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"

	"github.com/smazurov/audiocard/internal/logging"
)

// DefaultAddr is the factory I²C address.
const DefaultAddr = 0x60

// DefaultXtal is the reference crystal on most breakout boards.
const DefaultXtal = 25000000

const (
	regOutputEnable = 3
	regCLK0Control  = 16
	regPLLA         = 26
	regMS0          = 42
	regPLLReset     = 177

	clk0Integer = 0x4F // integer mode, PLLA, MS0 source, 8 mA drive
	pllAReset   = 0x20

	vcoMin = 600000000
	vcoMax = 900000000

	msDivMin = 8
	msDivMax = 2048

	fracMax = 1048575
)

// Divider is the a + b/c form used by both PLL and multisynth stages.
type Divider struct {
	A, B, C uint32
}

// Params packs the divider into the chip's P1/P2/P3 register encoding.
func (d Divider) Params() (p1, p2, p3 uint32) {
	c := d.C
	if c == 0 {
		c = 1
	}
	f := (128 * d.B) / c
	p1 = 128*d.A + f - 512
	p2 = 128*d.B - c*f
	p3 = c
	return p1, p2, p3
}

// registers encodes the eight-byte divider block.
func (d Divider) registers() []byte {
	p1, p2, p3 := d.Params()
	return []byte{
		byte(p3 >> 8),
		byte(p3),
		byte(p1>>16) & 0x03,
		byte(p1 >> 8),
		byte(p1),
		byte((p3>>12)&0xF0) | byte((p2>>16)&0x0F),
		byte(p2 >> 8),
		byte(p2),
	}
}

// Plan is the divider chain that produces one output frequency.
type Plan struct {
	VCO        int
	PLL        Divider
	Multisynth Divider
	Output     int
}

// PlanFor picks the smallest even integer output divider that puts the VCO in
// range and expresses VCO/xtal as an exact fraction. Frequencies the PLL
// cannot hit exactly are rejected, so Output always equals mclk.
func PlanFor(xtal, mclk int) (Plan, error) {
	if xtal <= 0 || mclk <= 0 {
		return Plan{}, fmt.Errorf("invalid frequencies xtal=%d mclk=%d", xtal, mclk)
	}

	div := (vcoMin + mclk - 1) / mclk
	if div%2 != 0 {
		div++
	}
	if div < msDivMin {
		div = msDivMin
	}
	vco := div * mclk
	if div > msDivMax || vco > vcoMax || vco < vcoMin {
		return Plan{}, fmt.Errorf("mclk %d out of range for xtal %d", mclk, xtal)
	}

	a := vco / xtal
	rem := vco % xtal
	b, c := reduce(rem, xtal)
	if c > fracMax {
		return Plan{}, fmt.Errorf("mclk %d not exactly reachable from xtal %d", mclk, xtal)
	}
	if a < 15 || a > 90 {
		return Plan{}, fmt.Errorf("pll ratio %d out of range", a)
	}

	pll := Divider{A: uint32(a), B: uint32(b), C: uint32(c)}
	actualVCO := int64(xtal)*int64(a) + int64(xtal)*int64(b)/int64(c)
	return Plan{
		VCO:        vco,
		PLL:        pll,
		Multisynth: Divider{A: uint32(div), B: 0, C: 1},
		Output:     int(actualVCO / int64(div)),
	}, nil
}

func reduce(n, d int) (int, int) {
	if n == 0 {
		return 0, 1
	}
	g := gcd(n, d)
	return n / g, d / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Config describes where the chip lives.
type Config struct {
	Bus  i2c.Bus
	Addr uint16
	Xtal int
}

// Generator implements the clock manager's generator over an Si5351.
type Generator struct {
	mu     sync.Mutex
	dev    *i2c.Dev
	xtal   int
	logger *slog.Logger
}

// New creates a generator. Zero Addr and Xtal fall back to the defaults.
func New(cfg Config) *Generator {
	addr := cfg.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	xtal := cfg.Xtal
	if xtal == 0 {
		xtal = DefaultXtal
	}
	return &Generator{
		dev:    &i2c.Dev{Bus: cfg.Bus, Addr: addr},
		xtal:   xtal,
		logger: logging.GetLogger("clock"),
	}
}

// SetRate programs PLLA and multisynth 0 for mclk and returns the frequency
// actually produced.
func (g *Generator) SetRate(rate, mclk int) (int, error) {
	plan, err := PlanFor(g.xtal, mclk)
	if err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.write(regPLLA, plan.PLL.registers()...); err != nil {
		return 0, fmt.Errorf("write pll: %w", err)
	}
	if err := g.write(regMS0, plan.Multisynth.registers()...); err != nil {
		return 0, fmt.Errorf("write multisynth: %w", err)
	}
	if err := g.write(regCLK0Control, clk0Integer); err != nil {
		return 0, fmt.Errorf("write clk0 control: %w", err)
	}
	if err := g.write(regPLLReset, pllAReset); err != nil {
		return 0, fmt.Errorf("reset pll: %w", err)
	}

	g.logger.Debug("Si5351 programmed",
		"srate", rate, "mclk", mclk, "vco", plan.VCO, "output", plan.Output,
		"pll_a", plan.PLL.A, "pll_b", plan.PLL.B, "pll_c", plan.PLL.C, "ms_div", plan.Multisynth.A)
	return plan.Output, nil
}

// Enable turns CLK0 on. The output enable register is active low.
func (g *Generator) Enable() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.write(regOutputEnable, 0xFE)
}

// Disable turns every output off.
func (g *Generator) Disable() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.write(regOutputEnable, 0xFF)
}

func (g *Generator) write(reg byte, data ...byte) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, reg)
	buf = append(buf, data...)
	return g.dev.Tx(buf, nil)
}
