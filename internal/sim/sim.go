// Package sim provides in-memory stand-ins for the card hardware so the
// controller can run on a development host.
package sim

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/audiocard/internal/dai"
	"github.com/smazurov/audiocard/internal/logging"
)

// Generator is a simulated programmable oscillator. Every requested
// frequency is produced exactly.
type Generator struct {
	mu      sync.Mutex
	enabled bool
	rate    int
	mclk    int
	writes  int
	failErr error
	logger  *slog.Logger
}

// NewGenerator creates a gated simulated oscillator.
func NewGenerator() *Generator {
	return &Generator{logger: logging.GetLogger("sim")}
}

// SetRate implements clock.Generator.
func (g *Generator) SetRate(rate, mclk int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failErr != nil {
		return 0, g.failErr
	}
	g.rate, g.mclk = rate, mclk
	g.writes++
	g.logger.Debug("Oscillator programmed", "srate", rate, "mclk", mclk)
	return mclk, nil
}

// Enable implements clock.Generator.
func (g *Generator) Enable() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failErr != nil {
		return g.failErr
	}
	g.enabled = true
	return nil
}

// Disable implements clock.Generator.
func (g *Generator) Disable() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = false
	return nil
}

// FailWith makes subsequent SetRate and Enable calls return err. Pass nil to
// recover.
func (g *Generator) FailWith(err error) {
	g.mu.Lock()
	g.failErr = err
	g.mu.Unlock()
}

// Enabled reports whether the output is ungated.
func (g *Generator) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// MCLK returns the last programmed frequency.
func (g *Generator) MCLK() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mclk
}

// Writes returns how many times the oscillator was reprogrammed.
func (g *Generator) Writes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes
}

// Endpoint is a simulated DAI. It doubles as the HiFi codec, the BT codec and
// the SoC interconnect.
type Endpoint struct {
	name   string
	logger *slog.Logger

	mu         sync.Mutex
	format     dai.Format
	sysclk     int
	pllIn      int
	pllOut     int
	paths      [][2]int
	pllOutputs map[int]bool
	pllReject  map[int]bool
	formatErr  error
}

// NewEndpoint creates an endpoint whose PLL accepts any output frequency.
func NewEndpoint(name string) *Endpoint {
	return &Endpoint{name: name, logger: logging.GetLogger("sim").With("dai", name)}
}

// RestrictPLL limits the PLL to the given output frequencies.
func (e *Endpoint) RestrictPLL(outputs ...int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pllOutputs = make(map[int]bool, len(outputs))
	for _, f := range outputs {
		e.pllOutputs[f] = true
	}
}

// RejectPLL makes the PLL refuse the given output frequencies.
func (e *Endpoint) RejectPLL(outputs ...int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pllReject = make(map[int]bool, len(outputs))
	for _, f := range outputs {
		e.pllReject[f] = true
	}
}

// FailFormat makes SetFormat return err. Pass nil to recover.
func (e *Endpoint) FailFormat(err error) {
	e.mu.Lock()
	e.formatErr = err
	e.mu.Unlock()
}

// SetFormat implements dai.Endpoint.
func (e *Endpoint) SetFormat(f dai.Format) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.formatErr != nil {
		return e.formatErr
	}
	e.format = f
	e.logger.Debug("Format set", "format", f.String())
	return nil
}

// SetSysclk implements dai.Endpoint.
func (e *Endpoint) SetSysclk(freq int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sysclk = freq
	return nil
}

// SetPLL implements dai.Codec.
func (e *Endpoint) SetPLL(freqIn, freqOut int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if freqIn != 0 && (e.pllOutputs != nil && !e.pllOutputs[freqOut] || e.pllReject[freqOut]) {
		return fmt.Errorf("%s: pll cannot produce %d Hz", e.name, freqOut)
	}
	e.pllIn, e.pllOut = freqIn, freqOut
	return nil
}

// ConnectPath implements dai.Interconnect.
func (e *Endpoint) ConnectPath(dac, dap int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths = append(e.paths, [2]int{dac, dap})
	return nil
}

// Snapshot is the state last programmed into an endpoint.
type Snapshot struct {
	Format dai.Format
	Sysclk int
	PLLIn  int
	PLLOut int
	Paths  [][2]int
}

// Snapshot returns the endpoint state.
func (e *Endpoint) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Format: e.format,
		Sysclk: e.sysclk,
		PLLIn:  e.pllIn,
		PLLOut: e.pllOut,
		Paths:  append([][2]int(nil), e.paths...),
	}
}

// SensePin is a simulated presence line. Set delivers an edge
// asynchronously when armed, like a threaded interrupt handler.
type SensePin struct {
	mu     sync.Mutex
	level  bool
	onEdge func()
	wg     sync.WaitGroup
}

// NewSensePin creates a sense line at the given level.
func NewSensePin(level bool) *SensePin {
	return &SensePin{level: level}
}

// Read implements jack.SensePin.
func (p *SensePin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, nil
}

// EnableInterrupt implements jack.SensePin.
func (p *SensePin) EnableInterrupt(onEdge func()) error {
	p.mu.Lock()
	p.onEdge = onEdge
	p.mu.Unlock()
	return nil
}

// DisableInterrupt implements jack.SensePin. It waits for in-flight edges.
func (p *SensePin) DisableInterrupt() error {
	p.mu.Lock()
	p.onEdge = nil
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}

// Set changes the line level.
func (p *SensePin) Set(level bool) {
	p.mu.Lock()
	changed := p.level != level
	p.level = level
	cb := p.onEdge
	if changed && cb != nil {
		p.wg.Add(1)
	}
	p.mu.Unlock()

	if changed && cb != nil {
		go func() {
			defer p.wg.Done()
			cb()
		}()
	}
}

// Armed reports whether an edge callback is installed.
func (p *SensePin) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onEdge != nil
}

// Flush waits for edges already delivered to finish.
func (p *SensePin) Flush() {
	p.wg.Wait()
}
