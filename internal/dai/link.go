package dai

import (
	"log/slog"
	"sync"

	"github.com/smazurov/audiocard/internal/audioerr"
	"github.com/smazurov/audiocard/internal/clock"
	"github.com/smazurov/audiocard/internal/logging"
)

// ClockLocker is the part of the clock manager a link needs.
type ClockLocker interface {
	Acquire(rate, preferred, minMCLK int) (int, error)
	Unlock()
}

// Endpoint is one side of a DAI link.
type Endpoint interface {
	SetFormat(f Format) error
	SetSysclk(freq int) error
}

// Codec is the HiFi codec DAI. SetPLL(0, 0) disables the PLL.
type Codec interface {
	Endpoint
	SetPLL(freqIn, freqOut int) error
}

// Interconnect is the SoC side of every link.
type Interconnect interface {
	Endpoint
	ConnectPath(dac, dap int) error
}

// Link is a negotiated audio link.
type Link interface {
	Policy() LinkPolicy
	// HWParams configures the link for a stream. A clock reference taken
	// before a later step fails is kept until HWFree.
	HWParams(p Params) (Result, error)
	// HWFree releases the link's clock reference. Safe to call repeatedly.
	HWFree()
	// Holding reports whether the link currently holds a clock reference.
	Holding() bool
}

// Deps are the capabilities links are built from.
type Deps struct {
	Table        *clock.Table
	Clock        ClockLocker
	Interconnect Interconnect
	Codec        Codec
	BTCodec      Endpoint
	Logger       *slog.Logger
}

// NewLink builds the link matching policy.Kind.
func NewLink(policy LinkPolicy, d Deps) (Link, error) {
	if d.Clock == nil {
		return nil, missing(policy, "clock")
	}
	switch policy.Kind {
	case KindHiFi:
		if d.Interconnect == nil || d.Codec == nil {
			return nil, missing(policy, "hifi endpoints")
		}
		return NewHiFiLink(policy, d.Table, d.Clock, d.Interconnect, d.Codec, d.Logger), nil
	case KindBTSCO:
		if d.Interconnect == nil || d.BTCodec == nil {
			return nil, missing(policy, "bt-sco endpoints")
		}
		return NewBTSCOLink(policy, d.Clock, d.Interconnect, d.BTCodec, d.Logger), nil
	case KindSPDIF:
		return NewSPDIFLink(policy, d.Clock, d.Logger), nil
	default:
		return nil, audioerr.New(audioerr.ErrMissingPlatformData, "unknown link kind",
			map[string]any{"link": policy.Name, "kind": string(policy.Kind)})
	}
}

func missing(policy LinkPolicy, what string) error {
	return audioerr.New(audioerr.ErrMissingPlatformData, "link is missing "+what,
		map[string]any{"link": policy.Name, "kind": string(policy.Kind)})
}

// base carries the lock lifecycle shared by every link kind.
type base struct {
	policy LinkPolicy
	clk    ClockLocker
	logger *slog.Logger

	mu   sync.Mutex
	held bool
}

func newBase(policy LinkPolicy, clk ClockLocker, logger *slog.Logger) *base {
	if logger == nil {
		logger = logging.GetLogger("dai")
	}
	return &base{
		policy: policy,
		clk:    clk,
		logger: logger.With("link", policy.Name),
	}
}

func (b *base) Policy() LinkPolicy {
	return b.policy
}

func (b *base) Holding() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.held
}

// acquire takes the link's clock reference. A reference left from an
// earlier hw_params without hw_free is dropped first.
func (b *base) acquire(rate, preferred, minMCLK int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.held {
		b.clk.Unlock()
		b.held = false
	}
	mclk, err := b.clk.Acquire(rate, preferred, minMCLK)
	if err != nil {
		return 0, err
	}
	b.held = true
	return mclk, nil
}

// HWFree is shared by every link kind.
func (b *base) HWFree() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.held {
		b.logger.Debug("hw_free without clock reference")
		return
	}
	b.clk.Unlock()
	b.held = false
	b.logger.Debug("Clock reference released")
}

// setFormat applies framing to the interconnect first, then the codec.
func (b *base) setFormat(f Format, cpu, codec Endpoint) error {
	if err := cpu.SetFormat(f); err != nil {
		b.logger.Error("Interconnect format not set", "format", f.String(), "error", err)
		return audioerr.Wrap(audioerr.ErrFormatHardware, "set interconnect format", err,
			map[string]any{"link": b.policy.Name, "format": f.String()})
	}
	if err := codec.SetFormat(f); err != nil {
		b.logger.Error("Codec format not set", "format", f.String(), "error", err)
		return audioerr.Wrap(audioerr.ErrFormatHardware, "set codec format", err,
			map[string]any{"link": b.policy.Name, "format": f.String()})
	}
	return nil
}

func (b *base) setSysclk(ep Endpoint, which string, freq int) error {
	if err := ep.SetSysclk(freq); err != nil {
		b.logger.Error("System clock not set", "endpoint", which, "mclk", freq, "error", err)
		return audioerr.Wrap(audioerr.ErrClockHardware, "set "+which+" sysclk", err,
			map[string]any{"link": b.policy.Name, "mclk": freq})
	}
	return nil
}

func (b *base) connectPath(cpu Interconnect) error {
	p := b.policy.Path
	if p == nil {
		return nil
	}
	if err := cpu.ConnectPath(p.DAC, p.DAP); err != nil {
		b.logger.Error("Interconnect path not set", "dac", p.DAC, "dap", p.DAP, "error", err)
		return audioerr.Wrap(audioerr.ErrFormatHardware, "connect interconnect path", err,
			map[string]any{"link": b.policy.Name, "dac": p.DAC, "dap": p.DAP})
	}
	return nil
}
