package dai

import (
	"log/slog"

	"github.com/smazurov/audiocard/internal/clock"
)

// BTSCOLink negotiates the Bluetooth PCM relay. The relay codec has no PLL
// and runs from the rate-class clock directly.
type BTSCOLink struct {
	*base
	cpu   Interconnect
	codec Endpoint
}

// NewBTSCOLink creates the Bluetooth SCO link.
func NewBTSCOLink(policy LinkPolicy, clk ClockLocker, cpu Interconnect, codec Endpoint, logger *slog.Logger) *BTSCOLink {
	return &BTSCOLink{
		base:  newBase(policy, clk, logger),
		cpu:   cpu,
		codec: codec,
	}
}

// HWParams sets framing on both endpoints, acquires the clock with a
// 64x oversampling floor, then programs both system clocks.
func (l *BTSCOLink) HWParams(p Params) (Result, error) {
	srate := p.Rate
	framing := l.policy.Framing()
	l.logger.Debug("Configuring link", "format", framing.String(), "channels", p.Channels, "srate", srate)

	if err := l.setFormat(framing, l.cpu, l.codec); err != nil {
		return Result{}, err
	}

	sysClk, err := clock.RateClassMCLK(srate)
	if err != nil {
		return Result{}, err
	}
	minMCLK := clock.BTSCOOversampling * srate

	mclk, err := l.acquire(srate, sysClk, minMCLK)
	if err != nil {
		l.logger.Error("Can't configure clocks", "srate", srate, "mclk", sysClk, "min_mclk", minMCLK, "error", err)
		return Result{}, err
	}

	if err := l.setSysclk(l.cpu, "interconnect", mclk); err != nil {
		return Result{}, err
	}
	if err := l.setSysclk(l.codec, "codec", mclk); err != nil {
		return Result{}, err
	}
	if err := l.connectPath(l.cpu); err != nil {
		return Result{}, err
	}

	l.logger.Info("Link configured", "srate", srate, "mclk", mclk, "min_mclk", minMCLK, "format", framing.String())
	return Result{MCLK: mclk, SysClk: mclk, MinMCLK: minMCLK, Format: framing}, nil
}
