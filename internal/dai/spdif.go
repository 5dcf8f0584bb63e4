package dai

import (
	"log/slog"

	"github.com/smazurov/audiocard/internal/clock"
)

// SPDIFLink only takes part in the clock lifecycle; S/PDIF has no framing
// negotiation.
type SPDIFLink struct {
	*base
}

// NewSPDIFLink creates the S/PDIF link.
func NewSPDIFLink(policy LinkPolicy, clk ClockLocker, logger *slog.Logger) *SPDIFLink {
	return &SPDIFLink{base: newBase(policy, clk, logger)}
}

// HWParams acquires the rate-class clock with a 128x oversampling floor.
func (l *SPDIFLink) HWParams(p Params) (Result, error) {
	srate := p.Rate
	mclk, err := clock.RateClassMCLK(srate)
	if err != nil {
		return Result{}, err
	}
	minMCLK := clock.SPDIFOversampling * srate

	applied, err := l.acquire(srate, mclk, minMCLK)
	if err != nil {
		l.logger.Error("Can't configure clocks", "srate", srate, "mclk", mclk, "min_mclk", minMCLK, "error", err)
		return Result{}, err
	}

	l.logger.Info("Link configured", "srate", srate, "mclk", applied, "min_mclk", minMCLK)
	return Result{MCLK: applied, SysClk: applied, MinMCLK: minMCLK}, nil
}
