package dai

import (
	"log/slog"

	"github.com/smazurov/audiocard/internal/audioerr"
	"github.com/smazurov/audiocard/internal/clock"
)

// DefaultHiFiSysClk is used when the clock table has no entry for the rate.
const DefaultHiFiSysClk = 12000000

// HiFiLink negotiates the codec link. The codec can be bit-clock master, in
// which case its PLL synthesizes the sample clock from the shared MCLK.
type HiFiLink struct {
	*base
	table *clock.Table
	cpu   Interconnect
	codec Codec
}

// NewHiFiLink creates the HiFi link. A nil table selects the default table.
func NewHiFiLink(policy LinkPolicy, table *clock.Table, clk ClockLocker, cpu Interconnect, codec Codec, logger *slog.Logger) *HiFiLink {
	if table == nil {
		table = clock.DefaultTable()
	}
	return &HiFiLink{
		base:  newBase(policy, clk, logger),
		table: table,
		cpu:   cpu,
		codec: codec,
	}
}

// HWParams runs clock acquisition, framing, PLL search and sysclk setup in
// that order. The first failure aborts the rest.
func (l *HiFiLink) HWParams(p Params) (Result, error) {
	srate := p.Rate
	candidates := l.table.Candidates(srate)

	sysClk := DefaultHiFiSysClk
	if len(candidates) > 0 {
		sysClk = candidates[0]
	}

	preferred := sysClk
	mclk, err := l.acquire(srate, preferred, preferred)
	if err != nil {
		if audioerr.Is(err, audioerr.ErrClockBusy) {
			l.logger.Error("Unable to get required sampling rate", "srate", srate, "mclk", preferred, "error", err)
			return Result{}, audioerr.Wrap(audioerr.ErrClockUnsupported, "required sampling rate unavailable", err,
				map[string]any{"link": l.policy.Name, "srate": srate})
		}
		return Result{}, err
	}
	sysClk = mclk

	framing := l.policy.Framing()
	l.logger.Debug("Configuring link", "format", framing.String(), "channels", p.Channels, "srate", srate)

	if err := l.setFormat(framing, l.cpu, l.codec); err != nil {
		return Result{}, err
	}

	if l.policy.IsMaster {
		synthesized, ok := l.searchPLL(sysClk, candidates)
		if !ok {
			l.logger.Error("Unable to set required MCLK", "sys_clk", sysClk, "srate", srate)
			return Result{}, audioerr.New(audioerr.ErrClockUnsupported, "codec pll cannot synthesize a clock for rate",
				map[string]any{"link": l.policy.Name, "srate": srate, "sys_clk": sysClk})
		}
		sysClk = synthesized
	} else {
		if err := l.codec.SetPLL(0, 0); err != nil {
			l.logger.Error("Unable to disable codec PLL", "error", err)
			return Result{}, audioerr.Wrap(audioerr.ErrClockHardware, "disable codec pll", err,
				map[string]any{"link": l.policy.Name})
		}
	}

	if err := l.setSysclk(l.codec, "codec", sysClk); err != nil {
		return Result{}, err
	}
	if err := l.connectPath(l.cpu); err != nil {
		return Result{}, err
	}

	l.logger.Info("Link configured", "srate", srate, "mclk", mclk, "sys_clk", sysClk, "format", framing.String())
	return Result{MCLK: mclk, SysClk: sysClk, MinMCLK: preferred, Format: framing}, nil
}

// searchPLL tries each candidate in table order until the codec accepts one.
func (l *HiFiLink) searchPLL(in int, candidates []int) (int, bool) {
	for _, out := range candidates {
		if err := l.codec.SetPLL(in, out); err != nil {
			l.logger.Debug("Codec PLL rejected candidate", "mclk_in", in, "mclk_out", out, "error", err)
			continue
		}
		l.logger.Debug("Codec PLL synthesizing", "mclk_in", in, "mclk_out", out)
		return out, true
	}
	return 0, false
}
