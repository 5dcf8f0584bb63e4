package dai

import (
	"fmt"
	"strings"
)

// Kind identifies which negotiation procedure a link follows.
type Kind string

const (
	KindHiFi  Kind = "hifi"
	KindBTSCO Kind = "bt-sco"
	KindSPDIF Kind = "spdif"
)

// Kinds lists every supported link kind in probe order.
var Kinds = []Kind{KindHiFi, KindBTSCO, KindSPDIF}

// ParseKind resolves a link kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindHiFi:
		return KindHiFi, nil
	case KindBTSCO, "bt", "btsco", "bt_sco":
		return KindBTSCO, nil
	case KindSPDIF:
		return KindSPDIF, nil
	default:
		return "", fmt.Errorf("unknown link kind %q", s)
	}
}

// Path is an interconnect route between a DAC port and a DAP port.
type Path struct {
	DAC int `json:"dac" yaml:"dac"`
	DAP int `json:"dap" yaml:"dap"`
}

// LinkPolicy is the static per-link configuration supplied by the board.
type LinkPolicy struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	DataFormat Format `json:"data_format"`
	IsMaster   bool   `json:"is_master"`
	Path       *Path  `json:"path,omitempty"`
}

// Framing returns the framing word both endpoints receive.
func (p LinkPolicy) Framing() Format {
	return Framing(p.DataFormat, p.IsMaster)
}

// Params are the stream parameters requested by the upper layer.
type Params struct {
	Rate     int `json:"rate"`
	Channels int `json:"channels"`
}

// Result describes the clocks a successful negotiation settled on.
type Result struct {
	// MCLK is the frequency the shared generator runs at.
	MCLK int `json:"mclk"`
	// SysClk is what the codec was told its system clock is. It differs from
	// MCLK when the codec PLL synthesizes a new clock.
	SysClk  int    `json:"sys_clk"`
	MinMCLK int    `json:"min_mclk"`
	Format  Format `json:"format"`
}
