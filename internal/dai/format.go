// Package dai negotiates digital audio interface framing and clocks for the
// card's three links: the HiFi codec, the Bluetooth SCO relay and S/PDIF.
package dai

import (
	"fmt"
	"strings"
)

// Format is a DAI framing word: data format bits OR'd with the clock role.
type Format uint32

// Data formats and clock-role bits, matching ALSA ASoC values.
const (
	FormatI2S  Format = 1
	FormatDSPA Format = 3

	CodecMaster Format = 0x1000 // codec drives bit clock and frame sync
	CodecSlave  Format = 0x4000 // interconnect drives bit clock and frame sync

	formatMask Format = 0x000F
	masterMask Format = 0xF000
)

// DataFormat returns the protocol bits.
func (f Format) DataFormat() Format {
	return f & formatMask
}

// CodecIsMaster reports whether the codec drives the clocks.
func (f Format) CodecIsMaster() bool {
	return f&masterMask == CodecMaster
}

func (f Format) String() string {
	var proto string
	switch f.DataFormat() {
	case FormatI2S:
		proto = "i2s"
	case FormatDSPA:
		proto = "dsp_a"
	default:
		proto = fmt.Sprintf("fmt(%d)", uint32(f.DataFormat()))
	}
	switch f & masterMask {
	case CodecMaster:
		return proto + "|cbm_cfm"
	case CodecSlave:
		return proto + "|cbs_cfs"
	default:
		return proto
	}
}

// ParseDataFormat accepts "i2s" or "dsp_a" (also "dsp-a", "dspa").
func ParseDataFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "i2s":
		return FormatI2S, nil
	case "dsp_a", "dsp-a", "dspa":
		return FormatDSPA, nil
	default:
		return 0, fmt.Errorf("unknown data format %q", s)
	}
}

// Framing builds the framing word for a data format and clock role.
func Framing(dataFormat Format, codecMaster bool) Format {
	if codecMaster {
		return dataFormat.DataFormat() | CodecMaster
	}
	return dataFormat.DataFormat() | CodecSlave
}
