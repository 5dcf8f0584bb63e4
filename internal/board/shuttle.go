package board

import (
	"github.com/smazurov/audiocard/internal/dai"
	"github.com/smazurov/audiocard/internal/routing"
)

// Shuttle codec widgets.
const (
	pinHPL    = "HPL"
	pinHPR    = "HPR"
	pinSPKL   = "SPKL"
	pinSPKLN  = "SPKLN"
	pinSPKR   = "SPKR"
	pinSPKRN  = "SPKRN"
	pinMIC2   = "MIC2"
	pinLineL  = "LINEL"
	pinLineR  = "LINER"
	pinPhone  = "PHONEIN"
	pinMIC1   = "MIC1"
	pinMono   = "MONO"
	shuttleHP = "HP_DET"
)

// Shuttle returns the built-in profile for the Shuttle tablet: an ALC5624
// codec on the HiFi link, a Bluetooth module on DAP4 and the SPDIF output.
func Shuttle() *Profile {
	return &Profile{
		Name:  "shuttle",
		Model: "Shuttle",
		Jack: JackConfig{
			Pin:        shuttleHP,
			DebounceMS: 150,
			Reporter:   ReporterPins,
		},
		Links: []LinkConfig{
			{Name: "hifi", Kind: string(dai.KindHiFi), Format: "i2s", Path: &dai.Path{DAC: 1, DAP: 1}},
			{Name: "bt-sco", Kind: string(dai.KindBTSCO), Format: "dsp_a", Master: true, Path: &dai.Path{DAC: 2, DAP: 4}},
			{Name: "spdif", Kind: string(dai.KindSPDIF)},
		},
		Routing: RoutingConfig{
			Widgets: []routing.Widget{
				{Name: routing.PinHeadphoneJack, Kind: routing.KindHeadphone},
				{Name: routing.PinInternalSpeaker, Kind: routing.KindSpeaker},
				{Name: routing.PinInternalMic, Kind: routing.KindMic},
				{Name: routing.PinMicBias2, Kind: routing.KindSupply},
				{Name: pinHPL, Kind: routing.KindCodecPin},
				{Name: pinHPR, Kind: routing.KindCodecPin},
				{Name: pinSPKL, Kind: routing.KindCodecPin},
				{Name: pinSPKLN, Kind: routing.KindCodecPin},
				{Name: pinSPKR, Kind: routing.KindCodecPin},
				{Name: pinSPKRN, Kind: routing.KindCodecPin},
				{Name: pinMIC2, Kind: routing.KindCodecPin},
				{Name: pinLineL, Kind: routing.KindLine},
				{Name: pinLineR, Kind: routing.KindLine},
				{Name: pinPhone, Kind: routing.KindLine},
				{Name: pinMIC1, Kind: routing.KindCodecPin},
				{Name: pinMono, Kind: routing.KindCodecPin},
			},
			Routes: []routing.Route{
				{Sink: routing.PinHeadphoneJack, Source: pinHPL},
				{Sink: routing.PinHeadphoneJack, Source: pinHPR},
				{Sink: routing.PinInternalSpeaker, Source: pinSPKL},
				{Sink: routing.PinInternalSpeaker, Source: pinSPKLN},
				{Sink: routing.PinInternalSpeaker, Source: pinSPKR},
				{Sink: routing.PinInternalSpeaker, Source: pinSPKRN},
				{Sink: routing.PinMicBias2, Source: routing.PinInternalMic},
				{Sink: pinMIC2, Source: routing.PinMicBias2},
			},
			Defaults: routing.Defaults{
				NotConnected: []string{pinLineL, pinLineR, pinPhone, pinMIC1, pinMono},
				Enabled:      []string{routing.PinInternalSpeaker, routing.PinInternalMic, routing.PinHeadphoneJack},
				Forced:       []string{routing.PinMicBias2},
			},
		},
	}
}
