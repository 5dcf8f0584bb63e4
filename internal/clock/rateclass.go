package clock

import "github.com/smazurov/audiocard/internal/audioerr"

// Base MCLK per rate family.
const (
	Family44k1MCLK = 11289600
	Family48kMCLK  = 12288000
)

// Oversampling floors used as the fallback threshold when reusing a locked clock.
const (
	BTSCOOversampling = 64
	SPDIFOversampling = 128
)

// RateClassMCLK picks the base MCLK for rate by family. Rates outside both
// families are unsupported.
func RateClassMCLK(rate int) (int, error) {
	switch rate {
	case 11025, 22050, 44100, 88200:
		return Family44k1MCLK, nil
	case 8000, 16000, 32000, 48000, 64000, 96000:
		return Family48kMCLK, nil
	default:
		return 0, audioerr.New(audioerr.ErrClockUnsupported, "sample rate outside supported families",
			map[string]any{"srate": rate})
	}
}
