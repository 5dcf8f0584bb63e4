// Package cmd holds the audiocard subcommands and the hardware backend
// selection shared with the daemon.
package cmd

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/smazurov/audiocard/internal/board"
	"github.com/smazurov/audiocard/internal/card"
	"github.com/smazurov/audiocard/internal/clock/si5351"
	"github.com/smazurov/audiocard/internal/jack"
	"github.com/smazurov/audiocard/internal/routing"
	"github.com/smazurov/audiocard/internal/sim"
)

// Backend names.
const (
	BackendSim    = "sim"
	BackendSi5351 = "si5351"
	BackendGPIO   = "gpio"
	BackendALSA   = "alsa"
	BackendNoop   = "noop"
)

// Backends selects the driver behind each hardware capability. The codec and
// interconnect endpoints are always simulated.
type Backends struct {
	Clock    string
	Jack     string
	Routing  string
	ALSACard uint
	// JackControl is the ALSA jack kcontrol name for the alsa jack backend.
	JackControl string
	I2CBus      string
	I2CAddr     uint16
}

// SimHardware is a fully simulated card with handles on each part.
type SimHardware struct {
	Generator    *sim.Generator
	Interconnect *sim.Endpoint
	Codec        *sim.Endpoint
	BTCodec      *sim.Endpoint
	SensePin     *sim.SensePin
}

// NewSimHardware creates simulated hardware with the jack unplugged.
func NewSimHardware() *SimHardware {
	return &SimHardware{
		Generator:    sim.NewGenerator(),
		Interconnect: sim.NewEndpoint("das"),
		Codec:        sim.NewEndpoint("codec"),
		BTCodec:      sim.NewEndpoint("bt"),
		SensePin:     sim.NewSensePin(false),
	}
}

// Hardware returns the capability set for card.New.
func (s *SimHardware) Hardware() card.Hardware {
	return card.Hardware{
		Clock:        s.Generator,
		Interconnect: s.Interconnect,
		Codec:        s.Codec,
		BTCodec:      s.BTCodec,
		SensePin:     s.SensePin,
		Routing:      routing.NewNoopController(),
	}
}

type closer func() error

// BuildHardware opens the selected backends. The returned function releases
// whatever was opened, in reverse order.
func BuildHardware(profile *board.Profile, b Backends) (card.Hardware, func() error, error) {
	hw := NewSimHardware().Hardware()
	var closers []closer
	release := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (card.Hardware, func() error, error) {
		_ = release()
		return card.Hardware{}, nil, err
	}

	switch b.Clock {
	case "", BackendSim:
	case BackendSi5351:
		if _, err := host.Init(); err != nil {
			return fail(fmt.Errorf("init host drivers: %w", err))
		}
		bus, err := i2creg.Open(b.I2CBus)
		if err != nil {
			return fail(fmt.Errorf("open i2c bus %q: %w", b.I2CBus, err))
		}
		closers = append(closers, bus.Close)
		hw.Clock = si5351.New(si5351.Config{Bus: bus, Addr: b.I2CAddr})
	default:
		return fail(fmt.Errorf("unknown clock backend %q", b.Clock))
	}

	switch b.Jack {
	case "", BackendSim:
	case BackendGPIO:
		pin, err := jack.OpenGPIOPin(profile.Jack.Pin, profile.Debounce())
		if err != nil {
			return fail(err)
		}
		hw.SensePin = pin
	case BackendALSA:
		pin, err := jack.OpenALSAJackPin(b.ALSACard, b.JackControl)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pin.Close)
		hw.SensePin = pin
	default:
		return fail(fmt.Errorf("unknown jack backend %q", b.Jack))
	}

	switch b.Routing {
	case "", BackendNoop:
	case BackendALSA:
		ctl, err := routing.OpenALSAController(b.ALSACard)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, ctl.Close)
		hw.Routing = ctl
	default:
		return fail(fmt.Errorf("unknown routing backend %q", b.Routing))
	}

	return hw, release, nil
}
