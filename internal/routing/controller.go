package routing

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/alsa"

	"github.com/smazurov/audiocard/internal/logging"
)

// NoopController logs pin changes without touching hardware.
type NoopController struct {
	logger *slog.Logger
}

// NewNoopController creates a logging-only controller.
func NewNoopController() *NoopController {
	return &NoopController{logger: logging.GetLogger("routing")}
}

// SetPin implements Controller.
func (c *NoopController) SetPin(name string, on bool) error {
	c.logger.Info("Pin switched", "pin", name, "on", on, "backend", "noop")
	return nil
}

// ALSAController drives "<pin> Switch" mixer controls on one sound card.
// Pins without a switch control are skipped.
type ALSAController struct {
	mu     sync.Mutex
	mixer  *alsa.Mixer
	logger *slog.Logger
}

// OpenALSAController opens the mixer of the given card.
func OpenALSAController(card uint) (*ALSAController, error) {
	m, err := alsa.MixerOpen(card)
	if err != nil {
		return nil, fmt.Errorf("open mixer for card %d: %w", card, err)
	}
	logger := logging.GetLogger("routing")
	logger.Info("ALSA routing backend ready", "card", card, "mixer", m.Name())
	return &ALSAController{mixer: m, logger: logger}, nil
}

// SetPin implements Controller.
func (c *ALSAController) SetPin(name string, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctlName := SwitchControlName(name)
	ctl, err := c.mixer.CtlByName(ctlName)
	if err != nil {
		c.logger.Debug("No switch control for pin", "pin", name, "control", ctlName)
		return nil
	}

	v := 0
	if on {
		v = 1
	}
	for i := uint(0); i < uint(ctl.NumValues()); i++ {
		if err := ctl.SetValue(i, v); err != nil {
			return fmt.Errorf("set %q[%d]: %w", ctlName, i, err)
		}
	}
	return nil
}

// Close releases the mixer handle.
func (c *ALSAController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mixer == nil {
		return nil
	}
	err := c.mixer.Close()
	c.mixer = nil
	return err
}

// SwitchControlName is the mixer control a pin maps to.
func SwitchControlName(pin string) string {
	return pin + " Switch"
}
