package jack

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/alsa"

	"github.com/smazurov/audiocard/internal/logging"
)

// DefaultJackControl is the jack kcontrol exposed by the codec driver.
const DefaultJackControl = "Headphone Jack"

const alsaWaitMs = 500

// ALSAJackPin uses an ALSA jack control as the sense pin. The kernel has
// already debounced the line, so each value event is a settled edge.
type ALSAJackPin struct {
	mixer  *alsa.Mixer
	ctl    *alsa.MixerCtl
	logger *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// OpenALSAJackPin opens the mixer of card and finds the jack control.
func OpenALSAJackPin(card uint, control string) (*ALSAJackPin, error) {
	if control == "" {
		control = DefaultJackControl
	}
	m, err := alsa.MixerOpen(card)
	if err != nil {
		return nil, fmt.Errorf("open mixer for card %d: %w", card, err)
	}
	ctl, err := m.CtlByName(control)
	if err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("jack control %q: %w", control, err)
	}
	return &ALSAJackPin{
		mixer:  m,
		ctl:    ctl,
		logger: logging.GetLogger("jack").With("control", control),
	}, nil
}

// Read implements SensePin.
func (a *ALSAJackPin) Read() (bool, error) {
	if err := a.ctl.Update(); err != nil {
		return false, err
	}
	v, err := a.ctl.Value(0)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// EnableInterrupt implements SensePin by subscribing to mixer events.
func (a *ALSAJackPin) EnableInterrupt(onEdge func()) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop != nil {
		return nil
	}
	if err := a.mixer.SubscribeEvents(true); err != nil {
		return err
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.watch(a.stop, a.done, onEdge)
	return nil
}

// DisableInterrupt implements SensePin.
func (a *ALSAJackPin) DisableInterrupt() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop == nil {
		return nil
	}
	close(a.stop)
	<-a.done
	a.stop, a.done = nil, nil
	return a.mixer.SubscribeEvents(false)
}

// Close stops event delivery and releases the mixer.
func (a *ALSAJackPin) Close() error {
	if err := a.DisableInterrupt(); err != nil {
		a.logger.Warn("Failed to unsubscribe mixer events", "error", err)
	}
	return a.mixer.Close()
}

func (a *ALSAJackPin) watch(stop <-chan struct{}, done chan<- struct{}, onEdge func()) {
	defer close(done)
	id := a.ctl.ID()
	for {
		select {
		case <-stop:
			return
		default:
		}

		ready, err := a.mixer.WaitEvent(alsaWaitMs)
		if err != nil {
			a.logger.Warn("Mixer wait failed", "error", err)
			select {
			case <-stop:
				return
			case <-time.After(alsaWaitMs * time.Millisecond):
			}
			continue
		}
		if !ready {
			continue
		}
		ev, err := a.mixer.ReadEvent()
		if err != nil {
			a.logger.Debug("Ignoring mixer event", "error", err)
			continue
		}
		if ev.Type&alsa.SNDRV_CTL_EVENT_MASK_VALUE == 0 || ev.ControlID != id {
			continue
		}
		onEdge()
	}
}
