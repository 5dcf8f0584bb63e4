package jack

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/audiocard/internal/audioerr"
	"github.com/smazurov/audiocard/internal/events"
	"github.com/smazurov/audiocard/internal/routing"
)

// Wired accessory switch states.
const (
	NoHeadset    = 0
	Headset      = 1
	HeadsetNoMic = 2
)

// DefaultSwitchName is the headset switch device name.
const DefaultSwitchName = "h2w"

// PinSwitcher is the routing table as seen by the pin reporter.
type PinSwitcher interface {
	SetPin(name string, enabled bool) error
	Sync() error
}

// PinReporter routes audio to the headphones when present and to the
// internal speaker otherwise.
type PinReporter struct {
	pins PinSwitcher
}

// NewPinReporter creates a reporter that toggles routing pins.
func NewPinReporter(pins PinSwitcher) *PinReporter {
	return &PinReporter{pins: pins}
}

// Report implements Reporter.
func (r *PinReporter) Report(present bool) error {
	if err := r.pins.SetPin(routing.PinInternalSpeaker, !present); err != nil {
		return err
	}
	if err := r.pins.SetPin(routing.PinHeadphoneJack, present); err != nil {
		return err
	}
	return r.pins.Sync()
}

// Publisher is the event bus as seen by the notify reporter.
type Publisher interface {
	Publish(ev events.Event)
}

// NotifyReporter publishes presence on the event bus as a switch state and
// leaves routing to whoever listens.
type NotifyReporter struct {
	bus  Publisher
	name string

	mu         sync.Mutex
	registered bool
	state      int
}

// NewNotifyReporter creates a notification sink reporter.
func NewNotifyReporter(bus Publisher, switchName string) *NotifyReporter {
	if switchName == "" {
		switchName = DefaultSwitchName
	}
	return &NotifyReporter{bus: bus, name: switchName}
}

// Register makes the switch available. It fails if already registered.
func (r *NotifyReporter) Register() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registered {
		return audioerr.New(audioerr.ErrRegistrationFailed, "switch already registered",
			map[string]any{"switch": r.name})
	}
	if r.bus == nil {
		return audioerr.New(audioerr.ErrRegistrationFailed, "switch has no event bus",
			map[string]any{"switch": r.name})
	}
	r.registered = true
	r.state = NoHeadset
	return nil
}

// Unregister removes the switch. Safe to call when not registered.
func (r *NotifyReporter) Unregister() {
	r.mu.Lock()
	r.registered = false
	r.mu.Unlock()
}

// Name returns the switch device name.
func (r *NotifyReporter) Name() string {
	return r.name
}

// State returns the last published switch state.
func (r *NotifyReporter) State() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Report implements Reporter.
func (r *NotifyReporter) Report(present bool) error {
	state := NoHeadset
	if present {
		state = HeadsetNoMic
	}

	r.mu.Lock()
	if !r.registered {
		r.mu.Unlock()
		return audioerr.New(audioerr.ErrInvalidState, fmt.Sprintf("switch %s is not registered", r.name), nil)
	}
	r.state = state
	r.mu.Unlock()

	r.bus.Publish(events.JackStateChangedEvent{
		Switch:    r.name,
		State:     state,
		Present:   present,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return nil
}
