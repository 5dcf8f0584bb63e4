// Package routing holds the card's audio routing graph and the power state
// of its endpoint pins.
package routing

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/audiocard/internal/logging"
)

// Endpoint pins the core toggles.
const (
	PinHeadphoneJack   = "Headphone Jack"
	PinInternalSpeaker = "Internal Speaker"
	PinInternalMic     = "Internal Mic"
	PinMicBias2        = "Mic Bias2"
)

// WidgetKind classifies a routing endpoint.
type WidgetKind string

const (
	KindHeadphone WidgetKind = "headphone"
	KindSpeaker   WidgetKind = "speaker"
	KindMic       WidgetKind = "mic"
	KindLine      WidgetKind = "line"
	KindSupply    WidgetKind = "supply"
	KindCodecPin  WidgetKind = "codec"
)

// Widget is a named node in the routing graph.
type Widget struct {
	Name string     `json:"name" yaml:"name"`
	Kind WidgetKind `json:"kind" yaml:"kind"`
}

// Route connects Source to Sink.
type Route struct {
	Sink   string `json:"sink" yaml:"sink"`
	Source string `json:"source" yaml:"source"`
}

// PinStatus is a snapshot of one pin.
type PinStatus struct {
	Name         string `json:"name"`
	Enabled      bool   `json:"enabled"`
	NotConnected bool   `json:"not_connected,omitempty"`
	Forced       bool   `json:"forced,omitempty"`
	Powered      bool   `json:"powered"`
}

// Controller applies pin power to hardware.
type Controller interface {
	SetPin(name string, on bool) error
}

type pin struct {
	enabled bool
	nc      bool
	forced  bool
	applied *bool
}

func (p *pin) powered() bool {
	if p.nc {
		return false
	}
	return p.forced || p.enabled
}

// Table is the routing graph plus pin power state. Pin changes are staged
// and pushed to the controller by Sync.
type Table struct {
	mu      sync.Mutex
	widgets []Widget
	routes  []Route
	pins    map[string]*pin
	ctrl    Controller
	logger  *slog.Logger
}

// NewTable validates routes against widgets and builds a table. A nil
// controller records state only.
func NewTable(widgets []Widget, routes []Route, ctrl Controller) (*Table, error) {
	t := &Table{
		widgets: append([]Widget(nil), widgets...),
		routes:  append([]Route(nil), routes...),
		pins:    make(map[string]*pin, len(widgets)),
		ctrl:    ctrl,
		logger:  logging.GetLogger("routing"),
	}
	for _, w := range widgets {
		if _, dup := t.pins[w.Name]; dup {
			return nil, fmt.Errorf("duplicate widget %q", w.Name)
		}
		t.pins[w.Name] = &pin{}
	}
	for _, r := range routes {
		if _, ok := t.pins[r.Sink]; !ok {
			return nil, fmt.Errorf("route sink %q is not a widget", r.Sink)
		}
		if _, ok := t.pins[r.Source]; !ok {
			return nil, fmt.Errorf("route source %q is not a widget", r.Source)
		}
	}
	return t, nil
}

// SetController swaps the hardware backend. Every pin is pushed on the next Sync.
func (t *Table) SetController(ctrl Controller) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctrl = ctrl
	for _, p := range t.pins {
		p.applied = nil
	}
}

// EnablePin marks a pin enabled.
func (t *Table) EnablePin(name string) error {
	return t.update(name, func(p *pin) { p.enabled = true })
}

// DisablePin marks a pin disabled.
func (t *Table) DisablePin(name string) error {
	return t.update(name, func(p *pin) { p.enabled = false })
}

// SetPin enables or disables a pin.
func (t *Table) SetPin(name string, enabled bool) error {
	return t.update(name, func(p *pin) { p.enabled = enabled })
}

// NotConnected marks a pin as physically unwired; it stays unpowered.
func (t *Table) NotConnected(name string) error {
	return t.update(name, func(p *pin) { p.nc = true })
}

// ForceEnablePin keeps a pin powered regardless of its enable state.
func (t *Table) ForceEnablePin(name string) error {
	return t.update(name, func(p *pin) { p.forced = true })
}

func (t *Table) update(name string, fn func(*pin)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pins[name]
	if !ok {
		return fmt.Errorf("unknown pin %q", name)
	}
	fn(p)
	return nil
}

// Sync pushes every pin whose power differs from what was last applied.
// Pins are pushed in widget order; the first controller error stops the pass.
func (t *Table) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, w := range t.widgets {
		p := t.pins[w.Name]
		on := p.powered()
		if p.applied != nil && *p.applied == on {
			continue
		}
		if t.ctrl != nil {
			if err := t.ctrl.SetPin(w.Name, on); err != nil {
				t.logger.Error("Failed to apply pin", "pin", w.Name, "on", on, "error", err)
				return fmt.Errorf("apply pin %q: %w", w.Name, err)
			}
		}
		applied := on
		p.applied = &applied
		t.logger.Debug("Pin applied", "pin", w.Name, "on", on)
	}
	return nil
}

// Release powers down every pin last pushed on, in reverse widget order,
// and forgets what was applied. Staged pin state is kept. A failed pin does
// not stop the pass.
func (t *Table) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for i := len(t.widgets) - 1; i >= 0; i-- {
		name := t.widgets[i].Name
		p := t.pins[name]
		if p.applied != nil && *p.applied && t.ctrl != nil {
			if err := t.ctrl.SetPin(name, false); err != nil {
				t.logger.Error("Failed to release pin", "pin", name, "error", err)
				errs = append(errs, fmt.Errorf("release pin %q: %w", name, err))
				continue
			}
		}
		p.applied = nil
	}
	return errors.Join(errs...)
}

// Pin returns the status of one pin.
func (t *Table) Pin(name string) (PinStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pins[name]
	if !ok {
		return PinStatus{}, false
	}
	return status(name, p), true
}

// Pins returns every pin in widget order.
func (t *Table) Pins() []PinStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PinStatus, 0, len(t.widgets))
	for _, w := range t.widgets {
		out = append(out, status(w.Name, t.pins[w.Name]))
	}
	return out
}

// Routes returns the routing graph edges.
func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// Widgets returns the routing graph nodes.
func (t *Table) Widgets() []Widget {
	return append([]Widget(nil), t.widgets...)
}

// Sources returns the widgets feeding sink.
func (t *Table) Sources(sink string) []string {
	var out []string
	for _, r := range t.routes {
		if r.Sink == sink {
			out = append(out, r.Source)
		}
	}
	return out
}

func status(name string, p *pin) PinStatus {
	return PinStatus{
		Name:         name,
		Enabled:      p.enabled,
		NotConnected: p.nc,
		Forced:       p.forced,
		Powered:      p.powered(),
	}
}
