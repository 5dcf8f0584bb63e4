// Package jack tracks headphone presence from a sense pin and reports each
// change either to the routing pins or to a notification sink.
package jack

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/audiocard/internal/logging"
)

// DefaultDebounce is the settle time assumed for the sense line.
const DefaultDebounce = 150 * time.Millisecond

// State is the presence state of the jack.
type State int

const (
	StateUnknown State = iota
	StateAbsent
	StatePresent
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StatePresent:
		return "present"
	default:
		return "unknown"
	}
}

func stateOf(present bool) State {
	if present {
		return StatePresent
	}
	return StateAbsent
}

// SensePin is the hardware presence line. The callback passed to
// EnableInterrupt fires once the line has settled after an edge.
type SensePin interface {
	Read() (bool, error)
	EnableInterrupt(onEdge func()) error
	DisableInterrupt() error
}

// Reporter publishes a presence change.
type Reporter interface {
	Report(present bool) error
}

// Config is the static sense pin configuration.
type Config struct {
	Invert   bool
	Debounce time.Duration
}

// Status is a snapshot of the detector.
type Status struct {
	State      string `json:"state"`
	Present    bool   `json:"present"`
	Armed      bool   `json:"armed"`
	Invert     bool   `json:"invert"`
	DebounceMS int64  `json:"debounce_ms"`
	Reports    uint64 `json:"reports"`
}

// Detector is the presence state machine. It has its own lock and never
// touches the clock.
type Detector struct {
	mu       sync.Mutex
	pin      SensePin
	reporter Reporter
	cfg      Config
	last     State
	armed    bool
	reports  uint64
	logger   *slog.Logger
}

// NewDetector creates a detector in the Unknown state.
func NewDetector(pin SensePin, reporter Reporter, cfg Config) *Detector {
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Detector{
		pin:      pin,
		reporter: reporter,
		cfg:      cfg,
		logger:   logging.GetLogger("jack"),
	}
}

// Poll reads the settled pin level and reports it if it differs from the
// last reported state. It returns whether a report was made.
func (d *Detector) Poll() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := d.pin.Read()
	if err != nil {
		d.logger.Error("Failed to read sense pin", "error", err)
		return false, err
	}
	present := raw != d.cfg.Invert
	next := stateOf(present)
	if next == d.last {
		return false, nil
	}

	if err := d.reporter.Report(present); err != nil {
		// last is left alone so the next poll retries the report.
		d.logger.Error("Failed to report jack state", "state", next.String(), "error", err)
		return false, err
	}
	prev := d.last
	d.last = next
	d.reports++
	d.logger.Info("Jack state changed", "from", prev.String(), "to", next.String())
	return true, nil
}

// Arm enables the sense pin interrupt.
func (d *Detector) Arm() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.armed {
		return nil
	}
	if err := d.pin.EnableInterrupt(d.onEdge); err != nil {
		return err
	}
	d.armed = true
	return nil
}

// Disarm disables the sense pin interrupt.
func (d *Detector) Disarm() error {
	d.mu.Lock()
	armed := d.armed
	d.mu.Unlock()
	if !armed {
		return nil
	}

	// The edge callback takes d.mu, so the pin is stopped outside it.
	if err := d.pin.DisableInterrupt(); err != nil {
		return err
	}
	d.mu.Lock()
	d.armed = false
	d.mu.Unlock()
	return nil
}

// Resync re-reads the pin and then re-arms the interrupt. Used at probe
// and on resume, when edges may have been missed. The interrupt is armed
// even when the poll fails so later edges retry it.
func (d *Detector) Resync() error {
	_, pollErr := d.Poll()
	return errors.Join(pollErr, d.Arm())
}

// State returns the last reported state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Status returns a snapshot for the status surface.
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		State:      d.last.String(),
		Present:    d.last == StatePresent,
		Armed:      d.armed,
		Invert:     d.cfg.Invert,
		DebounceMS: d.cfg.Debounce.Milliseconds(),
		Reports:    d.reports,
	}
}

func (d *Detector) onEdge() {
	if _, err := d.Poll(); err != nil {
		d.logger.Warn("Jack poll after edge failed", "error", err)
	}
}
