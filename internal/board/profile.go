// Package board holds the static platform data of a card: the sense pin,
// the link policies and the routing graph. Profiles are YAML documents; the
// built-in one describes the Shuttle tablet.
package board

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smazurov/audiocard/internal/audioerr"
	"github.com/smazurov/audiocard/internal/clock"
	"github.com/smazurov/audiocard/internal/dai"
	"github.com/smazurov/audiocard/internal/jack"
	"github.com/smazurov/audiocard/internal/routing"
)

// Reporter styles for jack presence.
const (
	ReporterPins   = "pins"
	ReporterNotify = "notify"
)

// Profile is the platform data of one board.
type Profile struct {
	Name       string        `yaml:"name"`
	Model      string        `yaml:"model,omitempty"`
	Jack       JackConfig    `yaml:"jack"`
	Links      []LinkConfig  `yaml:"links"`
	Routing    RoutingConfig `yaml:"routing"`
	ClockTable []clock.Entry `yaml:"clock_table,omitempty"`
}

// JackConfig describes the headphone sense line.
type JackConfig struct {
	Pin        string `yaml:"pin"`
	Invert     bool   `yaml:"invert"`
	DebounceMS int    `yaml:"debounce_ms"`
	Reporter   string `yaml:"reporter"`
	Switch     string `yaml:"switch,omitempty"`
}

// LinkConfig is the YAML form of a dai.LinkPolicy.
type LinkConfig struct {
	Name   string    `yaml:"name"`
	Kind   string    `yaml:"kind"`
	Format string    `yaml:"format,omitempty"`
	Master bool      `yaml:"master"`
	Path   *dai.Path `yaml:"path,omitempty"`
}

// RoutingConfig is the routing graph plus its registration defaults.
type RoutingConfig struct {
	Widgets          []routing.Widget `yaml:"widgets"`
	Routes           []routing.Route  `yaml:"routes"`
	routing.Defaults `yaml:",inline"`
}

// Load reads a profile from path. An empty path returns the built-in
// profile.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Shuttle(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, audioerr.Wrap(audioerr.ErrMissingPlatformData, "read board profile", err,
			map[string]any{"path": path})
	}
	return Parse(data)
}

// Parse decodes and validates a YAML profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, audioerr.Wrap(audioerr.ErrMissingPlatformData, "decode board profile", err, nil)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Marshal encodes the profile as YAML.
func (p *Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Validate checks the mandatory platform data.
func (p *Profile) Validate() error {
	var errs []error
	if p.Jack.Pin == "" {
		errs = append(errs, errors.New("jack.pin is required"))
	}
	switch p.Jack.Reporter {
	case "", ReporterPins, ReporterNotify:
	default:
		errs = append(errs, fmt.Errorf("jack.reporter %q is not one of pins, notify", p.Jack.Reporter))
	}
	if p.Jack.DebounceMS < 0 {
		errs = append(errs, errors.New("jack.debounce_ms must not be negative"))
	}
	if len(p.Links) == 0 {
		errs = append(errs, errors.New("at least one link is required"))
	}
	if _, err := p.LinkPolicies(); err != nil {
		errs = append(errs, err)
	}
	for _, e := range p.ClockTable {
		if e.MCLK <= 0 || e.Rate <= 0 {
			errs = append(errs, fmt.Errorf("clock_table entry %d@%d is not positive", e.MCLK, e.Rate))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return audioerr.Wrap(audioerr.ErrMissingPlatformData, "invalid board profile", err,
			map[string]any{"board": p.Name})
	}
	return nil
}

// LinkPolicies converts the link section into policies.
func (p *Profile) LinkPolicies() ([]dai.LinkPolicy, error) {
	seen := make(map[string]bool, len(p.Links))
	policies := make([]dai.LinkPolicy, 0, len(p.Links))
	for _, l := range p.Links {
		if l.Name == "" {
			return nil, errors.New("link name is required")
		}
		if seen[l.Name] {
			return nil, fmt.Errorf("duplicate link %q", l.Name)
		}
		seen[l.Name] = true

		kind, err := dai.ParseKind(l.Kind)
		if err != nil {
			return nil, fmt.Errorf("link %q: %w", l.Name, err)
		}
		policy := dai.LinkPolicy{Name: l.Name, Kind: kind, IsMaster: l.Master, Path: l.Path}
		if kind != dai.KindSPDIF {
			if l.Format == "" {
				return nil, fmt.Errorf("link %q: format is required", l.Name)
			}
			df, err := dai.ParseDataFormat(l.Format)
			if err != nil {
				return nil, fmt.Errorf("link %q: %w", l.Name, err)
			}
			policy.DataFormat = df
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// Table returns the clock table, the default one unless overridden.
func (p *Profile) Table() *clock.Table {
	if len(p.ClockTable) == 0 {
		return clock.DefaultTable()
	}
	return clock.NewTable(p.ClockTable)
}

// JackDetector returns the detector configuration.
func (p *Profile) JackDetector() jack.Config {
	return jack.Config{
		Invert:   p.Jack.Invert,
		Debounce: p.Debounce(),
	}
}

// Debounce returns the sense line settle time.
func (p *Profile) Debounce() time.Duration {
	if p.Jack.DebounceMS == 0 {
		return jack.DefaultDebounce
	}
	return time.Duration(p.Jack.DebounceMS) * time.Millisecond
}

// NotifyJack reports whether presence goes to the notification sink.
func (p *Profile) NotifyJack() bool {
	return p.Jack.Reporter == ReporterNotify
}

// RoutingDefaults returns the pin states applied at registration.
func (p *Profile) RoutingDefaults() routing.Defaults {
	return p.Routing.Defaults
}
