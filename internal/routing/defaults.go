package routing

import "errors"

// Defaults is the pin state applied when the card registers.
type Defaults struct {
	NotConnected []string `json:"not_connected" yaml:"not_connected"`
	Enabled      []string `json:"enabled" yaml:"enabled"`
	Forced       []string `json:"forced" yaml:"forced"`
}

// ApplyDefaults stages unwired, default-on and forced pins, then syncs.
func (t *Table) ApplyDefaults(d Defaults) error {
	var errs []error
	for _, name := range d.NotConnected {
		errs = append(errs, t.NotConnected(name))
	}
	for _, name := range d.Enabled {
		errs = append(errs, t.EnablePin(name))
	}
	for _, name := range d.Forced {
		errs = append(errs, t.ForceEnablePin(name))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return t.Sync()
}
