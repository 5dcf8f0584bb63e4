package systemd

import (
	"context"
	"slices"

	"github.com/coreos/go-systemd/v22/dbus"
)

// UnitStatus is the state of a companion unit.
type UnitStatus struct {
	Unit        string `json:"unit"`
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`
}

// Manager reports on and restarts the units the card depends on, such as
// the Bluetooth stack behind the BT-SCO link. Only allow-listed units are
// reachable.
type Manager struct {
	conn  *dbus.Conn
	units []string
}

// NewManager connects to the system bus.
func NewManager(ctx context.Context, units []string) (*Manager, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return &Manager{conn: conn, units: units}, nil
}

// Units returns the allow-list.
func (m *Manager) Units() []string {
	return slices.Clone(m.units)
}

// Allowed reports whether unit may be queried or restarted.
func (m *Manager) Allowed(unit string) bool {
	return slices.Contains(m.units, unit)
}

// Status reads ActiveState and SubState of unit.
func (m *Manager) Status(ctx context.Context, unit string) (UnitStatus, error) {
	props, err := m.conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		return UnitStatus{}, err
	}
	st := UnitStatus{Unit: unit}
	if v, ok := props["ActiveState"].(string); ok {
		st.ActiveState = v
	}
	if v, ok := props["SubState"].(string); ok {
		st.SubState = v
	}
	return st, nil
}

// Restart restarts unit in replace mode and waits for the job result.
func (m *Manager) Restart(ctx context.Context, unit string) (string, error) {
	done := make(chan string, 1)
	if _, err := m.conn.RestartUnitContext(ctx, unit, "replace", done); err != nil {
		return "", err
	}
	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
