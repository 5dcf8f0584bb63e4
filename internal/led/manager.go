package led

import (
	"log/slog"
	"sync"

	"github.com/smazurov/audiocard/internal/events"
)

// Manager drives the activity LED from card events: solid while any link
// streams, blinking while the card is idle, off while suspended or removed.
type Manager struct {
	controller Controller
	bus        *events.Bus
	logger     *slog.Logger

	mu      sync.Mutex
	unsubs  []func()
	links   map[string]bool
	powered bool
	last    string
}

// NewManager creates a manager for the Activity LED.
func NewManager(controller Controller, bus *events.Bus, logger *slog.Logger) *Manager {
	return &Manager{
		controller: controller,
		bus:        bus,
		logger:     logger,
		links:      make(map[string]bool),
	}
}

// Start subscribes to link and power events.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubs = []func(){
		m.bus.Subscribe(m.onLink),
		m.bus.Subscribe(m.onPower),
	}
	m.logger.Info("LED manager started")
}

// Stop unsubscribes and turns the LED off.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	m.powered = false
	m.applyLocked()
	m.logger.Info("LED manager stopped")
}

// Controller returns the underlying controller for direct API access.
func (m *Manager) Controller() Controller {
	return m.controller
}

func (m *Manager) onLink(e events.LinkStateChangedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[e.GetLinkName()] = e.IsActive()
	m.logger.Debug("Link state changed", "link", e.Link, "active", e.Active)
	m.applyLocked()
}

func (m *Manager) onPower(e events.CardPowerChangedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch e.State {
	case "probed", "resumed":
		m.powered = true
	case "removed":
		m.powered = false
		clear(m.links)
	default:
		m.powered = false
	}
	m.applyLocked()
}

func (m *Manager) applyLocked() {
	on, pattern, state := false, PatternNone, "off"
	if m.powered {
		on, pattern, state = true, PatternBlink, "idle"
		for _, active := range m.links {
			if active {
				pattern, state = PatternSolid, "streaming"
				break
			}
		}
	}
	if state == m.last {
		return
	}
	if err := m.controller.Set(Activity, on, pattern); err != nil {
		m.logger.Warn("Failed to set activity LED", "state", state, "error", err)
		return
	}
	m.last = state
	m.logger.Debug("Activity LED updated", "state", state)
}
