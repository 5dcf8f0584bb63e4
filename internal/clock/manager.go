package clock

import (
	"log/slog"
	"sync"

	"github.com/smazurov/audiocard/internal/audioerr"
	"github.com/smazurov/audiocard/internal/logging"
)

// Generator is the physical clock source shared by every audio link.
// SetRate may block on bus I/O.
type Generator interface {
	SetRate(rate, mclk int) (int, error)
	Enable() error
	Disable() error
}

// State is a snapshot of the shared clock.
// LockCount == 0 if and only if LockedMCLK == 0.
type State struct {
	RequestedRate  int  `json:"requested_rate"`
	ProgrammedMCLK int  `json:"programmed_mclk"`
	LockedMCLK     int  `json:"locked_mclk"`
	LockCount      int  `json:"lock_count"`
	Enabled        bool `json:"enabled"`
}

// Locked reports whether any link holds the clock.
func (s State) Locked() bool {
	return s.LockCount > 0
}

// Manager owns the shared oscillator. Every read-modify-write of the clock
// state happens under mu, including generator reprogramming.
type Manager struct {
	mu       sync.Mutex
	gen      Generator
	state    State
	logger   *slog.Logger
	onChange []func(State)
}

// NewManager creates a manager driving gen.
func NewManager(gen Generator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.GetLogger("clock")
	}
	return &Manager{
		gen:    gen,
		logger: logger,
	}
}

// OnChange registers a callback invoked with a fresh snapshot after every lock
// count change. Callbacks run outside the critical section.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Init ungates the oscillator. It is the first step of card construction.
func (m *Manager) Init() error {
	return m.Enable()
}

// Fini gates the oscillator and forgets any programmed rate.
func (m *Manager) Fini() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.LockCount > 0 {
		m.logger.Warn("Releasing clock with active locks", "lock_count", m.state.LockCount)
	}
	var err error
	if m.state.Enabled {
		err = m.disableLocked()
	}
	m.state = State{}
	return err
}

// SetRate programs the generator to preferred for rate. While the clock is
// locked to a different frequency the request fails with ErrClockBusy, unless
// the locked frequency is a whole multiple of minMCLK, in which case the locked
// frequency is returned and the hardware is left alone.
func (m *Manager) SetRate(rate, preferred, minMCLK int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setRateLocked(rate, preferred, minMCLK)
}

// Lock takes a reference on the currently programmed frequency.
func (m *Manager) Lock() error {
	m.mu.Lock()
	err := m.lockLocked()
	snap := m.state
	m.mu.Unlock()

	if err == nil {
		m.notify(snap)
	}
	return err
}

// Unlock drops one reference. Calling it with no references held is a no-op.
// The oscillator stays ungated after the last reference; gating is left to Disable.
func (m *Manager) Unlock() {
	m.mu.Lock()
	if m.state.LockCount == 0 {
		m.mu.Unlock()
		m.logger.Debug("Unlock with no active locks ignored")
		return
	}
	m.state.LockCount--
	if m.state.LockCount == 0 {
		m.state.LockedMCLK = 0
	}
	snap := m.state
	m.mu.Unlock()

	m.logger.Debug("Clock unlocked", "lock_count", snap.LockCount)
	m.notify(snap)
}

// Acquire runs SetRate and Lock as one critical section so no other link can
// observe or change the clock in between.
func (m *Manager) Acquire(rate, preferred, minMCLK int) (int, error) {
	m.mu.Lock()
	applied, err := m.setRateLocked(rate, preferred, minMCLK)
	if err == nil {
		err = m.lockLocked()
	}
	snap := m.state
	m.mu.Unlock()

	if err != nil {
		return 0, err
	}
	m.notify(snap)
	return applied, nil
}

// Enable ungates the oscillator.
func (m *Manager) Enable() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Enabled {
		return nil
	}
	if err := m.gen.Enable(); err != nil {
		return audioerr.Wrap(audioerr.ErrClockHardware, "enable clock", err, nil)
	}
	m.state.Enabled = true
	m.logger.Debug("Clock enabled")
	return nil
}

// Disable gates the oscillator. Lock state is kept so a resumed stream
// continues on the same frequency.
func (m *Manager) Disable() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Enabled {
		return nil
	}
	return m.disableLocked()
}

// State returns a snapshot of the clock state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setRateLocked(rate, preferred, minMCLK int) (int, error) {
	if preferred <= 0 {
		return 0, audioerr.New(audioerr.ErrClockUnsupported, "no clock for sample rate",
			map[string]any{"srate": rate})
	}

	if m.state.LockCount > 0 {
		locked := m.state.LockedMCLK
		if locked == preferred {
			return locked, nil
		}
		if minMCLK > 0 && locked%minMCLK == 0 {
			m.logger.Debug("Reusing locked clock",
				"srate", rate, "preferred_mclk", preferred, "locked_mclk", locked, "min_mclk", minMCLK)
			return locked, nil
		}
		return 0, audioerr.New(audioerr.ErrClockBusy, "clock locked to incompatible frequency",
			map[string]any{"srate": rate, "preferred_mclk": preferred, "locked_mclk": locked, "min_mclk": minMCLK})
	}

	if m.state.ProgrammedMCLK == preferred && m.state.RequestedRate == rate {
		return preferred, nil
	}

	actual, err := m.gen.SetRate(rate, preferred)
	if err != nil {
		m.logger.Error("Failed to program clock generator", "srate", rate, "mclk", preferred, "error", err)
		return 0, audioerr.Wrap(audioerr.ErrClockHardware, "program clock generator", err,
			map[string]any{"srate": rate, "mclk": preferred})
	}
	if actual != preferred {
		// The output is unusable for this rate; force a reprogram next time.
		m.state.ProgrammedMCLK = 0
		m.state.RequestedRate = 0
		m.logger.Error("Clock generator missed the requested frequency",
			"srate", rate, "mclk", preferred, "actual", actual)
		return 0, audioerr.New(audioerr.ErrClockHardware, "clock generator produced a different frequency",
			map[string]any{"srate": rate, "mclk": preferred, "actual": actual})
	}
	m.state.ProgrammedMCLK = preferred
	m.state.RequestedRate = rate
	m.logger.Info("Clock programmed", "srate", rate, "mclk", preferred)
	return preferred, nil
}

func (m *Manager) lockLocked() error {
	if m.state.ProgrammedMCLK == 0 {
		return audioerr.New(audioerr.ErrClockUnsupported, "lock requested before any rate was set", nil)
	}
	m.state.LockCount++
	if m.state.LockCount == 1 {
		m.state.LockedMCLK = m.state.ProgrammedMCLK
	}
	m.logger.Debug("Clock locked", "mclk", m.state.LockedMCLK, "lock_count", m.state.LockCount)
	return nil
}

func (m *Manager) disableLocked() error {
	if err := m.gen.Disable(); err != nil {
		return audioerr.Wrap(audioerr.ErrClockHardware, "disable clock", err, nil)
	}
	m.state.Enabled = false
	m.logger.Debug("Clock disabled")
	return nil
}

func (m *Manager) notify(s State) {
	m.mu.Lock()
	handlers := make([]func(State), len(m.onChange))
	copy(handlers, m.onChange)
	m.mu.Unlock()

	for _, h := range handlers {
		h(s)
	}
}
