package led

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/audiocard/internal/events"
)

type setCall struct {
	name    string
	on      bool
	pattern Pattern
}

type mockController struct {
	mu    sync.Mutex
	calls []setCall
}

func (m *mockController) Set(name string, on bool, pattern Pattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, setCall{name, on, pattern})
	return nil
}

func (m *mockController) Available() []string { return []string{Activity} }

func (m *mockController) last() (setCall, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return setCall{}, 0
	}
	return m.calls[len(m.calls)-1], len(m.calls)
}

func (m *mockController) waitFor(t *testing.T, want setCall) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := m.last()
		if got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("last LED call = %+v, want %+v", got, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestManager() (*Manager, *mockController, *events.Bus) {
	ctrl := &mockController{}
	bus := events.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewManager(ctrl, bus, logger), ctrl, bus
}

func TestManager_IdleBlinksStreamingSolid(t *testing.T) {
	mgr, ctrl, bus := newTestManager()
	mgr.Start()
	defer mgr.Stop()

	bus.Publish(events.CardPowerChangedEvent{State: "probed"})
	ctrl.waitFor(t, setCall{Activity, true, PatternBlink})

	bus.Publish(events.LinkStateChangedEvent{Link: "hifi", Active: true, Rate: 48000})
	ctrl.waitFor(t, setCall{Activity, true, PatternSolid})

	bus.Publish(events.LinkStateChangedEvent{Link: "bt-sco", Active: true, Rate: 8000})
	bus.Publish(events.LinkStateChangedEvent{Link: "hifi", Active: false})
	time.Sleep(50 * time.Millisecond)
	if got, _ := ctrl.last(); got.pattern != PatternSolid {
		t.Errorf("one link still streaming, got %+v", got)
	}

	bus.Publish(events.LinkStateChangedEvent{Link: "bt-sco", Active: false})
	ctrl.waitFor(t, setCall{Activity, true, PatternBlink})
}

func TestManager_SuspendTurnsOff(t *testing.T) {
	mgr, ctrl, bus := newTestManager()
	mgr.Start()
	defer mgr.Stop()

	bus.Publish(events.CardPowerChangedEvent{State: "probed"})
	bus.Publish(events.LinkStateChangedEvent{Link: "hifi", Active: true, Rate: 48000})
	ctrl.waitFor(t, setCall{Activity, true, PatternSolid})

	bus.Publish(events.CardPowerChangedEvent{State: "suspended"})
	ctrl.waitFor(t, setCall{Activity, false, PatternNone})

	bus.Publish(events.CardPowerChangedEvent{State: "resumed"})
	ctrl.waitFor(t, setCall{Activity, true, PatternSolid})
}

func TestManager_RemoveForgetsLinks(t *testing.T) {
	mgr, ctrl, bus := newTestManager()
	mgr.Start()
	defer mgr.Stop()

	bus.Publish(events.CardPowerChangedEvent{State: "probed"})
	bus.Publish(events.LinkStateChangedEvent{Link: "spdif", Active: true, Rate: 44100})
	ctrl.waitFor(t, setCall{Activity, true, PatternSolid})

	bus.Publish(events.CardPowerChangedEvent{State: "removed"})
	ctrl.waitFor(t, setCall{Activity, false, PatternNone})

	bus.Publish(events.CardPowerChangedEvent{State: "probed"})
	ctrl.waitFor(t, setCall{Activity, true, PatternBlink})
}

func TestManager_SkipsRedundantWrites(t *testing.T) {
	mgr, ctrl, bus := newTestManager()
	mgr.Start()
	defer mgr.Stop()

	bus.Publish(events.CardPowerChangedEvent{State: "probed"})
	ctrl.waitFor(t, setCall{Activity, true, PatternBlink})
	_, before := ctrl.last()

	bus.Publish(events.LinkStateChangedEvent{Link: "hifi", Active: false})
	time.Sleep(50 * time.Millisecond)
	if _, after := ctrl.last(); after != before {
		t.Errorf("LED rewritten without a state change: %d -> %d calls", before, after)
	}
}

func TestManager_Controller(t *testing.T) {
	mgr, ctrl, _ := newTestManager()
	if got := mgr.Controller(); got != ctrl {
		t.Error("Controller() did not return the original controller")
	}
}
