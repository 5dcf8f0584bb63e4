package systemd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogind struct {
	mu       sync.Mutex
	signals  chan *godbus.Signal
	inhibits int
	open     []*os.File
	failNext error
	closed   bool
}

func newFakeLogind() *fakeLogind {
	return &fakeLogind{signals: make(chan *godbus.Signal, 4)}
}

func (f *fakeLogind) Inhibit(what, who, why, mode string) (*os.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	if what != "sleep" || mode != "delay" {
		return nil, errors.New("unexpected inhibitor")
	}
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	w.Close()
	f.inhibits++
	f.open = append(f.open, r)
	return r, nil
}

func (f *fakeLogind) Subscribe(members ...string) chan *godbus.Signal {
	return f.signals
}

func (f *fakeLogind) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeLogind) inhibitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inhibits
}

func (f *fakeLogind) send(entering bool) {
	f.signals <- &godbus.Signal{Name: prepareForSleep, Body: []any{entering}}
}

type recordingTarget struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingTarget) Suspend() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "suspend")
	return r.err
}

func (r *recordingTarget) Resume(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "resume")
	return r.err
}

func (r *recordingTarget) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSleepMonitor_SuspendAndResume(t *testing.T) {
	conn := newFakeLogind()
	target := &recordingTarget{}
	mon := newSleepMonitor(conn, target, quietLogger())

	require.NoError(t, mon.Start(context.Background()))
	defer mon.Stop()
	assert.True(t, mon.Inhibited())

	conn.send(true)
	require.Eventually(t, func() bool { return !mon.Inhibited() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"suspend"}, target.Calls())

	conn.send(true)
	conn.send(false)
	require.Eventually(t, mon.Inhibited, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"suspend", "resume"}, target.Calls())
	assert.Equal(t, 2, conn.inhibitCount())
}

func TestSleepMonitor_ReleasesInhibitorWhenSuspendFails(t *testing.T) {
	conn := newFakeLogind()
	target := &recordingTarget{err: errors.New("clock gate failed")}
	mon := newSleepMonitor(conn, target, quietLogger())

	require.NoError(t, mon.Start(context.Background()))
	defer mon.Stop()

	conn.send(true)
	require.Eventually(t, func() bool { return !mon.Inhibited() }, 2*time.Second, 5*time.Millisecond)
}

func TestSleepMonitor_IgnoresOtherSignals(t *testing.T) {
	conn := newFakeLogind()
	target := &recordingTarget{}
	mon := newSleepMonitor(conn, target, quietLogger())

	require.NoError(t, mon.Start(context.Background()))
	conn.signals <- &godbus.Signal{Name: "org.freedesktop.login1.Manager.SessionNew", Body: []any{"c1"}}
	conn.signals <- &godbus.Signal{Name: prepareForSleep}
	conn.send(false)
	time.Sleep(50 * time.Millisecond)
	mon.Stop()

	assert.Empty(t, target.Calls())
	assert.False(t, mon.Inhibited())
	assert.True(t, conn.closed)
}

func TestSleepMonitor_StartErrors(t *testing.T) {
	conn := newFakeLogind()
	conn.failNext = errors.New("access denied")
	mon := newSleepMonitor(conn, &recordingTarget{}, quietLogger())

	require.Error(t, mon.Start(context.Background()))

	require.NoError(t, mon.Start(context.Background()))
	defer mon.Stop()
	require.Error(t, mon.Start(context.Background()))
}
