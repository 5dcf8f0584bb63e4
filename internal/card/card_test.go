package card

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/audiocard/internal/audioerr"
	"github.com/smazurov/audiocard/internal/board"
	"github.com/smazurov/audiocard/internal/dai"
	"github.com/smazurov/audiocard/internal/events"
	"github.com/smazurov/audiocard/internal/jack"
	"github.com/smazurov/audiocard/internal/routing"
	"github.com/smazurov/audiocard/internal/sim"
)

type rig struct {
	gen   *sim.Generator
	cpu   *sim.Endpoint
	codec *sim.Endpoint
	bt    *sim.Endpoint
	pin   *sim.SensePin
}

func newRig(present bool) *rig {
	return &rig{
		gen:   sim.NewGenerator(),
		cpu:   sim.NewEndpoint("das"),
		codec: sim.NewEndpoint("alc5624"),
		bt:    sim.NewEndpoint("bt"),
		pin:   sim.NewSensePin(present),
	}
}

func (r *rig) hardware(ctrl routing.Controller) Hardware {
	return Hardware{
		Clock:        r.gen,
		Interconnect: r.cpu,
		Codec:        r.codec,
		BTCodec:      r.bt,
		SensePin:     r.pin,
		Routing:      ctrl,
	}
}

func notifyProfile() *board.Profile {
	p := board.Shuttle()
	p.Jack.Reporter = board.ReporterNotify
	return p
}

func newCard(t *testing.T, r *rig, profile *board.Profile, bus jack.Publisher) *Card {
	t.Helper()
	c, err := New(Config{Profile: profile, Hardware: r.hardware(nil), Bus: bus})
	require.NoError(t, err)
	return c
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		var zero T
		t.Fatalf("timed out waiting for %T", zero)
		return zero
	}
}

type failingController struct {
	mu    sync.Mutex
	fail  string
	calls int
	last  map[string]bool
}

func (f *failingController) SetPin(name string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if name == f.fail {
		return errors.New("mixer write failed")
	}
	if f.last == nil {
		f.last = make(map[string]bool)
	}
	f.last[name] = on
	return nil
}

func (f *failingController) failOn(name string) {
	f.mu.Lock()
	f.fail = name
	f.mu.Unlock()
}

// powered returns the pins whose last pushed value is on.
func (f *failingController) powered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name, on := range f.last {
		if on {
			out = append(out, name)
		}
	}
	return out
}

func (f *failingController) pin(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last[name]
}

func TestNew_MissingPlatformData(t *testing.T) {
	r := newRig(false)

	_, err := New(Config{Hardware: r.hardware(nil)})
	assert.True(t, audioerr.Is(err, audioerr.ErrMissingPlatformData))

	bad := board.Shuttle()
	bad.Jack.Pin = ""
	_, err = New(Config{Profile: bad, Hardware: r.hardware(nil)})
	assert.True(t, audioerr.Is(err, audioerr.ErrMissingPlatformData))

	hw := r.hardware(nil)
	hw.SensePin = nil
	_, err = New(Config{Profile: board.Shuttle(), Hardware: hw})
	assert.True(t, audioerr.Is(err, audioerr.ErrMissingPlatformData))
}

func TestProbe_AppliesDefaultsAndJackState(t *testing.T) {
	r := newRig(false)
	c := newCard(t, r, board.Shuttle(), nil)

	require.NoError(t, c.Probe())
	assert.Equal(t, PowerProbed, c.Power())
	assert.True(t, r.gen.Enabled())
	assert.True(t, r.pin.Armed())

	st := c.Status()
	assert.Equal(t, "shuttle", st.Board)
	assert.True(t, st.Clock.Enabled)
	assert.Equal(t, "absent", st.Jack.State)
	require.Len(t, st.Links, 3)
	assert.Equal(t, "i2s|cbs_cfs", st.Links[0].Format)

	pins := map[string]routing.PinStatus{}
	for _, p := range st.Pins {
		pins[p.Name] = p
	}
	assert.True(t, pins[routing.PinInternalSpeaker].Powered)
	assert.False(t, pins[routing.PinHeadphoneJack].Powered)
	assert.True(t, pins[routing.PinMicBias2].Forced)
	assert.True(t, pins["LINEL"].NotConnected)

	err := c.Probe()
	assert.True(t, audioerr.Is(err, audioerr.ErrInvalidState))
}

func TestProbe_RollbackOnEachStep(t *testing.T) {
	t.Run("clock init", func(t *testing.T) {
		r := newRig(false)
		r.gen.FailWith(errors.New("i2c nak"))
		c := newCard(t, r, board.Shuttle(), nil)

		err := c.Probe()
		assert.True(t, audioerr.Is(err, audioerr.ErrClockHardware))
		assert.Equal(t, PowerRemoved, c.Power())

		r.gen.FailWith(nil)
		require.NoError(t, c.Probe(), "card can be probed again after a failure")
	})

	t.Run("switch registration", func(t *testing.T) {
		r := newRig(false)
		c := newCard(t, r, notifyProfile(), nil)

		err := c.Probe()
		assert.True(t, audioerr.Is(err, audioerr.ErrRegistrationFailed))
		assert.False(t, r.gen.Enabled(), "clock released")
		assert.Equal(t, PowerRemoved, c.Power())
	})

	t.Run("routing defaults", func(t *testing.T) {
		r := newRig(false)
		bus := events.New()
		ctrl := &failingController{fail: routing.PinMicBias2}
		c, err := New(Config{Profile: notifyProfile(), Hardware: r.hardware(ctrl), Bus: bus})
		require.NoError(t, err)

		err = c.Probe()
		assert.True(t, audioerr.Is(err, audioerr.ErrRegistrationFailed))
		assert.False(t, r.gen.Enabled())

		assert.Empty(t, ctrl.powered(), "pins pushed before the failure are powered down")

		// The switch was unregistered, so a second probe can register it again.
		ctrl.failOn("")
		require.NoError(t, c.Probe())
	})

	t.Run("link construction", func(t *testing.T) {
		r := newRig(false)
		ctrl := &failingController{}
		hw := r.hardware(ctrl)
		hw.Codec = nil
		c, err := New(Config{Profile: board.Shuttle(), Hardware: hw})
		require.NoError(t, err)

		err = c.Probe()
		assert.True(t, audioerr.Is(err, audioerr.ErrMissingPlatformData))
		assert.False(t, r.gen.Enabled())
		assert.Empty(t, ctrl.powered(), "routing defaults undone")
	})

	t.Run("jack resync", func(t *testing.T) {
		r := newRig(false)
		c := newCard(t, r, board.Shuttle(), nil)
		c.hw.SensePin = brokenPin{}

		require.Error(t, c.Probe())
		assert.False(t, r.gen.Enabled())
		assert.Equal(t, PowerRemoved, c.Power())
	})
}

type brokenPin struct{}

func (brokenPin) Read() (bool, error)          { return false, errors.New("gpio gone") }
func (brokenPin) EnableInterrupt(func()) error { return nil }
func (brokenPin) DisableInterrupt() error      { return nil }

func TestHWParams_SharedClock(t *testing.T) {
	r := newRig(false)
	c := newCard(t, r, board.Shuttle(), nil)
	require.NoError(t, c.Probe())

	res, err := c.HWParams("hifi", dai.Params{Rate: 48000, Channels: 2})
	require.NoError(t, err)
	assert.Equal(t, 12288000, res.MCLK)
	assert.Equal(t, 12288000, r.codec.Snapshot().Sysclk)
	assert.Equal(t, [][2]int{{1, 1}}, r.cpu.Snapshot().Paths)

	res, err = c.HWParams("bt-sco", dai.Params{Rate: 16000, Channels: 1})
	require.NoError(t, err)
	assert.Equal(t, 12288000, res.MCLK)
	assert.Equal(t, 1024000, res.MinMCLK)
	assert.Equal(t, 1, r.gen.Writes(), "bt-sco reused the locked clock")

	_, err = c.HWParams("spdif", dai.Params{Rate: 44100, Channels: 2})
	assert.True(t, audioerr.Is(err, audioerr.ErrClockBusy))

	st := c.Status()
	assert.Equal(t, 2, st.Clock.LockCount)
	assert.True(t, st.Links[0].Active)
	assert.True(t, st.Links[1].Holding)
	assert.False(t, st.Links[2].Active)
	assert.NotEmpty(t, st.Links[2].Error)

	require.NoError(t, c.HWFree("spdif"))
	require.NoError(t, c.HWFree("hifi"))
	require.NoError(t, c.HWFree("hifi"))
	assert.Equal(t, 1, c.Status().Clock.LockCount)

	require.NoError(t, c.HWFree("bt-sco"))
	st = c.Status()
	assert.Equal(t, 0, st.Clock.LockCount)
	assert.Equal(t, 0, st.Clock.LockedMCLK)

	res, err = c.HWParams("spdif", dai.Params{Rate: 44100, Channels: 2})
	require.NoError(t, err)
	assert.Equal(t, 11289600, res.MCLK)
	assert.Equal(t, 5644800, res.MinMCLK)
}

func TestHWParams_UnknownLinkAndState(t *testing.T) {
	r := newRig(false)
	c := newCard(t, r, board.Shuttle(), nil)

	_, err := c.HWParams("hifi", dai.Params{Rate: 48000})
	assert.True(t, audioerr.Is(err, audioerr.ErrInvalidState))
	assert.True(t, audioerr.Is(c.HWFree("hifi"), audioerr.ErrInvalidState))

	require.NoError(t, c.Probe())
	_, err = c.HWParams("hdmi", dai.Params{Rate: 48000})
	assert.True(t, audioerr.Is(err, audioerr.ErrUnknownLink))
	assert.True(t, audioerr.Is(c.HWFree("hdmi"), audioerr.ErrUnknownLink))

	require.NoError(t, c.Suspend())
	_, err = c.HWParams("hifi", dai.Params{Rate: 48000})
	assert.True(t, audioerr.Is(err, audioerr.ErrInvalidState))
	assert.NoError(t, c.HWFree("hifi"))
}

func TestHWParams_ConcurrentLinks(t *testing.T) {
	r := newRig(false)
	c := newCard(t, r, board.Shuttle(), nil)
	require.NoError(t, c.Probe())

	var wg sync.WaitGroup
	for range 50 {
		for _, l := range []struct {
			name string
			rate int
		}{{"hifi", 48000}, {"bt-sco", 8000}} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.HWParams(l.name, dai.Params{Rate: l.rate, Channels: 2}); err == nil {
					_ = c.HWFree(l.name)
				}
			}()
		}
	}
	wg.Wait()

	st := c.Status().Clock
	assert.Equal(t, 0, st.LockCount)
	assert.Equal(t, 0, st.LockedMCLK)
}

func TestSuspendResume_ResyncsJack(t *testing.T) {
	r := newRig(true)
	bus := events.New()
	jackEvents := make(chan events.JackStateChangedEvent, 8)
	defer bus.Subscribe(func(e events.JackStateChangedEvent) { jackEvents <- e })()
	power := make(chan events.CardPowerChangedEvent, 8)
	defer bus.Subscribe(func(e events.CardPowerChangedEvent) { power <- e })()

	c := newCard(t, r, notifyProfile(), bus)
	require.NoError(t, c.Probe())
	assert.Equal(t, "probed", recv(t, power).State)
	ev := recv(t, jackEvents)
	assert.True(t, ev.Present)
	assert.Equal(t, jack.HeadsetNoMic, ev.State)

	require.NoError(t, c.Suspend())
	assert.Equal(t, "suspended", recv(t, power).State)
	assert.False(t, r.gen.Enabled())
	assert.False(t, r.pin.Armed())

	r.pin.Set(false)

	require.NoError(t, c.Resume(context.Background()))
	assert.Equal(t, "resumed", recv(t, power).State)
	assert.True(t, r.gen.Enabled())
	assert.True(t, r.pin.Armed())

	ev = recv(t, jackEvents)
	assert.False(t, ev.Present)
	assert.Equal(t, jack.NoHeadset, ev.State)
	assert.Equal(t, "absent", c.Status().Jack.State)

	select {
	case extra := <-jackEvents:
		t.Fatalf("unexpected jack event %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSuspendResume_PinReporterRouting(t *testing.T) {
	r := newRig(false)
	c := newCard(t, r, board.Shuttle(), nil)
	require.NoError(t, c.Probe())

	r.pin.Set(true)
	r.pin.Flush()
	hp, _ := c.routing.Pin(routing.PinHeadphoneJack)
	assert.True(t, hp.Powered)

	require.NoError(t, c.Suspend())
	r.pin.Set(false)
	require.NoError(t, c.Resume(context.Background()))

	spk, _ := c.routing.Pin(routing.PinInternalSpeaker)
	hp, _ = c.routing.Pin(routing.PinHeadphoneJack)
	assert.True(t, spk.Powered)
	assert.False(t, hp.Powered)
}

func TestResume_RoutingFailureKeepsJackArmed(t *testing.T) {
	r := newRig(false)
	ctrl := &failingController{}
	c, err := New(Config{Profile: board.Shuttle(), Hardware: r.hardware(ctrl)})
	require.NoError(t, err)
	require.NoError(t, c.Probe())
	require.NoError(t, c.Suspend())

	// Headphones plugged while asleep, and the mixer rejects the speaker write.
	r.pin.Set(true)
	ctrl.failOn(routing.PinInternalSpeaker)

	err = c.Resume(context.Background())
	assert.True(t, audioerr.Is(err, audioerr.ErrPowerTransitionError))
	assert.True(t, r.pin.Armed(), "sense interrupt re-armed despite the failed report")
	assert.True(t, c.Status().Jack.Armed)
	assert.Equal(t, "absent", c.Status().Jack.State, "unreported change is not committed")

	ctrl.failOn("")
	r.pin.Set(false)
	r.pin.Set(true)
	r.pin.Flush()

	assert.Equal(t, "present", c.Status().Jack.State)
	assert.True(t, ctrl.pin(routing.PinHeadphoneJack))
	assert.False(t, ctrl.pin(routing.PinInternalSpeaker))
}

func TestPollJack_RetriesFailedReport(t *testing.T) {
	r := newRig(false)
	ctrl := &failingController{}
	c, err := New(Config{Profile: board.Shuttle(), Hardware: r.hardware(ctrl)})
	require.NoError(t, err)
	require.NoError(t, c.Probe())

	ctrl.failOn(routing.PinInternalSpeaker)
	r.pin.Set(true)
	r.pin.Flush()
	assert.Equal(t, "absent", c.Status().Jack.State)
	assert.True(t, ctrl.pin(routing.PinInternalSpeaker))

	ctrl.failOn("")
	st, err := c.PollJack()
	require.NoError(t, err)
	assert.Equal(t, "present", st.State)
	assert.False(t, ctrl.pin(routing.PinInternalSpeaker))
	assert.True(t, ctrl.pin(routing.PinHeadphoneJack))
}

func TestSuspend_KeepsClockLock(t *testing.T) {
	r := newRig(false)
	c := newCard(t, r, board.Shuttle(), nil)
	require.NoError(t, c.Probe())
	_, err := c.HWParams("hifi", dai.Params{Rate: 44100, Channels: 2})
	require.NoError(t, err)

	require.NoError(t, c.Suspend())
	st := c.Status().Clock
	assert.False(t, st.Enabled)
	assert.Equal(t, 11289600, st.LockedMCLK)

	require.NoError(t, c.Resume(context.Background()))
	assert.Equal(t, 1, c.Status().Clock.LockCount)
}

func TestPowerTransitions_InvalidState(t *testing.T) {
	r := newRig(false)
	c := newCard(t, r, board.Shuttle(), nil)

	assert.True(t, audioerr.Is(c.Suspend(), audioerr.ErrInvalidState))
	assert.True(t, audioerr.Is(c.Resume(context.Background()), audioerr.ErrInvalidState))

	require.NoError(t, c.Probe())
	assert.True(t, audioerr.Is(c.Resume(context.Background()), audioerr.ErrInvalidState))

	require.NoError(t, c.Suspend())
	assert.True(t, audioerr.Is(c.Suspend(), audioerr.ErrInvalidState))
}

func TestResume_FailureIsReported(t *testing.T) {
	r := newRig(false)
	c := newCard(t, r, board.Shuttle(), nil)
	require.NoError(t, c.Probe())
	require.NoError(t, c.Suspend())

	r.gen.FailWith(errors.New("i2c nak"))
	err := c.Resume(context.Background())
	assert.True(t, audioerr.Is(err, audioerr.ErrPowerTransitionError))
	assert.Equal(t, PowerResumed, c.Power())
	assert.True(t, r.pin.Armed(), "jack resync still runs")
}

func TestResume_SettleDelayHonorsContext(t *testing.T) {
	r := newRig(false)
	c, err := New(Config{Profile: board.Shuttle(), Hardware: r.hardware(nil), SettleDelay: time.Hour})
	require.NoError(t, err)
	require.NoError(t, c.Probe())
	require.NoError(t, c.Suspend())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Resume(ctx), context.Canceled)
	assert.Equal(t, PowerSuspended, c.Power())
}

func TestRemove_ReleasesEverything(t *testing.T) {
	r := newRig(false)
	bus := events.New()
	links := make(chan events.LinkStateChangedEvent, 8)
	defer bus.Subscribe(func(e events.LinkStateChangedEvent) { links <- e })()
	clocks := make(chan events.ClockStateChangedEvent, 8)
	defer bus.Subscribe(func(e events.ClockStateChangedEvent) { clocks <- e })()

	ctrl := &failingController{}
	c, err := New(Config{Profile: board.Shuttle(), Hardware: r.hardware(ctrl), Bus: bus})
	require.NoError(t, err)
	require.NoError(t, c.Probe())
	require.NotEmpty(t, ctrl.powered())

	_, err = c.HWParams("hifi", dai.Params{Rate: 48000, Channels: 2})
	require.NoError(t, err)
	ev := recv(t, links)
	assert.Equal(t, "hifi", ev.Link)
	assert.True(t, ev.Active)
	assert.Equal(t, 1, recv(t, clocks).LockCount)

	require.NoError(t, c.Remove())
	assert.Equal(t, PowerRemoved, c.Power())
	assert.False(t, r.gen.Enabled())
	assert.Empty(t, ctrl.powered(), "routing pins powered down")
	assert.False(t, r.pin.Armed())
	assert.Equal(t, 0, recv(t, clocks).LockCount)

	require.NoError(t, c.Remove())
	assert.Equal(t, Status{Board: "shuttle", Power: "removed"}, c.Status())
}
