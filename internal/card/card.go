// Package card sequences the lifecycle of the machine: clock, jack switch,
// routing and links are built at probe, torn down in reverse at remove,
// and gated across suspend and resume.
package card

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/audiocard/internal/audioerr"
	"github.com/smazurov/audiocard/internal/board"
	"github.com/smazurov/audiocard/internal/clock"
	"github.com/smazurov/audiocard/internal/dai"
	"github.com/smazurov/audiocard/internal/events"
	"github.com/smazurov/audiocard/internal/jack"
	"github.com/smazurov/audiocard/internal/logging"
	"github.com/smazurov/audiocard/internal/routing"
)

// DefaultSettleDelay is how long resume waits for the codec supplies.
const DefaultSettleDelay = 100 * time.Millisecond

// PowerState is the lifecycle state of the card.
type PowerState string

const (
	PowerRemoved   PowerState = "removed"
	PowerProbed    PowerState = "probed"
	PowerSuspended PowerState = "suspended"
	PowerResumed   PowerState = "resumed"
)

// Running reports whether streams may be started.
func (s PowerState) Running() bool {
	return s == PowerProbed || s == PowerResumed
}

// Hardware is the set of capabilities the card drives.
type Hardware struct {
	Clock        clock.Generator
	Interconnect dai.Interconnect
	Codec        dai.Codec
	BTCodec      dai.Endpoint
	SensePin     jack.SensePin
	Routing      routing.Controller
}

// Config configures a card.
type Config struct {
	Profile     *board.Profile
	Hardware    Hardware
	Bus         jack.Publisher
	SettleDelay time.Duration
}

// Card is the orchestrator. Lifecycle transitions take mu exclusively;
// stream calls share it so links can negotiate concurrently.
type Card struct {
	mu       sync.RWMutex
	profile  *board.Profile
	policies []dai.LinkPolicy
	hw       Hardware
	bus      jack.Publisher
	settle   time.Duration
	logger   *slog.Logger

	power    PowerState
	clock    *clock.Manager
	notify   *jack.NotifyReporter
	routing  *routing.Table
	links    map[string]dai.Link
	streams  map[string]*linkState
	detector *jack.Detector
}

// New validates the configuration. Nothing is touched until Probe.
func New(cfg Config) (*Card, error) {
	if cfg.Profile == nil {
		return nil, audioerr.New(audioerr.ErrMissingPlatformData, "board profile is required", nil)
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	if cfg.Hardware.Clock == nil || cfg.Hardware.SensePin == nil {
		return nil, audioerr.New(audioerr.ErrMissingPlatformData, "clock generator and sense pin are required",
			map[string]any{"board": cfg.Profile.Name})
	}
	policies, err := cfg.Profile.LinkPolicies()
	if err != nil {
		return nil, audioerr.Wrap(audioerr.ErrMissingPlatformData, "link policies", err, nil)
	}
	return &Card{
		profile:  cfg.Profile,
		policies: policies,
		hw:       cfg.Hardware,
		bus:      cfg.Bus,
		settle:   cfg.SettleDelay,
		logger:   logging.GetLogger("card").With("board", cfg.Profile.Name),
		power:    PowerRemoved,
	}, nil
}

// Probe builds the card: clock init, switch registration, routing defaults,
// links, then jack resync. A failure undoes every step already taken.
func (c *Card) Probe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.power != PowerRemoved {
		return audioerr.New(audioerr.ErrInvalidState, "card already probed",
			map[string]any{"power": string(c.power)})
	}

	var undo []func()
	rollback := func(err error) error {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		c.reset()
		c.logger.Error("Card probe failed", "error", err)
		return err
	}

	c.clock = clock.NewManager(c.hw.Clock, nil)
	c.clock.OnChange(c.publishClock)
	if err := c.clock.Init(); err != nil {
		return rollback(err)
	}
	undo = append(undo, c.finiClock)

	if c.profile.NotifyJack() {
		c.notify = jack.NewNotifyReporter(c.bus, c.profile.Jack.Switch)
		if err := c.notify.Register(); err != nil {
			return rollback(err)
		}
		undo = append(undo, c.notify.Unregister)
	}

	table, err := routing.NewTable(c.profile.Routing.Widgets, c.profile.Routing.Routes, c.hw.Routing)
	if err != nil {
		return rollback(audioerr.Wrap(audioerr.ErrMissingPlatformData, "routing table", err, nil))
	}
	c.routing = table
	undo = append(undo, c.releaseRouting)
	if err := table.ApplyDefaults(c.profile.RoutingDefaults()); err != nil {
		return rollback(audioerr.Wrap(audioerr.ErrRegistrationFailed, "apply routing defaults", err, nil))
	}

	deps := dai.Deps{
		Table:        c.profile.Table(),
		Clock:        c.clock,
		Interconnect: c.hw.Interconnect,
		Codec:        c.hw.Codec,
		BTCodec:      c.hw.BTCodec,
		Logger:       logging.GetLogger("dai"),
	}
	c.links = make(map[string]dai.Link, len(c.policies))
	c.streams = make(map[string]*linkState, len(c.policies))
	for _, p := range c.policies {
		link, err := dai.NewLink(p, deps)
		if err != nil {
			return rollback(err)
		}
		c.links[p.Name] = link
		c.streams[p.Name] = &linkState{st: LinkStatus{Name: p.Name, Kind: string(p.Kind), Format: p.Framing().String(), Master: p.IsMaster}}
	}
	undo = append(undo, c.freeLinks)

	var reporter jack.Reporter = jack.NewPinReporter(table)
	if c.notify != nil {
		reporter = c.notify
	}
	c.detector = jack.NewDetector(c.hw.SensePin, reporter, c.profile.JackDetector())
	if err := c.detector.Resync(); err != nil {
		_ = c.detector.Disarm()
		return rollback(err)
	}

	c.power = PowerProbed
	c.logger.Info("Card probed", "links", len(c.links), "jack", c.detector.State().String())
	c.publishPower(nil)
	return nil
}

// Remove tears the card down in reverse probe order, powering down the
// routing pins before the switch and clock are released. Removing a card that
// is not probed is a no-op.
func (c *Card) Remove() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.power == PowerRemoved {
		return nil
	}

	var errs []error
	if err := c.detector.Disarm(); err != nil {
		errs = append(errs, err)
	}
	c.freeLinks()
	if err := c.routing.Release(); err != nil {
		errs = append(errs, err)
	}
	if c.notify != nil {
		c.notify.Unregister()
	}
	if err := c.clock.Fini(); err != nil {
		errs = append(errs, err)
	}
	c.reset()

	err := errors.Join(errs...)
	c.logger.Info("Card removed")
	c.publishPower(err)
	return err
}

// Suspend masks the jack interrupt and then gates the clock. Both steps
// run even if the first fails.
func (c *Card) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.power.Running() {
		return audioerr.New(audioerr.ErrInvalidState, "card is not running",
			map[string]any{"power": string(c.power)})
	}

	var errs []error
	if err := c.detector.Disarm(); err != nil {
		errs = append(errs, err)
	}
	if err := c.clock.Disable(); err != nil {
		errs = append(errs, err)
	}
	c.power = PowerSuspended
	return c.finishTransition("suspend", errs)
}

// Resume waits for the settle delay, ungates the clock and resyncs the jack
// before re-arming its interrupt.
func (c *Card) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.power != PowerSuspended {
		return audioerr.New(audioerr.ErrInvalidState, "card is not suspended",
			map[string]any{"power": string(c.power)})
	}

	if c.settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.settle):
		}
	}

	var errs []error
	if err := c.clock.Enable(); err != nil {
		errs = append(errs, err)
	}
	if err := c.detector.Resync(); err != nil {
		errs = append(errs, err)
	}
	c.power = PowerResumed
	return c.finishTransition("resume", errs)
}

// PollJack re-reads the sense pin outside the interrupt path.
func (c *Card) PollJack() (jack.Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.detector == nil {
		return jack.Status{}, audioerr.New(audioerr.ErrInvalidState, "card is not probed", nil)
	}
	_, err := c.detector.Poll()
	return c.detector.Status(), err
}

func (c *Card) finishTransition(op string, errs []error) error {
	var err error
	if joined := errors.Join(errs...); joined != nil {
		err = audioerr.Wrap(audioerr.ErrPowerTransitionError, op+" incomplete", joined, nil)
		c.logger.Error("Power transition failed", "op", op, "error", joined)
	} else {
		c.logger.Info("Power transition", "op", op, "power", string(c.power))
	}
	c.publishPower(err)
	return err
}

func (c *Card) finiClock() {
	if err := c.clock.Fini(); err != nil {
		c.logger.Warn("Clock release failed during rollback", "error", err)
	}
}

func (c *Card) releaseRouting() {
	if err := c.routing.Release(); err != nil {
		c.logger.Warn("Routing release failed during rollback", "error", err)
	}
}

func (c *Card) freeLinks() {
	for _, p := range c.policies {
		if link, ok := c.links[p.Name]; ok {
			link.HWFree()
		}
	}
}

func (c *Card) reset() {
	c.power = PowerRemoved
	c.clock = nil
	c.notify = nil
	c.routing = nil
	c.links = nil
	c.streams = nil
	c.detector = nil
}

func (c *Card) publishPower(err error) {
	if c.bus == nil {
		return
	}
	ev := events.CardPowerChangedEvent{
		State:     string(c.power),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.bus.Publish(ev)
}

func (c *Card) publishClock(s clock.State) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.ClockStateChangedEvent{
		RequestedRate:  s.RequestedRate,
		ProgrammedMCLK: s.ProgrammedMCLK,
		LockedMCLK:     s.LockedMCLK,
		LockCount:      s.LockCount,
		Timestamp:      time.Now().Format(time.RFC3339),
	})
}
