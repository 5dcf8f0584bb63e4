// Package collectors feeds card events into the metrics package.
package collectors

import (
	"sync"

	"github.com/smazurov/audiocard/internal/events"
	"github.com/smazurov/audiocard/internal/logging"
	"github.com/smazurov/audiocard/internal/metrics"
)

// Subscriber is the subset of the event bus the collector needs.
type Subscriber interface {
	Subscribe(handler any) func()
}

// EventCollector mirrors bus events into Prometheus series.
type EventCollector struct {
	bus    Subscriber
	logger logging.Logger

	mu     sync.Mutex
	unsubs []func()
}

// NewEventCollector creates a collector for bus.
func NewEventCollector(bus Subscriber) *EventCollector {
	return &EventCollector{
		bus:    bus,
		logger: logging.GetLogger("metrics"),
	}
}

// Start subscribes to clock, link, jack and power events.
func (c *EventCollector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubs != nil {
		return
	}
	c.unsubs = []func(){
		c.bus.Subscribe(c.onClock),
		c.bus.Subscribe(c.onLink),
		c.bus.Subscribe(c.onJack),
		c.bus.Subscribe(c.onPower),
	}
	c.logger.Info("Metrics collection started")
}

// Stop unsubscribes. It is safe to call more than once.
func (c *EventCollector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
}

func (c *EventCollector) onClock(e events.ClockStateChangedEvent) {
	metrics.SetClock(e.LockCount, e.LockedMCLK, e.ProgrammedMCLK)
}

func (c *EventCollector) onLink(e events.LinkStateChangedEvent) {
	metrics.SetLinkActive(e.Link, e.Active, e.Rate)
}

func (c *EventCollector) onJack(e events.JackStateChangedEvent) {
	metrics.SetJackPresent(e.Present)
}

func (c *EventCollector) onPower(e events.CardPowerChangedEvent) {
	if e.Error != "" {
		c.logger.Debug("Power transition recorded with error", "state", e.State, "error", e.Error)
	}
	metrics.RecordPowerTransition(e.State, e.Error != "")
}
