package jack

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/smazurov/audiocard/internal/logging"
)

const defaultEdgeTimeout = 500 * time.Millisecond

// GPIOPin is a sense pin on a host GPIO line with edge detection.
type GPIOPin struct {
	pin         gpio.PinIn
	debounce    time.Duration
	edgeTimeout time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// OpenGPIOPin initializes the host drivers and looks up the named line.
func OpenGPIOPin(name string, debounce time.Duration) (*GPIOPin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	if err := p.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure gpio %q: %w", name, err)
	}
	return NewGPIOPin(p, debounce), nil
}

// NewGPIOPin wraps an already configured input pin.
func NewGPIOPin(p gpio.PinIn, debounce time.Duration) *GPIOPin {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &GPIOPin{
		pin:         p,
		debounce:    debounce,
		edgeTimeout: defaultEdgeTimeout,
		logger:      logging.GetLogger("jack").With("gpio", p.Name()),
	}
}

// Read implements SensePin.
func (g *GPIOPin) Read() (bool, error) {
	return g.pin.Read() == gpio.High, nil
}

// EnableInterrupt implements SensePin. Edges are coalesced until the line
// has been quiet for the debounce interval.
func (g *GPIOPin) EnableInterrupt(onEdge func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop != nil {
		return nil
	}
	if err := g.pin.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return fmt.Errorf("enable edge detection: %w", err)
	}

	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	go g.watch(g.stop, g.done, onEdge)
	g.logger.Debug("Sense interrupt enabled", "debounce", g.debounce)
	return nil
}

// DisableInterrupt implements SensePin. It returns once the watcher exits.
func (g *GPIOPin) DisableInterrupt() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stop == nil {
		return nil
	}
	close(g.stop)
	<-g.done
	g.stop, g.done = nil, nil

	if err := g.pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return fmt.Errorf("disable edge detection: %w", err)
	}
	g.logger.Debug("Sense interrupt disabled")
	return nil
}

func (g *GPIOPin) watch(stop <-chan struct{}, done chan<- struct{}, onEdge func()) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		if !g.pin.WaitForEdge(g.edgeTimeout) {
			continue
		}
		for g.pin.WaitForEdge(g.debounce) {
		}

		select {
		case <-stop:
			return
		default:
			onEdge()
		}
	}
}
