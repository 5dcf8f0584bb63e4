package card

import (
	"sync"
	"time"

	"github.com/smazurov/audiocard/internal/audioerr"
	"github.com/smazurov/audiocard/internal/clock"
	"github.com/smazurov/audiocard/internal/dai"
	"github.com/smazurov/audiocard/internal/events"
	"github.com/smazurov/audiocard/internal/jack"
	"github.com/smazurov/audiocard/internal/routing"
)

// LinkStatus is the streaming state of one link.
type LinkStatus struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Format   string `json:"format,omitempty"`
	Master   bool   `json:"master"`
	Active   bool   `json:"active"`
	Holding  bool   `json:"holding_clock"`
	Rate     int    `json:"rate,omitempty"`
	Channels int    `json:"channels,omitempty"`
	MCLK     int    `json:"mclk,omitempty"`
	SysClk   int    `json:"sys_clk,omitempty"`
	Error    string `json:"error,omitempty"`
}

type linkState struct {
	mu sync.Mutex
	st LinkStatus
}

func (s *linkState) snapshot(holding bool) LinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.st
	out.Holding = holding
	return out
}

// Status is a snapshot of the whole card.
type Status struct {
	Board string              `json:"board"`
	Power string              `json:"power"`
	Clock clock.State         `json:"clock"`
	Jack  jack.Status         `json:"jack"`
	Links []LinkStatus        `json:"links"`
	Pins  []routing.PinStatus `json:"pins"`
}

// HWParams starts a stream on the named link.
func (c *Card) HWParams(name string, p dai.Params) (dai.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.power.Running() {
		return dai.Result{}, audioerr.New(audioerr.ErrInvalidState, "card is not running",
			map[string]any{"power": string(c.power), "link": name})
	}
	link, ls, err := c.lookup(name)
	if err != nil {
		return dai.Result{}, err
	}

	res, err := link.HWParams(p)

	ls.mu.Lock()
	if err != nil {
		ls.st.Active = false
		ls.st.Error = err.Error()
	} else {
		ls.st.Active = true
		ls.st.Error = ""
		ls.st.Rate, ls.st.Channels = p.Rate, p.Channels
		ls.st.MCLK, ls.st.SysClk = res.MCLK, res.SysClk
	}
	ls.mu.Unlock()

	if err != nil {
		c.logger.Error("hw_params failed", "link", name, "srate", p.Rate, "error", err)
		return dai.Result{}, err
	}
	c.publishLink(name, true, p.Rate, res)
	return res, nil
}

// HWFree stops the stream on the named link. It is safe after a failed
// HWParams and when called repeatedly.
func (c *Card) HWFree(name string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.power == PowerRemoved {
		return audioerr.New(audioerr.ErrInvalidState, "card is not probed",
			map[string]any{"link": name})
	}
	link, ls, err := c.lookup(name)
	if err != nil {
		return err
	}

	link.HWFree()

	ls.mu.Lock()
	wasActive := ls.st.Active
	ls.st.Active = false
	ls.st.Rate, ls.st.Channels, ls.st.MCLK, ls.st.SysClk = 0, 0, 0, 0
	ls.mu.Unlock()

	if wasActive {
		c.publishLink(name, false, 0, dai.Result{})
	}
	return nil
}

// Status returns a snapshot of the card.
func (c *Card) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{Board: c.profile.Name, Power: string(c.power)}
	if c.power == PowerRemoved {
		return s
	}
	s.Clock = c.clock.State()
	s.Jack = c.detector.Status()
	s.Pins = c.routing.Pins()
	for _, p := range c.policies {
		s.Links = append(s.Links, c.streams[p.Name].snapshot(c.links[p.Name].Holding()))
	}
	return s
}

// Links returns the configured link names in profile order.
func (c *Card) Links() []string {
	names := make([]string, 0, len(c.policies))
	for _, p := range c.policies {
		names = append(names, p.Name)
	}
	return names
}

// Power returns the lifecycle state.
func (c *Card) Power() PowerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.power
}

func (c *Card) lookup(name string) (dai.Link, *linkState, error) {
	link, ok := c.links[name]
	if !ok {
		return nil, nil, audioerr.New(audioerr.ErrUnknownLink, "no such link",
			map[string]any{"link": name})
	}
	return link, c.streams[name], nil
}

func (c *Card) publishLink(name string, active bool, rate int, res dai.Result) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.LinkStateChangedEvent{
		Link:      name,
		Active:    active,
		Rate:      rate,
		MCLK:      res.MCLK,
		SysClk:    res.SysClk,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
