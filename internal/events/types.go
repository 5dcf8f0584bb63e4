package events

// Event type constants for kelindar/event.
const (
	TypeLinkStateChanged uint32 = iota + 1
	TypeClockStateChanged
	TypeJackStateChanged
	TypeCardPowerChanged
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// LinkStateChangedEvent is published after a successful hw_params and after hw_free.
// Used for LED control and metrics.
type LinkStateChangedEvent struct {
	Link      string `json:"link" example:"hifi" doc:"Link name"`
	Active    bool   `json:"active" example:"true" doc:"Whether the link is streaming"`
	Rate      int    `json:"rate,omitempty" example:"48000" doc:"Sample rate in Hz"`
	MCLK      int    `json:"mclk,omitempty" example:"12288000" doc:"Master clock in Hz"`
	SysClk    int    `json:"sys_clk,omitempty" example:"12288000" doc:"Codec system clock in Hz"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for LinkStateChangedEvent.
func (e LinkStateChangedEvent) Type() uint32 { return TypeLinkStateChanged }

// GetLinkName implements the LinkStateEvent interface for LED manager.
func (e LinkStateChangedEvent) GetLinkName() string {
	return e.Link
}

// IsActive implements the LinkStateEvent interface for LED manager.
func (e LinkStateChangedEvent) IsActive() bool {
	return e.Active
}

// ClockStateChangedEvent is published whenever the shared clock lock count changes.
type ClockStateChangedEvent struct {
	RequestedRate  int    `json:"requested_rate" example:"48000" doc:"Last requested sample rate"`
	ProgrammedMCLK int    `json:"programmed_mclk" example:"12288000" doc:"Generator frequency in Hz"`
	LockedMCLK     int    `json:"locked_mclk" example:"12288000" doc:"Locked frequency, 0 when unlocked"`
	LockCount      int    `json:"lock_count" example:"1" doc:"Number of links holding the clock"`
	Timestamp      string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ClockStateChangedEvent.
func (e ClockStateChangedEvent) Type() uint32 { return TypeClockStateChanged }

// JackStateChangedEvent is the headset switch notification. State carries the
// wired accessory bits: 0 no headset, 1 headset, 2 headset without mic.
type JackStateChangedEvent struct {
	Switch    string `json:"switch" example:"h2w" doc:"Switch device name"`
	State     int    `json:"state" example:"2" doc:"Wired accessory state bits"`
	Present   bool   `json:"present" example:"true" doc:"Whether headphones are plugged in"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for JackStateChangedEvent.
func (e JackStateChangedEvent) Type() uint32 { return TypeJackStateChanged }

// CardPowerChangedEvent is published after every card lifecycle transition.
type CardPowerChangedEvent struct {
	State     string `json:"state" example:"suspended" doc:"Power state: probed, suspended, resumed, removed"`
	Error     string `json:"error,omitempty" doc:"Transition error, if any"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CardPowerChangedEvent.
func (e CardPowerChangedEvent) Type() uint32 { return TypeCardPowerChanged }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"jack" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
