package led

import "github.com/smazurov/audiocard/internal/logging"

// noop is used on boards without a known activity LED.
type noop struct {
	logger logging.Logger
}

func newNoop(logger logging.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Set(name string, on bool, pattern Pattern) error {
	n.logger.Debug("LED control not available", "led", name, "on", on, "pattern", string(pattern))
	return nil
}

func (n *noop) Available() []string {
	return []string{}
}
