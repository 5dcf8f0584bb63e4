package led

// Pattern is a blink pattern understood by a Controller.
type Pattern string

const (
	PatternNone  Pattern = ""
	PatternSolid Pattern = "solid"
	PatternBlink Pattern = "blink"
)

// Controller drives board LEDs by logical name.
type Controller interface {
	// Set switches an LED. PatternNone leaves the trigger untouched.
	Set(name string, on bool, pattern Pattern) error

	// Available returns the logical LED names, sorted.
	Available() []string
}
