// Package clock resolves master-clock (MCLK) frequencies for sample rates and owns
// the shared oscillator through a reference-counted lock manager.
package clock

// Entry maps one sample rate to one MCLK frequency that can produce it.
type Entry struct {
	MCLK int `json:"mclk" yaml:"mclk"`
	Rate int `json:"rate" yaml:"rate"`
}

// Table is an immutable, ordered list of MCLK candidates per sample rate.
// Declaration order is the priority order for Candidates.
type Table struct {
	entries []Entry
}

// defaultEntries is the Shuttle board clock table.
var defaultEntries = []Entry{
	// 8k
	{8192000, 8000},
	{12288000, 8000},
	{24576000, 8000},

	// 11.025k
	{11289600, 11025},
	{16934400, 11025},
	{22579200, 11025},

	// 16k
	{12288000, 16000},
	{16384000, 16000},
	{24576000, 16000},

	// 22.05k
	{11289600, 22050},
	{16934400, 22050},
	{22579200, 22050},

	// 32k
	{12288000, 32000},
	{16384000, 32000},
	{24576000, 32000},

	// 44.1k
	{11289600, 44100},
	{22579200, 44100},

	// 48k
	{12288000, 48000},
	{24576000, 48000},
}

// NewTable builds a table from entries. The slice is copied.
func NewTable(entries []Entry) *Table {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Table{entries: cp}
}

// DefaultTable returns the built-in clock table.
func DefaultTable() *Table {
	return NewTable(defaultEntries)
}

// Candidates returns the MCLK values able to produce rate, in table order.
// An empty result means the rate is unsupported.
func (t *Table) Candidates(rate int) []int {
	var out []int
	for _, e := range t.entries {
		if e.Rate == rate {
			out = append(out, e.MCLK)
		}
	}
	return out
}

// Entries returns a copy of all table entries in declaration order.
func (t *Table) Entries() []Entry {
	cp := make([]Entry, len(t.entries))
	copy(cp, t.entries)
	return cp
}

// Rates returns the distinct sample rates in first-appearance order.
func (t *Table) Rates() []int {
	seen := make(map[int]struct{})
	var rates []int
	for _, e := range t.entries {
		if _, ok := seen[e.Rate]; ok {
			continue
		}
		seen[e.Rate] = struct{}{}
		rates = append(rates, e.Rate)
	}
	return rates
}
