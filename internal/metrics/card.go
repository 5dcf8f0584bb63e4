// Package metrics provides Prometheus metrics for the shared clock, the
// DAI links, the headset jack and card power transitions.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "audiocard"

var (
	clockLockCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "clock",
		Name:      "lock_count",
		Help:      "Number of links holding the shared clock",
	})

	clockLockedMCLK = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "clock",
		Name:      "locked_mclk_hz",
		Help:      "Locked master clock frequency, 0 when unlocked",
	})

	clockProgrammedMCLK = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "clock",
		Name:      "programmed_mclk_hz",
		Help:      "Frequency last written to the clock generator",
	})

	linkActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "active",
		Help:      "1 while the link is streaming",
	}, []string{"link"})

	linkRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "rate_hz",
		Help:      "Sample rate of the running stream",
	}, []string{"link"})

	linkStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "link",
		Name:      "starts_total",
		Help:      "Successful hw_params calls",
	}, []string{"link"})

	jackPresent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "jack",
		Name:      "present",
		Help:      "1 while headphones are plugged in",
	})

	jackChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jack",
		Name:      "changes_total",
		Help:      "Reported jack state changes",
	})

	powerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "card",
		Name:      "power_transitions_total",
		Help:      "Card lifecycle transitions by target state and outcome",
	}, []string{"state", "result"})

	cache   = Snapshot{Links: make(map[string]LinkMetrics)}
	cacheMu sync.RWMutex
)

// LinkMetrics holds current values for one link.
type LinkMetrics struct {
	Active bool `json:"active"`
	Rate   int  `json:"rate"`
	Starts int  `json:"starts"`
}

// Snapshot is the locally cached view of the exported values.
type Snapshot struct {
	LockCount      int                    `json:"lock_count"`
	LockedMCLK     int                    `json:"locked_mclk"`
	ProgrammedMCLK int                    `json:"programmed_mclk"`
	JackPresent    bool                   `json:"jack_present"`
	JackChanges    int                    `json:"jack_changes"`
	Power          string                 `json:"power"`
	Links          map[string]LinkMetrics `json:"links"`
}

// SetClock records the shared clock state.
func SetClock(lockCount, lockedMCLK, programmedMCLK int) {
	clockLockCount.Set(float64(lockCount))
	clockLockedMCLK.Set(float64(lockedMCLK))
	clockProgrammedMCLK.Set(float64(programmedMCLK))

	cacheMu.Lock()
	cache.LockCount, cache.LockedMCLK, cache.ProgrammedMCLK = lockCount, lockedMCLK, programmedMCLK
	cacheMu.Unlock()
}

// SetLinkActive records a link starting (rate > 0) or stopping.
func SetLinkActive(link string, active bool, rate int) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	m := cache.Links[link]
	if active {
		linkActive.WithLabelValues(link).Set(1)
		linkRate.WithLabelValues(link).Set(float64(rate))
		linkStarts.WithLabelValues(link).Inc()
		m.Active, m.Rate = true, rate
		m.Starts++
	} else {
		linkActive.WithLabelValues(link).Set(0)
		linkRate.WithLabelValues(link).Set(0)
		m.Active, m.Rate = false, 0
	}
	cache.Links[link] = m
}

// SetJackPresent records a reported jack state.
func SetJackPresent(present bool) {
	v := 0.0
	if present {
		v = 1
	}
	jackPresent.Set(v)
	jackChanges.Inc()

	cacheMu.Lock()
	cache.JackPresent = present
	cache.JackChanges++
	cacheMu.Unlock()
}

// RecordPowerTransition counts a lifecycle transition.
func RecordPowerTransition(state string, failed bool) {
	result := "ok"
	if failed {
		result = "error"
	}
	powerTransitions.WithLabelValues(state, result).Inc()

	cacheMu.Lock()
	cache.Power = state
	cacheMu.Unlock()
}

// DeleteLinkMetrics removes the series for a link.
func DeleteLinkMetrics(link string) {
	linkActive.DeleteLabelValues(link)
	linkRate.DeleteLabelValues(link)
	linkStarts.DeleteLabelValues(link)

	cacheMu.Lock()
	delete(cache.Links, link)
	cacheMu.Unlock()
}

// Current returns a copy of the cached values.
func Current() Snapshot {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	out := cache
	out.Links = make(map[string]LinkMetrics, len(cache.Links))
	for k, v := range cache.Links {
		out.Links[k] = v
	}
	return out
}
