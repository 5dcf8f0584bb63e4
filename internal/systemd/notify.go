// Package systemd integrates the daemon with the service manager: readiness
// and watchdog notifications, logind sleep hooks, and companion units.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/audiocard/internal/logging"
)

// Notifier sends sd_notify messages. Outside systemd every call is a no-op.
type Notifier struct {
	logger logging.Logger
	notify func(unsetEnv bool, state string) (bool, error)
	period func(unsetEnv bool) (time.Duration, error)
}

// NewNotifier creates a notifier backed by $NOTIFY_SOCKET.
func NewNotifier(logger logging.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		notify: daemon.SdNotify,
		period: daemon.SdWatchdogEnabled,
	}
}

// Ready reports that the card is probed and the API is listening.
func (n *Notifier) Ready() { n.send(daemon.SdNotifyReady) }

// Stopping reports the start of shutdown.
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

// Reloading brackets a configuration reload; follow it with Ready.
func (n *Notifier) Reloading() { n.send(daemon.SdNotifyReloading) }

// Watchdog pings the service manager at half the configured interval until
// ctx is done. It returns immediately when no watchdog is configured.
func (n *Notifier) Watchdog(ctx context.Context) {
	interval, err := n.period(false)
	if err != nil {
		n.logger.Warn("Failed to read watchdog interval", "error", err)
		return
	}
	if interval <= 0 {
		return
	}
	n.logger.Info("Systemd watchdog enabled", "interval", interval)

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(false, state)
	switch {
	case err != nil:
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
	case sent:
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
