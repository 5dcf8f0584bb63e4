package systemd

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/login1"
	godbus "github.com/godbus/dbus/v5"

	"github.com/smazurov/audiocard/internal/logging"
)

const prepareForSleep = "org.freedesktop.login1.Manager.PrepareForSleep"

// PowerTarget is what the sleep monitor suspends and resumes.
type PowerTarget interface {
	Suspend() error
	Resume(ctx context.Context) error
}

// logind is the subset of login1.Conn the monitor uses.
type logind interface {
	Inhibit(what, who, why, mode string) (*os.File, error)
	Subscribe(members ...string) chan *godbus.Signal
	Close()
}

// SleepMonitor suspends the card before the host sleeps and resumes it on
// wake. A logind delay inhibitor holds the host until suspend has run.
type SleepMonitor struct {
	conn   logind
	target PowerTarget
	logger logging.Logger

	mu    sync.Mutex
	lock  *os.File
	stop  context.CancelFunc
	done  chan struct{}
	sleep bool
}

// NewSleepMonitor connects to logind on the system bus.
func NewSleepMonitor(target PowerTarget, logger logging.Logger) (*SleepMonitor, error) {
	conn, err := login1.New()
	if err != nil {
		return nil, err
	}
	return newSleepMonitor(conn, target, logger), nil
}

func newSleepMonitor(conn logind, target PowerTarget, logger logging.Logger) *SleepMonitor {
	return &SleepMonitor{conn: conn, target: target, logger: logger}
}

// Start takes the inhibitor and begins listening for PrepareForSleep.
func (s *SleepMonitor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("sleep monitor already started")
	}
	if err := s.inhibitLocked(); err != nil {
		return err
	}
	signals := s.conn.Subscribe("PrepareForSleep")

	ctx, s.stop = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, signals)
	s.logger.Info("Sleep monitor started")
	return nil
}

// Stop ends the loop, releases the inhibitor and closes the connection.
func (s *SleepMonitor) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done

	s.mu.Lock()
	s.releaseLocked()
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	s.conn.Close()
}

func (s *SleepMonitor) run(ctx context.Context, signals <-chan *godbus.Signal) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig.Name != prepareForSleep || len(sig.Body) == 0 {
				continue
			}
			if entering, ok := sig.Body[0].(bool); ok {
				s.handle(ctx, entering)
			}
		}
	}
}

func (s *SleepMonitor) handle(ctx context.Context, entering bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entering == s.sleep {
		return
	}
	s.sleep = entering

	if entering {
		s.logger.Info("Host preparing for sleep, suspending card")
		if err := s.target.Suspend(); err != nil {
			s.logger.Error("Card suspend before sleep failed", "error", err)
		}
		s.releaseLocked()
		return
	}

	s.logger.Info("Host woke up, resuming card")
	if err := s.target.Resume(ctx); err != nil {
		s.logger.Error("Card resume after sleep failed", "error", err)
	}
	if err := s.inhibitLocked(); err != nil {
		s.logger.Warn("Failed to retake sleep inhibitor", "error", err)
	}
}

func (s *SleepMonitor) inhibitLocked() error {
	if s.lock != nil {
		return nil
	}
	f, err := s.conn.Inhibit("sleep", "audiocard", "Gate audio clocks before sleep", "delay")
	if err != nil {
		return err
	}
	s.lock = f
	return nil
}

func (s *SleepMonitor) releaseLocked() {
	if s.lock == nil {
		return
	}
	if err := s.lock.Close(); err != nil {
		s.logger.Warn("Failed to release sleep inhibitor", "error", err)
	}
	s.lock = nil
}

// Inhibited reports whether the delay lock is held.
func (s *SleepMonitor) Inhibited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock != nil
}
