package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/audiocard/internal/logging"
	"github.com/smazurov/audiocard/internal/version"
)

// restartDelay lets the API response reach the client before the restart.
const restartDelay = 500 * time.Millisecond

// Service checks for and applies releases.
type Service struct {
	source     Source
	backup     *backupManager
	executable func() (string, error)
	restart    func()
	current    func() string

	mu          sync.RWMutex
	state       State
	latest      *Release
	lastChecked *time.Time
	lastError   error

	enabled        bool
	disabledReason string

	logger *slog.Logger
}

// NewService creates the update service. A binary in a read-only location
// yields a disabled service rather than an error.
func NewService(opts Options) (*Service, error) {
	source, err := NewGitHubSource(opts.Repository, opts.Prerelease)
	if err != nil {
		return nil, err
	}
	return newService(source, opts, ExecutablePath), nil
}

func newService(source Source, opts Options, executable func() (string, error)) *Service {
	s := &Service{
		source:     source,
		executable: executable,
		restart:    opts.Restart,
		current:    func() string { return version.Version },
		state:      StateIdle,
		logger:     logging.GetLogger("updater"),
	}

	if ok, reason := s.checkWritePermission(); !ok {
		s.logger.Warn("Update service disabled", "reason", reason)
		s.disabledReason = reason
		return s
	}
	s.enabled = true

	dir := opts.BackupDir
	if dir == "" {
		var err error
		if dir, err = defaultBackupDir(); err != nil {
			s.logger.Warn("Backups disabled", "error", err)
			return s
		}
	}
	backup, err := newBackupManager(dir, s.logger)
	if err != nil {
		s.logger.Warn("Failed to create backup manager", "error", err)
		return s
	}
	s.backup = backup
	return s
}

func (s *Service) checkWritePermission() (bool, string) {
	exe, err := s.executable()
	if err != nil {
		return false, fmt.Sprintf("failed to get executable path: %v", err)
	}
	dir := filepath.Dir(exe)

	tmp := filepath.Join(dir, ".audiocard.update.test")
	f, err := os.Create(tmp)
	if err != nil {
		return false, fmt.Sprintf("no write permission to %s: %v", dir, err)
	}
	f.Close()
	os.Remove(tmp)
	return true, ""
}

// Enabled reports whether updates can be applied.
func (s *Service) Enabled() bool {
	return s.enabled
}

// DisabledReason is empty when the service is enabled.
func (s *Service) DisabledReason() string {
	return s.disabledReason
}

// Check asks the source for the latest release without downloading it.
func (s *Service) Check(ctx context.Context) (*UpdateInfo, error) {
	if !s.enabled {
		return nil, newError(CodeDisabled, s.disabledReason, nil)
	}
	if !s.transitionTo(StateChecking, StateIdle, StateAvailable, StateError, StateRolledBack) {
		return nil, newError(CodeInvalidState,
			fmt.Sprintf("cannot check for updates in state %s", s.getState()), nil)
	}

	current := s.current()
	rel, found, err := s.source.Latest(ctx, current)
	now := time.Now()
	s.mu.Lock()
	s.lastChecked = &now
	s.mu.Unlock()

	if err != nil {
		s.setError(err)
		return nil, newError(CodeCheckFailed, "failed to check for updates", err)
	}
	if !found {
		s.setError(fmt.Errorf("repository not found or has no releases"))
		return nil, newError(CodeNotFound, "repository not found or has no releases", nil)
	}

	info := &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   rel.Version,
		UpdateAvailable: rel.Newer,
	}
	if !rel.Newer {
		s.transitionTo(StateIdle)
		return info, nil
	}

	s.mu.Lock()
	s.latest = &rel
	s.mu.Unlock()
	s.transitionTo(StateAvailable)

	info.ReleaseNotes = rel.Notes
	info.ReleaseURL = rel.URL
	info.PublishedAt = rel.PublishedAt
	info.AssetSize = rel.AssetSize
	return info, nil
}

// Apply installs the latest release over the running binary, keeping a
// backup first, then schedules a restart. A failed install is rolled back.
func (s *Service) Apply(ctx context.Context) error {
	if !s.enabled {
		return newError(CodeDisabled, s.disabledReason, nil)
	}

	if s.getState() != StateAvailable {
		info, err := s.Check(ctx)
		if err != nil {
			return err
		}
		if !info.UpdateAvailable {
			return newError(CodeNoUpdate, "no update available", nil)
		}
	}

	if !s.transitionTo(StateDownloading, StateAvailable) {
		return newError(CodeInvalidState,
			fmt.Sprintf("cannot apply update in state %s", s.getState()), nil)
	}

	exe, err := s.executable()
	if err != nil {
		s.setError(err)
		return newError(CodeApplyFailed, "failed to get executable path", err)
	}

	if s.backup != nil {
		if err := s.backup.createBackup(exe, s.current()); err != nil {
			s.setError(err)
			return newError(CodeBackupFailed, "failed to create backup", err)
		}
	}

	s.transitionTo(StateApplying)
	s.mu.RLock()
	rel := *s.latest
	s.mu.RUnlock()

	if err := s.source.Install(ctx, rel, exe); err != nil {
		s.setError(err)
		s.attemptRollback()
		return newError(CodeApplyFailed, "failed to apply update", err)
	}

	s.transitionTo(StateRestarting)
	s.logger.Info("Update applied, restarting", "version", rel.Version)
	s.scheduleRestart()
	return nil
}

// Rollback restores the backed up binary and schedules a restart.
func (s *Service) Rollback(_ context.Context) error {
	if !s.enabled {
		return newError(CodeDisabled, s.disabledReason, nil)
	}
	if s.backup == nil || !s.backup.hasBackup() {
		return newError(CodeNoBackup, "no backup available for rollback", nil)
	}
	if err := s.backup.restore(); err != nil {
		return newError(CodeRollbackFailed, "failed to restore backup", err)
	}

	s.transitionTo(StateRolledBack)
	s.logger.Info("Rollback completed, restarting")
	s.scheduleRestart()
	return nil
}

// Status returns the current update state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		State:          s.state,
		CurrentVersion: s.current(),
		LastChecked:    s.lastChecked,
	}
	if s.latest != nil {
		status.TargetVersion = s.latest.Version
	}
	if s.lastError != nil {
		status.Error = s.lastError.Error()
	}
	if s.backup != nil {
		status.BackupAvailable = s.backup.hasBackup()
		status.BackupVersion = s.backup.backupVersion()
	}
	return status
}

func (s *Service) transitionTo(newState State, validFromStates ...State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(validFromStates) > 0 && !slices.Contains(validFromStates, s.state) {
		return false
	}
	s.logger.Debug("State transition", "from", s.state, "to", newState)
	s.state = newState
	s.lastError = nil
	return true
}

func (s *Service) getState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.state = StateError
	s.mu.Unlock()
}

func (s *Service) attemptRollback() {
	if s.backup == nil || !s.backup.hasBackup() {
		s.logger.Error("No backup available for automatic rollback")
		return
	}
	if err := s.backup.restore(); err != nil {
		s.logger.Error("Failed to restore backup", "error", err)
		return
	}
	s.transitionTo(StateRolledBack)
	s.logger.Info("Automatic rollback completed")
}

func (s *Service) scheduleRestart() {
	if s.restart == nil {
		return
	}
	time.AfterFunc(restartDelay, s.restart)
}
