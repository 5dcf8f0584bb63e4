// Package updater replaces the audiocard binary with the latest GitHub
// release, keeping the previous build for rollback.
package updater

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	backupBinary   = "audiocard.previous"
	backupManifest = "backup.toml"
)

// manifest describes the saved binary. It is written next to it so the
// backup survives a restart into the new version.
type manifest struct {
	Version  string    `toml:"version"`
	Saved    time.Time `toml:"saved"`
	Original string    `toml:"original"`
}

// backupManager keeps a single previous binary in dir.
type backupManager struct {
	dir    string
	logger *slog.Logger

	mu   sync.RWMutex
	last *manifest
}

func defaultBackupDir() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache directory: %w", err)
	}
	return filepath.Join(cache, "audiocard", "backup"), nil
}

func newBackupManager(dir string, logger *slog.Logger) (*backupManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	m := &backupManager{dir: dir, logger: logger}
	m.last = m.readManifest()
	if m.last != nil {
		logger.Info("Found previous build", "version", m.last.Version, "saved", m.last.Saved)
	}
	return m, nil
}

func (m *backupManager) binaryPath() string   { return filepath.Join(m.dir, backupBinary) }
func (m *backupManager) manifestPath() string { return filepath.Join(m.dir, backupManifest) }

// readManifest returns nil unless both the manifest and the binary exist.
func (m *backupManager) readManifest() *manifest {
	data, err := os.ReadFile(m.manifestPath())
	if err != nil {
		return nil
	}
	var mf manifest
	if err := toml.Unmarshal(data, &mf); err != nil {
		m.logger.Warn("Ignoring unreadable backup manifest", "error", err)
		return nil
	}
	if _, err := os.Stat(m.binaryPath()); err != nil {
		m.logger.Warn("Backup manifest without binary", "path", m.binaryPath())
		return nil
	}
	return &mf
}

// copyFile copies src to a sibling temp file of dst and renames it into
// place. Renaming works on a running executable where truncating it would
// fail with ETXTBSY.
func copyFile(dst, src string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (m *backupManager) createBackup(execPath, version string) error {
	if err := copyFile(m.binaryPath(), execPath); err != nil {
		return fmt.Errorf("save %s: %w", execPath, err)
	}
	mf := &manifest{Version: version, Saved: time.Now().UTC(), Original: execPath}
	data, err := toml.Marshal(mf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.manifestPath(), data, 0o644); err != nil {
		return fmt.Errorf("write backup manifest: %w", err)
	}

	m.mu.Lock()
	m.last = mf
	m.mu.Unlock()
	m.logger.Info("Saved running build", "version", version, "path", m.binaryPath())
	return nil
}

func (m *backupManager) restore() error {
	m.mu.RLock()
	mf := m.last
	m.mu.RUnlock()
	if mf == nil {
		return errors.New("no backup available")
	}
	if err := copyFile(mf.Original, m.binaryPath()); err != nil {
		return fmt.Errorf("restore %s: %w", mf.Original, err)
	}
	m.logger.Info("Restored previous build", "version", mf.Version, "path", mf.Original)
	return nil
}

func (m *backupManager) hasBackup() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last != nil
}

func (m *backupManager) backupVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return ""
	}
	return m.last.Version
}
