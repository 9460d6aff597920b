package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StaleLockAge is how old a lock file may get before another process takes it over.
const StaleLockAge = 10 * time.Minute

// ErrLocked is returned when another process holds the settings lock.
var ErrLocked = errors.New("settings are locked by another process")

// Lock acquires a file lock on the settings to prevent concurrent modifications.
func (m *Manager) Lock() error {
	lockPath := m.lockPath()
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > StaleLockAge {
		os.Remove(lockPath)
	}

	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w (lock file: %s). If this is an error, remove the lock file manually", ErrLocked, lockPath)
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return nil
}

// Unlock releases the settings lock.
func (m *Manager) Unlock() error {
	if err := os.Remove(m.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

func (m *Manager) lockPath() string {
	return m.path + ".lock"
}
