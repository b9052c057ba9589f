package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DefaultDBPath is used when no database path is configured.
const DefaultDBPath = "~/.config/smtindex/history.sqlite"

// DBLock serializes builds that write the history database. The lock lives
// in a sidecar file next to the database.
type DBLock struct {
	lock *flock.Flock
	path string
}

// NewDBLock returns an unlocked lock for the database at dbPath.
func NewDBLock(dbPath string) (*DBLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	if err := EnsureDBDir(absPath); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}
	lockPath := absPath + ".lock"
	return &DBLock{lock: flock.New(lockPath), path: lockPath}, nil
}

// Path returns the lock file path.
func (l *DBLock) Path() string { return l.path }

// Lock acquires the lock, blocking behind another build if one holds it.
func (l *DBLock) Lock() error {
	locked, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if locked {
		return nil
	}

	Log.Warnf("Another smtindex build is writing to the history database, waiting for %s", l.path)
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
	}
	return nil
}

// Unlock releases the lock. Releasing a lock whose file is gone is a no-op.
func (l *DBLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// GetAbsDBPath resolves dbPath to an absolute path, expanding a leading ~.
// An empty dbPath means DefaultDBPath.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	return filepath.Abs(ExpandPath(dbPath))
}

// EnsureDBDir creates the directory holding the database file.
func EnsureDBDir(absPath string) error {
	return os.MkdirAll(filepath.Dir(absPath), 0o755)
}
