package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	DefaultDBName = "opencountries.sqlite"

	lockFileSuffix = ".lock"
	lockRetryDelay = 500 * time.Millisecond
)

// DBLock is an advisory lock file next to the countries database. `poll` and
// the background poller of `serve` hold it while they write, so two polls
// never upsert the same snapshot at once.
type DBLock struct {
	flock  *flock.Flock
	dbPath string
}

// NewDBLock prepares the lock for dbPath ("" is the default database). The
// database directory is created so the lock can be taken before the first
// poll creates the database itself.
func NewDBLock(dbPath string) (*DBLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolving database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return &DBLock{
		flock:  flock.New(absPath + lockFileSuffix),
		dbPath: absPath,
	}, nil
}

// Lock waits until no other poll holds the database, or until ctx is done.
func (l *DBLock) Lock(ctx context.Context) error {
	ok, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", l.dbPath, err)
	}
	if ok {
		return nil
	}

	Log.Infof("Another poll is updating %s, waiting for it to finish...", l.dbPath)
	ok, err = l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("waiting for lock on %s: %w", l.dbPath, err)
	}
	if !ok {
		return fmt.Errorf("waiting for lock on %s: %w", l.dbPath, ctx.Err())
	}
	return nil
}

// Unlock releases the lock. Releasing a lock file that is already gone is
// not an error.
func (l *DBLock) Unlock() error {
	if err := l.flock.Unlock(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlocking %s: %w", l.dbPath, err)
	}
	return nil
}

// GetAbsDBPath resolves the database path. An empty path means
// ~/.config/opencountries/opencountries.sqlite.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "opencountries", DefaultDBName), nil
	}
	return filepath.Abs(dbPath)
}
