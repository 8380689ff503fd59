// Package lockfile serializes updates of small state files across
// processes with an advisory lock on a sibling "<file>.lock".
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLockBusy is returned by TryAcquire when another holder has the lock.
var ErrLockBusy = errors.New("lock already held by another process")

// Lock is a held advisory lock.
type Lock struct {
	f *os.File
}

// Acquire blocks until it holds the exclusive lock for path.
func Acquire(path string) (*Lock, error) {
	return acquire(path, true)
}

// TryAcquire takes the exclusive lock for path or fails with ErrLockBusy.
func TryAcquire(path string) (*Lock, error) {
	return acquire(path, false)
}

func acquire(path string, block bool) (*Lock, error) {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600) // #nosec G304 -- derived from a config path
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", lockPath, err)
	}
	if err := flockExclusive(f, block); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			return nil, err
		}
		return nil, fmt.Errorf("lock %s: %w", lockPath, err)
	}
	return &Lock{f: f}, nil
}

// Release unlocks and closes the lock file. The file itself is left in
// place so concurrent holders always lock the same inode.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := funlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
