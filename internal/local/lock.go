package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFile = "sideload.lock"

var (
	ErrLocked = errors.New("state directory locked by another sideload process")
)

type Lock struct {
	flock *flock.Flock
}

// AcquireLock takes an exclusive, non-blocking lock inside dir.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create directory %s: %w", dir, err)
	}
	f := flock.New(filepath.Join(dir, lockFile))
	locked, err := f.TryLock()
	if err != nil {
		return nil, fmt.Errorf("could not lock %s: %w", dir, err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return &Lock{flock: f}, nil
}

func (l *Lock) Release() error {
	return l.flock.Unlock()
}
