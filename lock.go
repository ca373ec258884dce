package podsite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrBuildLocked is returned when another process holds the output tree.
var ErrBuildLocked = errors.New("another podsite process is building or uploading this project")

const lockFile = "build.lock"

// acquireLock takes the exclusive project lock in stateDir without blocking.
func acquireLock(stateDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	path := filepath.Join(stateDir, lockFile)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrBuildLocked, path)
	}
	return lock, nil
}
