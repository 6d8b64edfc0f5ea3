package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process holds a company's run lock.
var ErrLocked = errors.New("run already in progress")

// lockDirName is the hidden directory under the output root holding lock files.
const lockDirName = ".locks"

// Lock is an exclusive advisory lock on one company's directory.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the run lock for company under root without blocking.
// It returns ErrLocked when the lock is already held.
func AcquireLock(root, company string) (*Lock, error) {
	dir := filepath.Join(root, lockDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, CompanyDirName(company)+".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", company, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. It is safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}
