package marker

import (
	"errors"
	"os"
	"path/filepath"

	apperr "github.com/turtacn/apswitch/pkg/errors"
	"golang.org/x/sys/unix"
)

// Lock is an advisory exclusive flock keyed by interface name. The kernel
// drops it if the process dies, so a crashed run never wedges the next one.
type Lock struct {
	f *os.File
}

// Acquire takes the lock for iface without blocking. A lock held by another
// process yields LockHeld.
func Acquire(dir, iface string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.New(apperr.ErrCodeLockHeld, "Lock", "cannot create "+dir, err)
	}
	path := filepath.Join(dir, iface+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, apperr.New(apperr.ErrCodeLockHeld, "Lock", "cannot open "+path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, apperr.New(apperr.ErrCodeLockHeld, "Lock", "another apswitch run holds "+iface, err)
		}
		return nil, apperr.New(apperr.ErrCodeLockHeld, "Lock", "flock "+path, err)
	}
	return &Lock{f: f}, nil
}

// Release drops the lock. The lock file itself stays for the next run.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	defer func() { l.f = nil }()
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// Personal.AI order the ending
