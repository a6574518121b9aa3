package shrdmm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// lockSize is one slot: the pid of the current holder.
const lockSize = 8

// Lock is a mutex shared by every process that opens the same named region.
//
// The region holds a single slot recording the holder's pid. Exclusion between
// processes comes from flock on the region file; exclusion between goroutines
// of one process comes from an ordinary mutex, since flock is per open file.
// A Lock is released by Close, never by rewriting the slot.
type Lock struct {
	name string
	mu   sync.Mutex
	f    *os.File
	slot []byte
}

// OpenLock opens the lock in the named region, creating the region on first
// use.
func OpenLock(name string) (*Lock, error) {
	if err := Create(name, lockSize); err != nil && !errors.Is(err, ErrExists) {
		return nil, err
	}
	f, err := os.OpenFile(Path(name), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock %s: %w", name, err)
	}
	slot, err := Mount(name)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Lock{name: name, f: f, slot: slot}, nil
}

// Lock acquires the lock, blocking until it is available.
func (l *Lock) Lock() {
	l.mu.Lock()
	for {
		err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			break
		}
	}
	binary.NativeEndian.PutUint64(l.slot, uint64(os.Getpid()))
}

// Unlock releases the lock.
func (l *Lock) Unlock() {
	binary.NativeEndian.PutUint64(l.slot, 0)
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.mu.Unlock()
}

// Holder returns the pid recorded by the current holder, or 0.
func (l *Lock) Holder() int {
	return int(binary.NativeEndian.Uint64(l.slot))
}

// Close unmaps the region and closes the descriptor. It does not remove the
// region; that is Destroy's job.
func (l *Lock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := Drop(l.slot)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	return err
}
