// Package shrdmm provides named shared-memory regions backed by files in
// /dev/shm (or the temporary directory when /dev/shm is unavailable).
//
// A region is created once with Create, mapped into any number of processes
// with Mount, unmapped with Drop and finally removed with Destroy. Regions are
// never relocated: the slice returned by Mount stays valid until it is
// dropped.
package shrdmm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	// ErrEmptyName is returned when a region name is empty.
	ErrEmptyName = errors.New("region name must not be empty")

	// ErrExists is returned by Create when the region already exists.
	ErrExists = errors.New("region already exists")

	// ErrNotMounted is returned by Drop for a slice that was not returned by Mount.
	ErrNotMounted = errors.New("region is not mounted")
)

// Root is the directory holding region files.
var Root = defaultRoot()

type mount struct {
	name string
	data []byte
}

var (
	mu     sync.Mutex
	mounts = make(map[*byte]mount)
)

func defaultRoot() string {
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// Path returns the backing file of the named region.
func Path(name string) string {
	return filepath.Join(Root, "watchtex-"+strings.ReplaceAll(name, "/", "-"))
}

// Create creates a region of size bytes.
func Create(name string, size int) error {
	if name == "" {
		return ErrEmptyName
	}
	f, err := os.OpenFile(Path(name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		return fmt.Errorf("failed to create region %s: %w", name, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("failed to size region %s: %w", name, err)
	}
	return nil
}

// Mount maps the named region into the address space of the calling process.
func Mount(name string) ([]byte, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	f, err := os.OpenFile(Path(name), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open region %s: %w", name, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat region %s: %w", name, err)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("region %s is empty", name)
	}

	b, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to map region %s: %w", name, err)
	}

	mu.Lock()
	mounts[&b[0]] = mount{name: name, data: b}
	mu.Unlock()
	return b, nil
}

// Drop unmaps a slice previously returned by Mount.
func Drop(b []byte) error {
	if len(b) == 0 {
		return ErrNotMounted
	}
	mu.Lock()
	m, ok := mounts[&b[0]]
	if ok {
		delete(mounts, &b[0])
	}
	mu.Unlock()
	if !ok {
		return ErrNotMounted
	}

	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("failed to unmap region: %w", err)
	}
	return nil
}

// Destroy unmaps every local mount of the named region and removes it.
// Other processes keep their mappings until they drop them.
func Destroy(name string) error {
	if name == "" {
		return ErrEmptyName
	}

	mu.Lock()
	for base, m := range mounts {
		if m.name != name {
			continue
		}
		delete(mounts, base)
		_ = unix.Munmap(m.data)
	}
	mu.Unlock()

	if err := os.Remove(Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove region %s: %w", name, err)
	}
	return nil
}
