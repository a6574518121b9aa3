//go:build linux

package watcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// readBufferSize holds many events per read; a single event with a maximal
// name is well under it.
const readBufferSize = 64 * 1024

type inotify struct {
	fd   int
	f    *os.File
	once sync.Once
	cerr error
}

func newInotify() (source, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inotify: %w", err)
	}
	// A non-blocking descriptor wrapped in os.File goes through the runtime
	// poller, so Close wakes a pending Read.
	return &inotify{fd: fd, f: os.NewFile(uintptr(fd), "inotify")}, nil
}

func (in *inotify) add(path string) (int, error) {
	wd, err := unix.InotifyAddWatch(in.fd, path, uint32(AllEvents))
	if err != nil {
		return -1, err
	}
	return wd, nil
}

func (in *inotify) remove(wd int) error {
	_, err := unix.InotifyRmWatch(in.fd, uint32(wd))
	if errors.Is(err, unix.EINVAL) {
		// The kernel already dropped the watch with its directory.
		return nil
	}
	return err
}

func (in *inotify) run(emit func(wd int, name string, mask Mask)) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := in.f.Read(buf)
		switch {
		case errors.Is(err, os.ErrClosed):
			return nil
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: inotify has been closed", ErrFatal)
		case err != nil:
			return fmt.Errorf("%w: failed to read from inotify: %v", ErrFatal, err)
		}
		if err := decodeEvents(buf[:n], emit); err != nil {
			return err
		}
	}
}

func (in *inotify) close() error {
	in.once.Do(func() {
		in.cerr = in.f.Close()
	})
	return in.cerr
}
