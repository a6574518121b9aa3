package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mschirtzinger/watchtex/internal/jot"
)

// fsnotifySource adapts fsnotify to the descriptor model of inotify. It
// hands out synthetic descriptors and translates fsnotify ops to the closest
// inotify kinds. fsnotify reports no close events, so a write counts as both
// MODIFY and CLOSE_WRITE.
type fsnotifySource struct {
	w *fsnotify.Watcher

	mu    sync.Mutex
	next  int
	wds   map[string]int
	paths map[int]string
	dirs  map[string]bool

	once sync.Once
	cerr error
}

func newFsnotify() (source, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &fsnotifySource{
		w:     w,
		next:  1,
		wds:   make(map[string]int),
		paths: make(map[int]string),
		dirs:  make(map[string]bool),
	}, nil
}

func (s *fsnotifySource) add(path string) (int, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return -1, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if wd, ok := s.wds[path]; ok {
		return wd, nil
	}
	if err := s.w.Add(path); err != nil {
		return -1, err
	}
	wd := s.next
	s.next++
	s.wds[path] = wd
	s.paths[wd] = path
	s.dirs[path] = fi.IsDir()
	return wd, nil
}

func (s *fsnotifySource) remove(wd int) error {
	s.mu.Lock()
	path, ok := s.paths[wd]
	if ok {
		delete(s.paths, wd)
		delete(s.wds, path)
		delete(s.dirs, path)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	if err := s.w.Remove(path); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return err
	}
	return nil
}

func (s *fsnotifySource) run(emit func(wd int, name string, mask Mask)) error {
	for {
		select {
		case ev, ok := <-s.w.Events:
			if !ok {
				return nil
			}
			s.translate(ev, emit)

		case err, ok := <-s.w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				emit(-1, "", QOverflow)
				continue
			}
			jot.Warn("watcher: fsnotify: %v", err)
		}
	}
}

func (s *fsnotifySource) translate(ev fsnotify.Event, emit func(wd int, name string, mask Mask)) {
	var mask Mask
	if ev.Has(fsnotify.Create) {
		mask |= Create
	}
	if ev.Has(fsnotify.Write) {
		mask |= Modify | CloseWrite
	}
	if ev.Has(fsnotify.Remove) {
		mask |= Delete
	}
	if ev.Has(fsnotify.Rename) {
		mask |= MovedFrom
	}
	if ev.Has(fsnotify.Chmod) {
		mask |= Attrib
	}
	if mask == 0 {
		return
	}

	s.mu.Lock()
	selfWD, self := s.wds[ev.Name]
	selfDir := s.dirs[ev.Name]
	parentWD, parent := s.wds[filepath.Dir(ev.Name)]
	s.mu.Unlock()

	if mask.Has(Create) {
		if fi, err := os.Lstat(ev.Name); err == nil && fi.IsDir() {
			mask |= IsDir
		}
	}
	if selfDir && mask&(Delete|MovedFrom) != 0 {
		mask |= IsDir
	}

	if parent {
		emit(parentWD, filepath.Base(ev.Name), mask)
	}
	if !self {
		return
	}
	switch {
	case mask.Has(Delete):
		emit(selfWD, "", DeleteSelf)
	case mask.Has(MovedFrom):
		emit(selfWD, "", MoveSelf)
	case !parent:
		emit(selfWD, "", mask)
	}
}

func (s *fsnotifySource) close() error {
	s.once.Do(func() {
		s.cerr = s.w.Close()
	})
	return s.cerr
}
