//go:build !linux

package watcher

func newInotify() (source, error) {
	return nil, ErrUnsupported
}
