package watcher

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// eventHeaderSize is sizeof(struct inotify_event) without the name.
const eventHeaderSize = 16

// decodeEvents splits one read from an inotify descriptor into events.
// Each record is wd(int32) mask(uint32) cookie(uint32) len(uint32) followed
// by len bytes of NUL-padded name.
func decodeEvents(buf []byte, emit func(wd int, name string, mask Mask)) error {
	for off := 0; off < len(buf); {
		if off+eventHeaderSize > len(buf) {
			return fmt.Errorf("%w: truncated event header at offset %d", ErrFatal, off)
		}
		wd := int32(binary.NativeEndian.Uint32(buf[off:]))
		mask := binary.NativeEndian.Uint32(buf[off+4:])
		nameLen := int(binary.NativeEndian.Uint32(buf[off+12:]))

		end := off + eventHeaderSize + nameLen
		if nameLen < 0 || end > len(buf) {
			return fmt.Errorf("%w: event at offset %d overruns the read buffer", ErrFatal, off)
		}
		name := strings.TrimRight(string(buf[off+eventHeaderSize:end]), "\x00")

		emit(int(wd), name, Mask(mask))
		off = end
	}
	return nil
}
