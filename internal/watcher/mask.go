package watcher

import "strings"

// Mask is a set of filesystem event kinds. Values are the Linux inotify bits
// so masks decoded from the kernel need no translation.
type Mask uint32

const (
	Access       Mask = 0x00000001
	Modify       Mask = 0x00000002
	Attrib       Mask = 0x00000004
	CloseWrite   Mask = 0x00000008
	CloseNoWrite Mask = 0x00000010
	Open         Mask = 0x00000020
	MovedFrom    Mask = 0x00000040
	MovedTo      Mask = 0x00000080
	Create       Mask = 0x00000100
	Delete       Mask = 0x00000200
	DeleteSelf   Mask = 0x00000400
	MoveSelf     Mask = 0x00000800
	Unmount      Mask = 0x00002000
	QOverflow    Mask = 0x00004000
	Ignored      Mask = 0x00008000
	OnlyDir      Mask = 0x01000000
	DontFollow   Mask = 0x02000000
	ExclUnlink   Mask = 0x04000000
	MaskCreate   Mask = 0x10000000
	MaskAdd      Mask = 0x20000000
	IsDir        Mask = 0x40000000
	OneShot      Mask = 0x80000000

	// AllEvents is every event kind a watch subscribes to.
	AllEvents Mask = 0x00000fff
)

// Kinds lists every named bit in reporting order.
var Kinds = []Mask{
	Access, Attrib, CloseWrite, CloseNoWrite, Create, Delete, DeleteSelf, Modify,
	MoveSelf, MovedFrom, MovedTo, Open, Ignored, IsDir, QOverflow, Unmount,
	OnlyDir, DontFollow, ExclUnlink, MaskCreate, MaskAdd, OneShot,
}

var names = map[Mask]string{
	Access:       "ACCESS",
	Attrib:       "ATTRIB",
	CloseWrite:   "CLOSE_WRITE",
	CloseNoWrite: "CLOSE_NOWRITE",
	Create:       "CREATE",
	Delete:       "DELETE",
	DeleteSelf:   "DELETE_SELF",
	Modify:       "MODIFY",
	MoveSelf:     "MOVE_SELF",
	MovedFrom:    "MOVED_FROM",
	MovedTo:      "MOVED_TO",
	Open:         "OPEN",
	Ignored:      "IGNORED",
	IsDir:        "ISDIR",
	QOverflow:    "Q_OVERFLOW",
	Unmount:      "UNMOUNT",
	OnlyDir:      "ONLYDIR",
	DontFollow:   "DONT_FOLLOW",
	ExclUnlink:   "EXCL_UNLINK",
	MaskCreate:   "MASK_CREATE",
	MaskAdd:      "MASK_ADD",
	OneShot:      "ONESHOT",
}

// Has reports whether every bit of o is set in m.
func (m Mask) Has(o Mask) bool {
	return m&o == o
}

// Name returns the name of a single-bit mask, or "" if it has none.
func (m Mask) Name() string {
	return names[m]
}

// String lists the named bits of m separated by " | ".
func (m Mask) String() string {
	var parts []string
	for _, k := range Kinds {
		if m.Has(k) {
			parts = append(parts, names[k])
		}
	}
	return strings.Join(parts, " | ")
}
