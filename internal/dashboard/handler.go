package dashboard

import (
	"encoding/json"
	"time"

	"github.com/mschirtzinger/watchtex/internal/job"
	"github.com/mschirtzinger/watchtex/internal/jot"
	"github.com/mschirtzinger/watchtex/internal/watcher"
)

// Broadcaster delivers messages to dashboard clients. *Server implements it.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Handler turns daemon and job notifications into dashboard messages. It
// implements daemon.Sink and job.Observer.
type Handler struct {
	out Broadcaster
}

// NewHandler creates a handler that broadcasts through out.
func NewHandler(out Broadcaster) *Handler {
	return &Handler{out: out}
}

func (h *Handler) send(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		jot.Error("dashboard: failed to marshal %s data: %v", typ, err)
		return
	}
	h.out.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: raw})
}

// FileEvent broadcasts a filesystem event.
func (h *Handler) FileEvent(ev watcher.Event) {
	h.send(MessageTypeFileEvent, FileEventData{Path: ev.Path, Mask: ev.Mask.String()})
}

// Analyzed broadcasts the roots scheduled for a saved file.
func (h *Handler) Analyzed(path string, roots []string) {
	h.send(MessageTypeAnalyzed, AnalyzedData{Path: path, Roots: roots})
}

// JobStarted broadcasts a new compile job.
func (h *Handler) JobStarted(root string, pid int) {
	h.send(MessageTypeCompileStarted, JobData{Root: root, PID: pid})
}

// JobSuperseded broadcasts the cancellation of a running job.
func (h *Handler) JobSuperseded(root string, pid int) {
	h.send(MessageTypeCompileSuperseded, JobData{Root: root, PID: pid})
}

// JobFinished broadcasts the end of a compile job.
func (h *Handler) JobFinished(root string, pid int, o job.Outcome) {
	h.send(MessageTypeCompileFinished, JobData{
		Root:    root,
		PID:     pid,
		Outcome: o.String(),
		Success: o.Success(),
	})
}
