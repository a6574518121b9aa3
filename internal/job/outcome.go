package job

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Kind classifies how a process ended.
type Kind int

const (
	// Unknown covers any status that is neither an exit nor a signal.
	Unknown Kind = iota
	// Exited means the process called exit; Code is its status.
	Exited
	// Killed means a signal terminated the process; Code is the signal.
	Killed
	// Dumped is Killed with a core dump.
	Dumped
)

func (k Kind) String() string {
	switch k {
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	case Dumped:
		return "dumped"
	default:
		return "unknown"
	}
}

// Outcome is the classified end of a process.
type Outcome struct {
	Kind Kind
	Code int
}

// Classify decodes a wait status.
func Classify(ws unix.WaitStatus) Outcome {
	switch {
	case ws.Exited():
		return Outcome{Kind: Exited, Code: ws.ExitStatus()}
	case ws.Signaled() && ws.CoreDump():
		return Outcome{Kind: Dumped, Code: int(ws.Signal())}
	case ws.Signaled():
		return Outcome{Kind: Killed, Code: int(ws.Signal())}
	default:
		return Outcome{Kind: Unknown, Code: int(ws)}
	}
}

// OutcomeOf classifies the state of a finished process.
func OutcomeOf(ps *os.ProcessState) Outcome {
	if ps == nil {
		return Outcome{Kind: Unknown, Code: -1}
	}
	ws, ok := ps.Sys().(syscall.WaitStatus)
	if !ok {
		return Outcome{Kind: Unknown, Code: ps.ExitCode()}
	}
	return Classify(unix.WaitStatus(ws))
}

// Success reports a zero exit status.
func (o Outcome) Success() bool {
	return o.Kind == Exited && o.Code == 0
}

// ExitCode is the status a process mirroring this outcome exits with, using
// the shell convention of 128+signal for signals.
func (o Outcome) ExitCode() int {
	switch o.Kind {
	case Exited:
		return o.Code
	case Killed, Dumped:
		return 128 + o.Code
	default:
		return 1
	}
}

func (o Outcome) String() string {
	switch o.Kind {
	case Exited:
		if o.Code == 0 {
			return "compilation completed"
		}
		return fmt.Sprintf("compilation terminated with status %d", o.Code)
	case Killed:
		return fmt.Sprintf("compilation terminated by signal %d", o.Code)
	case Dumped:
		return fmt.Sprintf("compilation terminated by signal %d (core dumped)", o.Code)
	default:
		return fmt.Sprintf("compilation terminated with unknown status %d", o.Code)
	}
}
