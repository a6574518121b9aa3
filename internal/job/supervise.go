package job

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/mschirtzinger/watchtex/internal/jot"
)

var (
	// ErrNoCommand is returned by Supervise for an empty argv.
	ErrNoCommand = errors.New("no compiler command")

	// ErrStart wraps failures to start the compiler.
	ErrStart = errors.New("cannot execute compiler")
)

// SuperviseCommand is the name of the hidden subcommand that runs Supervise.
const SuperviseCommand = "supervise"

// SuperviseArgs returns the arguments that make the watchtex binary run
// Supervise(dir, argv).
func SuperviseArgs(dir string, argv []string) []string {
	args := []string{SuperviseCommand, "--dir", dir, "--"}
	return append(args, argv...)
}

// Supervise runs the compiler argv in dir with its output discarded, waits
// for it and logs how it ended. It is the body of a supervisor process, so it
// blocks until the compiler exits.
func Supervise(dir string, argv []string) (Outcome, error) {
	if len(argv) == 0 {
		return Outcome{}, ErrNoCommand
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	// nil Stdout and Stderr go to the null device.
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return Outcome{}, fmt.Errorf("%w %s: %v", ErrStart, argv[0], err)
	}
	jot.Debug("compiling `%s` in `%s` (pid %d)", argv[len(argv)-1], dir, cmd.Process.Pid)

	err := cmd.Wait()
	if cmd.ProcessState == nil {
		jot.Error("job: cannot wait for child process: %v", err)
		return Outcome{Kind: Unknown, Code: -1}, fmt.Errorf("failed to wait for %s: %w", argv[0], err)
	}

	o := OutcomeOf(cmd.ProcessState)
	if o.Success() {
		jot.Info("%s", o)
	} else {
		jot.Warn("%s", o)
	}
	return o, nil
}
