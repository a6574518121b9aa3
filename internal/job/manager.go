// Package job runs and cancels compiler processes, at most one per root
// document.
//
// Each compilation is a two-level process hierarchy:
//
//	watchtex (Manager) -> watchtex supervise (supervisor) -> compiler
//
// The Manager tracks only the supervisor. The supervisor leads its own
// process group, so cancelling a job is a single SIGKILL to that group, which
// reaches the compiler and anything it spawned.
package job

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mschirtzinger/watchtex/internal/jot"
)

// Observer is notified of job lifecycle changes. Calls are made outside the
// job table lock, from the submitting goroutine or a reaper goroutine.
type Observer interface {
	JobStarted(root string, pid int)
	JobSuperseded(root string, pid int)
	JobFinished(root string, pid int, o Outcome)
}

// Launcher builds the supervisor command for compiling argv in dir. The
// Manager sets SysProcAttr and starts it.
type Launcher func(dir string, argv []string) (*exec.Cmd, error)

// Config holds configuration for the Manager.
type Config struct {
	// Compiler is the program run on each root document.
	Compiler string

	// Args are passed to Compiler before the document's base name.
	Args []string

	// Env is appended to the environment of supervisor processes.
	Env []string

	// Launcher builds supervisor commands. Defaults to re-executing the
	// running binary with SuperviseArgs.
	Launcher Launcher

	// Observer, if set, receives lifecycle notifications.
	Observer Observer
}

// DefaultConfig returns the rubber PDF toolchain configuration.
func DefaultConfig() Config {
	return Config{
		Compiler: "rubber",
		Args:     []string{"--pdf", "--unsafe"},
	}
}

// Job is one compilation of a root document.
type Job struct {
	Root    string
	PID     int
	Started time.Time

	cmd     *exec.Cmd
	done    bool
	outcome Outcome
	exited  chan struct{}
}

// Info is a snapshot of a Job.
type Info struct {
	Root    string    `json:"root"`
	PID     int       `json:"pid"`
	Started time.Time `json:"started"`
	Done    bool      `json:"done"`
	Outcome string    `json:"outcome,omitempty"`
}

// Manager owns the job table.
type Manager struct {
	cfg Config

	// submit serializes Compile calls; mu guards the table and is held only
	// for table reads and writes.
	submit sync.Mutex
	mu     sync.Mutex
	jobs   map[string]*Job

	wg sync.WaitGroup
}

// NewManager creates a Manager. Empty fields of cfg take their defaults.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.Compiler == "" {
		cfg.Compiler = def.Compiler
		if cfg.Args == nil {
			cfg.Args = def.Args
		}
	}
	if cfg.Launcher == nil {
		cfg.Launcher = selfLauncher
	}
	return &Manager{
		cfg:  cfg,
		jobs: make(map[string]*Job),
	}
}

// selfLauncher re-executes the running binary as a supervisor. The
// supervisor logs to the same stderr as its parent.
func selfLauncher(dir string, argv []string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	cmd := exec.Command(exe, SuperviseArgs(dir, argv)...)
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// Argv returns the compiler command line for root.
func (m *Manager) Argv(root string) []string {
	argv := make([]string, 0, len(m.cfg.Args)+2)
	argv = append(argv, m.cfg.Compiler)
	argv = append(argv, m.cfg.Args...)
	return append(argv, filepath.Base(root))
}

// Compile starts compiling root. A compilation of root still in flight is
// killed and reaped first, so at most one process per root is ever alive.
// Failures are logged; Compile never blocks on the compilation itself.
func (m *Manager) Compile(root string) {
	m.submit.Lock()
	defer m.submit.Unlock()

	m.mu.Lock()
	old := m.jobs[root]
	oldDone := old != nil && old.done
	m.mu.Unlock()

	if old != nil {
		if !oldDone {
			m.cancel(old)
		}
		<-old.exited
		m.mu.Lock()
		if m.jobs[root] == old {
			delete(m.jobs, root)
		}
		m.mu.Unlock()
	}

	cmd, err := m.cfg.Launcher(filepath.Dir(root), m.Argv(root))
	if err != nil {
		jot.Error("failed to clone process for `%s`: %v", root, err)
		return
	}
	cmd.SysProcAttr = groupAttr()
	if len(m.cfg.Env) > 0 {
		if cmd.Env == nil {
			cmd.Env = os.Environ()
		}
		cmd.Env = append(cmd.Env, m.cfg.Env...)
	}
	if err := cmd.Start(); err != nil {
		jot.Error("failed to clone process for `%s`: %v", root, err)
		return
	}

	j := &Job{
		Root:    root,
		PID:     cmd.Process.Pid,
		Started: time.Now(),
		cmd:     cmd,
		exited:  make(chan struct{}),
	}
	m.mu.Lock()
	m.jobs[root] = j
	m.mu.Unlock()

	jot.Debug("compiling `%s` (pid %d)", root, j.PID)
	if m.cfg.Observer != nil {
		m.cfg.Observer.JobStarted(root, j.PID)
	}

	m.wg.Add(1)
	go m.reap(j)
}

// cancel kills the process group of j.
func (m *Manager) cancel(j *Job) {
	jot.Debug("already compiling `%s`", j.Root)
	jot.Debug("killing process %d", j.PID)
	if err := unix.Kill(-j.PID, unix.SIGKILL); err != nil {
		jot.Warn("failed to kill process %d: %v", j.PID, err)
	} else {
		jot.Debug("killed process %d", j.PID)
	}
	if m.cfg.Observer != nil {
		m.cfg.Observer.JobSuperseded(j.Root, j.PID)
	}
}

func (m *Manager) reap(j *Job) {
	defer m.wg.Done()

	err := j.cmd.Wait()
	if j.cmd.ProcessState == nil {
		jot.Warn("cannot wait job process %d: %v", j.PID, err)
	}
	o := OutcomeOf(j.cmd.ProcessState)
	jot.Debug("supervisor %d for `%s` ended: %s", j.PID, j.Root, o.Kind)

	m.mu.Lock()
	j.done = true
	j.outcome = o
	m.mu.Unlock()

	if m.cfg.Observer != nil {
		m.cfg.Observer.JobFinished(j.Root, j.PID, o)
	}
	close(j.exited)
}

// Jobs returns a snapshot of the job table sorted by root.
func (m *Manager) Jobs() []Info {
	m.mu.Lock()
	infos := make([]Info, 0, len(m.jobs))
	for _, j := range m.jobs {
		info := Info{Root: j.Root, PID: j.PID, Started: j.Started, Done: j.done}
		if j.done {
			info.Outcome = j.outcome.String()
		}
		infos = append(infos, info)
	}
	m.mu.Unlock()

	sort.Slice(infos, func(i, k int) bool { return infos[i].Root < infos[k].Root })
	return infos
}

// Shutdown kills every running job and waits until all have been reaped.
func (m *Manager) Shutdown() {
	m.submit.Lock()
	defer m.submit.Unlock()

	m.mu.Lock()
	var running []*Job
	for _, j := range m.jobs {
		if !j.done {
			running = append(running, j)
		}
	}
	m.mu.Unlock()

	for _, j := range running {
		if err := unix.Kill(-j.PID, unix.SIGKILL); err != nil {
			jot.Warn("failed to kill process %d: %v", j.PID, err)
		}
	}
	m.wg.Wait()
}
