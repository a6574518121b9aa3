package job

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind    string
	root    string
	pid     int
	outcome Outcome
}

// recorder is an Observer that keeps every notification in order.
type recorder struct {
	mu       sync.Mutex
	events   []event
	finished chan event
}

func newRecorder() *recorder {
	return &recorder{finished: make(chan event, 16)}
}

func (r *recorder) add(e event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) JobStarted(root string, pid int) {
	r.add(event{kind: "started", root: root, pid: pid})
}

func (r *recorder) JobSuperseded(root string, pid int) {
	r.add(event{kind: "superseded", root: root, pid: pid})
}

func (r *recorder) JobFinished(root string, pid int, o Outcome) {
	e := event{kind: "finished", root: root, pid: pid, outcome: o}
	r.add(e)
	r.finished <- e
}

func (r *recorder) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) waitFinished(t *testing.T) event {
	t.Helper()
	select {
	case e := <-r.finished:
		return e
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for job to finish")
		return event{}
	}
}

// scripts returns a Launcher that runs the given shell scripts in turn, the
// last one repeating.
func scripts(s ...string) Launcher {
	var mu sync.Mutex
	n := 0
	return func(dir string, argv []string) (*exec.Cmd, error) {
		mu.Lock()
		defer mu.Unlock()
		script := s[len(s)-1]
		if n < len(s) {
			script = s[n]
		}
		n++
		return exec.Command("/bin/sh", "-c", script), nil
	}
}

func TestCompileRunsJobToCompletion(t *testing.T) {
	rec := newRecorder()
	m := NewManager(Config{Launcher: scripts("exit 0"), Observer: rec})
	defer m.Shutdown()

	m.Compile("/doc/main.tex")
	e := rec.waitFinished(t)

	assert.Equal(t, "/doc/main.tex", e.root)
	assert.True(t, e.outcome.Success())

	jobs := m.Jobs()
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Done, "finished job stays in the table")
	assert.Equal(t, e.pid, jobs[0].PID)
	assert.Equal(t, "compilation completed", jobs[0].Outcome)
}

func TestCompileSupersedesRunningJob(t *testing.T) {
	rec := newRecorder()
	m := NewManager(Config{Launcher: scripts("sleep 30", "exit 0"), Observer: rec})
	defer m.Shutdown()

	m.Compile("/doc/main.tex")
	m.Compile("/doc/main.tex")
	rec.waitFinished(t) // first
	rec.waitFinished(t) // second

	events := rec.snapshot()
	require.Len(t, events, 5)
	first, second := events[0].pid, events[3].pid
	assert.NotEqual(t, first, second)

	assert.Equal(t, []string{"started", "superseded", "finished", "started", "finished"},
		[]string{events[0].kind, events[1].kind, events[2].kind, events[3].kind, events[4].kind})
	assert.Equal(t, first, events[1].pid)
	assert.Equal(t, Outcome{Kind: Killed, Code: 9}, events[2].outcome)
	assert.True(t, events[4].outcome.Success())

	jobs := m.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, second, jobs[0].PID)
}

func TestCompileReplacesFinishedJobWithoutKilling(t *testing.T) {
	rec := newRecorder()
	m := NewManager(Config{Launcher: scripts("exit 2", "exit 0"), Observer: rec})
	defer m.Shutdown()

	m.Compile("/doc/main.tex")
	e := rec.waitFinished(t)
	assert.Equal(t, Outcome{Kind: Exited, Code: 2}, e.outcome)

	m.Compile("/doc/main.tex")
	rec.waitFinished(t)

	for _, e := range rec.snapshot() {
		assert.NotEqual(t, "superseded", e.kind)
	}
}

func TestCompileDistinctRootsRunConcurrently(t *testing.T) {
	rec := newRecorder()
	m := NewManager(Config{Launcher: scripts("sleep 30"), Observer: rec})

	m.Compile("/doc/a.tex")
	m.Compile("/doc/b.tex")

	jobs := m.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "/doc/a.tex", jobs[0].Root)
	assert.Equal(t, "/doc/b.tex", jobs[1].Root)
	assert.False(t, jobs[0].Done)
	assert.False(t, jobs[1].Done)

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Shutdown did not return")
	}
	for _, j := range m.Jobs() {
		assert.True(t, j.Done)
		assert.Equal(t, "compilation terminated by signal 9", j.Outcome)
	}
}

func TestCompilePassesDirectoryAndArgv(t *testing.T) {
	var gotDir string
	var gotArgv []string
	rec := newRecorder()
	m := NewManager(Config{
		Compiler: "latexmk",
		Args:     []string{"-pdf"},
		Observer: rec,
		Launcher: func(dir string, argv []string) (*exec.Cmd, error) {
			gotDir, gotArgv = dir, argv
			return exec.Command("/bin/true"), nil
		},
	})
	defer m.Shutdown()

	m.Compile("/papers/thesis/main.tex")
	rec.waitFinished(t)

	assert.Equal(t, "/papers/thesis", gotDir)
	assert.Equal(t, []string{"latexmk", "-pdf", "main.tex"}, gotArgv)
}

func TestCompileAppendsEnv(t *testing.T) {
	rec := newRecorder()
	m := NewManager(Config{
		Launcher: scripts(`test "$WATCHTEX_MARKER" = yes`),
		Env:      []string{"WATCHTEX_MARKER=yes"},
		Observer: rec,
	})
	defer m.Shutdown()

	m.Compile("/doc/main.tex")
	assert.True(t, rec.waitFinished(t).outcome.Success())
}

func TestCompileAbandonsFailedLaunch(t *testing.T) {
	tests := []struct {
		name     string
		launcher Launcher
	}{
		{"launcher error", func(string, []string) (*exec.Cmd, error) {
			return nil, errors.New("no executable")
		}},
		{"start error", func(string, []string) (*exec.Cmd, error) {
			return exec.Command("/nonexistent/watchtex"), nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder()
			m := NewManager(Config{Launcher: tt.launcher, Observer: rec})

			m.Compile("/doc/main.tex")
			m.Shutdown()

			assert.Empty(t, m.Jobs())
			assert.Empty(t, rec.snapshot())
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	m := NewManager(Config{})
	assert.Equal(t, []string{"rubber", "--pdf", "--unsafe", "main.tex"}, m.Argv("/doc/main.tex"))

	m = NewManager(Config{Compiler: "pdflatex"})
	assert.Equal(t, []string{"pdflatex", "main.tex"}, m.Argv("/doc/main.tex"))
}

func TestSuperviseArgs(t *testing.T) {
	got := SuperviseArgs("/doc", []string{"rubber", "--pdf", "main.tex"})
	assert.Equal(t, []string{"supervise", "--dir", "/doc", "--", "rubber", "--pdf", "main.tex"}, got)
}

func ExampleOutcome_String() {
	fmt.Println(Outcome{Kind: Exited, Code: 0})
	fmt.Println(Outcome{Kind: Exited, Code: 1})
	fmt.Println(Outcome{Kind: Killed, Code: 9})
	fmt.Println(Outcome{Kind: Dumped, Code: 11})
	// Output:
	// compilation completed
	// compilation terminated with status 1
	// compilation terminated by signal 9
	// compilation terminated by signal 11 (core dumped)
}
