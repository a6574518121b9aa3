package shrdmm

import (
	"errors"
	"os"
	"sync"
	"testing"
)

func useTempRoot(t *testing.T) {
	t.Helper()
	old := Root
	Root = t.TempDir()
	t.Cleanup(func() { Root = old })
}

func TestCreateMountDropDestroy(t *testing.T) {
	useTempRoot(t)

	if err := Create("jot/lock", 16); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if err := Create("jot/lock", 16); !errors.Is(err, ErrExists) {
		t.Fatalf("second Create() = %v, want ErrExists", err)
	}

	a, err := Mount("jot/lock")
	if err != nil {
		t.Fatalf("Mount() failed: %v", err)
	}
	b, err := Mount("jot/lock")
	if err != nil {
		t.Fatalf("second Mount() failed: %v", err)
	}
	if len(a) != 16 {
		t.Errorf("len(region) = %d, want 16", len(a))
	}

	a[3] = 42
	if b[3] != 42 {
		t.Errorf("mounts do not share memory: got %d", b[3])
	}

	if err := Drop(a); err != nil {
		t.Errorf("Drop() failed: %v", err)
	}
	if err := Drop(a); !errors.Is(err, ErrNotMounted) {
		t.Errorf("second Drop() = %v, want ErrNotMounted", err)
	}

	if err := Destroy("jot/lock"); err != nil {
		t.Fatalf("Destroy() failed: %v", err)
	}
	if _, err := os.Stat(Path("jot/lock")); !os.IsNotExist(err) {
		t.Errorf("region file still present after Destroy: %v", err)
	}
}

func TestEmptyName(t *testing.T) {
	useTempRoot(t)

	if err := Create("", 1); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Create(\"\") = %v", err)
	}
	if _, err := Mount(""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Mount(\"\") = %v", err)
	}
	if err := Destroy(""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Destroy(\"\") = %v", err)
	}
}

func TestPathFlattensSlashes(t *testing.T) {
	useTempRoot(t)

	got := Path("jot/lock")
	want := Root + "/watchtex-jot-lock"
	if got != want {
		t.Errorf("Path() = %q, want %q", got, want)
	}
}

func TestLockExcludesGoroutines(t *testing.T) {
	useTempRoot(t)

	l, err := OpenLock("counter")
	if err != nil {
		t.Fatalf("OpenLock() failed: %v", err)
	}
	defer Destroy("counter")
	defer l.Close()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != 800 {
		t.Errorf("counter = %d, want 800", counter)
	}
}

func TestLockRecordsHolder(t *testing.T) {
	useTempRoot(t)

	l, err := OpenLock("holder")
	if err != nil {
		t.Fatalf("OpenLock() failed: %v", err)
	}
	defer Destroy("holder")
	defer l.Close()

	l.Lock()
	if got := l.Holder(); got != os.Getpid() {
		t.Errorf("Holder() = %d, want %d", got, os.Getpid())
	}
	l.Unlock()
	if got := l.Holder(); got != 0 {
		t.Errorf("Holder() after Unlock = %d, want 0", got)
	}
}

func TestOpenLockTwiceSharesRegion(t *testing.T) {
	useTempRoot(t)

	a, err := OpenLock("shared")
	if err != nil {
		t.Fatalf("OpenLock() failed: %v", err)
	}
	defer Destroy("shared")
	defer a.Close()

	b, err := OpenLock("shared")
	if err != nil {
		t.Fatalf("second OpenLock() failed: %v", err)
	}
	defer b.Close()

	a.Lock()
	if got := b.Holder(); got != os.Getpid() {
		t.Errorf("b.Holder() = %d, want %d", got, os.Getpid())
	}
	a.Unlock()
}
