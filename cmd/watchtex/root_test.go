package main

import (
	"io"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/mschirtzinger/watchtex/internal/config"
)

func TestSupervisorEnv(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		cfgFile string
		want    []string
	}{
		{
			name: "default config",
			want: []string{"WATCHTEX_VERBOSE=false", "WATCHTEX_LOG_LOCK=jot/42"},
		},
		{
			name:    "explicit config",
			verbose: true,
			cfgFile: "/home/me/other.yaml",
			want: []string{
				"WATCHTEX_VERBOSE=true",
				"WATCHTEX_LOG_LOCK=jot/42",
				"WATCHTEX_CONFIG=/home/me/other.yaml",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := supervisorEnv(config.Config{Verbose: tt.verbose}, "jot/42", tt.cfgFile)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("supervisorEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

// capture replaces *f with a pipe for the duration of fn and returns what
// was written to it.
func capture(t *testing.T, f **os.File, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := *f
	*f = w
	defer func() { *f = orig }()

	fn()
	w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestBannerGoesToStderr(t *testing.T) {
	var stderr string
	stdout := capture(t, &os.Stdout, func() {
		stderr = capture(t, &os.Stderr, printBanner)
	})

	if stdout != "" {
		t.Errorf("stdout = %q, want nothing", stdout)
	}
	if !strings.Contains(stderr, "WatchTeX v"+version) {
		t.Errorf("stderr = %q, want the banner", stderr)
	}
}
