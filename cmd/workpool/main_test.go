package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jirevwe/workpool/config"
	"github.com/stretchr/testify/require"
)

// lockedBuffer is written to by several workers at once.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunDemo(t *testing.T) {
	out := &lockedBuffer{}

	cfg := config.Default()
	cfg.Workers = 2
	cfg.Log.Level = "error"

	require.NoError(t, runDemo(context.Background(), out, cfg, 5, time.Millisecond))

	got := out.String()
	for _, line := range []string{"job 1: done", "job 5: done"} {
		require.Contains(t, got, line)
	}
	require.Contains(t, got, "workers=2 submitted=5 completed=5 panicked=0")
}

func TestRunDemo_NegativeJobs(t *testing.T) {
	err := runDemo(context.Background(), &lockedBuffer{}, config.Default(), -1, time.Millisecond)
	require.ErrorContains(t, err, "must not be negative")
}

func TestApp_RunCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 3\nlog:\n  level: error\n"), 0o600))

	out := &lockedBuffer{}
	app := createApp(out)

	err := app.Run(context.Background(), []string{"workpool", "run", "--config", path, "--jobs", "4", "--scale", "1ms"})
	require.NoError(t, err)
	require.Contains(t, out.String(), "workers=3 submitted=4 completed=4 panicked=0")

	out = &lockedBuffer{}
	app = createApp(out)

	err = app.Run(context.Background(), []string{"workpool", "run", "--config", path, "--workers", "1", "--jobs", "2", "--scale", "1ms"})
	require.NoError(t, err)
	require.Contains(t, out.String(), "workers=1 submitted=2 completed=2 panicked=0")
}

func TestApp_BadConfig(t *testing.T) {
	app := createApp(&lockedBuffer{})

	err := app.Run(context.Background(), []string{"workpool", "run", "--config", "workpool.toml"})
	require.ErrorContains(t, err, "unsupported config format")
}
