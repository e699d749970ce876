package workpool

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jirevwe/workpool/config"
	"github.com/jirevwe/workpool/journal"
	"github.com/jirevwe/workpool/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Name = "test"
	cfg.Workers = 3
	cfg.Journal.Enabled = true
	cfg.Journal.Path = filepath.Join(t.TempDir(), "workpool.db")
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = "test"

	return cfg
}

type payloadRecorder struct {
	mu       sync.Mutex
	payloads []string
}

func (r *payloadRecorder) ProcessTask(_ context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if string(task.Payload()) == "bad" {
		return errors.New("bad payload")
	}
	r.payloads = append(r.payloads, string(task.Payload()))
	return nil
}

func TestServer_DefaultConfig(t *testing.T) {
	s, err := NewServer(nil, WithLogger(slogger))
	require.NoError(t, err)
	require.Nil(t, s.Store())
	require.Nil(t, s.Metrics())

	done := make(chan struct{})
	require.NoError(t, s.Submit(func() { close(done) }))
	<-done

	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Submit(func() {}), pool.ErrPoolShutDown)
}

func TestServer_EnqueueNamedTasks(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()

	s, err := NewServer(cfg, WithLogger(slogger), WithRegisterer(reg))
	require.NoError(t, err)

	rec := &payloadRecorder{}
	s.Handle("echo", rec)

	var ids []string
	for _, payload := range []string{"a", "b", "c", "bad"} {
		id, enqueueErr := s.Enqueue(ctx, "echo", []byte(payload))
		require.NoError(t, enqueueErr)
		ids = append(ids, id)
	}

	_, err = s.Enqueue(ctx, "missing", nil)
	require.ErrorIs(t, err, ErrHandlerNotFound)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.ElementsMatch(t, []string{"a", "b", "c"}, rec.payloads)

	// a handler error is not a job failure
	stats := s.Pool().Stats()
	require.Equal(t, uint64(4), stats.Completed)
	require.Zero(t, stats.Panicked)
	require.Equal(t, float64(4), testutil.ToFloat64(s.Metrics().JobsCompleted))

	// the journal was flushed on close and keeps the task ids
	store, err := journal.Open(cfg.Journal.Path, slogger)
	require.NoError(t, err)
	defer store.Close()

	records, err := store.List(ctx, journal.StatusCompleted)
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, id := range ids {
		rec, getErr := store.Get(ctx, id)
		require.NoError(t, getErr)
		require.Equal(t, "test", rec.Pool)
	}
}

func TestServer_TaskContextOutlivesCaller(t *testing.T) {
	s, err := NewServer(nil, WithLogger(slogger))
	require.NoError(t, err)

	type ctxKey struct{}
	type observed struct {
		value any
		err   error
	}
	seen := make(chan observed, 1)
	s.Handle("ctx", HandlerFunc(func(ctx context.Context, task *Task) error {
		seen <- observed{value: ctx.Value(ctxKey{}), err: ctx.Err()}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "value"))
	_, err = s.Enqueue(ctx, "ctx", nil)
	cancel()
	require.NoError(t, err)

	require.NoError(t, s.Close())

	got := <-seen
	require.Equal(t, "value", got.value)
	require.NoError(t, got.err)
}

func TestServer_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 0

	_, err := NewServer(cfg, WithLogger(slogger))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestServer_SpawnFailureClosesJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false

	spawner := pool.SpawnerFunc(func(int, func()) error {
		return errors.New("no threads left")
	})

	_, err := NewServer(cfg, WithLogger(slogger), WithSpawner(spawner))
	require.ErrorIs(t, err, pool.ErrSpawnFailure)

	// the database was released and can be opened again
	store, err := journal.Open(cfg.Journal.Path, slogger)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestServer_DuplicateMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	cfg := testConfig(t)
	cfg.Journal.Enabled = false

	s, err := NewServer(cfg, WithLogger(slogger), WithRegisterer(reg))
	require.NoError(t, err)
	defer s.Close()

	_, err = NewServer(cfg, WithLogger(slogger), WithRegisterer(reg))
	require.ErrorContains(t, err, "failed to register metrics")
}

func TestServer_CloseTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 1
	cfg.ShutdownTimeout = config.Duration(20 * time.Millisecond)

	s, err := NewServer(cfg, WithLogger(slogger))
	require.NoError(t, err)

	gate := make(chan struct{})
	require.NoError(t, s.Submit(func() { <-gate }))

	require.ErrorIs(t, s.Close(), context.DeadlineExceeded)

	close(gate)
	<-s.Pool().Done()
}

func TestServer_ExtraObserver(t *testing.T) {
	var mu sync.Mutex
	exited := 0
	ob := &exitCounter{onExit: func() {
		mu.Lock()
		exited++
		mu.Unlock()
	}}

	cfg := config.Default()
	cfg.Workers = 2

	s, err := NewServer(cfg, WithLogger(slogger), WithObserver(ob), WithMux(NewMux()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.Equal(t, 2, exited)
}

type exitCounter struct {
	pool.NopObserver
	onExit func()
}

func (e *exitCounter) WorkerExited(pool.WorkerInfo) { e.onExit() }
