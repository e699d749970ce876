package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jirevwe/workpool/pool"
	"github.com/stretchr/testify/require"
)

func TestJournal_RecordsPoolLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	j := New(s, WithLogger(slogger), WithPoolName("test"))

	p, err := pool.New(3, pool.WithLogger(slogger), pool.WithObserver(j))
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 20; i++ {
		id, submitErr := p.SubmitID(func() {})
		require.NoError(t, submitErr)
		ids = append(ids, id)
	}
	panicID, err := p.SubmitID(func() { panic("boom") })
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, j.Close())

	written, dropped, failed := j.Stats()
	require.Equal(t, uint64(63), written)
	require.Zero(t, dropped)
	require.Zero(t, failed)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, map[Status]int{StatusCompleted: 20, StatusPanicked: 1}, counts)

	for _, id := range ids {
		rec, getErr := s.Get(ctx, id)
		require.NoError(t, getErr)
		require.Equal(t, "test", rec.Pool)
		require.GreaterOrEqual(t, rec.Worker, 0)
		require.Less(t, rec.Worker, 3)
		require.True(t, rec.StartedAt.Valid)
		require.True(t, rec.FinishedAt.Valid)
	}

	rec, err := s.Get(ctx, panicID)
	require.NoError(t, err)
	require.Equal(t, StatusPanicked, rec.Status)

	detail, err := rec.Decode()
	require.NoError(t, err)
	require.Equal(t, "boom", detail.Panic)
	require.NotEmpty(t, detail.Stack)
}

func TestJournal_CloseTwice(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "workpool.db"), slogger)
	require.NoError(t, err)
	defer s.Close()

	j := New(s, WithLogger(slogger))
	require.NoError(t, j.Close())
	require.ErrorIs(t, j.Close(), ErrClosed)

	// events after close are counted, never written
	j.JobSubmitted(pool.JobInfo{ID: "late"})
	_, dropped, _ := j.Stats()
	require.Equal(t, uint64(1), dropped)
}

func TestJournal_FailedWritesAreCounted(t *testing.T) {
	s := openTestStore(t)
	j := New(s, WithLogger(slogger), WithBuffer(4))

	// a job that was never submitted cannot start
	j.JobStarted(pool.JobInfo{ID: "unknown", Worker: 0})
	require.NoError(t, j.Close())

	written, _, failed := j.Stats()
	require.Zero(t, written)
	require.Equal(t, uint64(1), failed)
}
