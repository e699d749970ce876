package workpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMux_ProcessTask(t *testing.T) {
	m := NewMux()

	var got string
	m.HandleFunc("greet", func(_ context.Context, task *Task) error {
		got = string(task.Payload())
		return nil
	})

	require.True(t, m.Has("greet"))
	require.False(t, m.Has("missing"))

	task := NewTask("greet", []byte("hello")).WithTaskId("01HZX")
	require.NoError(t, m.ProcessTask(context.Background(), task))
	require.Equal(t, "hello", got)
	require.Equal(t, "01HZX", task.Id())
	require.Equal(t, "greet", task.Type())
}

func TestMux_NotFound(t *testing.T) {
	m := NewMux()

	err := m.ProcessTask(context.Background(), NewTask("missing", nil))
	require.ErrorIs(t, err, ErrHandlerNotFound)
	require.ErrorContains(t, err, `"missing"`)

	// a later registration is picked up by the next task
	m.HandleFunc("missing", func(context.Context, *Task) error { return nil })
	require.NoError(t, m.ProcessTask(context.Background(), NewTask("missing", nil)))
}

func TestMux_Names(t *testing.T) {
	m := NewMux()
	noop := HandlerFunc(func(context.Context, *Task) error { return nil })

	m.Handle("b", noop)
	m.Handle("a", noop)
	m.Handle("b", noop)

	require.Equal(t, []string{"a", "b"}, m.Names())
}
