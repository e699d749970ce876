package workpool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrHandlerNotFound = errors.New("handler not found")

// Mux routes a task to the handler registered under its type. Names are
// matched exactly.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// Handle registers h for tasks named name, replacing any earlier handler.
func (m *Mux) Handle(name string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[name] = h
}

func (m *Mux) HandleFunc(name string, fn func(context.Context, *Task) error) {
	m.Handle(name, HandlerFunc(fn))
}

func (m *Mux) lookup(name string) (Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.handlers[name]
	return h, ok
}

// Has reports whether a handler is registered for name.
func (m *Mux) Has(name string) bool {
	_, ok := m.lookup(name)
	return ok
}

// Names returns the registered task names, sorted.
func (m *Mux) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// ProcessTask runs the handler registered for the task type. A task without
// a handler fails with ErrHandlerNotFound.
func (m *Mux) ProcessTask(ctx context.Context, task *Task) error {
	h, ok := m.lookup(task.Type())
	if !ok {
		return notFound(task.Type())
	}

	return h.ProcessTask(ctx, task)
}

func notFound(name string) error {
	return fmt.Errorf("%w for task %q", ErrHandlerNotFound, name)
}
