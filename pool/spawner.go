package pool

import "runtime"

// Spawner starts the execution context of a worker. Spawn must either start
// run exactly once and return nil, or not start it at all and return an error.
type Spawner interface {
	Spawn(id int, run func()) error
}

// SpawnerFunc adapts an ordinary function to a Spawner.
type SpawnerFunc func(id int, run func()) error

func (fn SpawnerFunc) Spawn(id int, run func()) error {
	return fn(id, run)
}

// goroutineSpawner runs every worker on its own goroutine. With lockOSThread
// each worker also owns a dedicated OS thread for its whole life.
type goroutineSpawner struct {
	lockOSThread bool
}

func (s goroutineSpawner) Spawn(_ int, run func()) error {
	go func() {
		if s.lockOSThread {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
		}
		run()
	}()
	return nil
}
