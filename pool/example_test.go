package pool_test

import (
	"fmt"
	"sync/atomic"

	"github.com/jirevwe/workpool/pool"
)

func Example() {
	p, err := pool.New(4)
	if err != nil {
		fmt.Println(err)
		return
	}

	var done atomic.Int32
	for i := 0; i < 5; i++ {
		_ = p.Submit(func() { done.Add(1) })
	}

	// Close drains the queue and joins every worker
	if err := p.Close(); err != nil {
		fmt.Println(err)
	}

	fmt.Println(done.Load())
	fmt.Println(p.Submit(func() {}))
	// Output:
	// 5
	// worker pool is shut down
}
