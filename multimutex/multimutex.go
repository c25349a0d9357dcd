package multimutex

import (
	"fmt"
	"sync"
)

// cntMutex is a mutex with a counter of the goroutines holding or waiting
// for it.
type cntMutex struct {
	cnt int
	sync.Mutex
}

// Mutex hands out one mutex per key, so only a single goroutine at a time
// works on a given key while work on other keys proceeds in parallel. A key's
// mutex lives only as long as someone holds or waits for it.
type Mutex[T comparable] struct {
	// mutexes maps a key to the cntMutex shared by every caller of that
	// key.
	mutexes map[T]*cntMutex

	// mapMtx guards the mutexes map.
	mapMtx sync.Mutex
}

// NewMutex creates a new Mutex.
func NewMutex[T comparable]() *Mutex[T] {
	return &Mutex[T]{
		mutexes: make(map[T]*cntMutex),
	}
}

// Lock locks the mutex of the given key, blocking until it is available.
func (c *Mutex[T]) Lock(key T) {
	c.mapMtx.Lock()
	mtx, ok := c.mutexes[key]
	if ok {
		// One more goroutine is now waiting for this key.
		mtx.cnt++
	} else {
		mtx = &cntMutex{
			cnt: 1,
		}
		c.mutexes[key] = mtx
	}
	c.mapMtx.Unlock()

	mtx.Lock()
}

// Unlock unlocks the mutex of the given key. It is a run-time error if the
// key is not locked on entry to Unlock.
func (c *Mutex[T]) Unlock(key T) {
	c.mapMtx.Lock()

	mtx, ok := c.mutexes[key]
	if !ok {
		panic(fmt.Sprintf("double unlock for key %v", key))
	}

	// The last caller removes the entry. Every other waiter has already
	// bumped the counter under mapMtx, so none of them can be left holding
	// a deleted mutex.
	mtx.cnt--
	if mtx.cnt == 0 {
		delete(c.mutexes, key)
	}
	c.mapMtx.Unlock()

	mtx.Unlock()
}
