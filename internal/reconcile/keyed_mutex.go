package reconcile

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// keyedMutex hands out one mutex per invoice and forgets it once the last
// holder or waiter is gone.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[snowflake.ID]*refLock)}
}

func (k *keyedMutex) Lock(id snowflake.ID) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
