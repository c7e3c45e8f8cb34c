package index

import "sync"

// keyedLocks hands out one RWMutex per corpus name. Entries are reference
// counted and dropped when the last holder releases, so the map only holds
// names with requests in flight.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	rw   sync.RWMutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*keyedLock)}
}

func (k *keyedLocks) acquire(name string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[name]
	if !ok {
		l = &keyedLock{}
		k.locks[name] = l
	}
	l.refs++
	return l
}

func (k *keyedLocks) release(name string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, name)
	}
}

// Lock takes the exclusive lock for name and returns its release func.
func (k *keyedLocks) Lock(name string) func() {
	l := k.acquire(name)
	l.rw.Lock()
	return func() {
		l.rw.Unlock()
		k.release(name, l)
	}
}

// RLock takes a shared lock for name and returns its release func.
func (k *keyedLocks) RLock(name string) func() {
	l := k.acquire(name)
	l.rw.RLock()
	return func() {
		l.rw.RUnlock()
		k.release(name, l)
	}
}

// size returns the number of names currently held.
func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
