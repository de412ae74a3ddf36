package history

import "sync"

// KeyedLocker provides per-gate mutual exclusion. Each gate key gets its
// own mutex, so different gates are recorded concurrently while two
// evaluations of the same gate are serialized.
type KeyedLocker struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-key mutexes
}

// NewKeyedLocker creates a new KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for key, creating it on first use.
func (k *KeyedLocker) Lock(key string) {
	k.mu.Lock()
	l, exists := k.locks[key]
	if !exists {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
}

// Unlock releases the mutex for key.
func (k *KeyedLocker) Unlock(key string) {
	k.mu.Lock()
	l, exists := k.locks[key]
	k.mu.Unlock()

	if exists {
		l.Unlock()
	}
}
