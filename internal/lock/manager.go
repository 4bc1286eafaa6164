package lock

import "sync"

// keyQueue tracks ownership of a single key.
//
// held is true while some caller owns the key. waiters holds one channel per
// blocked caller in arrival order; closing a waiter's channel transfers
// ownership to it. refs counts the holder plus all waiters so the entry can
// be dropped once nobody references it.
type keyQueue struct {
	held    bool
	waiters []chan struct{}
	refs    int
}

// Manager serializes callers per key with FIFO hand-off.
//
// Thread-safety: all methods are safe for concurrent use.
// The zero value is not usable; create with NewManager.
type Manager struct {
	mu   sync.Mutex
	keys map[string]*keyQueue
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{
		keys: make(map[string]*keyQueue),
	}
}

// Acquire blocks until the caller owns key and returns the release function.
//
// The release function must be called exactly once when the work is done;
// extra calls are ignored. Acquire is not reentrant (see package docs).
func (m *Manager) Acquire(key string) (release func()) {
	m.mu.Lock()
	q, ok := m.keys[key]
	if !ok {
		q = &keyQueue{}
		m.keys[key] = q
	}
	q.refs++

	if !q.held {
		q.held = true
		m.mu.Unlock()
		return m.releaser(key, q)
	}

	wait := make(chan struct{})
	q.waiters = append(q.waiters, wait)
	m.mu.Unlock()

	// Ownership arrives already marked held; the releasing side never clears
	// held while waiters remain, so nobody can barge in between.
	<-wait
	return m.releaser(key, q)
}

func (m *Manager) releaser(key string, q *keyQueue) func() {
	var once sync.Once
	return func() {
		once.Do(func() { m.release(key, q) })
	}
}

func (m *Manager) release(key string, q *keyQueue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q.refs--

	if len(q.waiters) > 0 {
		next := q.waiters[0]

		// Nil out the slot so the backing array does not pin the channel.
		q.waiters[0] = nil
		if len(q.waiters) == 1 {
			q.waiters = q.waiters[:0]
		} else {
			q.waiters = q.waiters[1:]
		}

		close(next)
		return
	}

	q.held = false
	if q.refs == 0 {
		delete(m.keys, key)
	}
}

// Do runs fn while owning key and returns fn's results unchanged.
//
// The key is released when fn returns, including when fn returns an error
// or panics (the panic continues to propagate after release).
func Do[T any](m *Manager, key string, fn func() (T, error)) (T, error) {
	release := m.Acquire(key)
	defer release()
	return fn()
}

// Waiting returns the number of callers blocked on key (excluding the holder).
func (m *Manager) Waiting(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.keys[key]
	if !ok {
		return 0
	}
	return len(q.waiters)
}

// Held reports whether key is currently owned.
func (m *Manager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.keys[key]
	return ok && q.held
}

// Len returns the number of keys that are held or have waiters.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
