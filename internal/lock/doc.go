// Package lock serializes work per key.
//
// A Manager hands out exclusive ownership of a key to one caller at a time.
// Callers waiting on the same key are served strictly in arrival order
// (FIFO): ownership is passed directly from the releasing holder to the
// oldest waiter, so a newcomer can never overtake a queued caller.
// Different keys never wait on each other; the only shared state is the
// small map of active keys, guarded by a coarse mutex that is held only
// while queue bookkeeping runs, never while the caller's work runs.
//
// # Usage Contract
//
// Ownership is NOT reentrant. Calling Acquire or Do for a key from inside
// work that already holds that key deadlocks forever:
//
//	lock.Do(m, "dallas", func() (int, error) {
//	    return lock.Do(m, "dallas", inner) // never returns
//	})
//
// This is not detected at runtime. Keep critical sections short and pure
// (in-memory arithmetic plus one storage commit); every queued caller on the
// same key waits for them. There is no acquisition timeout.
package lock
