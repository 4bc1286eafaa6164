package lock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestAcquire_Uncontended(t *testing.T) {
	m := NewManager()

	release := m.Acquire("dallas")
	assert.True(t, m.Held("dallas"))
	assert.Equal(t, 1, m.Len())

	release()
	assert.False(t, m.Held("dallas"))
	assert.Equal(t, 0, m.Len(), "idle key should be dropped")
}

func TestRelease_Idempotent(t *testing.T) {
	m := NewManager()

	release := m.Acquire("dallas")
	release()
	release()

	// A second holder must still be able to acquire and the map must be clean.
	release2 := m.Acquire("dallas")
	assert.True(t, m.Held("dallas"))
	release2()
	assert.Equal(t, 0, m.Len())
}

func TestAcquire_FIFOOrder(t *testing.T) {
	m := NewManager()
	release := m.Acquire("dallas")

	const waiters = 10
	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r := m.Acquire("dallas")
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			r()
		}(i)

		// Each goroutine must be queued before the next one starts so that
		// arrival order is well defined.
		want := i + 1
		waitFor(t, func() bool { return m.Waiting("dallas") == want })
	}

	release()
	wg.Wait()

	expected := make([]int, waiters)
	for i := range expected {
		expected[i] = i
	}
	assert.Equal(t, expected, order)
	assert.Equal(t, 0, m.Len())
}

func TestAcquire_MutualExclusion(t *testing.T) {
	m := NewManager()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		counter int
		mu      sync.Mutex
	)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Do(m, "dallas", func() (struct{}, error) {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				counter++ // guarded by the key lock only

				mu.Lock()
				inside--
				mu.Unlock()
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 100, counter)
}

func TestDo_ReturnsResultUnchanged(t *testing.T) {
	m := NewManager()

	v, err := Do(m, "dallas", func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	sentinel := errors.New("boom")
	v, err = Do(m, "dallas", func() (int, error) { return 7, sentinel })
	assert.Same(t, sentinel, err)
	assert.Equal(t, 7, v)
	assert.False(t, m.Held("dallas"), "error must release the key")
}

func TestDo_PanicReleases(t *testing.T) {
	m := NewManager()

	assert.Panics(t, func() {
		_, _ = Do(m, "dallas", func() (int, error) { panic("fail") })
	})
	assert.False(t, m.Held("dallas"))

	v, err := Do(m, "dallas", func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestAcquire_IndependentKeys(t *testing.T) {
	m := NewManager()

	release := m.Acquire("dallas")
	defer release()

	done := make(chan struct{})
	go func() {
		r := m.Acquire("atlanta")
		r()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("a held key blocked an unrelated key")
	}
	assert.Equal(t, 0, m.Waiting("dallas"))
}

func TestWaiting_UnknownKey(t *testing.T) {
	m := NewManager()
	assert.Equal(t, 0, m.Waiting("nope"))
	assert.False(t, m.Held("nope"))
}
