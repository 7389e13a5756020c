package lockfile

import (
	"sync"
	"testing"
)

func TestLock_MutualExclusionPerPath(t *testing.T) {
	t.Parallel()

	m := NewManager()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("data/.memory.yaml")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestLock_DistinctPathsIndependent(t *testing.T) {
	t.Parallel()

	m := NewManager()
	unlockA := m.Lock("a")

	done := make(chan struct{})
	go func() {
		unlockB := m.Lock("b")
		unlockB()
		close(done)
	}()

	// Lock on "b" must not wait on the lock for "a".
	<-done
	unlockA()
}
