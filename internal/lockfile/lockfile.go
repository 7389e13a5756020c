// Package lockfile provides a process-wide per-path lock manager.
//
// Stores that share on-disk files across sessions (the local memory store)
// acquire the lock for a path before reading or writing it. One Manager is
// created in the server bootstrap and passed to whoever needs it; there is no
// ambient singleton.
package lockfile

import "sync"

// Manager hands out one mutex per canonical path. Safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager returns an empty, ready-to-use Manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for path, creating it on first use, and returns the
// unlock function.
//
//	unlock := locks.Lock(path)
//	defer unlock()
func (m *Manager) Lock(path string) func() {
	m.mu.Lock()
	l, ok := m.locks[path]
	if !ok {
		l = &sync.Mutex{}
		m.locks[path] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}
