// Package statemgr provides a lightweight in-memory key/value status
// cache. It is not a graph store.Store[S] implementation: it holds only
// one status string per task id, never full workflow state.
package statemgr

import "sync"

// Manager is a concurrency-safe map of task id to its last known status
// string. The workflow executor records the name of the step it is about
// to run, before running it, and deletes the entry when the task
// finalizes.
type Manager struct {
	mu    sync.RWMutex
	state map[string]string
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{state: make(map[string]string)}
}

// Set records status for taskID, overwriting any previous value.
func (m *Manager) Set(taskID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[taskID] = status
}

// Get returns the last recorded status for taskID and whether one exists.
func (m *Manager) Get(taskID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.state[taskID]
	return status, ok
}

// Delete removes taskID from the cache, used once a terminal status has
// been durably persisted and the in-memory copy is no longer needed.
func (m *Manager) Delete(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state, taskID)
}

// Len reports the number of tracked tasks.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state)
}
