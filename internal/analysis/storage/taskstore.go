package storage

import (
	"sync"
	"time"

	"github.com/veridoc/veridoc-backend/internal/analysis/domain"
)

// TaskStore provides in-memory storage for analysis tasks. Task state only
// matters for the lifetime of a session plus a short retrieval window, so
// it lives in RAM and expires after a TTL.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.AnalysisTask
	ttl   time.Duration
}

// NewTaskStore creates an in-memory task store with the given TTL
func NewTaskStore(ttl time.Duration) *TaskStore {
	s := &TaskStore{
		tasks: make(map[string]*domain.AnalysisTask),
		ttl:   ttl,
	}
	go s.cleanupLoop()
	return s
}

// Store records a task
func (s *TaskStore) Store(task *domain.AnalysisTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.Request.TaskID] = task
}

// Get retrieves a task by ID, or nil if unknown or expired
func (s *TaskStore) Get(taskID string) *domain.AnalysisTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tasks[taskID]
}

// Update applies a mutation to a stored task under the store lock
func (s *TaskStore) Update(taskID string, update func(*domain.AnalysisTask)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[taskID]; ok {
		update(task)
	}
}

// Delete removes a task
func (s *TaskStore) Delete(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
}

// cleanupLoop periodically removes expired tasks
func (s *TaskStore) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for range ticker.C {
		s.cleanup()
	}
}

func (s *TaskStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.ttl)
	for id, task := range s.tasks {
		if task.CreatedAt.Before(cutoff) {
			delete(s.tasks, id)
		}
	}
}
