package daemon

import (
	"settle/internal/model"
	"sync"
	"time"
)

type RootState struct {
	mu        sync.RWMutex
	RootID    uint
	Path      string
	Recursive bool
	Status    model.RootStatus
	StartedAt time.Time
}

func NewRootState(root model.Root) *RootState {
	return &RootState{
		RootID:    root.ID,
		Path:      root.Path,
		Recursive: root.Recursive,
		Status:    model.RootStatusActive,
		StartedAt: time.Now(),
	}
}

func (s *RootState) SetStatus(status model.RootStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
}

func (s *RootState) Snapshot() model.RootSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.RootSnapshot{
		RootID:    s.RootID,
		Path:      s.Path,
		Recursive: s.Recursive,
		Status:    s.Status,
		StartedAt: s.StartedAt,
	}
}

// EngineState accumulates what the recorder has seen come out of the engine.
type EngineState struct {
	mu        sync.RWMutex
	backend   string
	startedAt time.Time
	batches   int
	events    int
	errors    int
	lastFlush *time.Time
	lastError string
}

func NewEngineState(backend string) *EngineState {
	return &EngineState{
		backend:   backend,
		startedAt: time.Now(),
	}
}

func (s *EngineState) RecordBatch(batch model.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches++
	s.events += len(batch.Events)
	s.lastFlush = new(batch.EmittedAt)
}

func (s *EngineState) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errors++
	s.lastError = err.Error()
}

func (s *EngineState) Snapshot(pending int) model.EngineSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.EngineSnapshot{
		Backend:      s.backend,
		StartedAt:    s.startedAt,
		Batches:      s.batches,
		Events:       s.events,
		Errors:       s.errors,
		PendingPaths: pending,
		LastFlush:    s.lastFlush,
		LastError:    s.lastError,
	}
}
