package daemon

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"settle/internal/backend"
	"settle/internal/config"
	"settle/internal/debouncer"
	"settle/internal/logger"
	"settle/internal/model"
	"settle/internal/pathutil"
	"settle/internal/pipeline"
	"settle/internal/repository"
	"slices"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

const (
	serviceTimeout = 10 * time.Second
	pruneInterval  = time.Hour
)

// Manager wires a backend, the ignore filter and the engine together and
// keeps them running under one supervisor.
type Manager struct {
	mu       sync.RWMutex
	roots    map[uint]*RootState
	cfg      *config.Config
	backend  backend.Backend
	engine   *debouncer.Debouncer
	events   <-chan model.Event
	state    *EngineState
	sup      *suture.Supervisor
	repo     *repository.HistoryRepository
	rootRepo *repository.RootRepository
}

func NewManager(cfg *config.Config) (*Manager, error) {
	b, err := backend.New(backend.Kind(cfg.Backend), cfg.BackendOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	engine, err := debouncer.New(cfg.DebouncerOptions()...)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to create debouncer: %w", err)
	}

	m, err := newManager(cfg, b, engine)
	if err != nil {
		engine.Stop()
		_ = b.Close()
		return nil, err
	}
	return m, nil
}

func newManager(cfg *config.Config, b backend.Backend, engine *debouncer.Debouncer) (*Manager, error) {
	ig, err := pipeline.NewIgnore(cfg.IgnoreList)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		roots:    make(map[uint]*RootState),
		cfg:      cfg,
		backend:  b,
		engine:   engine,
		events:   pipeline.Filter(b.Events(), ig),
		state:    NewEngineState(cfg.Backend),
		repo:     repository.NewHistoryRepository(),
		rootRepo: repository.NewRootRepository(),
	}

	m.sup = suture.New("settle", suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Log.Warn("supervisor event",
				zap.String("event", e.String()))
		},
		Timeout: serviceTimeout,
	})
	m.sup.Add(engine)
	m.sup.Add(&service{name: "pump", serve: m.pump})
	m.sup.Add(&service{name: "recorder", serve: m.record})
	if cfg.HistoryRetention > 0 {
		m.sup.Add(&service{name: "pruner", serve: m.prune})
	}

	return m, nil
}

// Serve runs every service until ctx is done, then stops the engine and
// records whatever it still hands out.
func (m *Manager) Serve(ctx context.Context) error {
	err := m.sup.Serve(ctx)

	m.engine.Stop()
	for batch := range m.engine.Batches() {
		m.recordBatch(batch)
	}
	for err := range m.engine.Errors() {
		m.recordError(err)
	}
	if cerr := m.backend.Close(); cerr != nil {
		logger.Log.Warn("failed to close backend", zap.Error(cerr))
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// pump moves filtered backend events into the engine. Backend errors are
// handed over as well so a lost event turns into a rescan.
func (m *Manager) pump(ctx context.Context) error {
	errCh := m.backend.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-m.events:
			if !ok {
				return suture.ErrDoNotRestart
			}
			if err := m.engine.IngestEvent(event); errors.Is(err, debouncer.ErrStopped) {
				return suture.ErrDoNotRestart
			}

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			m.engine.ReportError(err)
		}
	}
}

func (m *Manager) record(ctx context.Context) error {
	batchCh, errCh := m.engine.Batches(), m.engine.Errors()

	for batchCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil

		case batch, ok := <-batchCh:
			if !ok {
				batchCh = nil
				continue
			}
			m.recordBatch(batch)

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			m.recordError(err)
		}
	}

	return suture.ErrDoNotRestart
}

// prune drops history older than the retention window, once at start and
// then every pruneInterval.
func (m *Manager) prune(ctx context.Context) error {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := m.repo.Prune(time.Now().Add(-m.cfg.HistoryRetention))
		if err != nil {
			logger.Log.Warn("failed to prune history", zap.Error(err))
		} else if n > 0 {
			logger.Log.Info("history pruned",
				zap.Int64("rows", n),
				zap.Duration("retention", m.cfg.HistoryRetention))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) recordBatch(batch model.Batch) {
	if err := m.repo.Save(batch); err != nil {
		logger.Log.Warn("failed to save history",
			zap.String("batch", batch.ID.String()),
			zap.Error(err))
	}
	m.state.RecordBatch(batch)

	logger.Log.Debug("batch emitted",
		zap.String("batch", batch.ID.String()),
		zap.Int("events", len(batch.Events)))
}

func (m *Manager) recordError(err error) {
	m.state.RecordError(err)
	logger.Log.Warn("engine error", zap.Error(err))
}

// StartRoot begins watching root in both the backend and the engine's
// identity cache.
func (m *Manager) StartRoot(root model.Root) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.roots[root.ID]; exists {
		return fmt.Errorf("root %d already watched", root.ID)
	}

	if err := m.engine.AddRoot(root.Path, root.Recursive); err != nil {
		return err
	}
	if err := m.backend.Watch(root.Path, root.Recursive); err != nil {
		_ = m.engine.RemoveRoot(root.Path)
		return fmt.Errorf("failed to watch %s: %w", root.Path, err)
	}

	m.roots[root.ID] = NewRootState(root)

	logger.Log.Info("root started",
		zap.Uint("id", root.ID),
		zap.String("path", root.Path),
		zap.Bool("recursive", root.Recursive))

	return nil
}

// AddRoot persists a new root and starts watching it.
func (m *Manager) AddRoot(path string, recursive bool) (model.Root, error) {
	canonical, err := pathutil.Canonical(path)
	if err != nil {
		return model.Root{}, err
	}

	root, err := m.rootRepo.Add(canonical, recursive)
	if err != nil {
		return model.Root{}, fmt.Errorf("failed to save root: %w", err)
	}

	if err := m.StartRoot(root); err != nil {
		_ = m.rootRepo.UpdateStatus(root.ID, model.RootStatusFailed)
		root.Status = model.RootStatusFailed
		return root, err
	}

	return root, nil
}

func (m *Manager) StopRoot(id uint) error {
	m.mu.Lock()
	state, exists := m.roots[id]
	if exists {
		delete(m.roots, id)
	}
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("root %d not found", id)
	}

	if state.Snapshot().Status == model.RootStatusActive {
		if err := m.backend.Unwatch(state.Path); err != nil {
			logger.Log.Debug("failed to unwatch root",
				zap.String("path", state.Path),
				zap.Error(err))
		}
	}
	_ = m.engine.RemoveRoot(state.Path)

	logger.Log.Info("root stopped",
		zap.Uint("id", id))

	return nil
}

// RemoveRoot stops watching the root and forgets it.
func (m *Manager) RemoveRoot(id uint) error {
	_ = m.StopRoot(id)
	return m.rootRepo.Delete(id)
}

// PauseRoot stops backend delivery for the root but keeps its identity
// cache, so a later resume can tell what changed in between.
func (m *Manager) PauseRoot(id uint) error {
	state, err := m.root(id)
	if err != nil {
		return err
	}

	if err := m.backend.Unwatch(state.Path); err != nil {
		return fmt.Errorf("failed to unwatch %s: %w", state.Path, err)
	}
	state.SetStatus(model.RootStatusPaused)
	_ = m.rootRepo.UpdateStatus(id, model.RootStatusPaused)

	logger.Log.Info("root paused",
		zap.Uint("id", id))

	return nil
}

// ResumeRoot re-watches a paused root and requests a rescan, since nothing
// was observed while it was paused.
func (m *Manager) ResumeRoot(id uint) error {
	state, err := m.root(id)
	if err != nil {
		return err
	}

	if err := m.backend.Watch(state.Path, state.Recursive); err != nil {
		return fmt.Errorf("failed to watch %s: %w", state.Path, err)
	}
	state.SetStatus(model.RootStatusActive)
	_ = m.rootRepo.UpdateStatus(id, model.RootStatusActive)

	if err := m.engine.Rescan(time.Time{}); err != nil {
		return err
	}

	logger.Log.Info("root resumed",
		zap.Uint("id", id))

	return nil
}

func (m *Manager) root(id uint) (*RootState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.roots[id]
	if !exists {
		return nil, fmt.Errorf("root %d not found", id)
	}
	return state, nil
}

func (m *Manager) StopAll() {
	m.mu.RLock()
	ids := make([]uint, 0, len(m.roots))
	for id := range m.roots {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.StopRoot(id)
	}
}

func (m *Manager) Snapshots() []model.RootSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := make([]model.RootSnapshot, 0, len(m.roots))
	for _, state := range m.roots {
		snaps = append(snaps, state.Snapshot())
	}
	slices.SortFunc(snaps, func(a, b model.RootSnapshot) int {
		return cmp.Compare(a.RootID, b.RootID)
	})

	return snaps
}

func (m *Manager) Engine() model.EngineSnapshot {
	return m.state.Snapshot(m.engine.Pending())
}

type service struct {
	name  string
	serve func(ctx context.Context) error
}

func (s *service) Serve(ctx context.Context) error {
	return s.serve(ctx)
}

func (s *service) String() string {
	return s.name
}
