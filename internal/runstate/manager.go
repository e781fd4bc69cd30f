package runstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"limn-workers/internal/common/logger"
)

const DefaultKeyPrefix = "runpod_state"

// Manager owns the load/save lifecycle of per-workflow run states.
type Manager struct {
	store  Store
	prefix string
	logger logger.Logger
	now    func() time.Time

	// serialises read-modify-write cycles in this process
	mu sync.Mutex
}

func NewManager(store Store, prefix string, log logger.Logger) *Manager {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Manager{
		store:  store,
		prefix: prefix,
		logger: log.WithFields(map[string]interface{}{"component": "runstate"}),
		now:    time.Now,
	}
}

// Key returns the storage key for a workflow; an empty name yields the
// legacy generic key.
func (m *Manager) Key(workflowName string) string {
	if workflowName == "" {
		return m.prefix
	}
	return m.prefix + "_" + workflowName
}

// Load returns the saved state of a workflow, or a fresh idle state carrying
// the workflow name when nothing usable is stored.
func (m *Manager) Load(ctx context.Context, workflowName string) (*RunState, error) {
	if workflowName == "" {
		return New(""), nil
	}

	key := m.Key(workflowName)
	state, err := m.store.Load(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return New(workflowName), nil
	case errors.Is(err, ErrCorruptState):
		m.logger.Warn("discarding unreadable run state", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return New(workflowName), nil
	case err != nil:
		return nil, fmt.Errorf("load run state %s: %w", key, err)
	}

	state.normalize()
	if state.WorkflowName == "" {
		state.WorkflowName = workflowName
	}
	return state, nil
}

// Save persists a state under its workflow key. States without a workflow
// name are not persisted.
func (m *Manager) Save(ctx context.Context, state *RunState) error {
	if state == nil || state.WorkflowName == "" {
		m.logger.Debug("skipping save of run state without workflow name", nil)
		return nil
	}
	state.normalize()
	state.UpdatedAt = m.now().UTC()

	key := m.Key(state.WorkflowName)
	if err := m.store.Save(ctx, key, state); err != nil {
		return fmt.Errorf("save run state %s: %w", key, err)
	}
	return nil
}

// Update loads a workflow's state, applies fn and saves the result.
func (m *Manager) Update(ctx context.Context, workflowName string, fn func(*RunState)) (*RunState, error) {
	if workflowName == "" {
		return nil, errors.New("workflow name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.Load(ctx, workflowName)
	if err != nil {
		return nil, err
	}
	fn(state)
	state.WorkflowName = workflowName
	if err := m.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Reset deletes one workflow's state, or every run state including the
// legacy key when workflowName is empty.
func (m *Manager) Reset(ctx context.Context, workflowName string) error {
	if workflowName != "" {
		if err := m.store.Delete(ctx, m.Key(workflowName)); err != nil {
			return fmt.Errorf("reset run state %s: %w", workflowName, err)
		}
		return nil
	}

	keys, err := m.store.Keys(ctx, m.prefix)
	if err != nil {
		return fmt.Errorf("list run states: %w", err)
	}
	owned := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == m.prefix || strings.HasPrefix(key, m.prefix+"_") {
			owned = append(owned, key)
		}
	}
	if err := m.store.Delete(ctx, owned...); err != nil {
		return fmt.Errorf("reset run states: %w", err)
	}
	m.logger.Info("reset all run states", map[string]interface{}{"count": len(owned)})
	return nil
}

// MigrateLegacy moves a state stored under the generic key to its workflow
// key and removes the generic key. It returns the migrated workflow name.
func (m *Manager) MigrateLegacy(ctx context.Context) (string, error) {
	legacyKey := m.Key("")
	state, err := m.store.Load(ctx, legacyKey)
	switch {
	case errors.Is(err, ErrNotFound):
		return "", nil
	case errors.Is(err, ErrCorruptState):
		m.logger.Warn("dropping unreadable legacy run state", map[string]interface{}{"error": err.Error()})
		state = nil
	case err != nil:
		return "", fmt.Errorf("load legacy run state: %w", err)
	}

	migrated := ""
	if state != nil && state.WorkflowName != "" {
		if err := m.store.Save(ctx, m.Key(state.WorkflowName), state); err != nil {
			return "", fmt.Errorf("migrate legacy run state: %w", err)
		}
		migrated = state.WorkflowName
	}

	if err := m.store.Delete(ctx, legacyKey); err != nil {
		return "", fmt.Errorf("remove legacy run state: %w", err)
	}
	if migrated != "" {
		m.logger.Info("migrated legacy run state", map[string]interface{}{"workflowName": migrated})
	}
	return migrated, nil
}
