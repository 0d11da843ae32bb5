package reminder

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/steveyegge/vitality/internal/types"
)

// mockStore is an in-memory Store for scheduler tests
type mockStore struct {
	mu    sync.Mutex
	rules map[string]*types.ReminderRule

	// failGet makes GetReminder fail for the listed ids
	failGet map[string]error
	updates int
	// afterUpdate runs once a rule update has been stored
	afterUpdate func()
}

func newMockStore(rules ...*types.ReminderRule) *mockStore {
	m := &mockStore{rules: make(map[string]*types.ReminderRule), failGet: make(map[string]error)}
	for _, r := range rules {
		m.rules[r.ID] = r.Clone()
	}
	return m
}

func (m *mockStore) CreateReminder(ctx context.Context, rule *types.ReminderRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; ok {
		return errors.New("duplicate rule id")
	}
	m.rules[rule.ID] = rule.Clone()
	return nil
}

func (m *mockStore) GetReminder(ctx context.Context, id string) (*types.ReminderRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failGet[id]; err != nil {
		return nil, err
	}
	r, ok := m.rules[id]
	if !ok {
		return nil, types.NewNotFoundError("reminder", id)
	}
	return r.Clone(), nil
}

func (m *mockStore) UpdateReminder(ctx context.Context, rule *types.ReminderRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return types.NewNotFoundError("reminder", rule.ID)
	}
	m.rules[rule.ID] = rule.Clone()
	m.updates++
	if m.afterUpdate != nil {
		m.afterUpdate()
	}
	return nil
}

func (m *mockStore) DeleteReminder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return types.NewNotFoundError("reminder", id)
	}
	delete(m.rules, id)
	return nil
}

func (m *mockStore) ListActiveReminders(ctx context.Context) ([]*types.ReminderRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.ReminderRule
	for _, r := range m.rules {
		if r.State.IsActive() {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) ListReminders(ctx context.Context, subjectID string) ([]*types.ReminderRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.ReminderRule
	for _, r := range m.rules {
		if r.SubjectID == subjectID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) get(id string) *types.ReminderRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules[id].Clone()
}
