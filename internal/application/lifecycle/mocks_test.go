package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"workledger/internal/domain/entity"
	"workledger/internal/domain/event"
	"workledger/internal/errs"
)

// mockWorkRepo is an in-memory WorkEntryRepository enforcing the version
// check the sqlite implementation enforces.
type mockWorkRepo struct {
	mu      sync.Mutex
	entries map[string]*entity.WorkEntry

	updateErr error
	getErr    error
}

func newMockWorkRepo() *mockWorkRepo {
	return &mockWorkRepo{entries: make(map[string]*entity.WorkEntry)}
}

func (m *mockWorkRepo) Create(_ context.Context, e *entity.WorkEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e.Clone()
	return nil
}

func (m *mockWorkRepo) GetByID(_ context.Context, id string) (*entity.WorkEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("work entry %s: %w", id, errs.ErrNotFound)
	}
	return e.Clone(), nil
}

func (m *mockWorkRepo) Update(_ context.Context, e *entity.WorkEntry, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.entries[e.ID]
	if !ok {
		return fmt.Errorf("work entry %s: %w", e.ID, errs.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return &errs.ConcurrencyError{Table: "work entry", ID: e.ID}
	}
	updated := e.Clone()
	updated.Version = expectedVersion + 1
	m.entries[e.ID] = updated
	return nil
}

func (m *mockWorkRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("work entry %s: %w", id, errs.ErrNotFound)
	}
	delete(m.entries, id)
	return nil
}

func (m *mockWorkRepo) List(_ context.Context) ([]*entity.WorkEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.WorkEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (m *mockWorkRepo) ListByUser(_ context.Context, userID string) ([]*entity.WorkEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// stored returns the persisted row without cloning, for assertions.
func (m *mockWorkRepo) stored(id string) *entity.WorkEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id]
}

// mockPurchaseRepo mirrors mockWorkRepo for purchase entries.
type mockPurchaseRepo struct {
	mu      sync.Mutex
	entries map[string]*entity.PurchaseEntry
}

func newMockPurchaseRepo() *mockPurchaseRepo {
	return &mockPurchaseRepo{entries: make(map[string]*entity.PurchaseEntry)}
}

func (m *mockPurchaseRepo) Create(_ context.Context, p *entity.PurchaseEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[p.ID] = p.Clone()
	return nil
}

func (m *mockPurchaseRepo) GetByID(_ context.Context, id string) (*entity.PurchaseEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("purchase entry %s: %w", id, errs.ErrNotFound)
	}
	return p.Clone(), nil
}

func (m *mockPurchaseRepo) Update(_ context.Context, p *entity.PurchaseEntry, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.entries[p.ID]
	if !ok {
		return fmt.Errorf("purchase entry %s: %w", p.ID, errs.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return &errs.ConcurrencyError{Table: "purchase entry", ID: p.ID}
	}
	updated := p.Clone()
	updated.Version = expectedVersion + 1
	m.entries[p.ID] = updated
	return nil
}

func (m *mockPurchaseRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("purchase entry %s: %w", id, errs.ErrNotFound)
	}
	delete(m.entries, id)
	return nil
}

func (m *mockPurchaseRepo) List(_ context.Context) ([]*entity.PurchaseEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.PurchaseEntry, 0, len(m.entries))
	for _, p := range m.entries {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (m *mockPurchaseRepo) ListByUser(_ context.Context, userID string) ([]*entity.PurchaseEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PurchaseEntry
	for _, p := range m.entries {
		if p.UserID == userID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// mockSettingsRepo serves one fixed settings row.
type mockSettingsRepo struct {
	settings *entity.Settings
}

func (m *mockSettingsRepo) Get(context.Context) (*entity.Settings, error) {
	s := *m.settings
	return &s, nil
}

func (m *mockSettingsRepo) Update(_ context.Context, s *entity.Settings) error {
	m.settings = s
	return nil
}

// mockTx runs the function directly; no transaction semantics needed here.
type mockTx struct{}

func (mockTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// mockFeed records every published event.
type mockFeed struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockFeed) Publish(_ context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockFeed) published() []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*event.Event(nil), m.events...)
}
