// Package reconciler merges inbound change-feed events and outbound local
// mutations into one consistent in-memory collection per client session.
// Merge rules are idempotent: the feed makes no ordering or delivery
// guarantee, so an echo of the session's own mutation and a late insert for
// an already-known row must both be harmless.
package reconciler

import (
	"sort"
	"sync"

	"workledger/internal/domain/entity"
	"workledger/internal/domain/event"
)

// Session holds one client session's working copies of the entry
// collections. The feed goroutine and the request goroutine touch it
// concurrently, so every method takes the session lock.
type Session struct {
	mu        sync.Mutex
	entries   map[string]*entity.WorkEntry
	purchases map[string]*entity.PurchaseEntry
}

// NewSession creates an empty session collection.
func NewSession() *Session {
	return &Session{
		entries:   make(map[string]*entity.WorkEntry),
		purchases: make(map[string]*entity.PurchaseEntry),
	}
}

// Load seeds the session from an initial full read of the store.
func (s *Session) Load(entries []*entity.WorkEntry, purchases []*entity.PurchaseEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.entries[e.ID] = e.Clone()
	}
	for _, p := range purchases {
		s.purchases[p.ID] = p.Clone()
	}
}

// ApplyLocal applies the server's response to the session's own mutation as
// ground truth, before any change-feed echo arrives. The later echo becomes
// a no-op replace.
func (s *Session) ApplyLocal(row any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(row)
}

// RemoveLocal applies the session's own delete optimistically.
func (s *Session) RemoveLocal(table, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(table, id)
}

// Apply merges one change-feed event:
//
//   - insert: ignored when the id is already present (the session's own
//     optimistic insert may have landed first)
//   - update: full replacement of the matching record; an update for an
//     unseen row is treated as an insert so out-of-order delivery converges
//   - delete: remove by id
//
// Applying the same event twice leaves the collection unchanged.
func (s *Session) Apply(evt *event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch evt.Type {
	case event.TypeInsert:
		if s.has(evt.Table, evt.RowID) {
			return
		}
		s.put(evt.Row)
	case event.TypeUpdate:
		s.put(evt.Row)
	case event.TypeDelete:
		s.remove(evt.Table, evt.RowID)
	}
}

// WorkEntries returns the session's work entries ordered by creation time
// then id.
func (s *Session) WorkEntries() []*entity.WorkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entity.WorkEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PurchaseEntries returns the session's purchase entries ordered by creation
// time then id.
func (s *Session) PurchaseEntries() []*entity.PurchaseEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*entity.PurchaseEntry, 0, len(s.purchases))
	for _, p := range s.purchases {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// WorkEntry returns one work entry by id, or nil.
func (s *Session) WorkEntry(id string) *entity.WorkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.Clone()
	}
	return nil
}

func (s *Session) has(table, id string) bool {
	switch table {
	case entity.TableWorkEntries:
		_, ok := s.entries[id]
		return ok
	case entity.TablePurchaseEntries:
		_, ok := s.purchases[id]
		return ok
	}
	return false
}

func (s *Session) put(row any) {
	switch r := row.(type) {
	case *entity.WorkEntry:
		s.entries[r.ID] = r.Clone()
	case *entity.PurchaseEntry:
		s.purchases[r.ID] = r.Clone()
	}
}

func (s *Session) remove(table, id string) {
	switch table {
	case entity.TableWorkEntries:
		delete(s.entries, id)
	case entity.TablePurchaseEntries:
		delete(s.purchases, id)
	}
}
