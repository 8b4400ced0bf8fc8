package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workledger/internal/domain/entity"
	"workledger/internal/domain/event"
	"workledger/internal/domain/workflow"
)

func workEntry(id string, createdAt time.Time, status string) *entity.WorkEntry {
	return &entity.WorkEntry{
		ID:        id,
		UserID:    "m1",
		Status:    workflow.State(status),
		Version:   1,
		CreatedAt: createdAt,
	}
}

func TestApplyInsert(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()

	s.Apply(event.New(event.TypeInsert, entity.TableWorkEntries, "e1", workEntry("e1", now, "Draft")))

	entries := s.WorkEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
}

func TestApplyInsertIgnoresKnownRow(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()

	local := workEntry("e1", now, "Submitted")
	s.ApplyLocal(local)

	// A late insert echo for a row the session already knows is ignored.
	stale := workEntry("e1", now, "Draft")
	s.Apply(event.New(event.TypeInsert, entity.TableWorkEntries, "e1", stale))

	entries := s.WorkEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Submitted", entries[0].Status.String())
}

func TestApplyUpdateReplacesRow(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()
	s.ApplyLocal(workEntry("e1", now, "Draft"))

	updated := workEntry("e1", now, "Submitted")
	updated.Version = 2
	s.Apply(event.New(event.TypeUpdate, entity.TableWorkEntries, "e1", updated))

	got := s.WorkEntry("e1")
	require.NotNil(t, got)
	assert.Equal(t, "Submitted", got.Status.String())
	assert.Equal(t, int64(2), got.Version)
}

func TestApplyUpdateForUnseenRowInserts(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()

	// Out-of-order delivery: the update may arrive before the insert.
	s.Apply(event.New(event.TypeUpdate, entity.TableWorkEntries, "e1", workEntry("e1", now, "Submitted")))

	require.Len(t, s.WorkEntries(), 1)
}

func TestApplyIsIdempotent(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()

	evt := event.New(event.TypeUpdate, entity.TableWorkEntries, "e1", workEntry("e1", now, "Submitted"))
	s.Apply(evt)
	s.Apply(evt)

	require.Len(t, s.WorkEntries(), 1)

	del := event.New(event.TypeDelete, entity.TableWorkEntries, "e1", nil)
	s.Apply(del)
	s.Apply(del)

	assert.Empty(t, s.WorkEntries())
}

func TestApplyLocalThenEchoIsNoOp(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()

	local := workEntry("e1", now, "Submitted")
	local.Version = 2
	s.ApplyLocal(local)

	// The feed echo of the session's own mutation converges to the same state.
	echo := workEntry("e1", now, "Submitted")
	echo.Version = 2
	s.Apply(event.New(event.TypeUpdate, entity.TableWorkEntries, "e1", echo))

	entries := s.WorkEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Version)
}

func TestRemoveLocal(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()
	s.ApplyLocal(workEntry("e1", now, "Draft"))

	s.RemoveLocal(entity.TableWorkEntries, "e1")
	assert.Empty(t, s.WorkEntries())

	// The later delete echo is harmless.
	s.Apply(event.New(event.TypeDelete, entity.TableWorkEntries, "e1", nil))
	assert.Empty(t, s.WorkEntries())
}

func TestWorkEntriesOrdering(t *testing.T) {
	s := NewSession()
	base := time.Now().UTC()

	s.ApplyLocal(workEntry("b", base.Add(time.Minute), "Draft"))
	s.ApplyLocal(workEntry("c", base, "Draft"))
	s.ApplyLocal(workEntry("a", base, "Draft"))

	entries := s.WorkEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "c", entries[1].ID)
	assert.Equal(t, "b", entries[2].ID)
}

func TestSessionReturnsClones(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()
	s.ApplyLocal(workEntry("e1", now, "Draft"))

	first := s.WorkEntry("e1")
	first.Status = workflow.StatePaid

	second := s.WorkEntry("e1")
	assert.Equal(t, "Draft", second.Status.String())
}

func TestLoadSeedsBothCollections(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()

	s.Load(
		[]*entity.WorkEntry{workEntry("e1", now, "Draft")},
		[]*entity.PurchaseEntry{{ID: "p1", UserID: "m1", CreatedAt: now}},
	)

	assert.Len(t, s.WorkEntries(), 1)
	assert.Len(t, s.PurchaseEntries(), 1)
}

func TestApplyPurchaseEvents(t *testing.T) {
	s := NewSession()
	now := time.Now().UTC()

	p := &entity.PurchaseEntry{ID: "p1", UserID: "m1", CreatedAt: now}
	s.Apply(event.New(event.TypeInsert, entity.TablePurchaseEntries, "p1", p))
	require.Len(t, s.PurchaseEntries(), 1)

	s.Apply(event.New(event.TypeDelete, entity.TablePurchaseEntries, "p1", nil))
	assert.Empty(t, s.PurchaseEntries())
}
