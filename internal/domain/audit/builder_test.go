package audit

import (
	"testing"

	"workledger/internal/domain/entity"
	"workledger/internal/domain/workflow"
)

var testActor = &entity.User{ID: "u1", Name: "Alice", Role: entity.RoleApprover}

func TestAppendGrowsByOne(t *testing.T) {
	var log []entity.AuditEvent
	for i := 0; i < 3; i++ {
		before := len(log)
		log = Append(log, NewEvent("EDIT", testActor, "edit", nil))
		if len(log) != before+1 {
			t.Fatalf("Append() length = %d, want %d", len(log), before+1)
		}
	}
}

func TestAppendDoesNotMutateInput(t *testing.T) {
	first := Append(nil, NewEvent("CREATE", testActor, "created", nil))
	snapshot := make([]entity.AuditEvent, len(first))
	copy(snapshot, first)

	second := Append(first, NewEvent("EDIT", testActor, "edited", nil))

	if len(first) != 1 {
		t.Fatalf("input log length changed to %d", len(first))
	}
	if first[0].Action != snapshot[0].Action || first[0].Detail != snapshot[0].Detail {
		t.Error("input log event was mutated")
	}
	if len(second) != 2 {
		t.Errorf("Append() length = %d, want 2", len(second))
	}
}

func TestNewEventStampsActor(t *testing.T) {
	evt := NewEvent("APPROVE", testActor, "looks good", nil)

	if evt.ActorID != "u1" || evt.ActorName != "Alice" {
		t.Errorf("NewEvent() actor = %s/%s, want u1/Alice", evt.ActorID, evt.ActorName)
	}
	if evt.Timestamp.IsZero() {
		t.Error("NewEvent() timestamp is zero")
	}
	if evt.Action != "APPROVE" || evt.Detail != "looks good" {
		t.Errorf("NewEvent() action/detail = %s/%s", evt.Action, evt.Detail)
	}
}

func TestDiffReportsChangedFieldsOnly(t *testing.T) {
	previous := &entity.WorkEntry{
		Date:        "2026-03-01",
		StartTime:   "09:00",
		EndTime:     "12:00",
		Category:    "MAINTENANCE",
		Description: "fixed the furnace filter",
	}
	proposed := previous.Clone()
	proposed.EndTime = "13:00"
	proposed.Notes = "ran long"

	changes := Diff(previous, proposed)
	if len(changes) != 2 {
		t.Fatalf("Diff() returned %d changes, want 2: %+v", len(changes), changes)
	}

	if changes[0].Field != "End Time" || changes[0].From != "12:00" || changes[0].To != "13:00" {
		t.Errorf("Diff()[0] = %+v, want End Time 12:00 -> 13:00", changes[0])
	}
	if changes[1].Field != "Notes" || changes[1].From != "" || changes[1].To != "ran long" {
		t.Errorf("Diff()[1] = %+v, want Notes -> ran long", changes[1])
	}
}

func TestDiffIdenticalEntries(t *testing.T) {
	entry := &entity.WorkEntry{Date: "2026-03-01", Description: "weekly maintenance round"}
	if changes := Diff(entry, entry.Clone()); len(changes) != 0 {
		t.Errorf("Diff() of identical entries = %+v, want none", changes)
	}
}

func TestDiffInitialCreation(t *testing.T) {
	proposed := &entity.WorkEntry{
		Date:        "2026-03-01",
		StartTime:   "09:00",
		EndTime:     "12:00",
		Category:    "EVENT",
		Description: "set up tables and chairs",
		Materials:   []entity.Material{{Name: "tablecloths", Quantity: 4, UnitCost: 3}},
	}

	changes := Diff(nil, proposed)

	for _, c := range changes {
		if c.From != "" {
			t.Errorf("initial diff From = %q for %s, want empty", c.From, c.Field)
		}
		if c.To == "" {
			t.Errorf("initial diff includes empty field %s", c.Field)
		}
	}

	got := map[string]string{}
	for _, c := range changes {
		got[c.Field] = c.To
	}
	if got["Materials"] != "tablecloths" {
		t.Errorf("Materials diff = %q, want tablecloths", got["Materials"])
	}
	if _, ok := got["Mileage"]; ok {
		t.Error("initial diff reported zero mileage")
	}
	if _, ok := got["Location"]; ok {
		t.Error("initial diff reported empty location")
	}
}

func TestDiffMileageFormatting(t *testing.T) {
	previous := &entity.WorkEntry{Mileage: 0}
	proposed := &entity.WorkEntry{Mileage: 12.5}

	changes := Diff(previous, proposed)
	if len(changes) != 1 {
		t.Fatalf("Diff() returned %d changes, want 1", len(changes))
	}
	if changes[0].Field != "Mileage" || changes[0].From != "" || changes[0].To != "12.5" {
		t.Errorf("Diff()[0] = %+v, want Mileage -> 12.5", changes[0])
	}
}

func TestStatusChange(t *testing.T) {
	changes := StatusChange(workflow.StateSubmitted, workflow.StateApproved)
	if len(changes) != 1 {
		t.Fatalf("StatusChange() returned %d changes, want 1", len(changes))
	}
	if changes[0].Field != StatusField || changes[0].From != "Submitted" || changes[0].To != "Approved" {
		t.Errorf("StatusChange() = %+v", changes[0])
	}
}

func TestStatusChangeWithExtra(t *testing.T) {
	changes := StatusChange(workflow.StateSubmitted, workflow.StateRejected,
		entity.FieldChange{Field: "Reviewer Note", From: "", To: "missing receipt"})

	if len(changes) != 2 {
		t.Fatalf("StatusChange() returned %d changes, want 2", len(changes))
	}
	if changes[1].Field != "Reviewer Note" || changes[1].To != "missing receipt" {
		t.Errorf("StatusChange() extra = %+v", changes[1])
	}
}
