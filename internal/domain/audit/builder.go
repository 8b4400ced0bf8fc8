// Package audit builds the append-only audit trail. Events are immutable
// once written; Append never mutates its input and callers must never index
// forward past the current length, because other actors keep appending to the
// same entry's log concurrently.
package audit

import (
	"strconv"
	"strings"
	"time"

	"workledger/internal/domain/entity"
	"workledger/internal/domain/workflow"
)

// StatusField is the synthesized field name used for pure status transitions.
const StatusField = "Status"

// trackedField pairs a display name with a normalized string extractor.
type trackedField struct {
	name  string
	value func(*entity.WorkEntry) string
}

// trackedFields is the fixed set of fields compared by Diff, in the order
// changes are reported.
var trackedFields = []trackedField{
	{"Date", func(e *entity.WorkEntry) string { return e.Date }},
	{"Start Time", func(e *entity.WorkEntry) string { return e.StartTime }},
	{"End Time", func(e *entity.WorkEntry) string { return e.EndTime }},
	{"Category", func(e *entity.WorkEntry) string { return e.Category }},
	{"Description", func(e *entity.WorkEntry) string { return strings.TrimSpace(e.Description) }},
	{"Location", func(e *entity.WorkEntry) string { return strings.TrimSpace(e.Location) }},
	{"Mileage", func(e *entity.WorkEntry) string { return formatNumber(e.Mileage) }},
	{"Notes", func(e *entity.WorkEntry) string { return strings.TrimSpace(e.Notes) }},
	{"Materials", func(e *entity.WorkEntry) string { return materialNames(e.Materials) }},
}

// Diff compares the tracked fields of two entry snapshots and returns one
// FieldChange per field whose normalized representation changed. Unchanged
// fields are omitted. A nil previous entry yields the initial-creation diff:
// every non-empty field reported with an empty From.
func Diff(previous, proposed *entity.WorkEntry) []entity.FieldChange {
	var changes []entity.FieldChange
	for _, f := range trackedFields {
		from := ""
		if previous != nil {
			from = f.value(previous)
		}
		to := f.value(proposed)
		if from == to {
			continue
		}
		if previous == nil && to == "" {
			continue
		}
		changes = append(changes, entity.FieldChange{Field: f.name, From: from, To: to})
	}
	return changes
}

// StatusChange synthesizes the diff for a pure status transition rather than
// computing it from field comparison. Transition-specific changes (reason,
// reviewer note, payment detail) may be appended by the caller via extra.
func StatusChange(from, to workflow.State, extra ...entity.FieldChange) []entity.FieldChange {
	changes := []entity.FieldChange{{Field: StatusField, From: from.String(), To: to.String()}}
	return append(changes, extra...)
}

// NewEvent stamps an audit event with the acting user's identity and the
// current time.
func NewEvent(action string, actor *entity.User, detail string, changes []entity.FieldChange) entity.AuditEvent {
	return entity.AuditEvent{
		Action:    action,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
		Changes:   changes,
	}
}

// Append returns a new log with one more event. The input slice is never
// mutated, so concurrent readers holding the old slice stay consistent.
func Append(log []entity.AuditEvent, event entity.AuditEvent) []entity.AuditEvent {
	out := make([]entity.AuditEvent, 0, len(log)+1)
	out = append(out, log...)
	return append(out, event)
}

func materialNames(materials []entity.Material) string {
	if len(materials) == 0 {
		return ""
	}
	names := make([]string, len(materials))
	for i, m := range materials {
		names[i] = m.Name
	}
	return strings.Join(names, ", ")
}

func formatNumber(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
