// Package repository holds the sqlite implementations of the persistence
// ports. Rows carry a version column: updates are guarded by the version the
// caller loaded, turning concurrent read-modify-write races into explicit
// ConcurrencyErrors instead of silent lost updates.
package repository

import "workledger/internal/domain/workflow"

// entityStatus converts a stored status string back to the workflow state.
func entityStatus(s string) workflow.State {
	return workflow.State(s)
}
