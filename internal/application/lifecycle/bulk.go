package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"workledger/internal/domain/entity"
	"workledger/internal/errs"
)

// BatchResult collects the partial outcome of a bulk operation.
type BatchResult struct {
	Succeeded []string
	Failed    []errs.BatchFailure
}

// Coordinator applies one transition to a batch of entries. Entries are
// processed strictly in sequence: parallel approvals of rows in the same
// store would interleave read-modify-write cycles on their audit logs.
type Coordinator struct {
	engine Engine
	logger *zap.Logger
}

// NewCoordinator creates a bulk operation coordinator.
func NewCoordinator(engine Engine, logger *zap.Logger) *Coordinator {
	return &Coordinator{engine: engine, logger: logger}
}

// BulkApprove applies Approve to each id independently. One failure never
// aborts the remaining ids; successes stay durable. The caller pre-filters
// to Submitted work entries (dual-approval and purchase entries are never
// bulk-eligible). When any id failed, the returned error is a *errs.BatchError
// carrying both lists.
func (c *Coordinator) BulkApprove(ctx context.Context, actor *entity.User, ids []string, note string) (*BatchResult, error) {
	result := &BatchResult{}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, errs.BatchFailure{ID: id, Err: err})
			continue
		}

		if _, err := c.engine.Approve(ctx, actor, id, note); err != nil {
			c.logger.Warn("Bulk approve: entry failed",
				zap.String("entry_id", id),
				zap.Error(err))
			result.Failed = append(result.Failed, errs.BatchFailure{ID: id, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	c.logger.Info("Bulk approve finished",
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))

	if len(result.Failed) > 0 {
		return result, &errs.BatchError{Succeeded: result.Succeeded, Failed: result.Failed}
	}
	return result, nil
}
