package pendingmessage

import (
	"context"
	"time"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/internal/retryutil"
)

// bumpAndReprepare bumps the persisted retry count, recomputes
// nextAttemptAfter via the backoff table, persists status, and returns
// the Reprepare outcome. Every state change bumps lastAttemptedAt and
// the retry count.
func (op *Operation) bumpAndReprepare(ctx context.Context, reason chaintypes.ReprepareReason, now time.Time) (Outcome, error) {
	op.numRetries++
	op.lastAttemptedAt = now
	wait := retryutil.MessageBackoff(op.numRetries, op.Ctx.MaxMessageRetries)
	op.nextAttemptAfter = now.Add(wait)

	if op.numRetries >= effectiveMaxRetries(op.Ctx.MaxMessageRetries) {
		if err := op.Ctx.OriginStore.PutRetryCount(ctx, op.Message.ID(), op.numRetries); err != nil {
			return Outcome{}, err
		}
		if err := op.persist(ctx, chaintypes.NewDropped(chaintypes.DropMaxRetriesExceeded)); err != nil {
			return Outcome{}, err
		}
		return reprepare(reason), nil // still Reprepare: perpetually retried at a 10-week cadence, never hard-dropped by policy alone
	}

	if err := op.Ctx.OriginStore.PutRetryCount(ctx, op.Message.ID(), op.numRetries); err != nil {
		return Outcome{}, err
	}
	if err := op.persist(ctx, chaintypes.NewRetry(reason)); err != nil {
		return Outcome{}, err
	}
	return reprepare(reason), nil
}

func (op *Operation) persist(ctx context.Context, status chaintypes.PendingOperationStatus) error {
	op.status = status
	return op.Ctx.OriginStore.PutStatus(ctx, op.Message.ID(), status)
}

func effectiveMaxRetries(configured uint32) uint32 {
	if configured == 0 {
		return 66
	}
	return configured
}
