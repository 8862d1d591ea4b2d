package pendingmessage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/pendingmessage/gaspolicy"
)

// Operation is the per-message lifecycle state machine: prepare, submit,
// confirm. It is ephemeral (in-memory): its retry count and status are
// persisted by message id through the MessageContext's OriginStore, but
// the Operation value itself is owned by exactly one queue at a time;
// handoff between stages transfers ownership via a channel.
type Operation struct {
	ID      uuid.UUID // correlation id for logs/metrics, not persisted
	Message *chaintypes.Message
	Ctx     *MessageContext

	submitted        bool
	stashedMetadata  []byte
	stashedGasLimit  uint64
	numRetries       uint32
	lastAttemptedAt  time.Time
	nextAttemptAfter time.Time
	status           chaintypes.PendingOperationStatus
}

// New constructs an Operation for a freshly-selected message. Callers
// should hydrate NumRetries/Status from the store first if resuming one
// already tracked (the processor does this via Hydrate).
func New(msg *chaintypes.Message, ctx *MessageContext) *Operation {
	return &Operation{
		ID:      uuid.New(),
		Message: msg,
		Ctx:     ctx,
		status:  chaintypes.NewFirstPrepareAttempt(),
	}
}

// Hydrate loads persisted retry count and status for this operation's
// message id, called once before the first Prepare of a resumed operation.
func (op *Operation) Hydrate(ctx context.Context) error {
	id := op.Message.ID()
	retries, err := op.Ctx.OriginStore.GetRetryCount(ctx, id)
	if err != nil {
		return fmt.Errorf("hydrate retry count: %w", err)
	}
	op.numRetries = retries
	status, ok, err := op.Ctx.OriginStore.GetStatus(ctx, id)
	if err != nil {
		return fmt.Errorf("hydrate status: %w", err)
	}
	if ok {
		op.status = status
	}
	return nil
}

func (op *Operation) Status() chaintypes.PendingOperationStatus { return op.status }
func (op *Operation) NumRetries() uint32                        { return op.numRetries }
func (op *Operation) NextAttemptAfter() time.Time                { return op.nextAttemptAfter }

// StashedMetadata and StashedGasLimit expose the prepare phase's output to
// the inclusion stage, which builds the destination transaction from
// them once this operation reaches Confirm(SubmittedBySelf).
func (op *Operation) StashedMetadata() []byte { return op.stashedMetadata }
func (op *Operation) StashedGasLimit() uint64 { return op.stashedGasLimit }

// Prepare runs the operation's prepare phase.
func (op *Operation) Prepare(ctx context.Context, now time.Time) (Outcome, error) {
	if now.Before(op.nextAttemptAfter) {
		return notReady(), nil
	}

	id := op.Message.ID()
	delivered, err := op.Ctx.Mailbox.Delivered(ctx, id)
	if err != nil {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonCouldNotFetch, now)
	}
	if delivered {
		op.submitted = true
		op.nextAttemptAfter = now.Add(op.Ctx.ConfirmDelay)
		if err := op.persist(ctx, chaintypes.NewConfirm(chaintypes.ConfirmAlreadySubmitted)); err != nil {
			return Outcome{}, err
		}
		return confirmOutcome(chaintypes.ConfirmAlreadySubmitted), nil
	}

	isContract, err := op.Ctx.Mailbox.IsContract(ctx, op.Message.Recipient)
	if err != nil {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonCouldNotFetch, now)
	}
	if !isContract {
		if err := op.persist(ctx, chaintypes.NewDropped(chaintypes.DropRecipientNotContract)); err != nil {
			return Outcome{}, err
		}
		return drop(chaintypes.DropRecipientNotContract), nil
	}

	ism, err := op.Ctx.Mailbox.RecipientISM(ctx, op.Message.Recipient)
	if err != nil {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonCouldNotFetch, now)
	}

	metaOutcome, err := op.Ctx.MetadataBuilder.Build(ctx, op.Message, ism)
	if err != nil || metaOutcome.Kind == MetadataCouldNotFetch {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonCouldNotFetch, now)
	}
	if metaOutcome.Kind == MetadataRefused {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonMetadataRefused, now)
	}

	estimate, err := op.Ctx.Mailbox.EstimateProcessCost(ctx, op.Message, metaOutcome.Bytes)
	if err != nil {
		reason := chaintypes.ReasonEstimateError
		if op.Ctx.ApplicationVerifier != nil {
			if clarified, ok := op.Ctx.ApplicationVerifier.ClarifyEstimateError(ctx, op.Message, err); ok {
				reason = chaintypes.ReprepareReason(clarified)
			}
		}
		return op.bumpAndReprepare(ctx, reason, now)
	}

	enforced, err := op.Ctx.GasEnforcer.Enforce(ctx, op.Message, estimate.GasLimit)
	if err != nil {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonGasPolicyNotMet, now)
	}
	if enforced.Kind != gaspolicy.PolicyMet {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonGasPolicyNotMet, now)
	}

	if op.Ctx.TransactionGasLimit != nil && enforced.GasLimit > *op.Ctx.TransactionGasLimit {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonExceedsMaxGasLimit, now)
	}

	op.stashedMetadata = metaOutcome.Bytes
	op.stashedGasLimit = enforced.GasLimit
	if err := op.persist(ctx, chaintypes.PendingOperationStatus{Kind: chaintypes.StatusReadyToSubmit}); err != nil {
		return Outcome{}, err
	}
	return success(), nil
}

// Submit runs the operation's submit phase.
func (op *Operation) Submit(ctx context.Context, now time.Time) (Outcome, error) {
	if op.submitted {
		return success(), nil
	}

	if _, err := op.Ctx.Mailbox.EstimateProcessCost(ctx, op.Message, op.stashedMetadata); err != nil {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonEstimateError, now)
	}

	gasLimit := op.stashedGasLimit
	outcome, err := op.Ctx.Mailbox.Process(ctx, op.Message, op.stashedMetadata, &gasLimit)
	if err != nil {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonErrorSubmitting, now)
	}
	if outcome != nil {
		if err := op.Ctx.GasEnforcer.RecordTxOutcome(ctx, op.Message, outcome.GasUsed); err != nil {
			op.Ctx.Log.Warn("failed to record tx outcome for IGP allowance accounting", "message", op.Message.ID(), "err", err)
		}
	}
	op.submitted = true
	op.nextAttemptAfter = now.Add(op.Ctx.ConfirmDelay)
	if err := op.persist(ctx, chaintypes.NewConfirm(chaintypes.ConfirmSubmittedBySelf)); err != nil {
		return Outcome{}, err
	}
	return confirmOutcome(chaintypes.ConfirmSubmittedBySelf), nil
}

// Confirm runs the operation's confirm phase, the commit point.
func (op *Operation) Confirm(ctx context.Context, now time.Time) (Outcome, error) {
	if now.Before(op.nextAttemptAfter) {
		return notReady(), nil
	}
	delivered, err := op.Ctx.Mailbox.Delivered(ctx, op.Message.ID())
	if err != nil {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonRevertedOrReorged, now)
	}
	if !delivered {
		return op.bumpAndReprepare(ctx, chaintypes.ReasonRevertedOrReorged, now)
	}
	if err := op.Ctx.OriginStore.MarkProcessed(ctx, op.Message.Origin, op.Message.Nonce); err != nil {
		return Outcome{}, fmt.Errorf("commit processed write: %w", err)
	}
	op.numRetries = 0
	if err := op.Ctx.OriginStore.PutRetryCount(ctx, op.Message.ID(), 0); err != nil {
		return Outcome{}, err
	}
	return success(), nil
}
