package opqueue

import (
	"context"
	"testing"
	"time"

	"github.com/crosslink-relay/relayer/adapter"
	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/pendingmessage"
	"github.com/crosslink-relay/relayer/pendingmessage/gaspolicy"
	"github.com/crosslink-relay/relayer/store/memdb"
)

// fakeMailbox implements adapter.ChainAdapter, exercising only what the
// prepare/submit/confirm phases call.
type fakeMailbox struct {
	delivered    bool
	isContract   bool
	processErr   error
	deliveredSeq []bool // if set, Delivered returns these in order across calls
	callIndex    int
}

func (f *fakeMailbox) FetchLogsInRange(ctx context.Context, r adapter.BlockRange) ([]chaintypes.SequencedLog, error) {
	return nil, nil
}
func (f *fakeMailbox) LatestSequenceAndTip(ctx context.Context) (*uint32, uint32, error) {
	return nil, 0, nil
}
func (f *fakeMailbox) GetFinalizedBlock(ctx context.Context) (uint32, error) { return 0, nil }
func (f *fakeMailbox) Delivered(ctx context.Context, id chaintypes.MessageID) (bool, error) {
	if f.deliveredSeq != nil {
		v := f.deliveredSeq[f.callIndex]
		if f.callIndex < len(f.deliveredSeq)-1 {
			f.callIndex++
		}
		return v, nil
	}
	return f.delivered, nil
}
func (f *fakeMailbox) RecipientISM(ctx context.Context, recipient chaintypes.Address32) (chaintypes.Address32, error) {
	return chaintypes.Address32{}, nil
}
func (f *fakeMailbox) IsContract(ctx context.Context, addr chaintypes.Address32) (bool, error) {
	return f.isContract, nil
}
func (f *fakeMailbox) EstimateProcessCost(ctx context.Context, msg *chaintypes.Message, metadata []byte) (*adapter.GasEstimate, error) {
	return &adapter.GasEstimate{GasLimit: 100000}, nil
}
func (f *fakeMailbox) Process(ctx context.Context, msg *chaintypes.Message, metadata []byte, gasLimitOverride *uint64) (*adapter.TxOutcome, error) {
	if f.processErr != nil {
		return nil, f.processErr
	}
	return &adapter.TxOutcome{Executed: true}, nil
}
func (f *fakeMailbox) Submit(ctx context.Context, tx *adapter.UnsignedTx) (chaintypes.TxHash, error) {
	return chaintypes.TxHash{}, nil
}
func (f *fakeMailbox) GetTransactionReceipt(ctx context.Context, hash chaintypes.TxHash) (*adapter.Receipt, error) {
	return nil, nil
}
func (f *fakeMailbox) FeeHistory(ctx context.Context, blocks uint64, newest string, rewardPercentiles []float64) (*adapter.FeeHistory, error) {
	return &adapter.FeeHistory{}, nil
}

var _ adapter.ChainAdapter = (*fakeMailbox)(nil)

type fakeMetadataBuilder struct{}

func (fakeMetadataBuilder) Build(ctx context.Context, msg *chaintypes.Message, ism chaintypes.Address32) (pendingmessage.MetadataOutcome, error) {
	return pendingmessage.MetadataOutcome{Kind: pendingmessage.MetadataFound, Bytes: []byte("metadata")}, nil
}

type fakeHandoff struct {
	accepted []*pendingmessage.Operation
}

func (h *fakeHandoff) Accept(op *pendingmessage.Operation) {
	h.accepted = append(h.accepted, op)
}

func newTestContext(mailbox adapter.ChainAdapter) *pendingmessage.MessageContext {
	return &pendingmessage.MessageContext{
		Destination:     1,
		Mailbox:         mailbox,
		OriginStore:     memdb.New(),
		MetadataBuilder: fakeMetadataBuilder{},
		GasEnforcer:     &gaspolicy.Enforcer{},
		ConfirmDelay:    0,
	}
}

func TestStepOperationPrepareSuccessRequeuesForSubmit(t *testing.T) {
	mailbox := &fakeMailbox{delivered: false, isContract: true}
	msgCtx := newTestContext(mailbox)
	op := pendingmessage.New(&chaintypes.Message{Nonce: 1, Origin: 1}, msgCtx)

	q := New()
	stepOperation(context.Background(), q, op, nil, nil)

	if q.Len() != 1 {
		t.Fatalf("expected the operation to be requeued for its submit phase, got len %d", q.Len())
	}
}

func TestStepOperationAlreadyDeliveredGoesStraightToConfirmHandoff(t *testing.T) {
	mailbox := &fakeMailbox{delivered: true}
	msgCtx := newTestContext(mailbox)
	op := pendingmessage.New(&chaintypes.Message{Nonce: 1, Origin: 1}, msgCtx)

	q := New()
	handoff := &fakeHandoff{}
	stepOperation(context.Background(), q, op, handoff, nil)

	if q.Len() != 0 {
		t.Fatalf("expected the queue to be empty after a confirm handoff, got len %d", q.Len())
	}
	if len(handoff.accepted) != 1 {
		t.Fatalf("expected the operation to be handed off to the inclusion stage")
	}
}

func TestStepOperationDropsWhenRecipientIsNotAContract(t *testing.T) {
	mailbox := &fakeMailbox{delivered: false, isContract: false}
	msgCtx := newTestContext(mailbox)
	op := pendingmessage.New(&chaintypes.Message{Nonce: 1, Origin: 1}, msgCtx)

	q := New()
	stepOperation(context.Background(), q, op, nil, nil)

	if q.Len() != 0 {
		t.Fatalf("expected a dropped operation to never return to the queue, got len %d", q.Len())
	}
}

func TestStepOperationFullLifecycleEndsInDropFromQueueAfterConfirm(t *testing.T) {
	mailbox := &fakeMailbox{isContract: true, deliveredSeq: []bool{false, true}}
	msgCtx := newTestContext(mailbox)
	op := pendingmessage.New(&chaintypes.Message{Nonce: 1, Origin: 1}, msgCtx)

	q := New()

	// Prepare: not yet delivered, builds metadata, ready to submit.
	stepOperation(context.Background(), q, op, nil, nil)
	if q.Len() != 1 {
		t.Fatalf("expected requeue after prepare, got len %d", q.Len())
	}

	// Submit: processes the message, moves to Confirm(SubmittedBySelf).
	op2 := q.pop()
	handoff := &fakeHandoff{}
	stepOperation(context.Background(), q, op2, handoff, nil)
	if len(handoff.accepted) != 1 {
		t.Fatalf("expected submit to hand the operation to the inclusion stage")
	}
	if q.Len() != 0 {
		t.Fatalf("expected nothing left on the queue after a submit handoff, got len %d", q.Len())
	}

	// Confirm: delivered is now true, commits and is dropped from the queue.
	confirmOp := handoff.accepted[0]
	stepOperation(context.Background(), q, confirmOp, nil, nil)
	if q.Len() != 0 {
		t.Fatalf("expected the confirmed operation to be dropped from the queue, got len %d", q.Len())
	}
}
