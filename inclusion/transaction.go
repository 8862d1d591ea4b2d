package inclusion

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/crosslink-relay/relayer/adapter"
	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/pendingmessage"
)

// Transaction is one destination-chain transaction tracked by the
// inclusion pool, backed by the PendingMessage operation whose delivery it
// carries.
type Transaction struct {
	ID       uuid.UUID
	Op       *pendingmessage.Operation
	Unsigned *adapter.UnsignedTx

	Status      TransactionStatus
	LastHash    chaintypes.TxHash
	LastSentAt  time.Time
	SimFailures int

	// simBackoff and nextSimRetryAt shape the resubmission cadence after a
	// simulation failure (fee-history read or resubmit itself failing):
	// lazily created on the first failure, consulted by Pool.escalate
	// before attempting another simulation on a later tick.
	simBackoff    *backoff.ExponentialBackOff
	nextSimRetryAt time.Time
}

// newTransaction builds a PendingInclusion transaction from an operation
// that just reached Confirm(SubmittedBySelf). The metadata bytes stand in
// for the adapter-specific ABI-encoded calldata; concrete wire encoding is
// the adapter's concern, not the inclusion stage's.
func newTransaction(op *pendingmessage.Operation) *Transaction {
	return &Transaction{
		ID: uuid.New(),
		Op: op,
		Unsigned: &adapter.UnsignedTx{
			To:       op.Message.Recipient,
			Data:     op.StashedMetadata(),
			GasLimit: op.StashedGasLimit(),
		},
		Status: TransactionStatus{Kind: StatusPendingInclusion},
	}
}
