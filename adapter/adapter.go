// Package adapter defines the polymorphic chain driver interface consumed
// by the rest of the relayer core (cursor, processor, pending message,
// inclusion stage). Concrete drivers (adapter/evm and, in a full
// deployment, account-model and move-like equivalents) implement it.
//
// Contract: every method is safe for concurrent use, cheap to call many
// times per second, and reentrant; the core holds many handles to the
// same adapter concurrently across cursors, queues, and the inclusion
// stage. Implementations own their own connection pooling.
package adapter

import (
	"context"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// BlockRange is an inclusive [Start, End] block-number range.
type BlockRange struct {
	Start uint64
	End   uint64
}

// FeeHistory mirrors the eth_feeHistory response shape used by fee
// escalation in the inclusion stage.
type FeeHistory struct {
	OldestBlock   uint64
	BaseFeePerGas []uint64
	GasUsedRatio  []float64
	Reward        [][]uint64
}

// GasEstimate is the outcome of a process-cost estimate.
type GasEstimate struct {
	GasLimit uint64
}

// TxOutcome describes the result of a successful Process (destination
// mailbox delivery) call.
type TxOutcome struct {
	TxHash      chaintypes.TxHash
	GasUsed     uint64
	Executed    bool
	SubmittedBy chaintypes.Address32
}

// UnsignedTx is the adapter-opaque payload handed to Submit; concrete
// adapters know how to interpret their own tx representation, so this is
// intentionally a thin wrapper the inclusion stage treats opaquely except
// for the fields it must manage itself (nonce, fee).
type UnsignedTx struct {
	To       chaintypes.Address32
	Data     []byte
	GasLimit uint64
	Nonce    *uint64 // nil until assigned by the inclusion stage's nonce manager
	MaxFee   uint64
	TipCap   uint64
	Legacy   bool // true if this chain/tx should use a legacy gas price instead of EIP-1559 fields
}

// Receipt is the adapter-opaque receipt of a submitted transaction.
type Receipt struct {
	TxHash            chaintypes.TxHash
	BlockNumber       uint64
	Status            bool
	GasUsed           uint64
	ContainsDelivery  bool
	DeliveredMessages []chaintypes.MessageID
}

// ChainAdapter is the capability set every chain driver exposes.
//
// Contract for FetchLogsInRange: returns all logs of the requested event
// type whose block number lies in the inclusive range; may return
// duplicates; MUST NOT omit any log whose block is finalized at call time.
//
// Contract for LatestSequenceAndTip: count == nil means "not yet known";
// callers must treat that as "no progress possible this tick."
type ChainAdapter interface {
	// FetchLogsInRange returns every SequencedLog in the inclusive range.
	FetchLogsInRange(ctx context.Context, r BlockRange) ([]chaintypes.SequencedLog, error)

	// LatestSequenceAndTip returns the on-chain sequence counter (nil if
	// unknown) and the tip block visible from this adapter's RPC endpoint.
	LatestSequenceAndTip(ctx context.Context) (count *uint32, tip uint32, err error)

	// GetFinalizedBlock returns the highest block considered final given
	// this chain's configured reorg period.
	GetFinalizedBlock(ctx context.Context) (uint32, error)

	// Delivered reports whether a message id has already been processed by
	// the destination mailbox, independent of our own bookkeeping.
	Delivered(ctx context.Context, id chaintypes.MessageID) (bool, error)

	// RecipientISM returns the ISM address a recipient has configured.
	RecipientISM(ctx context.Context, recipient chaintypes.Address32) (chaintypes.Address32, error)

	// IsContract reports whether addr has code on this chain.
	IsContract(ctx context.Context, addr chaintypes.Address32) (bool, error)

	// EstimateProcessCost dry-runs message delivery and returns the gas it
	// would consume, given already-built ISM metadata.
	EstimateProcessCost(ctx context.Context, msg *chaintypes.Message, metadata []byte) (*GasEstimate, error)

	// Process delivers msg to its recipient via the destination mailbox.
	Process(ctx context.Context, msg *chaintypes.Message, metadata []byte, gasLimitOverride *uint64) (*TxOutcome, error)

	// Submit broadcasts an already-priced, already-signed transaction.
	Submit(ctx context.Context, tx *UnsignedTx) (chaintypes.TxHash, error)

	// GetTransactionReceipt looks up a receipt; returns (nil, nil) if not
	// yet mined.
	GetTransactionReceipt(ctx context.Context, hash chaintypes.TxHash) (*Receipt, error)

	// FeeHistory is used by the inclusion stage's fee escalation logic.
	FeeHistory(ctx context.Context, blocks uint64, newest string, rewardPercentiles []float64) (*FeeHistory, error)
}
