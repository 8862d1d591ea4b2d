// Package store defines the persistence contract for the relayer core.
// Concrete implementations live in sibling packages (store/pebbledb for
// production, store/memdb for tests). The store need not provide
// cross-key transactions but MUST provide per-key atomicity; reads are
// strongly consistent after a write returns.
package store

import (
	"context"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// GasPayment records an observed IGP payment for a sequence number.
type GasPayment struct {
	Sequence uint32
	Amount   uint64
	Token    chaintypes.Address32
}

// Insertion records a merkle-tree-hook leaf insertion.
type Insertion struct {
	LeafIndex uint32
	MessageID chaintypes.MessageID
	Root      [32]byte
}

// Store is the key-addressed persistence surface the relayer core relies
// on. Every method prefix corresponds 1:1 to a key family; implementations
// must apply per-key atomicity (a concurrent reader never observes a
// torn write) but need not support cross-key transactions.
type Store interface {
	// messages, keyed by nonce and by id
	PutMessage(ctx context.Context, origin uint32, msg *chaintypes.Message) error
	GetMessageByNonce(ctx context.Context, origin uint32, nonce uint32) (*chaintypes.Message, bool, error)
	GetMessageByID(ctx context.Context, id chaintypes.MessageID) (*chaintypes.Message, bool, error)

	// processed[nonce] -> bool; the commit point of delivery.
	MarkProcessed(ctx context.Context, origin uint32, nonce uint32) error
	IsProcessed(ctx context.Context, origin uint32, nonce uint32) (bool, error)

	// retry_count[id] -> u32
	GetRetryCount(ctx context.Context, id chaintypes.MessageID) (uint32, error)
	PutRetryCount(ctx context.Context, id chaintypes.MessageID, count uint32) error

	// status[id] -> PendingOperationStatus
	GetStatus(ctx context.Context, id chaintypes.MessageID) (chaintypes.PendingOperationStatus, bool, error)
	PutStatus(ctx context.Context, id chaintypes.MessageID, status chaintypes.PendingOperationStatus) error

	// gas_payment[seq] -> GasPayment, block_of_gas_payment[seq] -> u64
	PutGasPayment(ctx context.Context, origin uint32, seq uint32, payment GasPayment, block uint64) error
	GetGasPayment(ctx context.Context, origin uint32, seq uint32) (GasPayment, uint64, bool, error)

	// merkle_insertion[leaf_index] -> Insertion
	PutMerkleInsertion(ctx context.Context, origin uint32, leafIndex uint32, ins Insertion) error
	GetMerkleInsertion(ctx context.Context, origin uint32, leafIndex uint32) (Insertion, bool, error)

	// highest_seen_nonce -> u32
	GetHighestSeenNonce(ctx context.Context, origin uint32) (*uint32, error)
	PutHighestSeenNonce(ctx context.Context, origin uint32, nonce uint32) error

	// signed_update_by_previous_root[root] -> SignedUpdate
	GetSignedUpdateByPreviousRoot(ctx context.Context, homeDomain uint32, root [32]byte) (*chaintypes.SignedUpdate, bool, error)
	PutSignedUpdateByPreviousRoot(ctx context.Context, homeDomain uint32, update chaintypes.SignedUpdate) error
	GetSignedUpdateByNewRoot(ctx context.Context, homeDomain uint32, root [32]byte) (*chaintypes.SignedUpdate, bool, error)

	// cursor snapshot persistence (recovery replays from here + configured start block)
	GetLastIndexedSnapshot(ctx context.Context, key string) (chaintypes.LastIndexedSnapshot, bool, error)
	PutLastIndexedSnapshot(ctx context.Context, key string, snap chaintypes.LastIndexedSnapshot) error

	Close() error
}
