// Package watcher implements the fraud/double-update watcher: a
// ContractWatcher/HistorySync pair per watched contract feeding a shared
// UpdateHandler that halts and triggers a failure response the moment two
// conflicting signed updates are seen for the same previous root.
package watcher

import (
	"context"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// WatchedContract is the read/write surface the watcher needs against a
// home or replica contract. Concrete chains implement it over their own
// ChainAdapter-equivalent RPC bindings; wire/ABI encoding is out of scope
// here the same way it is for adapter.ChainAdapter.
type WatchedContract interface {
	Name() string
	CommittedRoot(ctx context.Context) ([32]byte, error)
	SignedUpdateByOldRoot(ctx context.Context, oldRoot [32]byte) (*chaintypes.SignedUpdate, error)
	SignedUpdateByNewRoot(ctx context.Context, newRoot [32]byte) (*chaintypes.SignedUpdate, error)
	DoubleUpdate(ctx context.Context, d DoubleUpdate) error
}

// ConnectionManager is the per-replica-group contract that enforces
// enrollment; UnenrollReplica is invoked during the failure response.
type ConnectionManager interface {
	UnenrollReplica(ctx context.Context, failure SignedFailureNotification) error
}

// DoubleUpdate pairs the first-seen update for a previous root with a
// later, conflicting one, proof of fraud.
type DoubleUpdate struct {
	Existing    chaintypes.SignedUpdate
	Conflicting chaintypes.SignedUpdate
}

// FailureNotification is broadcast to every connection manager once fraud
// is confirmed.
type FailureNotification struct {
	HomeDomain uint32
	Updater    chaintypes.Address32
}

// SignedFailureNotification is a FailureNotification plus the watcher's
// signature over it.
type SignedFailureNotification struct {
	FailureNotification
	Signature []byte
}

// FailureSigner produces the signature for a FailureNotification. Left as
// an external collaborator. Signer key handling is out of scope here, the
// same way it is for the rest of the engine.
type FailureSigner interface {
	SignFailure(ctx context.Context, n FailureNotification) (SignedFailureNotification, error)
}
