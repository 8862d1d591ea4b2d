package store

import (
	"context"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// MessageView is a read-only query surface over a Store, used by
// operational tooling (cmd/relayer db-inspect) rather than the engine
// itself. Grounded on the scraper's read-side queries
// (last_message_nonce, retrieve_message_by_nonce), independent of the
// write-side Store the engine drives.
type MessageView struct {
	store Store
}

func NewMessageView(s Store) MessageView {
	return MessageView{store: s}
}

// LastNonce returns the highest nonce persisted for an origin domain, if
// any. The db-inspect equivalent of last_message_nonce.
func (v MessageView) LastNonce(ctx context.Context, origin uint32) (*uint32, error) {
	return v.store.GetHighestSeenNonce(ctx, origin)
}

// MessageByNonce retrieves one message's full payload, if stored.
func (v MessageView) MessageByNonce(ctx context.Context, origin, nonce uint32) (*chaintypes.Message, bool, error) {
	return v.store.GetMessageByNonce(ctx, origin, nonce)
}

// DeliveryStatus reports whether a message id has been marked processed,
// and its current PendingOperationStatus if one has been recorded.
func (v MessageView) DeliveryStatus(ctx context.Context, origin uint32, id chaintypes.MessageID) (processed bool, status chaintypes.PendingOperationStatus, hasStatus bool, err error) {
	st, hasStatus, err := v.store.GetStatus(ctx, id)
	if err != nil {
		return false, chaintypes.PendingOperationStatus{}, false, err
	}
	msg, ok, err := v.store.GetMessageByID(ctx, id)
	if err != nil || !ok {
		return false, st, hasStatus, err
	}
	processed, err = v.store.IsProcessed(ctx, origin, msg.Nonce)
	return processed, st, hasStatus, err
}
