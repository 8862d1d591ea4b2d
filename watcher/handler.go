package watcher

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// UpdateStore is the subset of store.Store the handler needs to remember
// the first-seen update for each previous root.
type UpdateStore interface {
	GetSignedUpdateByPreviousRoot(ctx context.Context, homeDomain uint32, root [32]byte) (*chaintypes.SignedUpdate, bool, error)
	PutSignedUpdateByPreviousRoot(ctx context.Context, homeDomain uint32, update chaintypes.SignedUpdate) error
}

// UpdateHandler processes every received update: look up the stored
// update keyed by previous root. If absent,
// persist. If present with a matching new root, no-op. If present with a
// different new root and the same signer, this is a double update: halt and
// report it. A different new root from a different signer is ignored.
type UpdateHandler struct {
	HomeDomain uint32
	Store      UpdateStore
	Updates    <-chan chaintypes.SignedUpdate
	Log        log.Logger
}

func (h *UpdateHandler) logger() log.Logger {
	if h.Log == nil {
		return log.Root()
	}
	return h.Log
}

// checkDoubleUpdate is the single-update classification step.
func (h *UpdateHandler) checkDoubleUpdate(ctx context.Context, u chaintypes.SignedUpdate) (*DoubleUpdate, error) {
	existing, ok, err := h.Store.GetSignedUpdateByPreviousRoot(ctx, h.HomeDomain, u.PreviousRoot)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := h.Store.PutSignedUpdateByPreviousRoot(ctx, h.HomeDomain, u); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if existing.IsDoubleUpdateWith(u) {
		return &DoubleUpdate{Existing: *existing, Conflicting: u}, nil
	}
	return nil, nil
}

// Run receives updates and checks each for fraud. It returns as soon as a
// double update is found, or when ctx is cancelled, or if the updates
// channel is closed out from under it (the latter is always an error: this
// loop is never meant to exit on its own).
func (h *UpdateHandler) Run(ctx context.Context) (*DoubleUpdate, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case u, ok := <-h.Updates:
			if !ok {
				return nil, errors.New("watcher: update channel closed")
			}
			double, err := h.checkDoubleUpdate(ctx, u)
			if err != nil {
				h.logger().Warn("update handler store error", "err", err)
				continue
			}
			if double != nil {
				h.logger().Error("double update detected",
					"previous_root", double.Existing.PreviousRoot,
					"existing_new_root", double.Existing.NewRoot,
					"conflicting_new_root", double.Conflicting.NewRoot)
				return double, nil
			}
		}
	}
}
