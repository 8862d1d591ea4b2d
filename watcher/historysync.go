package watcher

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
)

// HistorySync walks a contract's history backward via
// signed_update_by_new_root, forwarding every update it finds to the
// shared feed until it reaches the zero root, which is terminal.
type HistorySync struct {
	interval      time.Duration
	committedRoot [32]byte
	contract      WatchedContract
	feed          *event.Feed
	log           log.Logger
}

func NewHistorySync(interval time.Duration, from [32]byte, contract WatchedContract, feed *event.Feed, logger log.Logger) *HistorySync {
	if logger == nil {
		logger = log.Root()
	}
	return &HistorySync{interval: interval, committedRoot: from, contract: contract, feed: feed, log: logger}
}

// step runs one update_history pass, reporting whether syncing has
// finished (no update found, or the zero root was reached).
func (h *HistorySync) step(ctx context.Context) (finished bool, err error) {
	update, err := h.contract.SignedUpdateByNewRoot(ctx, h.committedRoot)
	if err != nil {
		return false, err
	}
	if update == nil {
		h.log.Info("history sync has finished", "contract", h.contract.Name())
		return true, nil
	}

	h.feed.Send(*update)
	h.committedRoot = update.PreviousRoot
	if h.committedRoot == ([32]byte{}) {
		h.log.Info("history sync has finished", "contract", h.contract.Name())
		return true, nil
	}
	return false, nil
}

// Run drives HistorySync until it finishes walking history or ctx is
// cancelled, whichever comes first.
func (h *HistorySync) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			finished, err := h.step(ctx)
			if err != nil {
				h.log.Warn("history sync step failed", "contract", h.contract.Name(), "err", err)
				continue
			}
			if finished {
				return
			}
		}
	}
}
