package watcher

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
)

// ContractWatcher polls a single contract's signed-update-by-old-root
// surface every interval, forwarding each newly observed update onto the
// shared feed.
type ContractWatcher struct {
	interval      time.Duration
	committedRoot [32]byte
	contract      WatchedContract
	feed          *event.Feed
	log           log.Logger
}

func NewContractWatcher(interval time.Duration, from [32]byte, contract WatchedContract, feed *event.Feed, logger log.Logger) *ContractWatcher {
	if logger == nil {
		logger = log.Root()
	}
	return &ContractWatcher{interval: interval, committedRoot: from, contract: contract, feed: feed, log: logger}
}

// pollOnce runs a single poll_and_send_update pass.
func (w *ContractWatcher) pollOnce(ctx context.Context) error {
	update, err := w.contract.SignedUpdateByOldRoot(ctx, w.committedRoot)
	if err != nil {
		return err
	}
	if update == nil {
		w.log.Debug("no new update found", "previous_root", w.committedRoot, "contract", w.contract.Name())
		return nil
	}
	w.committedRoot = update.NewRoot
	w.feed.Send(*update)
	return nil
}

// Run drives ContractWatcher until ctx is cancelled.
func (w *ContractWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.pollOnce(ctx); err != nil {
				w.log.Warn("contract watcher poll failed", "contract", w.contract.Name(), "err", err)
			}
		}
	}
}
