package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// Watcher runs the watch/sync task pair for the home contract and every
// replica, races them against a shared UpdateHandler, and on a detected
// double update runs the concurrent failure response.
type Watcher struct {
	HomeDomain         uint32
	Home               WatchedContract
	Replicas           []WatchedContract
	ConnectionManagers []ConnectionManager
	Signer             FailureSigner
	Store              UpdateStore
	UpdaterAddress     chaintypes.Address32
	Interval           time.Duration
	Log                log.Logger
}

func (w *Watcher) logger() log.Logger {
	if w.Log == nil {
		return log.Root()
	}
	return w.Log
}

func (w *Watcher) contracts() []WatchedContract {
	return append([]WatchedContract{w.Home}, w.Replicas...)
}

// Run starts every watch/sync task and the update handler, and blocks
// until either ctx is cancelled or a double update is confirmed and the
// failure response has completed. A non-nil return means a double update
// was detected and handled, a committed root could not be read at
// startup, or the update handler stopped while ctx was still live; after
// a double update the caller should treat this as fatal and not restart
// the watcher against the same contracts.
func (w *Watcher) Run(ctx context.Context) error {
	feed := new(event.Feed)
	updates := make(chan chaintypes.SignedUpdate, 256)
	sub := feed.Subscribe(updates)
	defer sub.Unsubscribe()

	taskCtx, cancelTasks := context.WithCancel(ctx)
	defer cancelTasks()

	var wg sync.WaitGroup
	for _, c := range w.contracts() {
		from, err := c.CommittedRoot(ctx)
		if err != nil {
			return fmt.Errorf("watcher: reading committed root for %s: %w", c.Name(), err)
		}
		cw := NewContractWatcher(w.Interval, from, c, feed, w.Log)
		hs := NewHistorySync(w.Interval, from, c, feed, w.Log)
		wg.Add(2)
		go func() { defer wg.Done(); cw.Run(taskCtx) }()
		go func() { defer wg.Done(); hs.Run(taskCtx) }()
	}

	handler := &UpdateHandler{HomeDomain: w.HomeDomain, Store: w.Store, Updates: updates, Log: w.Log}
	double, err := handler.Run(taskCtx)

	// The handler has resolved (found fraud, or the context died); cancel
	// every watch/sync task before doing anything else.
	cancelTasks()
	wg.Wait()

	if err != nil {
		if ctx.Err() != nil {
			return nil // clean shutdown requested by the caller
		}
		return fmt.Errorf("watcher: update handler stopped: %w", err)
	}
	if double == nil {
		return nil
	}

	w.logger().Error("double update detected, notifying contracts and unenrolling replicas")
	if ferr := w.handleFailure(ctx, *double); ferr != nil {
		return fmt.Errorf("watcher: failure response incomplete: %w", ferr)
	}
	return fmt.Errorf("watcher: double update detected, all contracts notified, replicas unenrolled, watcher shut down")
}

// handleFailure fires every double_update and unenroll_replica call
// concurrently and collects every error via go-multierror, rather than
// stopping at the first failure.
func (w *Watcher) handleFailure(ctx context.Context, double DoubleUpdate) error {
	var mu sync.Mutex
	var result *multierror.Error
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		result = multierror.Append(result, err)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for _, c := range w.contracts() {
		wg.Add(1)
		go func(c WatchedContract) {
			defer wg.Done()
			record(c.DoubleUpdate(ctx, double))
		}(c)
	}

	notification := FailureNotification{HomeDomain: w.HomeDomain, Updater: w.UpdaterAddress}
	signed, signErr := w.Signer.SignFailure(ctx, notification)
	if signErr != nil {
		record(fmt.Errorf("sign failure notification: %w", signErr))
	} else {
		for _, cm := range w.ConnectionManagers {
			wg.Add(1)
			go func(cm ConnectionManager) {
				defer wg.Done()
				record(cm.UnenrollReplica(ctx, signed))
			}(cm)
		}
	}

	wg.Wait()
	return result.ErrorOrNil()
}
