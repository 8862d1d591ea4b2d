package watcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/event"

	"github.com/crosslink-relay/relayer/chaintypes"
)

type fakeContract struct {
	name string

	byOldRoot map[[32]byte]*chaintypes.SignedUpdate
	byNewRoot map[[32]byte]*chaintypes.SignedUpdate
	err       error
}

func (c *fakeContract) Name() string { return c.name }
func (c *fakeContract) CommittedRoot(ctx context.Context) ([32]byte, error) {
	return [32]byte{}, nil
}
func (c *fakeContract) SignedUpdateByOldRoot(ctx context.Context, oldRoot [32]byte) (*chaintypes.SignedUpdate, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.byOldRoot[oldRoot], nil
}
func (c *fakeContract) SignedUpdateByNewRoot(ctx context.Context, newRoot [32]byte) (*chaintypes.SignedUpdate, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.byNewRoot[newRoot], nil
}
func (c *fakeContract) DoubleUpdate(ctx context.Context, d DoubleUpdate) error { return nil }

var _ WatchedContract = (*fakeContract)(nil)

func TestContractWatcherPollOnceForwardsNewUpdateAndAdvancesRoot(t *testing.T) {
	u := chaintypes.SignedUpdate{PreviousRoot: root(1), NewRoot: root(2)}
	c := &fakeContract{name: "home", byOldRoot: map[[32]byte]*chaintypes.SignedUpdate{root(1): &u}}
	feed := new(event.Feed)
	ch := make(chan chaintypes.SignedUpdate, 1)
	sub := feed.Subscribe(ch)
	defer sub.Unsubscribe()

	w := NewContractWatcher(time.Second, root(1), c, feed, nil)
	if err := w.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	if w.committedRoot != root(2) {
		t.Fatalf("expected committed root to advance to the new root")
	}
	select {
	case got := <-ch:
		if got.NewRoot != root(2) {
			t.Fatalf("unexpected update forwarded: %+v", got)
		}
	default:
		t.Fatalf("expected the update to be forwarded onto the feed")
	}
}

func TestContractWatcherPollOnceNoUpdateIsANoOp(t *testing.T) {
	c := &fakeContract{name: "home", byOldRoot: map[[32]byte]*chaintypes.SignedUpdate{}}
	feed := new(event.Feed)
	w := NewContractWatcher(time.Second, root(1), c, feed, nil)
	if err := w.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce: %v", err)
	}
	if w.committedRoot != root(1) {
		t.Fatalf("expected committed root to stay unchanged without a new update")
	}
}

func TestContractWatcherPollOncePropagatesContractError(t *testing.T) {
	c := &fakeContract{name: "home", err: errors.New("rpc down")}
	feed := new(event.Feed)
	w := NewContractWatcher(time.Second, root(1), c, feed, nil)
	if err := w.pollOnce(context.Background()); err == nil {
		t.Fatalf("expected pollOnce to propagate the contract error")
	}
}

func TestHistorySyncStepWalksBackwardAndFinishesAtZeroRoot(t *testing.T) {
	zero := [32]byte{}
	u := chaintypes.SignedUpdate{PreviousRoot: zero, NewRoot: root(5)}
	c := &fakeContract{name: "home", byNewRoot: map[[32]byte]*chaintypes.SignedUpdate{root(5): &u}}
	feed := new(event.Feed)
	ch := make(chan chaintypes.SignedUpdate, 1)
	sub := feed.Subscribe(ch)
	defer sub.Unsubscribe()

	h := NewHistorySync(time.Second, root(5), c, feed, nil)
	finished, err := h.step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !finished {
		t.Fatalf("expected history sync to finish upon reaching the zero root")
	}
	if h.committedRoot != zero {
		t.Fatalf("expected committed root to walk back to the zero root")
	}
	select {
	case <-ch:
	default:
		t.Fatalf("expected the update to be forwarded before finishing")
	}
}

func TestHistorySyncStepNotFinishedWhenPreviousRootIsNonZero(t *testing.T) {
	u := chaintypes.SignedUpdate{PreviousRoot: root(3), NewRoot: root(5)}
	c := &fakeContract{name: "home", byNewRoot: map[[32]byte]*chaintypes.SignedUpdate{root(5): &u}}
	feed := new(event.Feed)
	h := NewHistorySync(time.Second, root(5), c, feed, nil)

	finished, err := h.step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if finished {
		t.Fatalf("expected history sync to continue past a non-zero previous root")
	}
	if h.committedRoot != root(3) {
		t.Fatalf("expected committed root to walk back to the previous root")
	}
}

func TestHistorySyncStepFinishesWhenNoUpdateFound(t *testing.T) {
	c := &fakeContract{name: "home", byNewRoot: map[[32]byte]*chaintypes.SignedUpdate{}}
	feed := new(event.Feed)
	h := NewHistorySync(time.Second, root(5), c, feed, nil)

	finished, err := h.step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if !finished {
		t.Fatalf("expected history sync to finish when no update is found")
	}
}
