// Package indexer drives the sequence-aware cursors of package cursor
// against a live ChainAdapter and Store: the per-origin task loop each
// cursor runs inside, one independent task per indexed event family. The
// cursor package itself stays pure (NextRange/Update with no I/O); this
// package supplies the I/O and scheduling, in the same ticker/select
// shape already used by processor.Run and opqueue.Loop.
package indexer

import (
	"context"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosslink-relay/relayer/adapter"
	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/cursor"
	"github.com/crosslink-relay/relayer/merkletree"
	"github.com/crosslink-relay/relayer/store"
)

// storeLookup adapts store.Store to cursor.StoreLookup for one origin
// domain's message sequence family. Store.PutMessage does not persist the
// block a message was observed at (only the message payload itself), so
// this always reports "unknown", so the fast-forward optimization in
// cursor.Forward.NextRange never fires from this layer; correctness still
// comes entirely from the persisted LastIndexedSnapshot.
type storeLookup struct{}

func (storeLookup) BlockOfSequence(sequence uint32) (uint32, bool) {
	return 0, false
}

// tipProvider adapts adapter.ChainAdapter to cursor.TipProvider.
type tipProvider struct {
	ctx     context.Context
	adapter adapter.ChainAdapter
}

func (t tipProvider) LatestSequenceAndTip() (*uint32, uint32, error) {
	return t.adapter.LatestSequenceAndTip(t.ctx)
}

// MessageIndexer drives one origin domain's forward cursor over the
// mailbox's Dispatch event family, persisting every observed message and
// advancing the highest-seen-nonce watermark the message processor reads.
type MessageIndexer struct {
	Origin      uint32
	Adapter     adapter.ChainAdapter
	Store       store.Store
	PollEvery   time.Duration
	SnapshotKey string
	Log         log.Logger

	forward *cursor.Forward[chaintypes.Message]
	tree    *merkletree.Tree
}

// NewMessageIndexer restores cursor state from the store if a snapshot
// exists, or starts fresh at fromBlock (the chain config's
// index.from_block).
func NewMessageIndexer(ctx context.Context, origin uint32, ad adapter.ChainAdapter, st store.Store, fromBlock, chunkSize uint32, mode cursor.IndexMode, pollEvery time.Duration, logger log.Logger) (*MessageIndexer, error) {
	if logger == nil {
		logger = log.Root()
	}
	snapshotKey := MessageSnapshotKey(origin)

	mi := &MessageIndexer{
		Origin:      origin,
		Adapter:     ad,
		Store:       st,
		PollEvery:   pollEvery,
		SnapshotKey: snapshotKey,
		Log:         logger,
	}

	snap, ok, err := st.GetLastIndexedSnapshot(ctx, snapshotKey)
	if err != nil {
		return nil, err
	}
	if ok {
		mi.forward = cursor.RestoreForward[chaintypes.Message](snap, chunkSize, mode, logger)
	} else {
		mi.forward = cursor.NewForward[chaintypes.Message](0, fromBlock, chunkSize, mode, logger)
	}

	mi.tree = &merkletree.Tree{}
	if err := mi.rebuildMerkleTree(ctx); err != nil {
		return nil, err
	}
	return mi, nil
}

// rebuildMerkleTree replays previously persisted merkle_insertion entries
// in leaf order so the in-memory accumulator's root matches on-chain state
// after a restart; the tree itself is not persisted, only each leaf's
// Insertion record is.
func (mi *MessageIndexer) rebuildMerkleTree(ctx context.Context) error {
	for leafIndex := uint32(0); ; leafIndex++ {
		ins, ok, err := mi.Store.GetMerkleInsertion(ctx, mi.Origin, leafIndex)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		mi.tree.Insert(ins.MessageID)
	}
}

// Tick runs one range-scan iteration: select a range, fetch its logs,
// persist every message and the highest nonce seen, then fold the result
// back into cursor state. Returns whether any progress was made.
func (mi *MessageIndexer) Tick(ctx context.Context) (bool, error) {
	lookup := storeLookup{}
	tip := tipProvider{ctx: ctx, adapter: mi.Adapter}

	r, err := mi.forward.NextRange(lookup, tip)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, nil
	}

	logs, err := mi.Adapter.FetchLogsInRange(ctx, adapter.BlockRange{Start: uint64(r.Start), End: uint64(r.End)})
	if err != nil {
		return false, err
	}

	sorted := append([]chaintypes.SequencedLog(nil), logs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].Sequence > sorted[j].Sequence; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	var highest *uint32
	for _, l := range sorted {
		msg := l.Decoded
		if err := mi.Store.PutMessage(ctx, mi.Origin, &msg); err != nil {
			return false, err
		}
		if highest == nil || l.Sequence > *highest {
			seq := l.Sequence
			highest = &seq
		}

		// Leaves must be inserted in nonce order; l.Sequence == msg.Nonce
		// for the message event family, and leaf_index == tree.Count()
		// since every dispatched message becomes exactly one leaf.
		if l.Sequence == mi.tree.Count() {
			id := msg.ID()
			leafIndex := mi.tree.Insert(id)
			ins := store.Insertion{LeafIndex: leafIndex, MessageID: id, Root: mi.tree.Root()}
			if err := mi.Store.PutMerkleInsertion(ctx, mi.Origin, leafIndex, ins); err != nil {
				return false, err
			}
		}
	}
	if highest != nil {
		if err := mi.Store.PutHighestSeenNonce(ctx, mi.Origin, *highest); err != nil {
			return false, err
		}
	}

	if err := mi.forward.Update(logs, cursor.Range{Start: r.Start, End: r.End}); err != nil {
		return false, err
	}
	if err := mi.Store.PutLastIndexedSnapshot(ctx, mi.SnapshotKey, mi.forward.LastIndexed()); err != nil {
		return false, err
	}
	return true, nil
}

// Run ticks on PollEvery until ctx is cancelled, skipping the sleep
// whenever a tick made progress (mirrors processor.Run's "sleep only on
// no-op" shape).
func (mi *MessageIndexer) Run(ctx context.Context) {
	interval := mi.PollEvery
	if interval <= 0 {
		interval = 2 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		progressed, err := mi.Tick(ctx)
		if err != nil {
			mi.Log.Warn("indexer tick failed", "origin", mi.Origin, "err", err)
		}
		if !progressed {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}
	}
}

// MessageSnapshotKey is the cursor-snapshot key for one origin domain's
// message indexer, also used by cmd/relayer's reset-cursors subcommand.
func MessageSnapshotKey(origin uint32) string {
	return "messages:" + strconv.FormatUint(uint64(origin), 10)
}
