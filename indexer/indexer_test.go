package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/crosslink-relay/relayer/adapter"
	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/cursor"
	"github.com/crosslink-relay/relayer/store"
	"github.com/crosslink-relay/relayer/store/memdb"
)

// fakeAdapter implements adapter.ChainAdapter, exercising only the two
// methods the indexer's Tick actually calls.
type fakeAdapter struct {
	count *uint32
	tip   uint32
	logs  []chaintypes.SequencedLog
}

// FetchLogsInRange filters by sequence number: in ModeSequence the
// indexer's Tick passes the cursor's sequence range through as a
// BlockRange, so this fake mirrors that convention rather than
// filtering by block number.
func (f *fakeAdapter) FetchLogsInRange(ctx context.Context, r adapter.BlockRange) ([]chaintypes.SequencedLog, error) {
	var out []chaintypes.SequencedLog
	for _, l := range f.logs {
		if uint64(l.Sequence) >= r.Start && uint64(l.Sequence) <= r.End {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeAdapter) LatestSequenceAndTip(ctx context.Context) (*uint32, uint32, error) {
	return f.count, f.tip, nil
}

func (f *fakeAdapter) GetFinalizedBlock(ctx context.Context) (uint32, error) { return f.tip, nil }
func (f *fakeAdapter) Delivered(ctx context.Context, id chaintypes.MessageID) (bool, error) {
	return false, nil
}
func (f *fakeAdapter) RecipientISM(ctx context.Context, recipient chaintypes.Address32) (chaintypes.Address32, error) {
	return chaintypes.Address32{}, nil
}
func (f *fakeAdapter) IsContract(ctx context.Context, addr chaintypes.Address32) (bool, error) {
	return true, nil
}
func (f *fakeAdapter) EstimateProcessCost(ctx context.Context, msg *chaintypes.Message, metadata []byte) (*adapter.GasEstimate, error) {
	return &adapter.GasEstimate{}, nil
}
func (f *fakeAdapter) Process(ctx context.Context, msg *chaintypes.Message, metadata []byte, gasLimitOverride *uint64) (*adapter.TxOutcome, error) {
	return &adapter.TxOutcome{}, nil
}
func (f *fakeAdapter) Submit(ctx context.Context, tx *adapter.UnsignedTx) (chaintypes.TxHash, error) {
	return chaintypes.TxHash{}, nil
}
func (f *fakeAdapter) GetTransactionReceipt(ctx context.Context, hash chaintypes.TxHash) (*adapter.Receipt, error) {
	return nil, nil
}
func (f *fakeAdapter) FeeHistory(ctx context.Context, blocks uint64, newest string, rewardPercentiles []float64) (*adapter.FeeHistory, error) {
	return &adapter.FeeHistory{}, nil
}

var _ adapter.ChainAdapter = (*fakeAdapter)(nil)

func countPtr(v uint32) *uint32 { return &v }

func newSequencedLog(seq uint32, nonce, block uint64) chaintypes.SequencedLog {
	msg := chaintypes.Message{Nonce: uint32(nonce), Origin: 1}
	return chaintypes.SequencedLog{
		Sequence: seq,
		Decoded:  msg,
		Meta:     chaintypes.LogMeta{BlockNumber: block},
	}
}

func TestMessageIndexerTickPersistsMessagesAndAdvancesCursor(t *testing.T) {
	ctx := context.Background()
	st := memdb.New()
	ad := &fakeAdapter{
		count: countPtr(3),
		tip:   100,
		logs: []chaintypes.SequencedLog{
			newSequencedLog(0, 0, 10),
			newSequencedLog(1, 1, 10),
			newSequencedLog(2, 2, 11),
		},
	}

	mi, err := NewMessageIndexer(ctx, 1, ad, st, 0, 10, cursor.ModeSequence, time.Second, nil)
	if err != nil {
		t.Fatalf("constructing indexer: %v", err)
	}

	progressed, err := mi.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !progressed {
		t.Fatalf("expected tick to report progress")
	}

	for _, nonce := range []uint32{0, 1, 2} {
		if _, ok, err := st.GetMessageByNonce(ctx, 1, nonce); err != nil || !ok {
			t.Fatalf("expected message at nonce %d to be persisted, ok=%v err=%v", nonce, ok, err)
		}
	}

	highest, err := st.GetHighestSeenNonce(ctx, 1)
	if err != nil {
		t.Fatalf("get highest seen nonce: %v", err)
	}
	if highest == nil || *highest != 2 {
		t.Fatalf("expected highest seen nonce 2, got %v", highest)
	}

	snap, ok, err := st.GetLastIndexedSnapshot(ctx, MessageSnapshotKey(1))
	if err != nil || !ok {
		t.Fatalf("expected a persisted snapshot, ok=%v err=%v", ok, err)
	}
	if snap.Sequence == nil || *snap.Sequence != 2 {
		t.Fatalf("expected snapshot sequence 2, got %+v", snap.Sequence)
	}
}

func TestMessageIndexerTickNoProgressWhenSynced(t *testing.T) {
	ctx := context.Background()
	st := memdb.New()
	ad := &fakeAdapter{count: countPtr(0), tip: 5}

	mi, err := NewMessageIndexer(ctx, 1, ad, st, 0, 10, cursor.ModeSequence, time.Second, nil)
	if err != nil {
		t.Fatalf("constructing indexer: %v", err)
	}

	progressed, err := mi.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if progressed {
		t.Fatalf("expected no progress when already synced with the chain tip")
	}
}

func TestMessageIndexerRebuildsMerkleTreeFromPersistedInsertions(t *testing.T) {
	ctx := context.Background()
	st := memdb.New()
	var leaf chaintypes.MessageID
	leaf[0] = 0xAB
	ins := store.Insertion{LeafIndex: 0, MessageID: leaf}
	if err := st.PutMerkleInsertion(ctx, 1, 0, ins); err != nil {
		t.Fatalf("seeding merkle insertion: %v", err)
	}

	ad := &fakeAdapter{count: countPtr(0), tip: 5}
	mi, err := NewMessageIndexer(ctx, 1, ad, st, 0, 10, cursor.ModeSequence, time.Second, nil)
	if err != nil {
		t.Fatalf("constructing indexer: %v", err)
	}
	if mi.tree.Count() != 1 {
		t.Fatalf("expected rebuilt tree to have replayed 1 leaf, got %d", mi.tree.Count())
	}
}
