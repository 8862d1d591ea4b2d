package processor

import (
	"context"
	"testing"

	"github.com/crosslink-relay/relayer/chaintypes"
)

type fakeNonceSource struct {
	messages  map[uint32]*chaintypes.Message
	processed map[uint32]bool
}

func newFakeSource() *fakeNonceSource {
	return &fakeNonceSource{messages: map[uint32]*chaintypes.Message{}, processed: map[uint32]bool{}}
}

func (f *fakeNonceSource) GetMessageByNonce(ctx context.Context, nonce uint32) (*chaintypes.Message, bool, error) {
	m, ok := f.messages[nonce]
	return m, ok, nil
}

func (f *fakeNonceSource) IsProcessed(ctx context.Context, nonce uint32) (bool, error) {
	return f.processed[nonce], nil
}

func u32(v uint32) *uint32 { return &v }

func TestNonceIteratorNilWithNoHighestSeenAndNothingIndexed(t *testing.T) {
	src := newFakeSource()
	it := NewNonceIterator(src, nil)
	msg, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected nil candidate, got %+v", msg)
	}
}

func TestNonceIteratorAdvancesPastProcessedHighEnd(t *testing.T) {
	src := newFakeSource()
	src.processed[5] = true
	src.messages[6] = &chaintypes.Message{Nonce: 6}

	it := NewNonceIterator(src, u32(5))
	msg, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == nil || msg.Nonce != 6 {
		t.Fatalf("expected nonce 5 (already processed) to be skipped and land on 6, got %+v", msg)
	}
}

func TestNonceIteratorFallsBackToLowerUnprocessedNonce(t *testing.T) {
	src := newFakeSource()
	// highest_seen_nonce=5: the high end starts unindexed (nothing stored
	// at 5 yet), so the walk falls back to the low end, which starts one
	// below at 4.
	src.messages[4] = &chaintypes.Message{Nonce: 4}

	it := NewNonceIterator(src, u32(5))
	msg, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == nil || msg.Nonce != 4 {
		t.Fatalf("expected fallback to nonce 4, got %+v", msg)
	}
}

func TestNonceIteratorSkipsMultipleProcessedHighNonces(t *testing.T) {
	src := newFakeSource()
	src.processed[5] = true
	src.processed[6] = true
	src.messages[7] = &chaintypes.Message{Nonce: 7}

	it := NewNonceIterator(src, u32(5))
	msg, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == nil || msg.Nonce != 7 {
		t.Fatalf("expected nonces 5 and 6 to be skipped and land on 7, got %+v", msg)
	}
}
