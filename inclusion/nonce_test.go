package inclusion

import (
	"context"
	"errors"
	"testing"

	"github.com/crosslink-relay/relayer/chaintypes"
)

type fakeNonceSrc struct {
	nonce uint64
	err   error
}

func (f fakeNonceSrc) FinalizedNonce(ctx context.Context, addr chaintypes.Address32) (uint64, error) {
	return f.nonce, f.err
}

func TestNonceManagerNextUsesCachedValueBeforeRefresh(t *testing.T) {
	addr := chaintypes.Address32{}
	m := NewNonceManager(fakeNonceSrc{nonce: 10})
	if got := m.Next(addr); got != 0 {
		t.Fatalf("expected 0 before any Refresh, got %d", got)
	}
}

func TestNonceManagerRefreshThenNext(t *testing.T) {
	addr := chaintypes.Address32{}
	m := NewNonceManager(fakeNonceSrc{nonce: 10})
	if err := m.Refresh(context.Background(), addr); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := m.Next(addr); got != 10 {
		t.Fatalf("expected first assignment to be the cached finalized nonce 10, got %d", got)
	}
	if got := m.Next(addr); got != 11 {
		t.Fatalf("expected the second assignment to advance past the first, got %d", got)
	}
}

func TestNonceManagerRefreshPropagatesError(t *testing.T) {
	addr := chaintypes.Address32{}
	wantErr := errors.New("rpc down")
	m := NewNonceManager(fakeNonceSrc{err: wantErr})
	if err := m.Refresh(context.Background(), addr); !errors.Is(err, wantErr) {
		t.Fatalf("expected refresh error to propagate, got %v", err)
	}
}

func TestNonceManagerAssignedNeverGoesBackwardAfterStaleRefresh(t *testing.T) {
	addr := chaintypes.Address32{}
	m := NewNonceManager(fakeNonceSrc{nonce: 10})
	_ = m.Refresh(context.Background(), addr)
	m.Next(addr) // assigns 10
	m.Next(addr) // assigns 11

	// A subsequent refresh reports a stale, lower finalized nonce (e.g. an
	// RPC node lagging behind); local assignment must still move forward.
	m.src = fakeNonceSrc{nonce: 5}
	_ = m.Refresh(context.Background(), addr)
	if got := m.Next(addr); got != 12 {
		t.Fatalf("expected assignment to stay monotonic at 12 despite a stale refresh, got %d", got)
	}
}
