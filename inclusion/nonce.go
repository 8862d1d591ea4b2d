package inclusion

import (
	"context"
	"sync"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// NonceSource supplies an address's on-chain finalized nonce. Left
// adapter-specific rather than folded into adapter.ChainAdapter, since
// not every chain flavor exposes account-nonce semantics the same way.
type NonceSource interface {
	FinalizedNonce(ctx context.Context, addr chaintypes.Address32) (uint64, error)
}

// NonceManager implements the inclusion stage's nonce ordering rule:
// cache the address's on-chain finalized nonce; newly created txs take
// max(cached, one-past-last-locally-assigned); replacement txs reuse
// their original nonce (callers simply don't call Next again for those).
type NonceManager struct {
	src NonceSource

	mu       sync.Mutex
	cached   map[chaintypes.Address32]uint64
	assigned map[chaintypes.Address32]uint64 // highest nonce locally assigned so far
}

func NewNonceManager(src NonceSource) *NonceManager {
	return &NonceManager{
		src:      src,
		cached:   make(map[chaintypes.Address32]uint64),
		assigned: make(map[chaintypes.Address32]uint64),
	}
}

// Refresh re-reads the finalized nonce for addr from the chain. Called
// once per inclusion-stage tick, before any send/poll/escalate pass.
func (n *NonceManager) Refresh(ctx context.Context, addr chaintypes.Address32) error {
	nonce, err := n.src.FinalizedNonce(ctx, addr)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.cached[addr] = nonce
	n.mu.Unlock()
	return nil
}

// Next assigns the next nonce for a brand new transaction from addr.
func (n *NonceManager) Next(addr chaintypes.Address32) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := n.cached[addr]
	if assigned, ok := n.assigned[addr]; ok && assigned+1 > next {
		next = assigned + 1
	}
	n.assigned[addr] = next
	return next
}
