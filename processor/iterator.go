// Package processor implements the bidirectional nonce-advancing message
// processor: a forward-preferred, backward-fallback walk over an origin's
// persisted messages that dispatches unprocessed ones to per-destination
// queues.
package processor

import (
	"context"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// NonceState is the outcome of probing a single nonce against the store.
type NonceState int

const (
	// NonceUnindexed means no message is stored at this nonce yet; the
	// indexer hasn't caught up.
	NonceUnindexed NonceState = iota
	// NonceProcessed means processed[nonce] = true.
	NonceProcessed
	// NonceProcessable means a message is stored and not yet processed.
	NonceProcessable
)

// NonceSource is the read surface the iterator polls; normally backed by
// store.Store for a single origin domain.
type NonceSource interface {
	GetMessageByNonce(ctx context.Context, nonce uint32) (*chaintypes.Message, bool, error)
	IsProcessed(ctx context.Context, nonce uint32) (bool, error)
}

type direction int

const (
	dirHigh direction = iota
	dirLow
)

// subIterator tracks one end of the bidirectional walk.
type subIterator struct {
	nonce *uint32
	dir   direction
}

func (s *subIterator) advance() {
	if s.nonce == nil {
		return
	}
	switch s.dir {
	case dirHigh:
		n := *s.nonce + 1
		s.nonce = &n
	case dirLow:
		if *s.nonce == 0 {
			s.nonce = nil
			return
		}
		n := *s.nonce - 1
		s.nonce = &n
	}
}

func tryNonce(ctx context.Context, src NonceSource, sub *subIterator) (NonceState, *chaintypes.Message, error) {
	if sub.nonce == nil {
		return NonceUnindexed, nil, nil
	}
	processed, err := src.IsProcessed(ctx, *sub.nonce)
	if err != nil {
		return NonceUnindexed, nil, err
	}
	if processed {
		return NonceProcessed, nil, nil
	}
	msg, ok, err := src.GetMessageByNonce(ctx, *sub.nonce)
	if err != nil {
		return NonceUnindexed, nil, err
	}
	if !ok {
		return NonceUnindexed, nil, nil
	}
	return NonceProcessable, msg, nil
}

// NonceIterator is the bidirectional selection loop: it prefers higher
// nonces on each pass, falling back to retry lower nonces that remain
// unprocessed.
type NonceIterator struct {
	high subIterator
	low  subIterator
	src  NonceSource
}

// NewNonceIterator initializes from highest_seen_nonce (nil if unknown).
func NewNonceIterator(src NonceSource, highestSeen *uint32) *NonceIterator {
	var highStart uint32
	if highestSeen != nil {
		highStart = *highestSeen
	}
	it := &NonceIterator{
		src:  src,
		high: subIterator{nonce: &highStart, dir: dirHigh},
	}
	if highestSeen != nil {
		low := *highestSeen
		it.low = subIterator{nonce: &low, dir: dirLow}
		it.low.advance() // decrement once to avoid double-counting the highest
	} else {
		it.low = subIterator{nonce: nil, dir: dirLow}
	}
	return it
}

// Next returns the next unprocessed message, or nil if neither direction
// currently has a candidate (both ends are unindexed).
func (it *NonceIterator) Next(ctx context.Context) (*chaintypes.Message, error) {
	for {
		hState, hMsg, err := tryNonce(ctx, it.src, &it.high)
		if err != nil {
			return nil, err
		}
		lState, lMsg, err := tryNonce(ctx, it.src, &it.low)
		if err != nil {
			return nil, err
		}

		switch {
		case hState == NonceProcessed:
			it.high.advance()
			continue
		case hState == NonceProcessable:
			it.high.advance()
			return hMsg, nil
		case lState == NonceProcessed:
			it.low.advance()
			continue
		case lState == NonceProcessable:
			it.low.advance()
			return lMsg, nil
		case hState == NonceUnindexed && lState == NonceUnindexed:
			return nil, nil
		default:
			return nil, nil
		}
	}
}
