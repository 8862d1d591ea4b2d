// Package cursor implements the sequence-aware forward and backward
// indexing cursors, the hard part of this system. A cursor reconciles a
// monotonic on-chain sequence counter with a range-scan block indexer,
// detecting gaps, duplicates, reorganizations, and unindexed tips, with
// an idempotent rewind-on-inconsistency recovery path.
package cursor

import "github.com/crosslink-relay/relayer/chaintypes"

// IndexMode selects whether next_range produces block-number ranges or
// sequence-number ranges.
type IndexMode int

const (
	ModeBlock IndexMode = iota
	ModeSequence
)

// StoreLookup is the minimal persistence surface the fast-forward step of
// both cursors needs: "is there an entry for this sequence, and at what
// block was it logged?" Implementations typically delegate to store.Store.
type StoreLookup interface {
	// BlockOfSequence returns the block number a given sequence was
	// recorded at, if the store already has an entry for it.
	BlockOfSequence(sequence uint32) (block uint32, ok bool)
}

// TipProvider is the on-chain query surface a cursor polls each tick.
type TipProvider interface {
	// LatestSequenceAndTip returns (nil, tip, nil) when the on-chain count
	// is not yet known; callers must treat that as "no progress possible."
	LatestSequenceAndTip() (count *uint32, tip uint32, err error)
}

// Range is an inclusive range over either block numbers or sequence
// numbers, depending on the cursor's IndexMode.
type Range struct {
	Start uint32
	End   uint32
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func u32ptr(v uint32) *uint32 { return &v }

// dedupAndSortBySequence removes duplicate sequence numbers (keeping the
// first occurrence) and sorts ascending by sequence, as the update
// algorithm requires.
func dedupAndSortBySequence[T any](logs []chaintypes.SequenceIndexed[T]) []chaintypes.SequenceIndexed[T] {
	seen := make(map[uint32]bool, len(logs))
	out := make([]chaintypes.SequenceIndexed[T], 0, len(logs))
	for _, l := range logs {
		if seen[l.Sequence] {
			continue
		}
		seen[l.Sequence] = true
		out = append(out, l)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Sequence > out[j].Sequence; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
