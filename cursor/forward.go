package cursor

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// Forward drives a range scan that tracks a monotonically increasing
// on-chain sequence counter forward from a starting point. A Forward
// cursor is single-threaded over its own state; many cursors run in
// parallel as independent tasks sharing the Store.
type Forward[T any] struct {
	log log.Logger

	chunkSize uint32
	mode      IndexMode

	lastIndexed chaintypes.LastIndexedSnapshot
	current     chaintypes.TargetSnapshot
	target      *chaintypes.TargetSnapshot
}

// NewForward initializes a forward cursor expecting to index sequence
// nextExpected next, having last seen progress at startBlock.
func NewForward[T any](nextExpected uint32, startBlock uint32, chunkSize uint32, mode IndexMode, logger log.Logger) *Forward[T] {
	if logger == nil {
		logger = log.Root()
	}
	if chunkSize == 0 {
		chunkSize = 1
	}
	var lastSeq *uint32
	if nextExpected > 0 {
		lastSeq = u32ptr(nextExpected - 1)
	}
	return &Forward[T]{
		log:         logger,
		chunkSize:   chunkSize,
		mode:        mode,
		lastIndexed: chaintypes.LastIndexedSnapshot{Sequence: lastSeq, AtBlock: startBlock},
		current:     chaintypes.TargetSnapshot{Sequence: nextExpected, AtBlock: startBlock},
	}
}

// RestoreForward reconstructs a forward cursor from a persisted
// LastIndexedSnapshot (recovery path: replay from the store and the
// configured start block).
func RestoreForward[T any](last chaintypes.LastIndexedSnapshot, chunkSize uint32, mode IndexMode, logger log.Logger) *Forward[T] {
	f := NewForward[T](0, last.AtBlock, chunkSize, mode, logger)
	f.lastIndexed = last
	f.current = last.NextTarget()
	return f
}

func (f *Forward[T]) LastIndexed() chaintypes.LastIndexedSnapshot { return f.lastIndexed }
func (f *Forward[T]) Current() chaintypes.TargetSnapshot          { return f.current }

// NextRange runs the range-selection algorithm.
func (f *Forward[T]) NextRange(store StoreLookup, tip TipProvider) (*Range, error) {
	// 1. Fast-forward past anything the store already has, one step at a
	// time, yielding to the caller's scheduler implicitly by returning
	// control between loop iterations is the caller's responsibility when
	// StoreLookup itself is slow; here the loop is bounded by how far the
	// store has actually indexed.
	for {
		block, ok := store.BlockOfSequence(f.current.Sequence)
		if !ok {
			break
		}
		f.current = chaintypes.TargetSnapshot{Sequence: f.current.Sequence + 1, AtBlock: block}
	}

	onchainCount, tipBlock, err := tip.LatestSequenceAndTip()
	if err != nil {
		return nil, fmt.Errorf("latest sequence and tip: %w", err)
	}
	if onchainCount == nil {
		return nil, nil
	}

	switch {
	case f.current.Sequence == *onchainCount:
		// synced: future queries start just past the tip.
		f.current.AtBlock = tipBlock
		f.target = nil
		return nil, nil
	case f.current.Sequence < *onchainCount:
		target := chaintypes.TargetSnapshot{Sequence: *onchainCount - 1, AtBlock: tipBlock}
		f.target = &target
		switch f.mode {
		case ModeBlock:
			end := min32(f.current.AtBlock+f.chunkSize, tipBlock)
			return &Range{Start: f.current.AtBlock, End: end}, nil
		default: // ModeSequence
			end := min32(target.Sequence, f.current.Sequence+f.chunkSize)
			return &Range{Start: f.current.Sequence, End: end}, nil
		}
	default:
		f.log.Warn("forward cursor ahead of on-chain count, provider inconsistency",
			"current", f.current.Sequence, "onchain_count", *onchainCount)
		return nil, nil
	}
}

// Update applies the update algorithm, mutating cursor state in place.
// Rewinds are idempotent: retrying the same range never corrupts
// lastIndexed.
func (f *Forward[T]) Update(logs []chaintypes.SequenceIndexed[T], r Range) error {
	clean := dedupAndSortBySequence(logs)
	filtered := clean[:0]
	for _, l := range clean {
		if l.Sequence < f.current.Sequence {
			continue
		}
		filtered = append(filtered, l)
	}
	clean = filtered

	switch f.mode {
	case ModeSequence:
		if !sequencesExactlyCoverRange(clean, r) {
			f.rewind()
			return nil
		}
		highest := clean[len(clean)-1]
		f.current = chaintypes.TargetSnapshot{Sequence: r.End + 1, AtBlock: uint32(highest.Meta.BlockNumber)}
		f.advanceLastIndexed(highest)
		return nil
	default: // ModeBlock
		for i, l := range clean {
			if l.Sequence != f.current.Sequence+uint32(i) {
				f.rewind()
				return nil
			}
		}
		f.current = chaintypes.TargetSnapshot{Sequence: f.current.Sequence + uint32(len(clean)), AtBlock: r.End}
		if len(clean) > 0 {
			f.advanceLastIndexed(clean[len(clean)-1])
		}
		if f.target != nil && r.End >= f.target.AtBlock {
			if f.lastIndexed.Sequence == nil || *f.lastIndexed.Sequence < f.target.Sequence {
				f.rewind()
			}
		}
		return nil
	}
}

func (f *Forward[T]) advanceLastIndexed(highest chaintypes.SequenceIndexed[T]) {
	seq := highest.Sequence
	f.lastIndexed = chaintypes.LastIndexedSnapshot{Sequence: &seq, AtBlock: uint32(highest.Meta.BlockNumber)}
}

func (f *Forward[T]) rewind() {
	f.current = f.lastIndexed.NextTarget()
	f.log.Debug("forward cursor rewinding to last indexed snapshot", "sequence", f.current.Sequence, "block", f.current.AtBlock)
}

// sequencesExactlyCoverRange reports whether the sorted, deduped logs'
// sequence numbers are exactly the integers in [r.Start, r.End].
func sequencesExactlyCoverRange[T any](logs []chaintypes.SequenceIndexed[T], r Range) bool {
	want := r.End - r.Start + 1
	if uint32(len(logs)) != want {
		return false
	}
	for i, l := range logs {
		if l.Sequence != r.Start+uint32(i) {
			return false
		}
	}
	return true
}
