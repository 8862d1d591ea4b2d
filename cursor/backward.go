package cursor

import (
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// fastForwardBudget bounds how long the backward cursor's fast-forward
// loop may run before yielding, so the forward cursor is not starved of
// scheduling opportunities.
const fastForwardBudget = 5 * time.Second

// nowFunc is overridable in tests.
var nowFunc = time.Now

// Backward walks down from a known top-of-history snapshot to sequence 0,
// mirroring Forward. current == nil means fully synced at sequence 0.
type Backward[T any] struct {
	log log.Logger

	chunkSize uint32
	mode      IndexMode

	top         chaintypes.TargetSnapshot
	lastIndexed chaintypes.LastIndexedSnapshot
	current     *chaintypes.TargetSnapshot
}

// NewBackward initializes a backward cursor starting at the given
// top-of-history snapshot and walking down toward sequence 0.
func NewBackward[T any](top chaintypes.TargetSnapshot, chunkSize uint32, mode IndexMode, logger log.Logger) *Backward[T] {
	if logger == nil {
		logger = log.Root()
	}
	if chunkSize == 0 {
		chunkSize = 1
	}
	cur := top
	return &Backward[T]{
		log:         logger,
		chunkSize:   chunkSize,
		mode:        mode,
		top:         top,
		lastIndexed: chaintypes.LastIndexedSnapshot{Sequence: nil, AtBlock: top.AtBlock},
		current:     &cur,
	}
}

func (b *Backward[T]) LastIndexed() chaintypes.LastIndexedSnapshot { return b.lastIndexed }
func (b *Backward[T]) Current() *chaintypes.TargetSnapshot         { return b.current }
func (b *Backward[T]) Done() bool                                  { return b.current == nil }

// NextRange returns the next downward range to scan, or nil if history
// walk-back is complete. The store fast-forward loop gives up after
// fastForwardBudget wall-clock time so the scheduler can run the forward
// cursor's task instead.
func (b *Backward[T]) NextRange(store StoreLookup) *Range {
	if b.current == nil {
		return nil
	}
	deadline := nowFunc().Add(fastForwardBudget)
	for nowFunc().Before(deadline) {
		block, ok := store.BlockOfSequence(b.current.Sequence)
		if !ok {
			break
		}
		if b.current.Sequence == 0 {
			b.current = nil
			return nil
		}
		b.current = &chaintypes.TargetSnapshot{Sequence: b.current.Sequence - 1, AtBlock: block}
	}
	if b.current == nil {
		return nil
	}
	switch b.mode {
	case ModeBlock:
		start := uint32(0)
		if b.current.AtBlock > b.chunkSize {
			start = b.current.AtBlock - b.chunkSize
		}
		return &Range{Start: start, End: b.current.AtBlock}
	default: // ModeSequence
		start := uint32(0)
		if b.current.Sequence > b.chunkSize {
			start = b.current.Sequence - b.chunkSize
		}
		return &Range{Start: start, End: b.current.Sequence}
	}
}

// Update applies the backward update algorithm.
func (b *Backward[T]) Update(logs []chaintypes.SequenceIndexed[T], r Range) error {
	if b.current == nil {
		return nil
	}
	clean := dedupAndSortBySequence(logs)

	switch b.mode {
	case ModeBlock:
		if b.current.Sequence+1 <= uint32(len(clean)) {
			lowest := clean[0]
			b.setLastIndexed(lowest)
			b.current = nil
			return nil
		}
		if len(clean) > 0 {
			b.setLastIndexed(clean[0])
		}
		b.current = &chaintypes.TargetSnapshot{Sequence: b.current.Sequence - uint32(len(clean)), AtBlock: r.Start}
		return nil
	default: // ModeSequence
		if !sequencesExactlyCoverRange(clean, r) {
			b.rewind()
			return nil
		}
		if clean[0].Sequence != r.Start {
			b.rewind()
			return nil
		}
		lowest := clean[0]
		b.setLastIndexed(lowest)
		if r.Start == 0 {
			b.current = nil
			return nil
		}
		b.current = &chaintypes.TargetSnapshot{Sequence: r.Start - 1, AtBlock: uint32(lowest.Meta.BlockNumber)}
		return nil
	}
}

func (b *Backward[T]) setLastIndexed(lowest chaintypes.SequenceIndexed[T]) {
	seq := lowest.Sequence
	b.lastIndexed = chaintypes.LastIndexedSnapshot{Sequence: &seq, AtBlock: uint32(lowest.Meta.BlockNumber)}
}

// rewind resets current to retry the area just below the lowest confirmed
// good point (or back to the top when nothing is indexed yet), idempotent
// the same way the forward cursor's rewind is.
func (b *Backward[T]) rewind() {
	if b.lastIndexed.Sequence == nil {
		cur := b.top
		b.current = &cur
		return
	}
	seq := *b.lastIndexed.Sequence
	if seq == 0 {
		b.current = nil
		return
	}
	b.current = &chaintypes.TargetSnapshot{Sequence: seq - 1, AtBlock: b.lastIndexed.AtBlock}
	b.log.Debug("backward cursor rewinding", "sequence", b.current.Sequence, "block", b.current.AtBlock)
}
