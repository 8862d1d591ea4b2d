package chaintypes

// TargetSnapshot marks "indexing is at (or about to query) this sequence,
// believed last-seen at this block."
type TargetSnapshot struct {
	Sequence uint32
	AtBlock  uint32
}

// NextTarget returns the snapshot one sequence past this one, at the same
// block.
func (t TargetSnapshot) NextTarget() TargetSnapshot {
	return TargetSnapshot{Sequence: t.Sequence + 1, AtBlock: t.AtBlock}
}

// PrevTarget returns the snapshot one sequence before this one, at the same
// block. Saturates at zero.
func (t TargetSnapshot) PrevTarget() TargetSnapshot {
	if t.Sequence == 0 {
		return TargetSnapshot{Sequence: 0, AtBlock: t.AtBlock}
	}
	return TargetSnapshot{Sequence: t.Sequence - 1, AtBlock: t.AtBlock}
}

// LastIndexedSnapshot is the most recent fully-indexed point.
// Sequence == nil means nothing has been indexed yet. Tagged rlp:"nil" so
// store.Encode/Decode round-trips the nil case instead of rlp rejecting
// (or silently zeroing) a bare nil pointer.
type LastIndexedSnapshot struct {
	Sequence *uint32 `rlp:"nil"`
	AtBlock  uint32
}

// NextTarget computes the TargetSnapshot a forward cursor should resume at
// after this last-indexed point: one past the last indexed sequence, or
// sequence 0 if nothing has been indexed yet.
func (l LastIndexedSnapshot) NextTarget() TargetSnapshot {
	if l.Sequence == nil {
		return TargetSnapshot{Sequence: 0, AtBlock: l.AtBlock}
	}
	return TargetSnapshot{Sequence: *l.Sequence + 1, AtBlock: l.AtBlock}
}

func u32ptr(v uint32) *uint32 { return &v }
