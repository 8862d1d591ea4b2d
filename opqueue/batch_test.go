package opqueue

import (
	"errors"
	"testing"

	"github.com/crosslink-relay/relayer/pendingmessage"
)

func candidate(dataSize int, gasLimit uint64) BatchCandidate {
	return BatchCandidate{Op: pendingmessage.New(nil, nil), DataSize: dataSize, GasLimit: gasLimit}
}

func TestBatcherPacksWithinDataSizeBudget(t *testing.T) {
	b := &Batcher{MaxDataSize: 100, MaxGasLimit: 1_000_000}
	candidates := []BatchCandidate{
		candidate(40, 1000), candidate(40, 1000), candidate(40, 1000),
	}

	batches := b.Batch(candidates)
	if len(batches) != 2 {
		t.Fatalf("expected the third candidate to spill into a second batch, got %d batches", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Fatalf("unexpected batch split: %+v", batches)
	}
}

func TestBatcherPacksWithinGasBudget(t *testing.T) {
	b := &Batcher{MaxDataSize: 1_000_000, MaxGasLimit: 100}
	candidates := []BatchCandidate{
		candidate(1, 60), candidate(1, 60),
	}

	batches := b.Batch(candidates)
	if len(batches) != 2 {
		t.Fatalf("expected the gas budget to force a split, got %d batches", len(batches))
	}
}

func TestBatcherEmptyInputProducesNoBatches(t *testing.T) {
	b := &Batcher{MaxDataSize: 100, MaxGasLimit: 100}
	if batches := b.Batch(nil); len(batches) != 0 {
		t.Fatalf("expected no batches for empty input, got %+v", batches)
	}
}

func TestSubmitBatchAggregatesPartialFailures(t *testing.T) {
	batch := []BatchCandidate{candidate(1, 1), candidate(1, 1), candidate(1, 1)}
	failOn := batch[1].Op

	err := SubmitBatch(batch, func(op *pendingmessage.Operation) error {
		if op == failOn {
			return errors.New("boom")
		}
		return nil
	})
	if err == nil {
		t.Fatalf("expected the failing operation to surface an error")
	}
}

func TestSubmitBatchAllSucceedReturnsNil(t *testing.T) {
	batch := []BatchCandidate{candidate(1, 1), candidate(1, 1)}
	if err := SubmitBatch(batch, func(*pendingmessage.Operation) error { return nil }); err != nil {
		t.Fatalf("expected no error when every submission succeeds, got %v", err)
	}
}
