package opqueue

import (
	"github.com/hashicorp/go-multierror"

	"github.com/crosslink-relay/relayer/pendingmessage"
)

// BatchCandidate is the submission data an operation exposes so a Batcher
// can assemble multiple same-destination messages into one transaction.
type BatchCandidate struct {
	Op       *pendingmessage.Operation
	DataSize int
	GasLimit uint64
}

// Batcher greedily packs ReadyToSubmit operations into same-destination
// batches that fit a configured calldata-size and gas budget.
type Batcher struct {
	MaxDataSize int
	MaxGasLimit uint64
}

// Batch groups candidates into one or more batches honoring the
// configured size/gas budget. Each returned slice is submitted as a
// single multi-message transaction by the caller.
func (b *Batcher) Batch(candidates []BatchCandidate) [][]BatchCandidate {
	var batches [][]BatchCandidate
	var cur []BatchCandidate
	var curSize int
	var curGas uint64

	flush := func() {
		if len(cur) > 0 {
			batches = append(batches, cur)
			cur, curSize, curGas = nil, 0, 0
		}
	}

	for _, c := range candidates {
		if len(cur) > 0 && (curSize+c.DataSize > b.MaxDataSize || curGas+c.GasLimit > b.MaxGasLimit) {
			flush()
		}
		cur = append(cur, c)
		curSize += c.DataSize
		curGas += c.GasLimit
	}
	flush()
	return batches
}

// SubmitBatch invokes fn once per operation in a batch and aggregates any
// failures via go-multierror, so a partial batch failure reports every
// message that failed rather than only the first.
func SubmitBatch(batch []BatchCandidate, fn func(*pendingmessage.Operation) error) error {
	var result *multierror.Error
	for _, c := range batch {
		if err := fn(c.Op); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
