// Package opqueue implements the per-destination priority queue and
// processor loop: pop the head, drive its prepare/submit/confirm
// lifecycle, and re-queue on Reprepare/NotReady.
package opqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/pendingmessage"
)

// item wraps an Operation with its heap index for container/heap.
type item struct {
	op    *pendingmessage.Operation
	index int
}

// priorityHeap orders operations by ascending message nonce: a monotonic
// delivery preference per origin.
type priorityHeap []*item

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	return h[i].op.Message.Nonce < h[j].op.Message.Nonce
}
func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *priorityHeap) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *priorityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is an origin-ordered priority queue of in-flight operations for a
// single destination domain, fed by an MPSC channel per destination
// domain. The heap itself has no cap; the inbound channel is buffered at
// 4096 operations, and a send on it blocks while that buffer is full.
type Queue struct {
	mu   sync.Mutex
	heap priorityHeap
	in   chan *pendingmessage.Operation
}

// New constructs an empty queue fed by an inbound channel buffered at 4096.
func New() *Queue {
	return &Queue{in: make(chan *pendingmessage.Operation, 4096)}
}

// Inbound is the channel destination dispatch (processor C4) sends newly
// selected operations on.
func (q *Queue) Inbound() chan<- *pendingmessage.Operation { return q.in }

func (q *Queue) push(op *pendingmessage.Operation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, &item{op: op})
}

func (q *Queue) pop() *pendingmessage.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil
	}
	it := heap.Pop(&q.heap).(*item)
	return it.op
}

// Requeue pushes an operation the inclusion stage is done with (finalized,
// or dropped but still eligible for a delivery recheck) back onto this
// queue so its Confirm phase runs again.
func (q *Queue) Requeue(op *pendingmessage.Operation) { q.push(op) }

// Len reports the current queue depth (for metrics).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// drainInbound moves any operations waiting on the inbound channel into
// the heap without blocking.
func (q *Queue) drainInbound() {
	for {
		select {
		case op := <-q.in:
			q.push(op)
		default:
			return
		}
	}
}

// ConfirmHandoff receives operations that reached Confirm(SubmittedBySelf)
// so the inclusion stage can take ownership.
type ConfirmHandoff interface {
	Accept(op *pendingmessage.Operation)
}

// Loop is the op-queue processor loop. It runs until ctx is cancelled.
func Loop(ctx context.Context, q *Queue, handoff ConfirmHandoff, logger log.Logger) {
	if logger == nil {
		logger = log.Root()
	}
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-q.in:
			q.push(op)
		case <-ticker.C:
			q.drainInbound()
			op := q.pop()
			if op == nil {
				continue
			}
			stepOperation(ctx, q, op, handoff, logger)
		}
	}
}

func stepOperation(ctx context.Context, q *Queue, op *pendingmessage.Operation, handoff ConfirmHandoff, logger log.Logger) {
	now := time.Now()
	status := op.Status()
	var outcome pendingmessage.Outcome
	var err error

	phaseWasPrepare := false
	switch status.Kind {
	case chaintypes.StatusConfirm:
		outcome, err = op.Confirm(ctx, now)
	case chaintypes.StatusReadyToSubmit:
		outcome, err = op.Submit(ctx, now)
	default:
		phaseWasPrepare = true
		outcome, err = op.Prepare(ctx, now)
	}

	if err != nil {
		logger.Warn("pending operation step failed, will retry", "nonce", op.Message.Nonce, "err", err)
		q.push(op)
		return
	}

	switch outcome.Kind {
	case pendingmessage.OutcomeNotReady, pendingmessage.OutcomeReprepare:
		q.push(op)
	case pendingmessage.OutcomeDrop:
		logger.Info("dropping message", "nonce", op.Message.Nonce, "reason", outcome.DropReason)
	case pendingmessage.OutcomeConfirm:
		if handoff != nil {
			handoff.Accept(op)
		} else {
			q.push(op)
		}
	case pendingmessage.OutcomeSuccess:
		if phaseWasPrepare {
			q.push(op) // prepared successfully; still needs submit
		}
		// else: confirm succeeded, the message is processed, drop from queue.
	}
}
