package inclusion

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosslink-relay/relayer/adapter"
	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/internal/retryutil"
	"github.com/crosslink-relay/relayer/pendingmessage"
)

// Requeuer receives operations the inclusion stage is finished with so
// their Confirm phase can independently recheck delivery, even for
// transactions that were dropped post-submission: delivery is still
// rechecked regardless of how the inclusion stage's own attempt ended.
type Requeuer interface {
	Requeue(op *pendingmessage.Operation)
}

// Pool is the per-destination inclusion stage: the in-flight transaction
// set plus the per-tick send/poll/escalate/resubmit algorithm.
type Pool struct {
	Destination     uint32
	Submitter       chaintypes.Address32
	Mailbox         adapter.ChainAdapter
	Nonces          *NonceManager
	Requeue         Requeuer
	BlockTime       time.Duration
	MaxSimFailures  int
	RewardPercentile float64
	// SimBackoffMax caps the per-transaction exponential backoff between
	// consecutive simulation-failure retries; the initial interval is
	// BlockTime.
	SimBackoffMax time.Duration
	Log           log.Logger

	mu  sync.Mutex
	txs []*Transaction
}

// NewPool constructs an inclusion pool for one destination chain.
func NewPool(destination uint32, submitter chaintypes.Address32, mailbox adapter.ChainAdapter, nonces *NonceManager, requeue Requeuer, blockTime time.Duration, logger log.Logger) *Pool {
	if logger == nil {
		logger = log.Root()
	}
	return &Pool{
		Destination:      destination,
		Submitter:        submitter,
		Mailbox:          mailbox,
		Nonces:           nonces,
		Requeue:          requeue,
		BlockTime:        blockTime,
		MaxSimFailures:   5,
		RewardPercentile: 50,
		SimBackoffMax:    2 * time.Minute,
		Log:              logger,
	}
}

// Accept implements opqueue.ConfirmHandoff: the op-queue processor loop
// forwards here once an operation reaches Confirm(SubmittedBySelf).
func (p *Pool) Accept(op *pendingmessage.Operation) {
	tx := newTransaction(op)
	p.mu.Lock()
	p.txs = append(p.txs, tx)
	p.mu.Unlock()
}

// Len reports the number of in-flight transactions, for metrics.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// Tick runs one pass of the per-tick algorithm over every in-flight
// transaction.
func (p *Pool) Tick(ctx context.Context, now time.Time) error {
	if err := p.Nonces.Refresh(ctx, p.Submitter); err != nil {
		return err
	}

	finalizedTip32, err := p.Mailbox.GetFinalizedBlock(ctx)
	if err != nil {
		return err
	}
	finalizedTip := uint64(finalizedTip32)

	p.mu.Lock()
	pending := p.txs
	p.txs = nil
	p.mu.Unlock()

	var keep []*Transaction
	for _, tx := range pending {
		if p.step(ctx, tx, now, finalizedTip) {
			keep = append(keep, tx)
		}
	}

	p.mu.Lock()
	p.txs = append(p.txs, keep...)
	p.mu.Unlock()
	return nil
}

// step advances one transaction and reports whether it should remain in
// the pool (false means it finalized or dropped and was handed off).
func (p *Pool) step(ctx context.Context, tx *Transaction, now time.Time, finalizedTip uint64) bool {
	switch tx.Status.Kind {
	case StatusPendingInclusion:
		return p.send(ctx, tx, now)
	case StatusMempool, StatusIncluded:
		return p.poll(ctx, tx, now, finalizedTip)
	default:
		return false
	}
}

// send assigns a nonce and broadcasts a brand new transaction.
func (p *Pool) send(ctx context.Context, tx *Transaction, now time.Time) bool {
	nonce := p.Nonces.Next(p.Submitter)
	tx.Unsigned.Nonce = &nonce

	hash, err := p.Mailbox.Submit(ctx, tx.Unsigned)
	if err != nil {
		p.Log.Warn("new transaction failed to send, dropping", "nonce", nonce, "err", err)
		tx.Status = TransactionStatus{Kind: StatusDropped, DropReason: DropGasEstimationFailed}
		p.handoff(tx)
		return false
	}

	tx.LastHash = hash
	tx.LastSentAt = now
	tx.Status = TransactionStatus{Kind: StatusMempool}
	return true
}

// poll looks up the receipt for a mempool/included transaction and either
// advances it toward finality or re-prices it.
func (p *Pool) poll(ctx context.Context, tx *Transaction, now time.Time, finalizedTip uint64) bool {
	receipt, err := p.Mailbox.GetTransactionReceipt(ctx, tx.LastHash)
	if err != nil {
		p.Log.Warn("receipt lookup failed", "hash", tx.LastHash, "err", err)
		return true
	}

	if receipt != nil {
		// Only the receipt for the most recent hash (LastHash) is looked
		// up; a receipt for an earlier replacement at this nonce is not seen.
		if receipt.BlockNumber <= finalizedTip {
			tx.Status = TransactionStatus{Kind: StatusFinalized}
			p.handoff(tx)
			return false
		}
		tx.Status = TransactionStatus{Kind: StatusIncluded}
		return true
	}

	if now.Sub(tx.LastSentAt) < p.BlockTime {
		return true
	}

	return p.escalate(ctx, tx, now)
}

// escalate re-prices a stuck transaction. Once a simulation failure has
// shaped a backoff for this transaction, a later tick that falls inside
// the backoff window skips straight back out without touching the
// mailbox again.
func (p *Pool) escalate(ctx context.Context, tx *Transaction, now time.Time) bool {
	if tx.simBackoff != nil && now.Before(tx.nextSimRetryAt) {
		return true
	}

	history, err := p.Mailbox.FeeHistory(ctx, 1, "latest", []float64{p.RewardPercentile})
	if err != nil {
		tx.SimFailures++
		if tx.SimFailures >= p.MaxSimFailures {
			tx.Status = TransactionStatus{Kind: StatusDropped, DropReason: DropFailedSimulation}
			p.handoff(tx)
			return false
		}
		p.recordSimFailure(tx, now)
		// Continue to bump price anyway even without a fresh fee
		// reading, for some bounded number of attempts.
		tx.Unsigned.MaxFee = bumpByPercent(tx.Unsigned.MaxFee, 10)
		return p.resubmit(ctx, tx, now)
	}

	baseFee, tip := latestFeeReading(history)
	if tip == 0 {
		tip = tx.Unsigned.TipCap
	}
	bump := bumpByPercent(tx.Unsigned.MaxFee, 10)
	twiceBase := 2*baseFee + tip
	required := bump
	if twiceBase > required {
		required = twiceBase
	}
	if required <= tx.Unsigned.MaxFee {
		return true
	}

	if tx.Unsigned.Legacy {
		tx.Unsigned.Legacy = false
	}
	tx.Unsigned.MaxFee = required
	tx.Unsigned.TipCap = tip
	return p.resubmit(ctx, tx, now)
}

// resubmit broadcasts a replacement at the transaction's existing nonce.
func (p *Pool) resubmit(ctx context.Context, tx *Transaction, now time.Time) bool {
	hash, err := p.Mailbox.Submit(ctx, tx.Unsigned)
	if err != nil {
		if isUnderpriced(err) {
			tx.Unsigned.MaxFee = bumpByPercent(tx.Unsigned.MaxFee, 10)
			return true // retry next tick with the bumped fee
		}
		tx.SimFailures++
		if tx.SimFailures >= p.MaxSimFailures {
			tx.Status = TransactionStatus{Kind: StatusDropped, DropReason: DropFailedSimulation}
			p.handoff(tx)
			return false
		}
		p.recordSimFailure(tx, now)
		return true
	}
	tx.LastHash = hash
	tx.LastSentAt = now
	tx.SimFailures = 0
	tx.simBackoff = nil
	return true
}

// recordSimFailure shapes the next resubmission's delay after a simulation
// failure: jittered exponential backoff starting at BlockTime, capped at
// SimBackoffMax, reset once a resubmission actually succeeds.
func (p *Pool) recordSimFailure(tx *Transaction, now time.Time) {
	if tx.simBackoff == nil {
		tx.simBackoff = retryutil.NewExponentialBackOff(p.BlockTime, p.SimBackoffMax)
	}
	tx.nextSimRetryAt = now.Add(tx.simBackoff.NextBackOff())
}

// handoff forwards a finalized or dropped transaction's operation back to
// the Confirm phase so delivery is independently rechecked.
func (p *Pool) handoff(tx *Transaction) {
	if p.Requeue != nil {
		p.Requeue.Requeue(tx.Op)
	}
}

func bumpByPercent(fee uint64, pct uint64) uint64 {
	return fee + (fee*pct)/100
}

func latestFeeReading(h *adapter.FeeHistory) (baseFee uint64, tip uint64) {
	if h == nil || len(h.BaseFeePerGas) == 0 {
		return 0, 0
	}
	baseFee = h.BaseFeePerGas[len(h.BaseFeePerGas)-1]
	if len(h.Reward) > 0 && len(h.Reward[len(h.Reward)-1]) > 0 {
		rewards := h.Reward[len(h.Reward)-1]
		tip = rewards[0]
	}
	return baseFee, tip
}

func isUnderpriced(err error) bool {
	return err != nil && strings.Contains(err.Error(), "replacement transaction underpriced")
}
