// Package gaspolicy implements the gas payment enforcer policies checked
// before a message is submitted, configured via
// `gas_payment_enforcement: [{type, matching_list}]`.
package gaspolicy

import (
	"context"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/router"
)

// ResultKind tags the enforcer's verdict for a single message.
type ResultKind int

const (
	NoPaymentFound ResultKind = iota
	PolicyNotMet
	PolicyMet
)

// Result carries the gas limit when PolicyMet; it is meaningless otherwise.
type Result struct {
	Kind     ResultKind
	GasLimit uint64
}

// PaymentLookup abstracts the observed IGP payment for a message's
// sequence number (store.GetGasPayment in the real deployment).
type PaymentLookup interface {
	GasPaymentAmount(ctx context.Context, origin uint32, nonce uint32) (amount uint64, found bool, err error)
}

// AllowanceTracker debits a sender's observed IGP payment allowance once a
// message's submission transaction lands, by the gas it actually used.
type AllowanceTracker interface {
	DebitAllowance(ctx context.Context, origin uint32, nonce uint32, gasUsed uint64) error
}

// PolicyType selects which enforcement rule an entry applies.
type PolicyType int

const (
	PolicyTypeNone PolicyType = iota
	PolicyTypeMinimum
	PolicyTypeOnChainFeeQuoting
)

// PolicyEntry pairs a policy with the MatchingList it applies to.
type PolicyEntry struct {
	Type      PolicyType
	Minimum   uint64
	MatchList router.MatchingList
}

// Enforcer evaluates the first matching PolicyEntry for a message against
// its observed payment and the adapter's cost estimate.
type Enforcer struct {
	Entries []PolicyEntry
	Lookup  PaymentLookup
	Tracker AllowanceTracker
}

// Enforce checks the gas payment enforcer for msg: NoPaymentFound,
// PolicyNotMet, or PolicyMet(gas_limit). Only PolicyMet allows the
// message to proceed.
func (e *Enforcer) Enforce(ctx context.Context, msg *chaintypes.Message, estimatedGasLimit uint64) (Result, error) {
	entry := e.matchingEntry(msg)
	if entry.Type == PolicyTypeNone {
		return Result{Kind: PolicyMet, GasLimit: estimatedGasLimit}, nil
	}

	amount, found, err := e.Lookup.GasPaymentAmount(ctx, msg.Origin, msg.Nonce)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{Kind: NoPaymentFound}, nil
	}

	switch entry.Type {
	case PolicyTypeMinimum:
		if amount < entry.Minimum {
			return Result{Kind: PolicyNotMet}, nil
		}
		return Result{Kind: PolicyMet, GasLimit: estimatedGasLimit}, nil
	case PolicyTypeOnChainFeeQuoting:
		// The on-chain quote is whatever the adapter estimated; payment
		// merely needs to be nonzero evidence of intent to pay.
		if amount == 0 {
			return Result{Kind: PolicyNotMet}, nil
		}
		return Result{Kind: PolicyMet, GasLimit: estimatedGasLimit}, nil
	default:
		return Result{Kind: PolicyMet, GasLimit: estimatedGasLimit}, nil
	}
}

// RecordTxOutcome adjusts IGP allowance accounting once a message's
// submission transaction has landed: only a PolicyTypeOnChainFeeQuoting
// entry draws against an allowance, so PolicyTypeMinimum/None messages and
// a nil Tracker leave this a no-op.
func (e *Enforcer) RecordTxOutcome(ctx context.Context, msg *chaintypes.Message, gasUsed uint64) error {
	if e.Tracker == nil {
		return nil
	}
	if e.matchingEntry(msg).Type != PolicyTypeOnChainFeeQuoting {
		return nil
	}
	return e.Tracker.DebitAllowance(ctx, msg.Origin, msg.Nonce, gasUsed)
}

func (e *Enforcer) matchingEntry(msg *chaintypes.Message) PolicyEntry {
	for _, entry := range e.Entries {
		if entry.MatchList.Match(msg) {
			return entry
		}
	}
	return PolicyEntry{Type: PolicyTypeNone}
}
