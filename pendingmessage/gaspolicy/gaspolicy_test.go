package gaspolicy

import (
	"context"
	"errors"
	"testing"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/router"
)

type fakeLookup struct {
	amount uint64
	found  bool
	err    error
}

func (f fakeLookup) GasPaymentAmount(ctx context.Context, origin, nonce uint32) (uint64, bool, error) {
	return f.amount, f.found, f.err
}

func TestEnforceNoPolicyAlwaysMet(t *testing.T) {
	e := &Enforcer{}
	res, err := e.Enforce(context.Background(), &chaintypes.Message{}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != PolicyMet || res.GasLimit != 100 {
		t.Fatalf("expected PolicyMet with gas limit 100, got %+v", res)
	}
}

func TestEnforceNoPaymentFound(t *testing.T) {
	e := &Enforcer{
		Entries: []PolicyEntry{{Type: PolicyTypeMinimum, Minimum: 10}},
		Lookup:  fakeLookup{found: false},
	}
	res, err := e.Enforce(context.Background(), &chaintypes.Message{}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != NoPaymentFound {
		t.Fatalf("expected NoPaymentFound, got %+v", res)
	}
}

func TestEnforceMinimumNotMet(t *testing.T) {
	e := &Enforcer{
		Entries: []PolicyEntry{{Type: PolicyTypeMinimum, Minimum: 100}},
		Lookup:  fakeLookup{found: true, amount: 50},
	}
	res, err := e.Enforce(context.Background(), &chaintypes.Message{}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != PolicyNotMet {
		t.Fatalf("expected PolicyNotMet, got %+v", res)
	}
}

func TestEnforceMinimumMet(t *testing.T) {
	e := &Enforcer{
		Entries: []PolicyEntry{{Type: PolicyTypeMinimum, Minimum: 100}},
		Lookup:  fakeLookup{found: true, amount: 150},
	}
	res, err := e.Enforce(context.Background(), &chaintypes.Message{}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != PolicyMet || res.GasLimit != 100 {
		t.Fatalf("expected PolicyMet with gas limit 100, got %+v", res)
	}
}

func TestEnforcePropagatesLookupError(t *testing.T) {
	wantErr := errors.New("boom")
	e := &Enforcer{
		Entries: []PolicyEntry{{Type: PolicyTypeMinimum, Minimum: 100}},
		Lookup:  fakeLookup{err: wantErr},
	}
	_, err := e.Enforce(context.Background(), &chaintypes.Message{}, 100)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected lookup error to propagate, got %v", err)
	}
}

type fakeTracker struct {
	origin, nonce uint32
	gasUsed       uint64
	calls         int
	err           error
}

func (f *fakeTracker) DebitAllowance(ctx context.Context, origin, nonce uint32, gasUsed uint64) error {
	f.origin, f.nonce, f.gasUsed = origin, nonce, gasUsed
	f.calls++
	return f.err
}

func TestRecordTxOutcomeDebitsOnChainFeeQuotingAllowance(t *testing.T) {
	tracker := &fakeTracker{}
	e := &Enforcer{
		Entries: []PolicyEntry{{Type: PolicyTypeOnChainFeeQuoting}},
		Tracker: tracker,
	}
	if err := e.RecordTxOutcome(context.Background(), &chaintypes.Message{Origin: 7, Nonce: 3}, 21000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tracker.calls != 1 || tracker.origin != 7 || tracker.nonce != 3 || tracker.gasUsed != 21000 {
		t.Fatalf("expected a single debit call with (7, 3, 21000), got %+v", tracker)
	}
}

func TestRecordTxOutcomeSkipsNonFeeQuotingPolicy(t *testing.T) {
	tracker := &fakeTracker{}
	e := &Enforcer{
		Entries: []PolicyEntry{{Type: PolicyTypeMinimum, Minimum: 1}},
		Tracker: tracker,
	}
	if err := e.RecordTxOutcome(context.Background(), &chaintypes.Message{}, 21000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tracker.calls != 0 {
		t.Fatalf("expected no debit call for a PolicyTypeMinimum entry, got %+v", tracker)
	}
}

func TestRecordTxOutcomeNilTrackerIsNoOp(t *testing.T) {
	e := &Enforcer{Entries: []PolicyEntry{{Type: PolicyTypeOnChainFeeQuoting}}}
	if err := e.RecordTxOutcome(context.Background(), &chaintypes.Message{}, 21000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnforceMatchesFirstEntryOnly(t *testing.T) {
	e := &Enforcer{
		Entries: []PolicyEntry{
			{Type: PolicyTypeMinimum, Minimum: 100, MatchList: router.MatchingList{{OriginDomain: router.ElementList{"1"}}}},
			{Type: PolicyTypeNone},
		},
		Lookup: fakeLookup{found: true, amount: 1},
	}
	res, err := e.Enforce(context.Background(), &chaintypes.Message{Origin: 1}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != PolicyNotMet {
		t.Fatalf("expected the origin-1 entry (minimum 100) to apply, got %+v", res)
	}

	res, err = e.Enforce(context.Background(), &chaintypes.Message{Origin: 2}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != PolicyMet {
		t.Fatalf("expected the fallback PolicyTypeNone entry to apply for origin 2, got %+v", res)
	}
}
