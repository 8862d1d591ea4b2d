// Package pendingmessage implements the per-message prepare/submit/confirm
// lifecycle: the PendingMessage operation.
package pendingmessage

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosslink-relay/relayer/adapter"
	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/pendingmessage/gaspolicy"
	"github.com/crosslink-relay/relayer/store"
)

// Confirm delay before a submitted message's delivery is rechecked: 10
// minutes in production, 5 seconds in test builds. Configurable per
// MessageContext so tests can use the short value without a build tag.
const (
	ConfirmDelayProd = 10 * time.Minute
	ConfirmDelayTest = 5 * time.Second
)

// MetadataOutcomeKind tags the ISM metadata builder's result.
type MetadataOutcomeKind int

const (
	MetadataFound MetadataOutcomeKind = iota
	MetadataCouldNotFetch
	MetadataRefused
)

type MetadataOutcome struct {
	Kind           MetadataOutcomeKind
	Bytes          []byte
	RefusedReason  string
}

// MetadataBuilder constructs ISM verification metadata for a message. It
// is re-invoked on every prepare pass: metadata is never reused across
// recipient-ISM changes.
type MetadataBuilder interface {
	Build(ctx context.Context, msg *chaintypes.Message, ism chaintypes.Address32) (MetadataOutcome, error)
}

// ApplicationVerifier optionally clarifies a gas-estimation failure into a
// more specific reason.
type ApplicationVerifier interface {
	ClarifyEstimateError(ctx context.Context, msg *chaintypes.Message, err error) (reason string, ok bool)
}

// MessageContext is the immutable, shared-by-many-operations value
// bundling the destination-side collaborators a PendingMessage needs:
// mailbox handle, origin db, metadata builder, gas enforcer. It carries no
// metrics handle.
// Modeled as an immutable shared value; its lifetime is the longest
// holder; it must never carry mutable state itself (mutable state lives
// on the PendingMessage operation).
type MessageContext struct {
	Destination         uint32
	Mailbox             adapter.ChainAdapter
	OriginStore         store.Store
	MetadataBuilder     MetadataBuilder
	GasEnforcer         *gaspolicy.Enforcer
	ApplicationVerifier ApplicationVerifier // optional, may be nil
	TransactionGasLimit *uint64             // optional hard cap
	MaxMessageRetries   uint32
	ConfirmDelay        time.Duration
	Log                 log.Logger
}
