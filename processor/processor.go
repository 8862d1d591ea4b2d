package processor

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosslink-relay/relayer/opqueue"
	"github.com/crosslink-relay/relayer/pendingmessage"
	"github.com/crosslink-relay/relayer/router"
)

// DestinationContexts resolves the MessageContext and queue for a
// message's destination domain. A nil MessageContext or missing queue
// means the destination isn't serviced.
type DestinationContexts interface {
	ContextFor(destination uint32) (*pendingmessage.MessageContext, *opqueue.Queue, bool)
}

// Processor runs the per-tick behavior: get next unprocessed
// message, apply whitelist/blacklist, skip unserviced destinations,
// package into a PendingMessage operation, dispatch to the destination's
// queue. On no candidate, sleep 1s.
type Processor struct {
	Origin      uint32
	Iterator    *NonceIterator
	Policy      router.Policy
	Destination DestinationContexts
	Log         log.Logger
}

// NewProcessor constructs a Processor for one origin domain.
func NewProcessor(origin uint32, src NonceSource, highestSeen *uint32, policy router.Policy, dest DestinationContexts, logger log.Logger) *Processor {
	if logger == nil {
		logger = log.Root()
	}
	return &Processor{
		Origin:      origin,
		Iterator:    NewNonceIterator(src, highestSeen),
		Policy:      policy,
		Destination: dest,
		Log:         logger,
	}
}

// Tick runs one iteration of the per-tick behavior. It returns whether it
// dispatched a message, so the caller's scheduling loop can decide whether
// to sleep.
func (p *Processor) Tick(ctx context.Context) (bool, error) {
	msg, err := p.Iterator.Next(ctx)
	if err != nil {
		return false, err
	}
	if msg == nil {
		return false, nil
	}

	if !p.Policy.Allow(msg) {
		p.Log.Debug("message skipped by matching list or unserviced destination",
			"origin", msg.Origin, "destination", msg.Destination, "nonce", msg.Nonce)
		return false, nil
	}

	msgCtx, queue, ok := p.Destination.ContextFor(msg.Destination)
	if !ok || msgCtx == nil || queue == nil {
		p.Log.Debug("destination not serviced", "destination", msg.Destination)
		return false, nil
	}

	op := pendingmessage.New(msg, msgCtx)
	if err := op.Hydrate(ctx); err != nil {
		return false, err
	}
	queue.Inbound() <- op
	return true, nil
}

// Run drives Tick in a loop until ctx is cancelled, sleeping 1s whenever
// there is no candidate message.
func Run(ctx context.Context, p *Processor) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		dispatched, err := p.Tick(ctx)
		if err != nil {
			p.Log.Warn("processor tick failed", "origin", p.Origin, "err", err)
		}
		if !dispatched {
			select {
			case <-ctx.Done():
				return
			case <-time.After(1 * time.Second):
			}
		}
	}
}
