package opqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/pendingmessage"
)

// TestLoopDrainsInboundAndStepsOperations exercises the Loop goroutine
// end to end rather than its pop/push internals directly, so the
// eventual-consistency nature of the ticker-driven drain needs a
// polling assertion instead of a single synchronous check.
func TestLoopDrainsInboundAndStepsOperations(t *testing.T) {
	q := New()
	handoff := &fakeHandoff{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Loop(ctx, q, handoff, nil)

	mailbox := &fakeMailbox{delivered: true}
	msgCtx := newTestContext(mailbox)
	op := pendingmessage.New(&chaintypes.Message{Nonce: 1, Origin: 1}, msgCtx)
	q.Inbound() <- op

	require.Eventually(t, func() bool {
		return len(handoff.accepted) == 1
	}, time.Second, 5*time.Millisecond, "expected the already-delivered operation to reach the confirm handoff")
}
