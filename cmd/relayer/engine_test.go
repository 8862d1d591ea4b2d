package main

import (
	"testing"
	"time"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/config"
	"github.com/crosslink-relay/relayer/cursor"
	"github.com/crosslink-relay/relayer/opqueue"
	"github.com/crosslink-relay/relayer/pendingmessage"
	"github.com/crosslink-relay/relayer/pendingmessage/gaspolicy"
)

func TestGasPolicyTypeOf(t *testing.T) {
	cases := map[config.GasEnforcementKind]gaspolicy.PolicyType{
		config.GasEnforcementMinimum:           gaspolicy.PolicyTypeMinimum,
		config.GasEnforcementOnChainFeeQuoting:  gaspolicy.PolicyTypeOnChainFeeQuoting,
		config.GasEnforcementNone:              gaspolicy.PolicyTypeNone,
		config.GasEnforcementKind("unknown"):   gaspolicy.PolicyTypeNone,
	}
	for in, want := range cases {
		if got := gasPolicyTypeOf(in); got != want {
			t.Fatalf("gasPolicyTypeOf(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestChunkSizeOrDefault(t *testing.T) {
	if got := chunkSizeOrDefault(config.ChainConfig{}); got != 1000 {
		t.Fatalf("expected default chunk size 1000, got %d", got)
	}
	cc := config.ChainConfig{Index: config.IndexConfig{ChunkSize: 50}}
	if got := chunkSizeOrDefault(cc); got != 50 {
		t.Fatalf("expected configured chunk size 50, got %d", got)
	}
}

func TestPollIntervalOrDefault(t *testing.T) {
	if got := pollIntervalOrDefault(config.ChainConfig{}); got != 2*time.Second {
		t.Fatalf("expected default poll interval 2s, got %v", got)
	}
	cc := config.ChainConfig{OpSubmissionConfig: config.OpSubmissionConfig{BlockTimeMillis: 500}}
	if got := pollIntervalOrDefault(cc); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms poll interval, got %v", got)
	}
}

func TestIndexModeOf(t *testing.T) {
	if got := indexModeOf(config.ChainConfig{Index: config.IndexConfig{Mode: config.IndexModeSequence}}); got != cursor.ModeSequence {
		t.Fatalf("expected sequence mode, got %v", got)
	}
	if got := indexModeOf(config.ChainConfig{Index: config.IndexConfig{Mode: config.IndexModeBlock}}); got != cursor.ModeBlock {
		t.Fatalf("expected block mode, got %v", got)
	}
	if got := indexModeOf(config.ChainConfig{}); got != cursor.ModeBlock {
		t.Fatalf("expected block mode as the zero-value default, got %v", got)
	}
}

func TestEngineGroupWaitsForEveryLoop(t *testing.T) {
	var g engineGroup
	done := make([]bool, 3)
	for i := range done {
		i := i
		g.go_(func() { done[i] = true })
	}
	g.wait()
	for i, ok := range done {
		if !ok {
			t.Fatalf("expected loop %d to have run before wait returned", i)
		}
	}
}

func TestDestinationTableLookup(t *testing.T) {
	table := newDestinationTable()
	msgCtx := &pendingmessage.MessageContext{Destination: 7}
	queue := opqueue.New()
	table.add(7, msgCtx, queue)

	gotCtx, gotQueue, ok := table.ContextFor(7)
	if !ok || gotCtx != msgCtx || gotQueue != queue {
		t.Fatalf("expected to find the wired context and queue for domain 7")
	}

	if _, _, ok := table.ContextFor(99); ok {
		t.Fatalf("expected no entry for an unwired domain")
	}
}

func TestSignerAddress32IsZeroUntilSignerIsWired(t *testing.T) {
	got := signerAddress32(config.ChainConfig{Signer: "some-key-ref"})
	if got != (chaintypes.Address32{}) {
		t.Fatalf("expected the zero address placeholder, got %v", got)
	}
}
