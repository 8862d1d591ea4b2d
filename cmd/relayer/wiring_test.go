package main

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/log"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/config"
	"github.com/crosslink-relay/relayer/pendingmessage"
	"github.com/crosslink-relay/relayer/store"
	"github.com/crosslink-relay/relayer/store/memdb"
)

func TestExternalSignerReportsNotWired(t *testing.T) {
	s := externalSigner{chainName: "testchain", keyRef: "kms://key"}
	ctx := context.Background()

	if _, err := s.TransactOpts(ctx); err == nil {
		t.Fatalf("expected TransactOpts to report the signer is not wired")
	}
	if _, err := s.SignTx(ctx, nil); err == nil {
		t.Fatalf("expected SignTx to report the signer is not wired")
	}
	if got := s.From(); got.Hex() != "0x0000000000000000000000000000000000000000" {
		t.Fatalf("expected the zero address placeholder, got %s", got.Hex())
	}
	if s.ChainID() != nil {
		t.Fatalf("expected a nil chain id until a real signer is wired")
	}
}

func TestUnimplementedMetadataBuilderReportsCouldNotFetch(t *testing.T) {
	b := unimplementedMetadataBuilder{}
	out, err := b.Build(context.Background(), &chaintypes.Message{}, chaintypes.Address32{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Kind != pendingmessage.MetadataCouldNotFetch {
		t.Fatalf("expected MetadataCouldNotFetch, got %v", out.Kind)
	}
}

func TestStoreGasLookupReadsThroughToStore(t *testing.T) {
	ctx := context.Background()
	st := memdb.New()
	if err := st.PutGasPayment(ctx, 1, 5, store.GasPayment{Sequence: 5, Amount: 42}, 100); err != nil {
		t.Fatalf("seeding gas payment: %v", err)
	}

	lookup := storeGasLookup{store: st}
	amount, ok, err := lookup.GasPaymentAmount(ctx, 1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || amount != 42 {
		t.Fatalf("expected amount 42, got %d (ok=%v)", amount, ok)
	}

	if _, ok, err := lookup.GasPaymentAmount(ctx, 1, 6); err != nil || ok {
		t.Fatalf("expected no payment recorded for nonce 6, ok=%v err=%v", ok, err)
	}
}

func TestOriginNonceSourceScopesToItsOrigin(t *testing.T) {
	ctx := context.Background()
	st := memdb.New()
	msg := &chaintypes.Message{Origin: 1, Nonce: 3}
	if err := st.PutMessage(ctx, 1, msg); err != nil {
		t.Fatalf("seeding message: %v", err)
	}
	if err := st.MarkProcessed(ctx, 1, 3); err != nil {
		t.Fatalf("marking processed: %v", err)
	}

	src := originNonceSource{store: st, origin: 1}
	got, ok, err := src.GetMessageByNonce(ctx, 3)
	if err != nil || !ok || got.Nonce != 3 {
		t.Fatalf("expected to find message at nonce 3, got %+v ok=%v err=%v", got, ok, err)
	}
	processed, err := src.IsProcessed(ctx, 3)
	if err != nil || !processed {
		t.Fatalf("expected nonce 3 to be marked processed, got %v err=%v", processed, err)
	}
}

func TestOpenStoreFallsBackToMemdbWithoutDBPath(t *testing.T) {
	st, err := openStore(&config.Config{}, log.Root())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer st.Close()

	if err := st.PutHighestSeenNonce(context.Background(), 1, 9); err != nil {
		t.Fatalf("expected a usable in-memory store: %v", err)
	}
}
