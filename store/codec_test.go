package store_test

import (
	"reflect"
	"testing"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/store"
)

func ptr[T any](v T) *T { return &v }

// TestEncodeDecodeRoundTrip exercises store.Encode/Decode over every entity
// type a Store implementation persists, so a type that rlp cannot handle
// (signed integers, untagged nil pointers) is caught here instead of only
// surfacing against a real pebble-backed store.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	seq := uint32(42)

	cases := []struct {
		name string
		in   interface{}
		out  interface{}
	}{
		{
			"Message",
			&chaintypes.Message{
				Version: 3, Nonce: 7, Origin: 1, Destination: 2,
				Sender: chaintypes.Address32{1}, Recipient: chaintypes.Address32{2},
				Body: []byte("hello"),
			},
			new(chaintypes.Message),
		},
		{"PendingOperationStatus FirstPrepareAttempt", ptr(chaintypes.NewFirstPrepareAttempt()), new(chaintypes.PendingOperationStatus)},
		{"PendingOperationStatus Retry", ptr(chaintypes.NewRetry(chaintypes.ReasonCouldNotFetch)), new(chaintypes.PendingOperationStatus)},
		{"PendingOperationStatus Dropped", ptr(chaintypes.NewDropped(chaintypes.DropMaxRetriesExceeded)), new(chaintypes.PendingOperationStatus)},
		{"PendingOperationStatus Confirm", ptr(chaintypes.NewConfirm(chaintypes.ConfirmSubmittedBySelf)), new(chaintypes.PendingOperationStatus)},
		{"GasPayment", &store.GasPayment{Sequence: 5, Amount: 100, Token: chaintypes.Address32{9}}, new(store.GasPayment)},
		{"Insertion", &store.Insertion{LeafIndex: 3, MessageID: chaintypes.MessageID{4}, Root: [32]byte{5}}, new(store.Insertion)},
		{
			"SignedUpdate",
			&chaintypes.SignedUpdate{PreviousRoot: [32]byte{1}, NewRoot: [32]byte{2}, Signature: []byte{0xaa, 0xbb}, Signer: [20]byte{3}},
			new(chaintypes.SignedUpdate),
		},
		{"LastIndexedSnapshot with sequence", &chaintypes.LastIndexedSnapshot{Sequence: &seq, AtBlock: 99}, new(chaintypes.LastIndexedSnapshot)},
		{"LastIndexedSnapshot nil sequence", &chaintypes.LastIndexedSnapshot{Sequence: nil, AtBlock: 11}, new(chaintypes.LastIndexedSnapshot)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := store.Encode(tc.in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if err := store.Decode(data, tc.out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(tc.in, tc.out) {
				t.Fatalf("round trip mismatch: in=%+v out=%+v", tc.in, tc.out)
			}
		})
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data, err := store.Encode(&store.GasPayment{Amount: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data[0] = byte(store.CurrentVersion) + 1

	var out store.GasPayment
	if err := store.Decode(data, &out); err == nil {
		t.Fatalf("expected an error decoding an unknown encoding version")
	}
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	if err := store.Decode(nil, &store.GasPayment{}); err == nil {
		t.Fatalf("expected an error decoding an empty payload")
	}
}
