// Package chaintypes holds the chain-agnostic data model shared by every
// component of the relayer: messages, log provenance, sequence-indexed
// events, cursor snapshots and lifecycle status tags.
package chaintypes

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Address32 is a chain-agnostic 32-byte address. EVM addresses are left-padded
// into the low 20 bytes; account-model and move-like chains use the full width.
type Address32 [32]byte

func (a Address32) String() string {
	return fmt.Sprintf("%x", a[:])
}

// MessageID is the content hash identifying a Message; see Message.ID.
type MessageID [32]byte

func (id MessageID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// TxHash identifies a submitted destination-chain transaction.
type TxHash [32]byte

func (h TxHash) String() string {
	return fmt.Sprintf("%x", h[:])
}

const maxBodyBytes = 2 * 1024

// Message is the wire-level payload dispatched by an origin chain's mailbox.
// Immutable once dispatched: nothing mutates a Message after construction.
type Message struct {
	Version     uint8
	Nonce       uint32 // strictly monotonic per Origin
	Origin      uint32
	Destination uint32
	Sender      Address32
	Recipient   Address32
	Body        []byte // must be <= 2 KiB
}

// Validate checks the size invariant; callers are expected to reject
// oversized bodies before persisting a Message.
func (m *Message) Validate() error {
	if len(m.Body) > maxBodyBytes {
		return fmt.Errorf("message body %d bytes exceeds max %d", len(m.Body), maxBodyBytes)
	}
	return nil
}

// ID computes the content-addressed identity of the message:
// hash(version || nonce || origin || sender || destination || recipient || body).
// It is a pure function of the message's contents.
func (m *Message) ID() MessageID {
	h := sha256.New()
	h.Write([]byte{m.Version})
	var nonceBuf, originBuf, destBuf [4]byte
	binary.BigEndian.PutUint32(nonceBuf[:], m.Nonce)
	binary.BigEndian.PutUint32(originBuf[:], m.Origin)
	binary.BigEndian.PutUint32(destBuf[:], m.Destination)
	h.Write(nonceBuf[:])
	h.Write(originBuf[:])
	h.Write(m.Sender[:])
	h.Write(destBuf[:])
	h.Write(m.Recipient[:])
	h.Write(m.Body)
	var id MessageID
	copy(id[:], h.Sum(nil))
	return id
}

// LogMeta carries the provenance of a log observed on an origin chain.
// (TransactionID, LogIndex) uniquely identifies the log.
type LogMeta struct {
	BlockNumber      uint64
	BlockHash        [32]byte
	TransactionID    [32]byte
	TransactionIndex uint32
	LogIndex         uint32
	Address          Address32
}

// SequenceIndexed pairs a decoded event with the explicit sequence number
// it carries on-chain (for messages, Sequence == Message.Nonce).
type SequenceIndexed[T any] struct {
	Sequence uint32
	Decoded  T
	Meta     LogMeta
}

// SequencedLog is the concrete instantiation used by the message event
// family; other event families (e.g. merkle-tree insertions) instantiate
// SequenceIndexed with their own payload type.
type SequencedLog = SequenceIndexed[Message]
