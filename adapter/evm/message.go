package evm

import (
	"encoding/binary"
	"fmt"

	"github.com/crosslink-relay/relayer/chaintypes"
)

// messageHeaderLen is the fixed-offset header size of the on-chain wire
// message: version(1) + nonce(4) + origin(4) + sender(32) + destination(4)
// + recipient(32).
const messageHeaderLen = 1 + 4 + 4 + 32 + 4 + 32

// decodeMessage parses the packed message bytes carried in a mailbox
// Dispatch event's non-indexed payload. The layout mirrors the wire format
// used throughout the interchain-messaging ecosystem; concrete ABI/wire
// encodings are otherwise out of this repo's scope (they're a Non-goal for
// the engine core), but the adapter still has to speak whatever format the
// chain actually emits.
func decodeMessage(raw []byte) (*chaintypes.Message, error) {
	if len(raw) < messageHeaderLen {
		return nil, fmt.Errorf("evm: message too short: %d bytes", len(raw))
	}
	var m chaintypes.Message
	off := 0
	m.Version = raw[off]
	off++
	m.Nonce = binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	m.Origin = binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	copy(m.Sender[:], raw[off:off+32])
	off += 32
	m.Destination = binary.BigEndian.Uint32(raw[off : off+4])
	off += 4
	copy(m.Recipient[:], raw[off:off+32])
	off += 32
	m.Body = append([]byte(nil), raw[off:]...)
	return &m, nil
}

// encodeMessage is the inverse of decodeMessage, used to build process()
// calldata from a chaintypes.Message.
func encodeMessage(m *chaintypes.Message) []byte {
	out := make([]byte, messageHeaderLen+len(m.Body))
	off := 0
	out[off] = m.Version
	off++
	binary.BigEndian.PutUint32(out[off:off+4], m.Nonce)
	off += 4
	binary.BigEndian.PutUint32(out[off:off+4], m.Origin)
	off += 4
	copy(out[off:off+32], m.Sender[:])
	off += 32
	binary.BigEndian.PutUint32(out[off:off+4], m.Destination)
	off += 4
	copy(out[off:off+32], m.Recipient[:])
	off += 32
	copy(out[off:], m.Body)
	return out
}
