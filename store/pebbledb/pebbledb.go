// Package pebbledb is the production Store implementation, backed by
// cockroachdb/pebble, the same LSM-tree engine go-ethereum itself uses
// for its chain database.
package pebbledb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/store"
)

// Key family prefixes, one byte each, matching the Store interface's key
// schema.
const (
	prefixMsgByNonce        byte = 0x01
	prefixMsgByID           byte = 0x02
	prefixProcessed         byte = 0x03
	prefixRetryCount        byte = 0x04
	prefixStatus            byte = 0x05
	prefixGasPayment        byte = 0x06
	prefixGasPaymentBlock   byte = 0x07
	prefixMerkleInsertion   byte = 0x08
	prefixHighestSeenNonce  byte = 0x09
	prefixUpdByPrevRoot     byte = 0x0a
	prefixUpdByNewRoot      byte = 0x0b
	prefixCursorSnapshot    byte = 0x0c
)

// DB is a pebble-backed Store.
type DB struct {
	pdb *pebble.DB
	log log.Logger
}

// Open opens (creating if absent) a pebble store at dir.
func Open(dir string, logger log.Logger) (*DB, error) {
	if logger == nil {
		logger = log.Root()
	}
	pdb, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening pebble store at %s", dir)
	}
	return &DB{pdb: pdb, log: logger}, nil
}

var _ store.Store = (*DB)(nil)

func originNonceKey(prefix byte, origin, nonce uint32) []byte {
	k := make([]byte, 9)
	k[0] = prefix
	binary.BigEndian.PutUint32(k[1:5], origin)
	binary.BigEndian.PutUint32(k[5:9], nonce)
	return k
}

func idKey(prefix byte, id chaintypes.MessageID) []byte {
	k := make([]byte, 1+len(id))
	k[0] = prefix
	copy(k[1:], id[:])
	return k
}

func rootKey(prefix byte, domain uint32, root [32]byte) []byte {
	k := make([]byte, 5+len(root))
	k[0] = prefix
	binary.BigEndian.PutUint32(k[1:5], domain)
	copy(k[5:], root[:])
	return k
}

func originKey(prefix byte, origin uint32) []byte {
	k := make([]byte, 5)
	k[0] = prefix
	binary.BigEndian.PutUint32(k[1:5], origin)
	return k
}

func cursorKey(name string) []byte {
	return append([]byte{prefixCursorSnapshot}, []byte(name)...)
}

func (d *DB) get(key []byte, v interface{}) (bool, error) {
	val, closer, err := d.pdb.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := store.Decode(val, v); err != nil {
		return false, err
	}
	return true, nil
}

func (d *DB) put(key []byte, v interface{}) error {
	data, err := store.Encode(v)
	if err != nil {
		return err
	}
	return d.pdb.Set(key, data, pebble.Sync)
}

func (d *DB) PutMessage(_ context.Context, origin uint32, msg *chaintypes.Message) error {
	id := msg.ID()
	if err := d.put(originNonceKey(prefixMsgByNonce, origin, msg.Nonce), msg); err != nil {
		return fmt.Errorf("put msg_by_nonce: %w", err)
	}
	if err := d.put(idKey(prefixMsgByID, id), msg); err != nil {
		return fmt.Errorf("put msg_by_id: %w", err)
	}
	return nil
}

func (d *DB) GetMessageByNonce(_ context.Context, origin uint32, nonce uint32) (*chaintypes.Message, bool, error) {
	var m chaintypes.Message
	ok, err := d.get(originNonceKey(prefixMsgByNonce, origin, nonce), &m)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &m, true, nil
}

func (d *DB) GetMessageByID(_ context.Context, id chaintypes.MessageID) (*chaintypes.Message, bool, error) {
	var m chaintypes.Message
	ok, err := d.get(idKey(prefixMsgByID, id), &m)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &m, true, nil
}

func (d *DB) MarkProcessed(_ context.Context, origin uint32, nonce uint32) error {
	return d.put(originNonceKey(prefixProcessed, origin, nonce), true)
}

func (d *DB) IsProcessed(_ context.Context, origin uint32, nonce uint32) (bool, error) {
	var processed bool
	ok, err := d.get(originNonceKey(prefixProcessed, origin, nonce), &processed)
	if err != nil {
		return false, err
	}
	return ok && processed, nil
}

func (d *DB) GetRetryCount(_ context.Context, id chaintypes.MessageID) (uint32, error) {
	var n uint32
	_, err := d.get(idKey(prefixRetryCount, id), &n)
	return n, err
}

func (d *DB) PutRetryCount(_ context.Context, id chaintypes.MessageID, count uint32) error {
	return d.put(idKey(prefixRetryCount, id), count)
}

func (d *DB) GetStatus(_ context.Context, id chaintypes.MessageID) (chaintypes.PendingOperationStatus, bool, error) {
	var s chaintypes.PendingOperationStatus
	ok, err := d.get(idKey(prefixStatus, id), &s)
	return s, ok, err
}

func (d *DB) PutStatus(_ context.Context, id chaintypes.MessageID, status chaintypes.PendingOperationStatus) error {
	return d.put(idKey(prefixStatus, id), status)
}

func (d *DB) PutGasPayment(_ context.Context, origin uint32, seq uint32, payment store.GasPayment, block uint64) error {
	if err := d.put(originNonceKey(prefixGasPayment, origin, seq), payment); err != nil {
		return err
	}
	return d.put(originNonceKey(prefixGasPaymentBlock, origin, seq), block)
}

func (d *DB) GetGasPayment(_ context.Context, origin uint32, seq uint32) (store.GasPayment, uint64, bool, error) {
	var p store.GasPayment
	ok, err := d.get(originNonceKey(prefixGasPayment, origin, seq), &p)
	if err != nil || !ok {
		return p, 0, ok, err
	}
	var block uint64
	if _, err := d.get(originNonceKey(prefixGasPaymentBlock, origin, seq), &block); err != nil {
		return p, 0, false, err
	}
	return p, block, true, nil
}

func (d *DB) PutMerkleInsertion(_ context.Context, origin uint32, leafIndex uint32, ins store.Insertion) error {
	return d.put(originNonceKey(prefixMerkleInsertion, origin, leafIndex), ins)
}

func (d *DB) GetMerkleInsertion(_ context.Context, origin uint32, leafIndex uint32) (store.Insertion, bool, error) {
	var ins store.Insertion
	ok, err := d.get(originNonceKey(prefixMerkleInsertion, origin, leafIndex), &ins)
	return ins, ok, err
}

func (d *DB) GetHighestSeenNonce(_ context.Context, origin uint32) (*uint32, error) {
	var n uint32
	ok, err := d.get(originKey(prefixHighestSeenNonce, origin), &n)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}

func (d *DB) PutHighestSeenNonce(ctx context.Context, origin uint32, nonce uint32) error {
	cur, err := d.GetHighestSeenNonce(ctx, origin)
	if err != nil {
		return err
	}
	if cur != nil && *cur >= nonce {
		return nil
	}
	return d.put(originKey(prefixHighestSeenNonce, origin), nonce)
}

func (d *DB) GetSignedUpdateByPreviousRoot(_ context.Context, homeDomain uint32, root [32]byte) (*chaintypes.SignedUpdate, bool, error) {
	var u chaintypes.SignedUpdate
	ok, err := d.get(rootKey(prefixUpdByPrevRoot, homeDomain, root), &u)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &u, true, nil
}

func (d *DB) PutSignedUpdateByPreviousRoot(_ context.Context, homeDomain uint32, update chaintypes.SignedUpdate) error {
	if err := d.put(rootKey(prefixUpdByPrevRoot, homeDomain, update.PreviousRoot), update); err != nil {
		return err
	}
	return d.put(rootKey(prefixUpdByNewRoot, homeDomain, update.NewRoot), update)
}

func (d *DB) GetSignedUpdateByNewRoot(_ context.Context, homeDomain uint32, root [32]byte) (*chaintypes.SignedUpdate, bool, error) {
	var u chaintypes.SignedUpdate
	ok, err := d.get(rootKey(prefixUpdByNewRoot, homeDomain, root), &u)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &u, true, nil
}

func (d *DB) GetLastIndexedSnapshot(_ context.Context, key string) (chaintypes.LastIndexedSnapshot, bool, error) {
	var s chaintypes.LastIndexedSnapshot
	ok, err := d.get(cursorKey(key), &s)
	return s, ok, err
}

func (d *DB) PutLastIndexedSnapshot(_ context.Context, key string, snap chaintypes.LastIndexedSnapshot) error {
	return d.put(cursorKey(key), snap)
}

func (d *DB) Close() error {
	return d.pdb.Close()
}
