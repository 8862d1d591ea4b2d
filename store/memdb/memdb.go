// Package memdb is an in-memory Store implementation used by tests and by
// cmd/relayer when no db_path is configured. It has no business being a library
// dependency: a map guarded by a mutex is the entire implementation, the
// same way go-ethereum's own miner/test_backend.go backs its tests with a
// minimal in-memory stand-in rather than a real database.
package memdb

import (
	"context"
	"sync"

	"github.com/crosslink-relay/relayer/chaintypes"
	"github.com/crosslink-relay/relayer/store"
)

type originNonce struct {
	origin uint32
	nonce  uint32
}

// DB is a concurrency-safe in-memory Store.
type DB struct {
	mu sync.RWMutex

	messagesByNonce map[originNonce]*chaintypes.Message
	messagesByID    map[chaintypes.MessageID]*chaintypes.Message
	processed       map[originNonce]bool
	retryCount      map[chaintypes.MessageID]uint32
	status          map[chaintypes.MessageID]chaintypes.PendingOperationStatus
	gasPayment      map[originNonce]store.GasPayment
	gasPaymentBlock map[originNonce]uint64
	merkleInsertion map[originNonce]store.Insertion
	highestSeen     map[uint32]uint32
	updByPrevRoot   map[uint32]map[[32]byte]chaintypes.SignedUpdate
	updByNewRoot    map[uint32]map[[32]byte]chaintypes.SignedUpdate
	cursorSnapshots map[string]chaintypes.LastIndexedSnapshot
}

func New() *DB {
	return &DB{
		messagesByNonce: make(map[originNonce]*chaintypes.Message),
		messagesByID:    make(map[chaintypes.MessageID]*chaintypes.Message),
		processed:       make(map[originNonce]bool),
		retryCount:      make(map[chaintypes.MessageID]uint32),
		status:          make(map[chaintypes.MessageID]chaintypes.PendingOperationStatus),
		gasPayment:      make(map[originNonce]store.GasPayment),
		gasPaymentBlock: make(map[originNonce]uint64),
		merkleInsertion: make(map[originNonce]store.Insertion),
		highestSeen:     make(map[uint32]uint32),
		updByPrevRoot:   make(map[uint32]map[[32]byte]chaintypes.SignedUpdate),
		updByNewRoot:    make(map[uint32]map[[32]byte]chaintypes.SignedUpdate),
		cursorSnapshots: make(map[string]chaintypes.LastIndexedSnapshot),
	}
}

var _ store.Store = (*DB)(nil)

func (d *DB) PutMessage(_ context.Context, origin uint32, msg *chaintypes.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *msg
	d.messagesByNonce[originNonce{origin, msg.Nonce}] = &cp
	d.messagesByID[msg.ID()] = &cp
	return nil
}

func (d *DB) GetMessageByNonce(_ context.Context, origin uint32, nonce uint32) (*chaintypes.Message, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.messagesByNonce[originNonce{origin, nonce}]
	return m, ok, nil
}

func (d *DB) GetMessageByID(_ context.Context, id chaintypes.MessageID) (*chaintypes.Message, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.messagesByID[id]
	return m, ok, nil
}

func (d *DB) MarkProcessed(_ context.Context, origin uint32, nonce uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processed[originNonce{origin, nonce}] = true
	return nil
}

func (d *DB) IsProcessed(_ context.Context, origin uint32, nonce uint32) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.processed[originNonce{origin, nonce}], nil
}

func (d *DB) GetRetryCount(_ context.Context, id chaintypes.MessageID) (uint32, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.retryCount[id], nil
}

func (d *DB) PutRetryCount(_ context.Context, id chaintypes.MessageID, count uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retryCount[id] = count
	return nil
}

func (d *DB) GetStatus(_ context.Context, id chaintypes.MessageID) (chaintypes.PendingOperationStatus, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.status[id]
	return s, ok, nil
}

func (d *DB) PutStatus(_ context.Context, id chaintypes.MessageID, status chaintypes.PendingOperationStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status[id] = status
	return nil
}

func (d *DB) PutGasPayment(_ context.Context, origin uint32, seq uint32, payment store.GasPayment, block uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := originNonce{origin, seq}
	d.gasPayment[key] = payment
	d.gasPaymentBlock[key] = block
	return nil
}

func (d *DB) GetGasPayment(_ context.Context, origin uint32, seq uint32) (store.GasPayment, uint64, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key := originNonce{origin, seq}
	p, ok := d.gasPayment[key]
	return p, d.gasPaymentBlock[key], ok, nil
}

func (d *DB) PutMerkleInsertion(_ context.Context, origin uint32, leafIndex uint32, ins store.Insertion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.merkleInsertion[originNonce{origin, leafIndex}] = ins
	return nil
}

func (d *DB) GetMerkleInsertion(_ context.Context, origin uint32, leafIndex uint32) (store.Insertion, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ins, ok := d.merkleInsertion[originNonce{origin, leafIndex}]
	return ins, ok, nil
}

func (d *DB) GetHighestSeenNonce(_ context.Context, origin uint32) (*uint32, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.highestSeen[origin]
	if !ok {
		return nil, nil
	}
	vv := v
	return &vv, nil
}

func (d *DB) PutHighestSeenNonce(_ context.Context, origin uint32, nonce uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.highestSeen[origin]
	if !ok || nonce > cur {
		d.highestSeen[origin] = nonce
	}
	return nil
}

func (d *DB) GetSignedUpdateByPreviousRoot(_ context.Context, homeDomain uint32, root [32]byte) (*chaintypes.SignedUpdate, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.updByPrevRoot[homeDomain]
	if !ok {
		return nil, false, nil
	}
	u, ok := m[root]
	if !ok {
		return nil, false, nil
	}
	cp := u
	return &cp, true, nil
}

func (d *DB) PutSignedUpdateByPreviousRoot(_ context.Context, homeDomain uint32, update chaintypes.SignedUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.updByPrevRoot[homeDomain] == nil {
		d.updByPrevRoot[homeDomain] = make(map[[32]byte]chaintypes.SignedUpdate)
	}
	if d.updByNewRoot[homeDomain] == nil {
		d.updByNewRoot[homeDomain] = make(map[[32]byte]chaintypes.SignedUpdate)
	}
	d.updByPrevRoot[homeDomain][update.PreviousRoot] = update
	d.updByNewRoot[homeDomain][update.NewRoot] = update
	return nil
}

func (d *DB) GetSignedUpdateByNewRoot(_ context.Context, homeDomain uint32, root [32]byte) (*chaintypes.SignedUpdate, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.updByNewRoot[homeDomain]
	if !ok {
		return nil, false, nil
	}
	u, ok := m[root]
	if !ok {
		return nil, false, nil
	}
	cp := u
	return &cp, true, nil
}

func (d *DB) GetLastIndexedSnapshot(_ context.Context, key string) (chaintypes.LastIndexedSnapshot, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.cursorSnapshots[key]
	return s, ok, nil
}

func (d *DB) PutLastIndexedSnapshot(_ context.Context, key string, snap chaintypes.LastIndexedSnapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursorSnapshots[key] = snap
	return nil
}

func (d *DB) Close() error { return nil }
