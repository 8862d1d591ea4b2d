// Package evm implements adapter.ChainAdapter over go-ethereum's RPC
// client and ABI binding: the concrete chain driver for EVM-compatible
// destinations.
package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/crosslink-relay/relayer/adapter"
	"github.com/crosslink-relay/relayer/chaintypes"
)

// ReorgPeriod mirrors config.ReorgPeriod without importing config (the
// adapter must not depend on the config package).
type ReorgPeriod struct {
	Blocks *uint32
	Tag    string // "finalized", "safe", or "" for Blocks-based
}

// TxSigner is the external collaborator that turns unsigned calls and
// transactions into signed ones. Key handling/custody is out of this
// repo's scope, so the adapter only depends on this narrow interface.
type TxSigner interface {
	From() common.Address
	ChainID() *big.Int
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
	SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

// Adapter is the concrete EVM ChainAdapter. Safe for concurrent use: the
// underlying *ethclient.Client pools its own connections and the caches
// are internally synchronized.
type Adapter struct {
	chainName string
	client    *ethclient.Client
	mailbox   common.Address
	abi       abi.ABI
	bound     *bind.BoundContract
	reorg     ReorgPeriod
	signer    TxSigner
	log       log.Logger

	dispatchTopic common.Hash
	receiptCache  *lru.Cache // tx hash -> *adapter.Receipt
}

// NewAdapter constructs an EVM adapter for one chain's mailbox contract.
// chainName is used only to label errors (e.g. "ethereum", "polygon").
func NewAdapter(chainName string, client *ethclient.Client, mailbox common.Address, reorg ReorgPeriod, signer TxSigner, logger log.Logger) (*Adapter, error) {
	if logger == nil {
		logger = log.Root()
	}
	parsed := mustParseMailboxABI()
	bound := bind.NewBoundContract(mailbox, parsed, client, client, client)

	receiptCache, err := lru.New(1024)
	if err != nil {
		return nil, errors.Wrap(err, "evm: allocate receipt cache")
	}

	return &Adapter{
		chainName:     chainName,
		client:        client,
		mailbox:       mailbox,
		abi:           parsed,
		bound:         bound,
		reorg:         reorg,
		signer:        signer,
		log:           logger,
		dispatchTopic: parsed.Events["Dispatch"].ID,
		receiptCache:  receiptCache,
	}, nil
}

var _ adapter.ChainAdapter = (*Adapter)(nil)

func (a *Adapter) FetchLogsInRange(ctx context.Context, r adapter.BlockRange) ([]chaintypes.SequencedLog, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(r.Start),
		ToBlock:   new(big.Int).SetUint64(r.End),
		Addresses: []common.Address{a.mailbox},
		Topics:    [][]common.Hash{{a.dispatchTopic}},
	}
	logs, err := a.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, adapter.NewChainCommunicationError(a.chainName, "filter logs", err)
	}

	out := make([]chaintypes.SequencedLog, 0, len(logs))
	for _, lg := range logs {
		values, err := a.abi.Events["Dispatch"].Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil || len(values) == 0 {
			a.log.Warn("evm: could not unpack Dispatch log, skipping", "tx", lg.TxHash, "err", err)
			continue
		}
		raw, ok := values[0].([]byte)
		if !ok {
			continue
		}
		msg, err := decodeMessage(raw)
		if err != nil {
			a.log.Warn("evm: could not decode message bytes, skipping", "tx", lg.TxHash, "err", err)
			continue
		}
		var meta chaintypes.LogMeta
		meta.BlockNumber = lg.BlockNumber
		meta.BlockHash = lg.BlockHash
		meta.TransactionID = lg.TxHash
		meta.TransactionIndex = uint32(lg.TxIndex)
		meta.LogIndex = uint32(lg.Index)
		copy(meta.Address[12:], a.mailbox[:])
		out = append(out, chaintypes.SequencedLog{Sequence: msg.Nonce, Decoded: *msg, Meta: meta})
	}
	return out, nil
}

func (a *Adapter) LatestSequenceAndTip(ctx context.Context) (*uint32, uint32, error) {
	header, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, 0, adapter.NewChainCommunicationError(a.chainName, "header by number", err)
	}
	tip := uint32(header.Number.Uint64())

	var out []interface{}
	err = a.bound.Call(&bind.CallOpts{Context: ctx}, &out, "count")
	if err != nil {
		a.log.Debug("evm: count() call failed, treating as unknown", "err", err)
		return nil, tip, nil
	}
	if len(out) == 0 {
		return nil, tip, nil
	}
	count, ok := out[0].(uint32)
	if !ok {
		return nil, tip, nil
	}
	return &count, tip, nil
}

func (a *Adapter) GetFinalizedBlock(ctx context.Context) (uint32, error) {
	switch a.reorg.Tag {
	case "finalized":
		return a.headerNumber(ctx, big.NewInt(rpc.FinalizedBlockNumber.Int64()))
	case "safe":
		return a.headerNumber(ctx, big.NewInt(rpc.SafeBlockNumber.Int64()))
	default:
		header, err := a.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return 0, adapter.NewChainCommunicationError(a.chainName, "header by number", err)
		}
		tip := header.Number.Uint64()
		var period uint64
		if a.reorg.Blocks != nil {
			period = uint64(*a.reorg.Blocks)
		}
		if tip < period {
			return 0, nil
		}
		return uint32(tip - period), nil
	}
}

func (a *Adapter) headerNumber(ctx context.Context, tag *big.Int) (uint32, error) {
	header, err := a.client.HeaderByNumber(ctx, tag)
	if err != nil {
		return 0, adapter.NewChainCommunicationError(a.chainName, "header by number", err)
	}
	return uint32(header.Number.Uint64()), nil
}

func (a *Adapter) Delivered(ctx context.Context, id chaintypes.MessageID) (bool, error) {
	var out []interface{}
	if err := a.bound.Call(&bind.CallOpts{Context: ctx}, &out, "delivered", [32]byte(id)); err != nil {
		return false, adapter.NewChainCommunicationError(a.chainName, "delivered call", err)
	}
	delivered, _ := out[0].(bool)
	return delivered, nil
}

func (a *Adapter) RecipientISM(ctx context.Context, recipient chaintypes.Address32) (chaintypes.Address32, error) {
	recipientAddr := common.BytesToAddress(recipient[12:])
	var out []interface{}
	if err := a.bound.Call(&bind.CallOpts{Context: ctx}, &out, "recipientIsm", recipientAddr); err != nil {
		return chaintypes.Address32{}, adapter.NewChainCommunicationError(a.chainName, "recipientIsm call", err)
	}
	ismAddr, _ := out[0].(common.Address)
	var ism chaintypes.Address32
	copy(ism[12:], ismAddr[:])
	return ism, nil
}

func (a *Adapter) IsContract(ctx context.Context, addr chaintypes.Address32) (bool, error) {
	code, err := a.client.CodeAt(ctx, common.BytesToAddress(addr[12:]), nil)
	if err != nil {
		return false, adapter.NewChainCommunicationError(a.chainName, "code at", err)
	}
	return len(code) > 0, nil
}

func (a *Adapter) EstimateProcessCost(ctx context.Context, msg *chaintypes.Message, metadata []byte) (*adapter.GasEstimate, error) {
	calldata, err := a.abi.Pack("process", metadata, encodeMessage(msg))
	if err != nil {
		return nil, errors.Wrap(err, "evm: pack process calldata")
	}
	from := a.signer.From()
	gas, err := a.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &a.mailbox, Data: calldata})
	if err != nil {
		return nil, adapter.NewContractError(a.chainName, "estimate process gas", err.Error())
	}
	return &adapter.GasEstimate{GasLimit: gas}, nil
}

func (a *Adapter) Process(ctx context.Context, msg *chaintypes.Message, metadata []byte, gasLimitOverride *uint64) (*adapter.TxOutcome, error) {
	opts, err := a.signer.TransactOpts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "evm: build transact opts")
	}
	if gasLimitOverride != nil {
		opts.GasLimit = *gasLimitOverride
	}
	tx, err := a.bound.Transact(opts, "process", metadata, encodeMessage(msg))
	if err != nil {
		return nil, adapter.NewContractError(a.chainName, "process transact", err.Error())
	}
	receipt, err := bind.WaitMined(ctx, a.client, tx)
	if err != nil {
		return nil, adapter.NewChainCommunicationError(a.chainName, "wait mined", err)
	}
	var submittedBy chaintypes.Address32
	from := a.signer.From()
	copy(submittedBy[12:], from[:])
	var hash chaintypes.TxHash
	copy(hash[:], tx.Hash().Bytes())
	return &adapter.TxOutcome{
		TxHash:      hash,
		GasUsed:     receipt.GasUsed,
		Executed:    receipt.Status == types.ReceiptStatusSuccessful,
		SubmittedBy: submittedBy,
	}, nil
}

func (a *Adapter) Submit(ctx context.Context, unsigned *adapter.UnsignedTx) (chaintypes.TxHash, error) {
	var hash chaintypes.TxHash
	if unsigned.Nonce == nil {
		return hash, fmt.Errorf("evm: submit called with unassigned nonce")
	}
	to := common.BytesToAddress(unsigned.To[12:])

	var tx *types.Transaction
	if unsigned.Legacy {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    *unsigned.Nonce,
			To:       &to,
			Gas:      unsigned.GasLimit,
			GasPrice: new(big.Int).SetUint64(unsigned.MaxFee),
			Data:     unsigned.Data,
		})
	} else {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   a.signer.ChainID(),
			Nonce:     *unsigned.Nonce,
			To:        &to,
			Gas:       unsigned.GasLimit,
			GasFeeCap: new(big.Int).SetUint64(unsigned.MaxFee),
			GasTipCap: new(big.Int).SetUint64(unsigned.TipCap),
			Data:      unsigned.Data,
		})
	}

	signed, err := a.signer.SignTx(ctx, tx)
	if err != nil {
		return hash, errors.Wrap(err, "evm: sign transaction")
	}
	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return hash, adapter.NewChainCommunicationError(a.chainName, "send transaction", err)
	}
	copy(hash[:], signed.Hash().Bytes())
	return hash, nil
}

func (a *Adapter) GetTransactionReceipt(ctx context.Context, hash chaintypes.TxHash) (*adapter.Receipt, error) {
	txHash := common.BytesToHash(hash[:])
	if cached, ok := a.receiptCache.Get(txHash); ok {
		return cached.(*adapter.Receipt), nil
	}

	receipt, err := a.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, adapter.NewChainCommunicationError(a.chainName, "transaction receipt", err)
	}

	out := &adapter.Receipt{
		TxHash:      hash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Status:      receipt.Status == types.ReceiptStatusSuccessful,
		GasUsed:     receipt.GasUsed,
	}
	a.receiptCache.Add(txHash, out)
	return out, nil
}

func (a *Adapter) FeeHistory(ctx context.Context, blocks uint64, newest string, rewardPercentiles []float64) (*adapter.FeeHistory, error) {
	var lastBlock *big.Int
	if newest != "" && newest != "latest" {
		lastBlock = new(big.Int)
		if _, ok := lastBlock.SetString(newest, 10); !ok {
			return nil, fmt.Errorf("evm: invalid fee history block tag %q", newest)
		}
	}
	history, err := a.client.FeeHistory(ctx, blocks, lastBlock, rewardPercentiles)
	if err != nil {
		return nil, adapter.NewChainCommunicationError(a.chainName, "fee history", err)
	}

	out := &adapter.FeeHistory{
		GasUsedRatio: history.GasUsedRatio,
	}
	if history.OldestBlock != nil {
		out.OldestBlock = history.OldestBlock.Uint64()
	}
	for _, fee := range history.BaseFee {
		out.BaseFeePerGas = append(out.BaseFeePerGas, fee.Uint64())
	}
	for _, rewardRow := range history.Reward {
		row := make([]uint64, len(rewardRow))
		for i, r := range rewardRow {
			row[i] = r.Uint64()
		}
		out.Reward = append(out.Reward, row)
	}
	return out, nil
}
