// Package config loads and validates the relayer's TOML configuration
// file, mirroring go-ethereum's own file-based config flow.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/crosslink-relay/relayer/router"
)

// ReorgPeriod selects how a chain's finalized-block cutoff is computed.
type ReorgPeriod struct {
	Blocks *uint32 `toml:"blocks"`
	Tag    string  `toml:"tag"`
}

// ContractAddresses are the well-known mailbox-system contract addresses
// for one chain, hex-encoded in the TOML file.
type ContractAddresses struct {
	Mailbox           string `toml:"mailbox"`
	IGP               string `toml:"igp"`
	ValidatorAnnounce string `toml:"validator_announce"`
	MerkleTreeHook    string `toml:"merkle_tree_hook"`
}

// IndexMode mirrors cursor.IndexMode in a TOML-friendly string form.
type IndexMode string

const (
	IndexModeBlock    IndexMode = "block"
	IndexModeSequence IndexMode = "sequence"
)

// IndexConfig configures a chain's cursor starting point and scan shape.
type IndexConfig struct {
	FromBlock uint32    `toml:"from_block"`
	ChunkSize uint32    `toml:"chunk_size"`
	Mode      IndexMode `toml:"mode"`
}

// OpSubmissionConfig configures the inclusion stage for one chain.
type OpSubmissionConfig struct {
	MaxBatchSize    int     `toml:"max_batch_size"`
	MaxBatchGas     uint64  `toml:"max_batch_gas"`
	BlockTimeMillis int64   `toml:"block_time_ms"`
	MaxSimFailures  int     `toml:"max_sim_failures"`
	RewardPercentile float64 `toml:"reward_percentile"`
}

// ChainConfig is one entry in the top-level `[chains.<name>]` table.
type ChainConfig struct {
	DomainID           uint32              `toml:"domain_id"`
	RPCUrls            []string            `toml:"rpc_urls"`
	Signer             string              `toml:"signer"`
	ReorgPeriod        ReorgPeriod         `toml:"reorg_period"`
	ContractAddresses  ContractAddresses   `toml:"contract_addresses"`
	Index              IndexConfig         `toml:"index"`
	OpSubmissionConfig OpSubmissionConfig  `toml:"op_submission_config"`
}

// GasEnforcementKind names a gaspolicy.Policy variant in config form.
type GasEnforcementKind string

const (
	GasEnforcementNone              GasEnforcementKind = "none"
	GasEnforcementMinimum           GasEnforcementKind = "minimum"
	GasEnforcementOnChainFeeQuoting GasEnforcementKind = "on_chain_fee_quoting"
)

// GasPaymentEnforcementEntry pairs a gaspolicy kind with the matching list
// of messages it applies to.
type GasPaymentEnforcementEntry struct {
	Type         GasEnforcementKind      `toml:"type"`
	Amount       uint64                  `toml:"amount"` // valid when Type == minimum
	MatchingList []router.MatchingListEntry `toml:"matching_list"`
}

// MetricAppContextEntry pairs a label with the matching list that earns it.
type MetricAppContextEntry struct {
	Label        string                     `toml:"label"`
	MatchingList []router.MatchingListEntry `toml:"matching_list"`
}

// Config is the relayer's full recognized option set.
type Config struct {
	Chains                 map[string]ChainConfig       `toml:"chains"`
	Whitelist              []router.MatchingListEntry   `toml:"whitelist"`
	Blacklist              []router.MatchingListEntry   `toml:"blacklist"`
	GasPaymentEnforcement  []GasPaymentEnforcementEntry `toml:"gas_payment_enforcement"`
	MetricAppContexts      []MetricAppContextEntry      `toml:"metric_app_contexts"`
	MaxMessageRetries      uint32                       `toml:"max_message_retries"`
	TransactionGasLimit    *uint64                      `toml:"transaction_gas_limit"`
	DBPath                 string                       `toml:"db_path"`
	MetricsListenAddr      string                       `toml:"metrics_listen_addr"`
}

// defaultMaxMessageRetries is the documented default.
const defaultMaxMessageRetries = 66

// Load reads and parses a TOML config file, applying documented defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.MaxMessageRetries == 0 {
		cfg.MaxMessageRetries = defaultMaxMessageRetries
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the structural constraints every deployment needs:
// every chain needs at least one RPC endpoint and a mailbox address, and every
// gas enforcement entry of kind "minimum" carries a nonzero amount.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("config: at least one chain must be configured")
	}
	for name, chain := range c.Chains {
		if len(chain.RPCUrls) == 0 {
			return fmt.Errorf("config: chain %q has no rpc_urls", name)
		}
		if chain.ContractAddresses.Mailbox == "" {
			return fmt.Errorf("config: chain %q missing mailbox address", name)
		}
	}
	for i, e := range c.GasPaymentEnforcement {
		if e.Type == GasEnforcementMinimum && e.Amount == 0 {
			return fmt.Errorf("config: gas_payment_enforcement[%d] is minimum with amount 0", i)
		}
	}
	return nil
}
