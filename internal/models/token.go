package models

import (
	"encoding/json"
	"time"
)

// LiquidityCheckpoints is the number of tracked liquidity buckets.
// Bucket i holds the pool liquidity observed at scan number (i+1)*10.
const LiquidityCheckpoints = 20

// LiquidityBuckets is a fixed series of optional liquidity readings taken at
// scan-count checkpoints 10, 20, ... 200. A nil slot means the checkpoint has
// not been reached (or was skipped by the sample interval).
type LiquidityBuckets [LiquidityCheckpoints]*float64

// Checkpoint returns the scan count at which bucket i is recorded.
func Checkpoint(i int) int {
	return (i + 1) * 10
}

// Latest returns the most recent recorded bucket value, or nil when the
// series is still empty.
func (b LiquidityBuckets) Latest() *float64 {
	for i := LiquidityCheckpoints - 1; i >= 0; i-- {
		if b[i] != nil {
			return b[i]
		}
	}
	return nil
}

// HoneypotData holds the fields extracted from a honeypot simulation report.
// Raw carries the untouched provider payload for downstream consumers.
type HoneypotData struct {
	SimulationSuccess bool    `json:"simulation_success"`
	BuyTax            float64 `json:"buy_tax"`
	SellTax           float64 `json:"sell_tax"`
	TransferTax       float64 `json:"transfer_tax"`
	BuyGas            int64   `json:"buy_gas"`
	SellGas           int64   `json:"sell_gas"`

	IsOpenSource  bool `json:"is_open_source"`
	IsProxy       bool `json:"is_proxy"`
	IsMintable    bool `json:"is_mintable"`
	CanBeMinted   bool `json:"can_be_minted"`
	HasProxyCalls bool `json:"has_proxy_calls"`

	OwnerAddress    string `json:"owner_address,omitempty"`
	CreatorAddress  string `json:"creator_address,omitempty"`
	DeployerAddress string `json:"deployer_address,omitempty"`

	PairLiquidity   float64 `json:"pair_liquidity"`
	Reserves0       string  `json:"reserves0,omitempty"`
	Reserves1       string  `json:"reserves1,omitempty"`
	LiquidityToken0 float64 `json:"liquidity_token0"`
	LiquidityToken1 float64 `json:"liquidity_token1"`
	Token0Symbol    string  `json:"token0_symbol,omitempty"`
	Token1Symbol    string  `json:"token1_symbol,omitempty"`
	CreationTime    string  `json:"creation_time,omitempty"`

	Flags json.RawMessage `json:"flags,omitempty"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

// SecurityData holds the coerced fields of a security scanner report.
// String "0"/"1" flags arrive pre-coerced to booleans, percentage taxes to
// floats; list-valued fields stay as raw JSON.
type SecurityData struct {
	Found bool `json:"found"`

	IsOpenSource         bool   `json:"is_open_source"`
	IsProxy              bool   `json:"is_proxy"`
	IsMintable           bool   `json:"is_mintable"`
	CanTakeBackOwnership bool   `json:"can_take_back_ownership"`
	OwnerChangeBalance   bool   `json:"owner_change_balance"`
	HiddenOwner          bool   `json:"hidden_owner"`
	SelfDestruct         bool   `json:"selfdestruct"`
	ExternalCall         bool   `json:"external_call"`
	OwnerAddress         string `json:"owner_address,omitempty"`
	CreatorAddress       string `json:"creator_address,omitempty"`

	BuyTax             float64 `json:"buy_tax"`
	SellTax            float64 `json:"sell_tax"`
	IsHoneypot         bool    `json:"is_honeypot"`
	IsInDex            bool    `json:"is_in_dex"`
	CannotBuy          bool    `json:"cannot_buy"`
	CannotSellAll      bool    `json:"cannot_sell_all"`
	SlippageModifiable bool    `json:"slippage_modifiable"`
	PersonalSlippage   bool    `json:"personal_slippage_modifiable"`
	TransferPausable   bool    `json:"transfer_pausable"`
	TradingCooldown    bool    `json:"trading_cooldown"`
	IsBlacklisted      bool    `json:"is_blacklisted"`
	IsWhitelisted      bool    `json:"is_whitelisted"`
	IsAntiWhale        bool    `json:"is_anti_whale"`
	AntiWhaleModifier  bool    `json:"anti_whale_modifiable"`

	TotalSupply    string  `json:"total_supply,omitempty"`
	HolderCount    int     `json:"holder_count"`
	OwnerPercent   float64 `json:"owner_percent"`
	OwnerBalance   string  `json:"owner_balance,omitempty"`
	CreatorPercent float64 `json:"creator_percent"`
	CreatorBalance string  `json:"creator_balance,omitempty"`
	LPHolderCount  int     `json:"lp_holder_count"`
	LPTotalSupply  string  `json:"lp_total_supply,omitempty"`

	IsTrueToken             bool   `json:"is_true_token"`
	IsAirdropScam           bool   `json:"is_airdrop_scam"`
	HoneypotWithSameCreator bool   `json:"honeypot_with_same_creator"`
	FakeToken               bool   `json:"fake_token"`
	Note                    string `json:"note,omitempty"`

	TrustList      json.RawMessage `json:"trust_list,omitempty"`
	PotentialRisks json.RawMessage `json:"other_potential_risks,omitempty"`
	Holders        json.RawMessage `json:"holders,omitempty"`
	LPHolders      json.RawMessage `json:"lp_holders,omitempty"`
	DexInfo        json.RawMessage `json:"dex,omitempty"`
}

// TokenSnapshot is the authoritative per-token record. One row per live
// token; moving to RemovedToken deletes it.
type TokenSnapshot struct {
	Address     string `json:"address"`
	PairAddress string `json:"pair_address"`

	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"total_supply"`
	HolderCount int    `json:"holder_count"`

	FirstSeen  time.Time `json:"first_seen"`
	LastScanAt time.Time `json:"last_scan_at"`
	// AgeHours is derived from the pool creation time; nil when the
	// creation timestamp was absent or unparsable.
	AgeHours *float64 `json:"age_hours"`

	TotalScans          int `json:"total_scans"`
	ConsecutiveFailures int `json:"consecutive_failures"`

	IsHoneypot     bool    `json:"is_honeypot"`
	HoneypotReason string  `json:"honeypot_reason,omitempty"`
	Liquidity      float64 `json:"liquidity"`
	BuyTax         float64 `json:"buy_tax"`
	SellTax        float64 `json:"sell_tax"`

	LastError string `json:"last_error,omitempty"`
	Status    string `json:"status"`

	Honeypot HoneypotData     `json:"honeypot"`
	Security SecurityData     `json:"security"`
	Buckets  LiquidityBuckets `json:"liquidity_buckets"`
}

// Token statuses.
const (
	StatusNew    = "new"
	StatusActive = "active"
)

// RemovedToken is the tombstone written when a token is evicted from the
// live set. Live and removed rows for one address are mutually exclusive.
type RemovedToken struct {
	Address        string    `json:"address"`
	PairAddress    string    `json:"pair_address"`
	Name           string    `json:"name"`
	Symbol         string    `json:"symbol"`
	FirstSeen      time.Time `json:"first_seen"`
	LastScanAt     time.Time `json:"last_scan_at"`
	RemovedAt      time.Time `json:"removed_at"`
	AgeHours       *float64  `json:"age_hours"`
	TotalScans     int       `json:"total_scans"`
	Failures       int       `json:"consecutive_failures"`
	IsHoneypot     bool      `json:"is_honeypot"`
	HoneypotReason string    `json:"honeypot_reason,omitempty"`
	Liquidity      float64   `json:"liquidity"`
	LastError      string    `json:"last_error,omitempty"`
	RemovalReason  string    `json:"removal_reason"`
}

// RescanCandidate is the projection returned by the rescan selector.
type RescanCandidate struct {
	Address     string    `json:"address"`
	PairAddress string    `json:"pair_address"`
	LastScanAt  time.Time `json:"last_scan_at"`
	TotalScans  int       `json:"total_scans"`
	Failures    int       `json:"consecutive_failures"`
	AgeHours    *float64  `json:"age_hours"`
}

// SnapshotFilter narrows snapshot listings for the API.
type SnapshotFilter struct {
	IsHoneypot *bool
	Status     string
	Search     string
	Limit      int
	Offset     int
}
