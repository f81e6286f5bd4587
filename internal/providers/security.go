package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/metrics"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/pkg/utils"
)

// securityEnvelope is the scanner's response wrapper. Result is keyed by
// lower-cased contract address.
type securityEnvelope struct {
	Code    int                        `json:"code"`
	Message string                     `json:"message"`
	Result  map[string]json.RawMessage `json:"result"`
}

// securityEntry mirrors the scanner's per-token record. Everything is a
// string on the wire; lists stay raw.
type securityEntry struct {
	IsOpenSource         string `json:"is_open_source"`
	IsProxy              string `json:"is_proxy"`
	IsMintable           string `json:"is_mintable"`
	OwnerAddress         string `json:"owner_address"`
	CanTakeBackOwnership string `json:"can_take_back_ownership"`
	OwnerChangeBalance   string `json:"owner_change_balance"`
	HiddenOwner          string `json:"hidden_owner"`
	SelfDestruct         string `json:"selfdestruct"`
	ExternalCall         string `json:"external_call"`

	BuyTax             string `json:"buy_tax"`
	SellTax            string `json:"sell_tax"`
	IsInDex            string `json:"is_in_dex"`
	CannotBuy          string `json:"cannot_buy"`
	CannotSellAll      string `json:"cannot_sell_all"`
	SlippageModifiable string `json:"slippage_modifiable"`
	IsHoneypot         string `json:"is_honeypot"`
	TransferPausable   string `json:"transfer_pausable"`
	IsBlacklisted      string `json:"is_blacklisted"`
	IsWhitelisted      string `json:"is_whitelisted"`
	IsAntiWhale        string `json:"is_anti_whale"`
	AntiWhaleModifier  string `json:"anti_whale_modifiable"`
	TradingCooldown    string `json:"trading_cooldown"`
	PersonalSlippage   string `json:"personal_slippage_modifiable"`

	TotalSupply    string `json:"total_supply"`
	HolderCount    string `json:"holder_count"`
	OwnerBalance   string `json:"owner_balance"`
	OwnerPercent   string `json:"owner_percent"`
	CreatorAddress string `json:"creator_address"`
	CreatorBalance string `json:"creator_balance"`
	CreatorPercent string `json:"creator_percent"`
	LPHolderCount  string `json:"lp_holder_count"`
	LPTotalSupply  string `json:"lp_total_supply"`

	IsTrueToken             string `json:"is_true_token"`
	IsAirdropScam           string `json:"is_airdrop_scam"`
	HoneypotWithSameCreator string `json:"honeypot_with_same_creator"`
	FakeToken               string `json:"fake_token"`
	Note                    string `json:"note"`

	TrustList      json.RawMessage `json:"trust_list"`
	PotentialRisks json.RawMessage `json:"other_potential_risks"`
	Holders        json.RawMessage `json:"holders"`
	LPHolders      json.RawMessage `json:"lp_holders"`
	Dex            json.RawMessage `json:"dex"`
}

// SecurityClient queries the contract security scanner API.
type SecurityClient struct {
	baseURL    string
	chainID    string
	attempts   int
	retryDelay time.Duration
	client     *http.Client
	logger     *logrus.Logger
	prom       *metrics.PrometheusMetrics
}

// NewSecurityClient creates a security scanner client
func NewSecurityClient(cfg *config.ProvidersConfig, prom *metrics.PrometheusMetrics) *SecurityClient {
	return &SecurityClient{
		baseURL:    strings.TrimSuffix(cfg.SecurityURL, "/"),
		chainID:    cfg.SecurityChainID,
		attempts:   cfg.RetryAttempts,
		retryDelay: cfg.RetryDelay,
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		logger:     utils.GetLogger(),
		prom:       prom,
	}
}

// Scan fetches the security report for a token, retrying transient failures
// with a fixed delay. When every attempt fails it returns an empty report
// together with the last error; a missing token yields an empty report with
// no error.
func (c *SecurityClient) Scan(ctx context.Context, address string) (*models.SecurityData, error) {
	start := time.Now()
	report, err := c.scanWithRetry(ctx, address)
	status := "success"
	if err != nil {
		status = "error"
		report = &models.SecurityData{}
	}
	if c.prom != nil {
		c.prom.RecordProviderRequest("security", status, time.Since(start).Seconds())
	}
	return report, err
}

func (c *SecurityClient) scanWithRetry(ctx context.Context, address string) (*models.SecurityData, error) {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		report, err := c.scan(ctx, address)
		if err == nil {
			return report, nil
		}
		lastErr = err

		c.logger.WithError(err).WithFields(logrus.Fields{
			"address": address,
			"attempt": attempt,
		}).Warn("Security scan attempt failed")

		if attempt < c.attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	return nil, lastErr
}

func (c *SecurityClient) scan(ctx context.Context, address string) (*models.SecurityData, error) {
	reqURL := fmt.Sprintf("%s/%s?contract_addresses=%s", c.baseURL, c.chainID, url.QueryEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Failed to build security request", err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Security request failed", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Security request failed",
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Failed to read security response", err.Error())
	}

	var envelope securityEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Failed to decode security response", err.Error())
	}

	// The result map is keyed by lower-cased address.
	raw, ok := envelope.Result[strings.ToLower(address)]
	if !ok {
		c.logger.WithField("address", address).Debug("Security scanner has no record for token")
		return &models.SecurityData{}, nil
	}

	var entry securityEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Failed to decode security entry", err.Error())
	}

	return coerceSecurityEntry(&entry), nil
}

// coerceSecurityEntry converts the scanner's stringly-typed record into the
// stored representation.
func coerceSecurityEntry(e *securityEntry) *models.SecurityData {
	return &models.SecurityData{
		Found: true,

		IsOpenSource:         flagBool(e.IsOpenSource),
		IsProxy:              flagBool(e.IsProxy),
		IsMintable:           flagBool(e.IsMintable),
		CanTakeBackOwnership: flagBool(e.CanTakeBackOwnership),
		OwnerChangeBalance:   flagBool(e.OwnerChangeBalance),
		HiddenOwner:          flagBool(e.HiddenOwner),
		SelfDestruct:         flagBool(e.SelfDestruct),
		ExternalCall:         flagBool(e.ExternalCall),
		OwnerAddress:         e.OwnerAddress,
		CreatorAddress:       e.CreatorAddress,

		BuyTax:             coerceFloat(e.BuyTax),
		SellTax:            coerceFloat(e.SellTax),
		IsHoneypot:         flagBool(e.IsHoneypot),
		IsInDex:            flagBool(e.IsInDex),
		CannotBuy:          flagBool(e.CannotBuy),
		CannotSellAll:      flagBool(e.CannotSellAll),
		SlippageModifiable: flagBool(e.SlippageModifiable),
		PersonalSlippage:   flagBool(e.PersonalSlippage),
		TransferPausable:   flagBool(e.TransferPausable),
		TradingCooldown:    flagBool(e.TradingCooldown),
		IsBlacklisted:      flagBool(e.IsBlacklisted),
		IsWhitelisted:      flagBool(e.IsWhitelisted),
		IsAntiWhale:        flagBool(e.IsAntiWhale),
		AntiWhaleModifier:  flagBool(e.AntiWhaleModifier),

		TotalSupply:    e.TotalSupply,
		HolderCount:    coerceInt(e.HolderCount),
		OwnerPercent:   coerceFloat(e.OwnerPercent),
		OwnerBalance:   e.OwnerBalance,
		CreatorPercent: coerceFloat(e.CreatorPercent),
		CreatorBalance: e.CreatorBalance,
		LPHolderCount:  coerceInt(e.LPHolderCount),
		LPTotalSupply:  e.LPTotalSupply,

		IsTrueToken:             flagBool(e.IsTrueToken),
		IsAirdropScam:           flagBool(e.IsAirdropScam),
		HoneypotWithSameCreator: flagBool(e.HoneypotWithSameCreator),
		FakeToken:               flagBool(e.FakeToken),
		Note:                    e.Note,

		TrustList:      e.TrustList,
		PotentialRisks: e.PotentialRisks,
		Holders:        e.Holders,
		LPHolders:      e.LPHolders,
		DexInfo:        e.Dex,
	}
}
