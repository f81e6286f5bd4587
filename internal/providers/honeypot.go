package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zero-given/token-monitor/internal/config"
	"github.com/zero-given/token-monitor/internal/metrics"
	"github.com/zero-given/token-monitor/internal/models"
	"github.com/zero-given/token-monitor/pkg/utils"
)

// HoneypotReport is the normalized result of a honeypot simulation.
// VerdictKnown is false when the provider returned no verdict at all; in that
// case IsHoneypot defaults to true so an unverifiable token is never treated
// as safe.
type HoneypotReport struct {
	Address      string
	VerdictKnown bool
	IsHoneypot   bool
	Reason       string

	TokenName     string
	TokenSymbol   string
	TokenDecimals int
	TotalSupply   string
	HolderCount   int

	Data models.HoneypotData
}

// FailClosedReport builds the report used when the simulation cannot be
// reached or understood.
func FailClosedReport(address, reason string) *HoneypotReport {
	return &HoneypotReport{
		Address:      address,
		VerdictKnown: false,
		IsHoneypot:   true,
		Reason:       reason,
	}
}

// honeypotResponse mirrors the subset of the provider payload the monitor
// consumes.
type honeypotResponse struct {
	Token struct {
		Name         string      `json:"name"`
		Symbol       string      `json:"symbol"`
		Decimals     int         `json:"decimals"`
		TotalSupply  json.Number `json:"totalSupply"`
		TotalHolders int         `json:"totalHolders"`
		Owner        string      `json:"owner"`
		Creator      string      `json:"creator"`
		Deployer     string      `json:"deployer"`
	} `json:"token"`
	SimulationSuccess bool `json:"simulationSuccess"`
	SimulationResult  struct {
		BuyTax      float64     `json:"buyTax"`
		SellTax     float64     `json:"sellTax"`
		TransferTax float64     `json:"transferTax"`
		BuyGas      json.Number `json:"buyGas"`
		SellGas     json.Number `json:"sellGas"`
	} `json:"simulationResult"`
	HoneypotResult *struct {
		IsHoneypot     bool   `json:"isHoneypot"`
		HoneypotReason string `json:"honeypotReason"`
	} `json:"honeypotResult"`
	ContractCode struct {
		OpenSource    bool `json:"openSource"`
		IsProxy       bool `json:"isProxy"`
		IsMintable    bool `json:"isMintable"`
		CanBeMinted   bool `json:"canBeMinted"`
		HasProxyCalls bool `json:"hasProxyCalls"`
	} `json:"contractCode"`
	Pair struct {
		Pair struct {
			Token0Symbol string `json:"token0Symbol"`
			Token1Symbol string `json:"token1Symbol"`
		} `json:"pair"`
		Liquidity          float64     `json:"liquidity"`
		Reserves0          json.Number `json:"reserves0"`
		Reserves1          json.Number `json:"reserves1"`
		LiquidityToken0    float64     `json:"liquidityToken0"`
		LiquidityToken1    float64     `json:"liquidityToken1"`
		CreatedAtTimestamp string      `json:"createdAtTimestamp"`
	} `json:"pair"`
	Flags json.RawMessage `json:"flags"`
}

// HoneypotClient queries the honeypot simulation API.
type HoneypotClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
	prom    *metrics.PrometheusMetrics
}

// NewHoneypotClient creates a honeypot provider client
func NewHoneypotClient(cfg *config.ProvidersConfig, prom *metrics.PrometheusMetrics) *HoneypotClient {
	return &HoneypotClient{
		baseURL: cfg.HoneypotURL,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:  utils.GetLogger(),
		prom:    prom,
	}
}

// Check runs a honeypot simulation for the token. On any transport or decode
// failure it returns a fail-closed report together with the error; callers
// can persist the report and treat the error as advisory.
func (c *HoneypotClient) Check(ctx context.Context, address string) (*HoneypotReport, error) {
	start := time.Now()
	report, err := c.check(ctx, address)
	status := "success"
	if err != nil {
		status = "error"
		report = FailClosedReport(address, "honeypot check failed: "+err.Error())
	}
	if c.prom != nil {
		c.prom.RecordProviderRequest("honeypot", status, time.Since(start).Seconds())
	}
	return report, err
}

func (c *HoneypotClient) check(ctx context.Context, address string) (*HoneypotReport, error) {
	reqURL := fmt.Sprintf("%s?address=%s", c.baseURL, url.QueryEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Failed to build honeypot request", err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Honeypot request failed", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Honeypot request failed",
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Failed to read honeypot response", err.Error())
	}

	var payload honeypotResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeProvider, "Failed to decode honeypot response", err.Error())
	}

	report := &HoneypotReport{
		Address:       address,
		TokenName:     payload.Token.Name,
		TokenSymbol:   payload.Token.Symbol,
		TokenDecimals: payload.Token.Decimals,
		TotalSupply:   payload.Token.TotalSupply.String(),
		HolderCount:   payload.Token.TotalHolders,
		Data: models.HoneypotData{
			SimulationSuccess: payload.SimulationSuccess,
			BuyTax:            payload.SimulationResult.BuyTax,
			SellTax:           payload.SimulationResult.SellTax,
			TransferTax:       payload.SimulationResult.TransferTax,
			IsOpenSource:      payload.ContractCode.OpenSource,
			IsProxy:           payload.ContractCode.IsProxy,
			IsMintable:        payload.ContractCode.IsMintable,
			CanBeMinted:       payload.ContractCode.CanBeMinted,
			HasProxyCalls:     payload.ContractCode.HasProxyCalls,
			OwnerAddress:      payload.Token.Owner,
			CreatorAddress:    payload.Token.Creator,
			DeployerAddress:   payload.Token.Deployer,
			PairLiquidity:     payload.Pair.Liquidity,
			Reserves0:         payload.Pair.Reserves0.String(),
			Reserves1:         payload.Pair.Reserves1.String(),
			LiquidityToken0:   payload.Pair.LiquidityToken0,
			LiquidityToken1:   payload.Pair.LiquidityToken1,
			Token0Symbol:      payload.Pair.Pair.Token0Symbol,
			Token1Symbol:      payload.Pair.Pair.Token1Symbol,
			CreationTime:      payload.Pair.CreatedAtTimestamp,
			Flags:             payload.Flags,
			Raw:               json.RawMessage(body),
		},
	}

	if gas, err := payload.SimulationResult.BuyGas.Int64(); err == nil {
		report.Data.BuyGas = gas
	}
	if gas, err := payload.SimulationResult.SellGas.Int64(); err == nil {
		report.Data.SellGas = gas
	}

	// Missing verdict means the simulation gave up; default to honeypot
	// rather than letting the token pass as safe.
	if payload.HoneypotResult == nil {
		report.VerdictKnown = false
		report.IsHoneypot = true
		report.Reason = "no honeypot verdict in response"
		c.logger.WithField("address", address).Warn("Honeypot response missing verdict, failing closed")
	} else {
		report.VerdictKnown = true
		report.IsHoneypot = payload.HoneypotResult.IsHoneypot
		report.Reason = payload.HoneypotResult.HoneypotReason
	}

	return report, nil
}
