package data

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"coin-tracker/internal/model"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultCoinCalcURL is the profitability endpoint queried when no base URL is configured.
const DefaultCoinCalcURL = "https://www.coincalculators.io/api"

// Fixed request parameters. This tracker only follows Ethereum.
const (
	CoinName       = "ethereum"
	DifficultyTime = 24
	PoolFeePercent = "1"
)

// Doer executes a single HTTP request, absorbing retries.
type Doer interface {
	Execute(req *http.Request) (*http.Response, error)
}

// CoinCalcClient fetches profitability metrics from the coincalculators API.
type CoinCalcClient struct {
	BaseURL string
	HTTP    Doer
	Cache   *ResponseCache
	log     *zap.Logger
}

// NewCoinCalcClient creates a new client.
// If baseURL is empty, defaults to DefaultCoinCalcURL.
func NewCoinCalcClient(baseURL string, doer Doer, logger *zap.Logger) *CoinCalcClient {
	if baseURL == "" {
		baseURL = DefaultCoinCalcURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoinCalcClient{
		BaseURL: baseURL,
		HTTP:    doer,
		log:     logger.Named("coincalc"),
	}
}

// Fetch queries the API for the rig described by params.
// Missing response keys are left nil; a body that is not JSON is a *model.DataError.
// Non-2xx responses surface as the retry client's *retry.FatalError.
func (c *CoinCalcClient) Fetch(ctx context.Context, params model.RunParameters) (*model.CoinMetrics, error) {
	if cached, found := c.Cache.Get(params); found {
		c.log.Debug("cache hit", zap.Int64("hashrate", params.Hashrate))
		return cached, nil
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("hashrate", strconv.FormatInt(params.Hashrate, 10))
	q.Set("power", strconv.FormatFloat(params.PowerWatts, 'f', -1, 64))
	q.Set("powercost", strconv.FormatFloat(params.PowerCostPerKwh, 'f', -1, 64))
	q.Set("difficultytime", strconv.Itoa(DifficultyTime))
	q.Set("poolfee", PoolFeePercent)
	q.Set("name", CoinName)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Info("fetch start",
		zap.String("coin", CoinName),
		zap.Int64("hashrate", params.Hashrate),
		zap.Float64("power", params.PowerWatts),
		zap.Float64("powercost", params.PowerCostPerKwh))

	start := time.Now()
	resp, err := c.HTTP.Execute(req)
	if err != nil {
		c.log.Error("fetch failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	metrics, err := ParseMetrics(body)
	if err != nil {
		return nil, err
	}

	c.log.Info("fetch end",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	c.Cache.Set(params, metrics)
	return metrics, nil
}

// ParseMetrics reads the four tracked fields from an API response body.
func ParseMetrics(body []byte) (*model.CoinMetrics, error) {
	if !gjson.ValidBytes(body) {
		return nil, &model.DataError{Message: "response is not valid JSON"}
	}
	res := gjson.GetManyBytes(body, "lastUpdate", "rewardsInDay", "revenueInDayUSD", "profitInDayUSD")

	m := &model.CoinMetrics{}
	if res[0].Exists() && res[0].Type != gjson.Null {
		v := res[0].Int()
		m.LastUpdateEpochMs = &v
	}
	m.RewardsInDay = optFloat(res[1])
	m.RevenueInDayUSD = optFloat(res[2])
	m.ProfitInDayUSD = optFloat(res[3])
	return m, nil
}

func optFloat(r gjson.Result) *float64 {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	v := r.Float()
	return &v
}
