// Package fetch implements the external OHLCV ingestion feed client.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/rsowell/replay/shared"
	"github.com/tidwall/gjson"
)

const (
	// BaseURL is the GeckoTerminal API base url.
	BaseURL = "https://api.geckoterminal.com/api/v2"
	// maxFeedLimit is the feed's maximum candles per request.
	maxFeedLimit = 1000
)

// GeckoConfig represents the configuration for the gecko client.
type GeckoConfig struct {
	// BaseURL is the API base url.
	BaseURL string
	// Network is the network the tracked pool trades on.
	Network string
	// Pool is the tracked pool address.
	Pool string
	// Market is the market label stamped on parsed candles.
	Market string
}

// Validate asserts the config has sane inputs.
func (cfg *GeckoConfig) Validate() error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("%w: base url cannot be an empty string", shared.ErrConfig)
	}
	if cfg.Network == "" {
		return fmt.Errorf("%w: network cannot be an empty string", shared.ErrConfig)
	}
	if cfg.Pool == "" {
		return fmt.Errorf("%w: pool cannot be an empty string", shared.ErrConfig)
	}

	return nil
}

// GeckoClient represents the GeckoTerminal OHLCV API client. Transient
// failure retries are the candle store's responsibility, not the client's.
type GeckoClient struct {
	cfg   *GeckoConfig
	httpc http.Client
	buf   *bytes.Buffer
}

// Ensure the gecko client implements the CandleFetcher interface.
var _ shared.CandleFetcher = (*GeckoClient)(nil)

// NewGeckoClient initializes a new gecko client.
func NewGeckoClient(cfg *GeckoConfig) (*GeckoClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &GeckoClient{
		cfg:   cfg,
		httpc: http.Client{Timeout: time.Second * 5},
		buf:   bytes.NewBuffer(make([]byte, 0, 512)),
	}, nil
}

// ohlcvPath maps a timeframe to the feed's path and aggregate parameter.
func ohlcvPath(timeframe shared.Timeframe) (string, string, error) {
	switch timeframe {
	case shared.OneMinute:
		return "minute", "1", nil
	case shared.FiveMinute:
		return "minute", "5", nil
	case shared.FifteenMinute:
		return "minute", "15", nil
	case shared.OneHour:
		return "hour", "1", nil
	case shared.FourHour:
		return "hour", "4", nil
	case shared.OneDay:
		return "day", "1", nil
	default:
		return "", "", fmt.Errorf("%w: unknown timeframe provided: %s",
			shared.ErrConfig, timeframe.String())
	}
}

// formURL creates full urls including parameters for the api.
func (c *GeckoClient) formURL(path string, params string) string {
	c.buf.WriteString(c.cfg.BaseURL)
	c.buf.WriteString(path)
	c.buf.WriteString("?")
	c.buf.WriteString(params)
	url := c.buf.String()
	c.buf.Reset()

	return url
}

// ParseCandlesticks parses candlesticks from the provided ohlcv entries,
// returning them ordered oldest to newest.
func (c *GeckoClient) ParseCandlesticks(data []gjson.Result, timeframe shared.Timeframe) ([]shared.Candlestick, error) {
	candles := make([]shared.Candlestick, 0, len(data))

	for idx := range data {
		entry := data[idx].Array()
		if len(entry) < 6 {
			return nil, fmt.Errorf("malformed ohlcv entry at index %d: %d fields", idx, len(entry))
		}

		candle := shared.Candlestick{
			Date:      time.Unix(entry[0].Int(), 0).UTC(),
			Open:      entry[1].Float(),
			High:      entry[2].Float(),
			Low:       entry[3].Float(),
			Close:     entry[4].Float(),
			Volume:    entry[5].Float(),
			Market:    c.cfg.Market,
			Timeframe: timeframe,
		}

		err := candle.Validate()
		if err != nil {
			return nil, fmt.Errorf("parsing candlestick: %w", err)
		}

		candles = append(candles, candle)
	}

	slices.SortFunc(candles, func(a, b shared.Candlestick) int {
		return a.Date.Compare(b.Date)
	})

	return candles, nil
}

// FetchCandles fetches up to limit candles strictly before the provided
// timestamp, ordered oldest to newest.
func (c *GeckoClient) FetchCandles(ctx context.Context, timeframe shared.Timeframe, before time.Time, limit int) ([]shared.Candlestick, error) {
	if limit <= 0 || limit > maxFeedLimit {
		return nil, fmt.Errorf("%w: feed limit must be in (0, %d], got %d",
			shared.ErrConfig, maxFeedLimit, limit)
	}

	period, aggregate, err := ohlcvPath(timeframe)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("aggregate", aggregate)
	params.Add("limit", strconv.Itoa(limit))
	if !before.IsZero() {
		params.Add("before_timestamp", strconv.FormatInt(before.Unix(), 10))
	}

	path := fmt.Sprintf("/networks/%s/pools/%s/ohlcv/%s", c.cfg.Network, c.cfg.Pool, period)
	formedURL := c.formURL(path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, formedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating ohlcv request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching ohlcv data (%s) for %s: %w",
			timeframe.String(), c.cfg.Pool, err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected feed status %d: %s", resp.StatusCode, string(body))
	}

	data := gjson.GetBytes(body, "data.attributes.ohlcv_list").Array()

	return c.ParseCandlesticks(data, timeframe)
}
