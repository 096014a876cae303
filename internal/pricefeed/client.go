// Package pricefeed fetches USD spot prices for treasury assets.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/observability"
)

// ErrPriceUnavailable is returned when the feed has no price for an asset.
var ErrPriceUnavailable = errors.New("price unavailable")

// DefaultBaseURL is the public CoinGecko API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// DefaultTimeout bounds a single price request.
const DefaultTimeout = 15 * time.Second

// DefaultFeedIDs maps assets to CoinGecko coin ids.
var DefaultFeedIDs = map[domain.Asset]string{
	domain.AssetYUSD:  "yearn-usd",
	domain.AssetWETH:  "weth",
	domain.AssetDPI:   "defipulse-index",
	domain.AssetINDEX: "index-cooperative",
	domain.AssetSUSHI: "sushi",
}

// Source provides spot prices.
type Source interface {
	Prices(ctx context.Context, assets ...domain.Asset) (domain.PriceSet, error)
}

// Client queries a CoinGecko compatible simple price endpoint.
type Client struct {
	baseURL string
	client  *http.Client
	feedIDs map[domain.Asset]string
	apiKey  string
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithFeedIDs overrides the asset to coin id mapping.
func WithFeedIDs(ids map[domain.Asset]string) ClientOption {
	return func(c *Client) {
		c.feedIDs = ids
	}
}

// WithAPIKey sets the demo API key header.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// NewClient creates a new price feed client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		feedIDs: DefaultFeedIDs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Source = (*Client)(nil)

// Price returns the USD price of a single asset.
func (c *Client) Price(ctx context.Context, asset domain.Asset) (float64, error) {
	prices, err := c.Prices(ctx, asset)
	if err != nil {
		return 0, err
	}
	return prices[asset], nil
}

// Prices returns USD prices for assets in one request.
// Assets the feed does not quote make the whole call fail with ErrPriceUnavailable.
func (c *Client) Prices(ctx context.Context, assets ...domain.Asset) (domain.PriceSet, error) {
	if len(assets) == 0 {
		return domain.PriceSet{}, nil
	}

	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		id, ok := c.feedIDs[a]
		if !ok {
			return nil, fmt.Errorf("%w: no feed id for %s", ErrPriceUnavailable, a)
		}
		ids = append(ids, id)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		recordErrors(assets)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		recordErrors(assets)
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		recordErrors(assets)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var quotes map[string]map[string]float64
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("unmarshal prices: %w", err)
	}

	prices := make(domain.PriceSet, len(assets))
	for i, a := range assets {
		usd, ok := quotes[ids[i]]["usd"]
		if !ok {
			observability.RecordPriceFeedError(string(a))
			return nil, fmt.Errorf("%w: %s", ErrPriceUnavailable, a)
		}
		prices[a] = usd
	}
	return prices, nil
}

func recordErrors(assets []domain.Asset) {
	for _, a := range assets {
		observability.RecordPriceFeedError(string(a))
	}
}
