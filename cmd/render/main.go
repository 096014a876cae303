// Package main builds the four treasury charts once and writes them to disk
// as chart JSON plus PNG and/or SVG images.
//
// Inputs come from the chain provider and the price feed, or from a bundle
// file holding a previously captured snapshot:
//
//	render --rpc-endpoint http://localhost:8545 --output-dir out
//	render --bundle testdata/bundle.json --format svg --theme dark
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"treasury-charts/internal/chain"
	"treasury-charts/internal/domain"
	"treasury-charts/internal/fixtures"
	"treasury-charts/internal/pricefeed"
	"treasury-charts/internal/render"
	"treasury-charts/internal/series"
)

// Bundle is a captured set of chart inputs.
type Bundle struct {
	Treasury     *domain.TreasurySnapshot `json:"treasury"`
	Scaling      *domain.ScalingHistory   `json:"scaling"`
	Balances     *domain.TreasuryBalances `json:"balances"`
	CurrentBlock int64                    `json:"currentBlock"`
	Prices       map[string]float64       `json:"prices"`
}

type options struct {
	rpcEndpoint  string
	priceFeedURL string
	priceAPIKey  string
	bundlePath   string
	outputDir    string
	format       string
	theme        string
	rebaseRange  int
	width        int
	height       int
	timeout      time.Duration
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.rpcEndpoint, "rpc-endpoint", os.Getenv("RPC_ENDPOINT"), "Chain JSON-RPC HTTP endpoint")
	flag.StringVar(&opts.priceFeedURL, "price-feed-url", os.Getenv("PRICE_FEED_URL"), "Price feed base URL (default CoinGecko)")
	flag.StringVar(&opts.priceAPIKey, "price-api-key", os.Getenv("PRICE_FEED_API_KEY"), "Price feed API key")
	flag.StringVar(&opts.bundlePath, "bundle", "", "Read inputs from a bundle JSON file instead of the network")
	flag.StringVar(&opts.outputDir, "output-dir", "charts", "Output directory")
	flag.StringVar(&opts.format, "format", "png", "Image format: png, svg or both")
	flag.StringVar(&opts.theme, "theme", "light", "Chart theme: light or dark")
	flag.IntVar(&opts.rebaseRange, "rebase-range", series.DefaultRebaseRange, "Number of rebases shown per chart")
	flag.IntVar(&opts.width, "width", render.DefaultWidth, "Image width in pixels")
	flag.IntVar(&opts.height, "height", 0, "Image height in pixels (0 = chart default)")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Timeout for network fetches")
	flag.Parse()

	logger := log.New(os.Stdout, "[render] ", log.LstdFlags)

	if err := runRender(opts, logger); err != nil {
		logger.Fatalf("Render failed: %v", err)
	}
}

func (o options) validate() error {
	if o.rebaseRange <= 0 {
		return errors.New("--rebase-range must be positive")
	}
	if o.width < 0 || o.height < 0 {
		return errors.New("--width and --height must not be negative")
	}
	return nil
}

func runRender(opts options, logger *log.Logger) error {
	if err := opts.validate(); err != nil {
		return err
	}
	theme, err := series.ParseTheme(opts.theme)
	if err != nil {
		return err
	}
	formats, err := parseFormats(opts.format)
	if err != nil {
		return err
	}
	table, err := fixtures.Load()
	if err != nil {
		return fmt.Errorf("load reserve history: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	var b *Bundle
	if opts.bundlePath != "" {
		b, err = readBundle(opts.bundlePath)
	} else {
		b, err = fetchBundle(ctx, opts, table)
	}
	if err != nil {
		return err
	}

	charts, err := buildCharts(b, table, theme, opts.rebaseRange)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for i := range charts {
		c := &charts[i]
		if err := writeChart(c, opts, theme, formats); err != nil {
			return err
		}
		logger.Printf("Wrote %s (%s)", c.Name, theme)
	}
	return nil
}

func parseFormats(s string) ([]render.Format, error) {
	if s == "both" {
		return []render.Format{render.FormatPNG, render.FormatSVG}, nil
	}
	f, err := render.ParseFormat(s)
	if err != nil {
		return nil, err
	}
	return []render.Format{f}, nil
}

func readBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}

func fetchBundle(ctx context.Context, opts options, table *fixtures.Table) (*Bundle, error) {
	if opts.rpcEndpoint == "" {
		return nil, errors.New("--rpc-endpoint or --bundle is required")
	}
	client := chain.NewHTTPClient(opts.rpcEndpoint)

	b := &Bundle{}
	var err error
	if b.Treasury, err = client.TreasuryEvents(ctx); err != nil {
		return nil, fmt.Errorf("fetch treasury events: %w", err)
	}
	if b.Scaling, err = client.ScalingFactors(ctx); err != nil {
		return nil, fmt.Errorf("fetch scaling factors: %w", err)
	}
	if b.Balances, err = client.TreasuryBalances(ctx); err != nil {
		return nil, fmt.Errorf("fetch treasury balances: %w", err)
	}
	if b.CurrentBlock, err = client.CurrentBlock(ctx); err != nil {
		return nil, fmt.Errorf("fetch current block: %w", err)
	}

	var feedOpts []pricefeed.ClientOption
	if opts.priceAPIKey != "" {
		feedOpts = append(feedOpts, pricefeed.WithAPIKey(opts.priceAPIKey))
	}
	prices, err := pricefeed.NewClient(opts.priceFeedURL, feedOpts...).Prices(ctx, table.PriceAssets()...)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	b.Prices = make(map[string]float64, len(prices))
	for a, v := range prices {
		b.Prices[string(a)] = v
	}
	return b, nil
}

func buildCharts(b *Bundle, table *fixtures.Table, theme series.Theme, rangeN int) ([]series.Chart, error) {
	if err := b.Treasury.Validate(); err != nil {
		return nil, err
	}

	prices := make(domain.PriceSet, len(b.Prices))
	for k, v := range b.Prices {
		a, err := domain.ParseAsset(k)
		if err != nil {
			return nil, fmt.Errorf("bundle prices: %w", err)
		}
		prices[a] = v
	}

	scaling, err := series.ScalingFactor(b.Scaling, theme, rangeN)
	if err != nil {
		return nil, fmt.Errorf("scaling chart: %w", err)
	}
	reserves, err := series.Reserves(series.ReservesInput{
		Snapshot:     b.Treasury,
		Prices:       prices,
		Balances:     b.Balances,
		CurrentBlock: b.CurrentBlock,
		Table:        table,
	}, theme, rangeN)
	if err != nil {
		return nil, fmt.Errorf("reserves chart: %w", err)
	}
	sold, err := series.Sold(b.Treasury, theme, rangeN)
	if err != nil {
		return nil, fmt.Errorf("sold chart: %w", err)
	}
	minted, err := series.Minted(b.Treasury, theme, rangeN)
	if err != nil {
		return nil, fmt.Errorf("minted chart: %w", err)
	}
	return []series.Chart{scaling, reserves, sold, minted}, nil
}

func writeChart(c *series.Chart, opts options, theme series.Theme, formats []render.Format) error {
	base := filepath.Join(opts.outputDir, fmt.Sprintf("%s.%s", c.Name, theme))

	payload, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.Name, err)
	}
	if err := os.WriteFile(base+".json", payload, 0o644); err != nil {
		return fmt.Errorf("write %s json: %w", c.Name, err)
	}

	for _, f := range formats {
		out, err := os.Create(base + "." + string(f))
		if err != nil {
			return fmt.Errorf("create %s image: %w", c.Name, err)
		}
		err = render.Render(out, c, f, opts.width, opts.height)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("render %s: %w", c.Name, err)
		}
	}
	return nil
}
