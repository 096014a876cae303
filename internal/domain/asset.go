package domain

import "fmt"

// Asset identifies a priced treasury asset.
type Asset string

// Priced assets.
const (
	AssetYUSD  Asset = "YUSD"
	AssetWETH  Asset = "WETH"
	AssetDPI   Asset = "DPI"
	AssetINDEX Asset = "INDEX"
	AssetSUSHI Asset = "SUSHI"
)

// AllAssets lists every asset the reserves chart prices.
var AllAssets = []Asset{AssetYUSD, AssetWETH, AssetDPI, AssetINDEX, AssetSUSHI}

// ParseAsset converts a string to an Asset.
func ParseAsset(s string) (Asset, error) {
	for _, a := range AllAssets {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown asset %q", s)
}

// PriceSet maps assets to USD spot prices.
type PriceSet map[Asset]float64

// Missing returns the assets from want that have no price.
func (p PriceSet) Missing(want ...Asset) []Asset {
	var missing []Asset
	for _, a := range want {
		if _, ok := p[a]; !ok {
			missing = append(missing, a)
		}
	}
	return missing
}

// PriceObservation is a spot price observed from the price feed.
type PriceObservation struct {
	Asset      Asset   `json:"asset"`
	Price      float64 `json:"price"`
	ObservedAt int64   `json:"observed_at"` // Unix timestamp in milliseconds
}
