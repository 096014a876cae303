package series

import (
	"fmt"

	"treasury-charts/internal/domain"
)

// Sold builds the tokens sold per rebase chart.
func Sold(snap *domain.TreasurySnapshot, theme Theme, rangeN int) (Chart, error) {
	if snap == nil {
		return Chart{}, fmt.Errorf("%w: treasury snapshot", ErrMissingInput)
	}
	if err := snap.Validate(); err != nil {
		return Chart{}, err
	}
	return barChart(domain.ChartSold, "Yams Sold", snap.YamsSold, snap.BlockNumbers, theme, rangeN), nil
}

// Minted builds the tokens minted per rebase chart.
// Minted at rebase i is sold[i] - fromReserves[i] + toReserves[i].
func Minted(snap *domain.TreasurySnapshot, theme Theme, rangeN int) (Chart, error) {
	if snap == nil {
		return Chart{}, fmt.Errorf("%w: treasury snapshot", ErrMissingInput)
	}
	if err := snap.Validate(); err != nil {
		return Chart{}, err
	}
	return barChart(domain.ChartMinted, "Yam Minted", MintedValues(snap), snap.BlockNumbers, theme, rangeN), nil
}

// MintedValues returns the unwindowed minted amount of every rebase.
func MintedValues(snap *domain.TreasurySnapshot) []float64 {
	out := make([]float64, len(snap.YamsSold))
	for i, sold := range snap.YamsSold {
		out[i] = sold - snap.YamsFromReserves[i] + snap.YamsToReserves[i]
	}
	return out
}

func barChart(name domain.ChartName, seriesName string, values []float64, blocks []int64, theme Theme, rangeN int) Chart {
	opts := baseOptions(KindBar, theme)
	opts.Stacked = true
	opts.Colors = append([]string(nil), BarColors...)
	opts.Legend = topLeftLegend()
	opts.Categories = Window(blocks, rangeN)
	opts.YFormatter = FormatCount
	opts.TooltipTheme = opts.ThemeMode

	return Chart{
		Name:    name,
		Title:   Titles[name],
		Options: opts,
		Bars: []domain.BarSeries{
			{Name: seriesName, Data: Window(values, rangeN)},
		},
	}
}
