package series

import (
	"fmt"

	"github.com/shopspring/decimal"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/fixtures"
)

// ReservesInput groups what the reserves chart is computed from.
type ReservesInput struct {
	Snapshot     *domain.TreasurySnapshot
	Prices       domain.PriceSet
	Balances     *domain.TreasuryBalances
	CurrentBlock int64
	Table        *fixtures.Table
}

// reserveWindowExtra is added to the rebase range: one slot per history event.
const reserveWindowExtra = 6

// Reserves builds the stacked treasury history chart.
//
// Points come from three segments: the running yUSD reserve total for rebases
// at or before the fixture cutover, one point per fixture event, and a final
// point valued from live balances at CurrentBlock plus the fixture offset.
// Rebases after the cutover still contribute to the running total but emit
// no point.
func Reserves(in ReservesInput, theme Theme, rangeN int) (Chart, error) {
	if in.Snapshot == nil {
		return Chart{}, fmt.Errorf("%w: treasury snapshot", ErrMissingInput)
	}
	if !in.Balances.Complete() {
		return Chart{}, fmt.Errorf("%w: treasury balances", ErrMissingInput)
	}
	if in.Table == nil {
		return Chart{}, fmt.Errorf("%w: reserve history table", ErrMissingInput)
	}
	if err := in.Snapshot.Validate(); err != nil {
		return Chart{}, err
	}
	yusdPrice, ok := in.Prices[domain.AssetYUSD]
	if !ok {
		return Chart{}, fmt.Errorf("%w: %s price", ErrMissingInput, domain.AssetYUSD)
	}

	history, err := in.Table.Resolve(fixtures.Inputs{Prices: in.Prices, Balances: in.Balances}, in.CurrentBlock)
	if err != nil {
		return Chart{}, err
	}

	points := make(map[domain.ReserveSeries][]domain.PricePoint, len(domain.AllReserveSeries))

	price := decimal.NewFromFloat(yusdPrice)
	running := decimal.Zero
	for i, added := range in.Snapshot.ReservesAdded {
		running = running.Add(decimal.NewFromFloat(added))
		block := in.Snapshot.BlockNumbers[i]
		if block > in.Table.CutoverBlock {
			continue
		}
		x := float64(block)
		for _, s := range domain.AllReserveSeries {
			y := 0.0
			if s == domain.ReserveYUSD {
				y = running.Mul(price).InexactFloat64()
			}
			points[s] = append(points[s], domain.PricePoint{X: x, Y: y})
		}
	}

	for _, ev := range history {
		x := float64(ev.Block)
		for _, s := range domain.AllReserveSeries {
			points[s] = append(points[s], domain.PricePoint{X: x, Y: ev.Values[s]})
		}
	}

	out := make([]domain.ChartSeries, 0, len(domain.AllReserveSeries))
	for _, s := range domain.AllReserveSeries {
		out = append(out, domain.ChartSeries{
			Name: s.DisplayName(),
			Data: Window(points[s], rangeN+reserveWindowExtra),
		})
	}

	opts := baseOptions(KindArea, theme)
	opts.Stacked = true
	opts.Colors = append([]string(nil), ReserveColors...)
	opts.FillColors = append([]string(nil), ReserveColors...)
	opts.Legend = topLeftLegend(opts.LabelColor)
	opts.YFormatter = FormatUSDApprox
	opts.TooltipTheme = opts.ThemeMode

	return Chart{
		Name:    domain.ChartReserves,
		Title:   Titles[domain.ChartReserves],
		Options: opts,
		Series:  out,
	}, nil
}
