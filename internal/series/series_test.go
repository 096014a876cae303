package series

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury-charts/internal/domain"
	"treasury-charts/internal/fixtures"
)

func exampleSnapshot() *domain.TreasurySnapshot {
	return &domain.TreasurySnapshot{
		ReservesAdded:    []float64{10, 5},
		YamsSold:         []float64{100, 80},
		YamsFromReserves: []float64{20, 10},
		YamsToReserves:   []float64{5, 5},
		BlockNumbers:     []int64{1, 2},
		BlockTimes:       []int64{1000, 2000},
	}
}

func syntheticSnapshot(n int, firstBlock int64) *domain.TreasurySnapshot {
	s := &domain.TreasurySnapshot{}
	for i := 0; i < n; i++ {
		s.ReservesAdded = append(s.ReservesAdded, float64(i%3))
		s.YamsSold = append(s.YamsSold, float64(100+i))
		s.YamsFromReserves = append(s.YamsFromReserves, float64(i))
		s.YamsToReserves = append(s.YamsToReserves, 1)
		s.BlockNumbers = append(s.BlockNumbers, firstBlock+int64(i)*1000)
		s.BlockTimes = append(s.BlockTimes, int64(1_600_000_000+i*43200))
	}
	return s
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name string
		in   []int
		n    int
		want []int
	}{
		{"shorter than window", []int{1, 2, 3}, 5, []int{1, 2, 3}},
		{"exact", []int{1, 2, 3}, 3, []int{1, 2, 3}},
		{"longer than window", []int{1, 2, 3, 4, 5}, 2, []int{4, 5}},
		{"empty input", nil, 3, []int{}},
		{"zero window", []int{1, 2}, 0, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Window(tt.in, tt.n))
		})
	}
}

func TestWindow_DoesNotAlias(t *testing.T) {
	in := []int{1, 2, 3}
	out := Window(in, 2)
	out[0] = 99
	assert.Equal(t, []int{1, 2, 3}, in)
}

func TestMinted_Example(t *testing.T) {
	chart, err := Minted(exampleSnapshot(), ThemeLight, DefaultRebaseRange)
	require.NoError(t, err)

	require.Len(t, chart.Bars, 1)
	assert.Equal(t, "Yam Minted", chart.Bars[0].Name)
	assert.Equal(t, []float64{85, 75}, chart.Bars[0].Data)
	assert.Equal(t, []int64{1, 2}, chart.Options.Categories)
	assert.Equal(t, KindBar, chart.Options.Type)
	assert.True(t, chart.Options.Stacked)
	assert.Equal(t, FormatCount, chart.Options.YFormatter)
}

func TestMinted_PointCountIsMinOfLengthAndWindow(t *testing.T) {
	for _, n := range []int{0, 1, 13, 14, 15, 40} {
		snap := syntheticSnapshot(n, 10_000_000)
		assert.Len(t, MintedValues(snap), n)

		chart, err := Minted(snap, ThemeDark, DefaultRebaseRange)
		require.NoError(t, err)
		want := n
		if want > DefaultRebaseRange {
			want = DefaultRebaseRange
		}
		assert.Len(t, chart.Bars[0].Data, want, "n=%d", n)
		assert.Len(t, chart.Options.Categories, want, "n=%d", n)
	}
}

func TestSold(t *testing.T) {
	snap := syntheticSnapshot(20, 10_000_000)
	chart, err := Sold(snap, ThemeDark, DefaultRebaseRange)
	require.NoError(t, err)

	assert.Equal(t, "Yams Sold", chart.Bars[0].Name)
	assert.Equal(t, snap.YamsSold[6:], chart.Bars[0].Data)
	assert.Equal(t, snap.BlockNumbers[6:], chart.Options.Categories)
	assert.Equal(t, BarColors, chart.Options.Colors)
	assert.Equal(t, Titles[domain.ChartSold], chart.Title)
}

func TestRebaseBuilders_Guards(t *testing.T) {
	_, err := Sold(nil, ThemeLight, DefaultRebaseRange)
	assert.True(t, errors.Is(err, ErrMissingInput))

	bad := exampleSnapshot()
	bad.YamsToReserves = bad.YamsToReserves[:1]
	_, err = Minted(bad, ThemeLight, DefaultRebaseRange)
	assert.True(t, errors.Is(err, domain.ErrMisalignedSnapshot))
}

func TestScalingFactor_WindowShorterThanRange(t *testing.T) {
	h := &domain.ScalingHistory{}
	for i := 0; i < 10; i++ {
		h.Factors = append(h.Factors, 1+float64(i)/100)
		h.BlockNumbers = append(h.BlockNumbers, int64(100+i))
	}

	chart, err := ScalingFactor(h, ThemeLight, DefaultRebaseRange)
	require.NoError(t, err)

	require.Len(t, chart.Series, 1)
	assert.Equal(t, "Scaling Factor", chart.Series[0].Name)
	assert.Len(t, chart.Series[0].Data, 10)
	assert.Equal(t, domain.PricePoint{X: 100, Y: 1}, chart.Series[0].Data[0])
	assert.Equal(t, KindLine, chart.Options.Type)
	assert.Equal(t, CurveStepline, chart.Options.Curve)
	require.NotNil(t, chart.Options.YMin)
	assert.Zero(t, *chart.Options.YMin)
}

func TestScalingFactor_WindowedToTwiceRange(t *testing.T) {
	h := &domain.ScalingHistory{}
	for i := 0; i < 40; i++ {
		h.Factors = append(h.Factors, 1)
		h.BlockNumbers = append(h.BlockNumbers, int64(i))
	}

	chart, err := ScalingFactor(h, ThemeLight, DefaultRebaseRange)
	require.NoError(t, err)
	assert.Len(t, chart.Series[0].Data, 28)
	assert.Equal(t, float64(12), chart.Series[0].Data[0].X)
}

func reservesInput(t *testing.T, snap *domain.TreasurySnapshot) ReservesInput {
	t.Helper()
	table, err := fixtures.Load()
	require.NoError(t, err)
	return ReservesInput{
		Snapshot: snap,
		Prices: domain.PriceSet{
			domain.AssetYUSD: 1.2, domain.AssetWETH: 500, domain.AssetDPI: 100,
			domain.AssetINDEX: 10, domain.AssetSUSHI: 2,
		},
		Balances:     &domain.TreasuryBalances{YUSD: 1000, WETH: 10, DPI: 20, IndexLPRewards: 5, SushiRewards: 50},
		CurrentBlock: 11_400_000,
		Table:        table,
	}
}

func TestReserves_Segments(t *testing.T) {
	snap := &domain.TreasurySnapshot{
		ReservesAdded:    []float64{10, 5, 7},
		YamsSold:         []float64{0, 0, 0},
		YamsFromReserves: []float64{0, 0, 0},
		YamsToReserves:   []float64{0, 0, 0},
		BlockNumbers:     []int64{11_000_000, 11_133_885, 11_200_000},
		BlockTimes:       []int64{1, 2, 3},
	}
	chart, err := Reserves(reservesInput(t, snap), ThemeDark, DefaultRebaseRange)
	require.NoError(t, err)

	require.Len(t, chart.Series, 6)
	names := make([]string, 0, 6)
	for _, s := range chart.Series {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"yUSD Reserves", "DPI Reserves", "ETH Reserves", "Sushi Gains", "INDEX Coop LP", "INDEX Coop Gains"}, names)

	// 2 pre-cutover rebases + 6 history events + present.
	yusd := chart.Series[0].Data
	require.Len(t, yusd, 9)
	assert.InDelta(t, 12.0, yusd[0].Y, 1e-9)
	assert.InDelta(t, 18.0, yusd[1].Y, 1e-9)
	assert.Equal(t, float64(11_133_885), yusd[2].X)
	assert.Equal(t, float64(11_405_000), yusd[8].X)
	assert.InDelta(t, 1200.0, yusd[8].Y, 1e-9)

	for _, s := range chart.Series[1:] {
		assert.Zero(t, s.Data[0].Y, s.Name)
		assert.Zero(t, s.Data[1].Y, s.Name)
	}

	assert.Equal(t, KindArea, chart.Options.Type)
	assert.True(t, chart.Options.Stacked)
	assert.Equal(t, ReserveColors, chart.Options.FillColors)
	assert.Equal(t, ThemeDark, chart.Options.TooltipTheme)
	assert.Equal(t, Grey900, chart.Options.GridBorderColor)
}

func TestReserves_RunningSumMonotonicBeforeCutover(t *testing.T) {
	snap := syntheticSnapshot(12, 11_000_000)
	in := reservesInput(t, snap)

	chart, err := Reserves(in, ThemeLight, 100)
	require.NoError(t, err)

	var pre []domain.PricePoint
	for _, p := range chart.Series[0].Data {
		if int64(p.X) <= in.Table.CutoverBlock && len(pre) < snap.Len() {
			pre = append(pre, p)
		}
	}
	require.NotEmpty(t, pre)
	for i := 1; i < len(pre); i++ {
		assert.GreaterOrEqual(t, pre[i].Y, pre[i-1].Y)
	}
}

func TestReserves_WindowedToRangePlusSix(t *testing.T) {
	snap := syntheticSnapshot(30, 10_000_000)
	chart, err := Reserves(reservesInput(t, snap), ThemeLight, DefaultRebaseRange)
	require.NoError(t, err)
	for _, s := range chart.Series {
		assert.Len(t, s.Data, DefaultRebaseRange+6, s.Name)
	}
}

func TestReserves_Guards(t *testing.T) {
	in := reservesInput(t, exampleSnapshot())
	in.Balances = &domain.TreasuryBalances{YUSD: 1}
	_, err := Reserves(in, ThemeLight, DefaultRebaseRange)
	assert.True(t, errors.Is(err, ErrMissingInput))

	in = reservesInput(t, nil)
	_, err = Reserves(in, ThemeLight, DefaultRebaseRange)
	assert.True(t, errors.Is(err, ErrMissingInput))

	in = reservesInput(t, exampleSnapshot())
	delete(in.Prices, domain.AssetYUSD)
	_, err = Reserves(in, ThemeLight, DefaultRebaseRange)
	assert.True(t, errors.Is(err, ErrMissingInput))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		f    Formatter
		v    float64
		want string
	}{
		{FormatMultiplier, 1.05, "x1.05"},
		{FormatMultiplier, 0, "x0.00"},
		{FormatUSDApprox, 2641564.95, "~$2.64m"},
		{FormatUSDApprox, 950, "~$950.00"},
		{FormatUSDApprox, 1_500_000_000, "~$1.50b"},
		{FormatCount, 85000, "85k"},
		{FormatCount, 75, "75"},
		{FormatCount, -2600, "-3k"},
		{FormatCount, 2_000_000_000_000, "2t"},
		{FormatUSDApprox, 999_999, "~$1.00m"},
		{FormatUSDApprox, 999_999_999, "~$1.00b"},
		{FormatUSDApprox, 999.999, "~$1.00k"},
		{FormatCount, 999_600, "1m"},
		{FormatCount, -999_999, "-1m"},
		{FormatUSDApprox, 999_994, "~$999.99k"},
		{FormatCount, 5_000_000_000_000_000, "5000t"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.f.Format(tt.v), "%s(%v)", tt.f, tt.v)
	}
}

func TestParseTheme(t *testing.T) {
	th, err := ParseTheme("")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, th)

	th, err = ParseTheme("dark")
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, PaletteFor(th).Mode)

	_, err = ParseTheme("sepia")
	assert.Error(t, err)
}
