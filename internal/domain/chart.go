package domain

// PricePoint is one x/y sample of a chart series.
// X is a block number for every chart in the dashboard.
type PricePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChartSeries is a named x/y series.
type ChartSeries struct {
	Name string       `json:"name"`
	Data []PricePoint `json:"data"`
}

// BarSeries is a named series of categorical values.
type BarSeries struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// ChartName identifies one of the dashboard charts.
type ChartName string

// Dashboard charts.
const (
	ChartScaling  ChartName = "scaling"
	ChartReserves ChartName = "reserves"
	ChartSold     ChartName = "sold"
	ChartMinted   ChartName = "minted"
)

// AllCharts lists the charts in display order.
var AllCharts = []ChartName{ChartScaling, ChartReserves, ChartSold, ChartMinted}

// Valid reports whether n names a known chart.
func (n ChartName) Valid() bool {
	for _, c := range AllCharts {
		if c == n {
			return true
		}
	}
	return false
}
