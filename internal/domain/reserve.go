package domain

// ReserveSeries identifies one stacked series of the reserves chart.
type ReserveSeries string

// Reserve series, in stacking order.
const (
	ReserveYUSD    ReserveSeries = "yusd"
	ReserveDPI     ReserveSeries = "dpi"
	ReserveWETH    ReserveSeries = "weth"
	ReserveSushi   ReserveSeries = "sushi"
	ReserveIndexLP ReserveSeries = "index_lp"
	ReserveIndex   ReserveSeries = "index"
)

// AllReserveSeries lists the reserve series in chart order.
var AllReserveSeries = []ReserveSeries{
	ReserveYUSD, ReserveDPI, ReserveWETH, ReserveSushi, ReserveIndexLP, ReserveIndex,
}

var reserveSeriesNames = map[ReserveSeries]string{
	ReserveYUSD:    "yUSD Reserves",
	ReserveDPI:     "DPI Reserves",
	ReserveWETH:    "ETH Reserves",
	ReserveSushi:   "Sushi Gains",
	ReserveIndexLP: "INDEX Coop LP",
	ReserveIndex:   "INDEX Coop Gains",
}

// DisplayName returns the legend label of the series.
func (s ReserveSeries) DisplayName() string {
	return reserveSeriesNames[s]
}

// Valid reports whether s is a known reserve series.
func (s ReserveSeries) Valid() bool {
	_, ok := reserveSeriesNames[s]
	return ok
}

// ReserveHistoryEvent is one resolved point of the hand-authored reserve history.
// Values are USD valuations per series; absent series are zero.
type ReserveHistoryEvent struct {
	Label  string
	Block  int64
	Values map[ReserveSeries]float64
}
