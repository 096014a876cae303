package series

import "treasury-charts/internal/domain"

// Kind is the chart type.
type Kind string

// Chart kinds.
const (
	KindLine Kind = "line"
	KindArea Kind = "area"
	KindBar  Kind = "bar"
)

// CurveStepline draws horizontal then vertical segments between points.
const CurveStepline = "stepline"

// ChartHeight is the configured chart height in pixels.
const ChartHeight = 350

// Brand colors.
var (
	ReserveColors = []string{"#C60C4D", "#8150E6", "#4777e0", "#D16C00", "#838bfc", "#FFB900"}
	BarColors     = []string{"#C60C4D", "#8150E6"}
	ScalingColors = []string{"#c60c4d"}
)

// Legend places the series legend.
type Legend struct {
	Position        string   `json:"position"`
	HorizontalAlign string   `json:"horizontalAlign"`
	LabelColors     []string `json:"labelColors,omitempty"`
}

// Options is the rendering configuration that accompanies a series set.
type Options struct {
	Type            Kind      `json:"type"`
	Height          int       `json:"height"`
	Background      string    `json:"background"`
	Stacked         bool      `json:"stacked"`
	Curve           string    `json:"curve"`
	DataLabels      bool      `json:"dataLabels"`
	MarkerHoverSize int       `json:"markerHoverSizeOffset"`
	Colors          []string  `json:"colors"`
	FillColors      []string  `json:"fillColors,omitempty"`
	Legend          *Legend   `json:"legend,omitempty"`
	Categories      []int64   `json:"categories,omitempty"`
	LabelColor      string    `json:"labelColor"`
	YFormatter      Formatter `json:"yFormatter"`
	YMin            *float64  `json:"yMin,omitempty"`
	GridBorderColor string    `json:"gridBorderColor"`
	ThemeMode       Theme     `json:"themeMode"`
	TooltipTheme    Theme     `json:"tooltipTheme,omitempty"`
}

// Chart is a built chart: configuration plus either x/y series or bars.
type Chart struct {
	Name    domain.ChartName     `json:"name"`
	Title   string               `json:"title"`
	Options Options              `json:"options"`
	Series  []domain.ChartSeries `json:"series,omitempty"`
	Bars    []domain.BarSeries   `json:"bars,omitempty"`
}

// Titles are the card headings of each chart.
var Titles = map[domain.ChartName]string{
	domain.ChartScaling:  "Scaling Factor History",
	domain.ChartReserves: "Treasury History ($)",
	domain.ChartSold:     "Yams Sold Per Rebase",
	domain.ChartMinted:   "Yams Minted Per Rebase",
}

func baseOptions(kind Kind, theme Theme) Options {
	p := PaletteFor(theme)
	return Options{
		Type:            kind,
		Height:          ChartHeight,
		Background:      ChartBackground,
		Curve:           CurveStepline,
		MarkerHoverSize: 5,
		LabelColor:      p.LabelColor,
		GridBorderColor: p.BorderColor,
		ThemeMode:       p.Mode,
	}
}

func topLeftLegend(labelColors ...string) *Legend {
	return &Legend{Position: "top", HorizontalAlign: "left", LabelColors: labelColors}
}
