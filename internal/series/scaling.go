package series

import (
	"fmt"

	"treasury-charts/internal/domain"
)

// ScalingFactor builds the scaling factor history chart.
// The series holds the most recent 2*rangeN factors keyed by block number.
func ScalingFactor(h *domain.ScalingHistory, theme Theme, rangeN int) (Chart, error) {
	if h == nil {
		return Chart{}, fmt.Errorf("%w: scaling history", ErrMissingInput)
	}
	if err := h.Validate(); err != nil {
		return Chart{}, err
	}

	points := make([]domain.PricePoint, len(h.Factors))
	for i, f := range h.Factors {
		points[i] = domain.PricePoint{X: float64(h.BlockNumbers[i]), Y: f}
	}

	yMin := 0.0
	opts := baseOptions(KindLine, theme)
	opts.Colors = append([]string(nil), ScalingColors...)
	opts.YFormatter = FormatMultiplier
	opts.YMin = &yMin

	return Chart{
		Name:    domain.ChartScaling,
		Title:   Titles[domain.ChartScaling],
		Options: opts,
		Series: []domain.ChartSeries{
			{Name: "Scaling Factor", Data: Window(points, 2*rangeN)},
		},
	}, nil
}
