package dashboard

import (
	"treasury-charts/internal/domain"
	"treasury-charts/internal/series"
)

// ChartStatus is the per chart state.
type ChartStatus string

// Chart states. Loading moves to Ready once; only a session change resets it.
const (
	StatusLoading ChartStatus = "loading"
	StatusReady   ChartStatus = "ready"
)

// Card is one chart card of the dashboard.
type Card struct {
	Name   domain.ChartName `json:"name"`
	Title  string           `json:"title"`
	Status ChartStatus      `json:"status"`
	Chart  *series.Chart    `json:"chart,omitempty"`
}

// View is what the dashboard shows for one theme.
type View struct {
	Status          SessionState `json:"status"`
	Account         string       `json:"account,omitempty"`
	Prompt          string       `json:"prompt,omitempty"`
	UnlockModalOpen bool         `json:"unlock_modal_open"`
	Theme           series.Theme `json:"theme"`
	SnapshotVersion uint64       `json:"snapshot_version"`
	Cards           []Card       `json:"cards,omitempty"`
}

// Card returns the card named name, if present.
func (v View) Card(name domain.ChartName) (Card, bool) {
	for _, c := range v.Cards {
		if c.Name == name {
			return c, true
		}
	}
	return Card{}, false
}
