package dashboard

import "strings"

// SessionState is the wallet connection state.
type SessionState string

// Session states.
const (
	Disconnected SessionState = "disconnected"
	Connected    SessionState = "connected"
)

// UnlockPrompt is the call to action shown while disconnected.
const UnlockPrompt = "Unlock wallet to display charts"

// Session is the wallet session gate in front of the charts.
// Epoch changes on every connect, disconnect or account switch; chart state
// belongs to exactly one epoch.
type Session struct {
	State           SessionState
	Account         string
	Epoch           uint64
	UnlockModalOpen bool
}

// normalizeAccount lowercases hex addresses so the same wallet maps to one session.
func normalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}
