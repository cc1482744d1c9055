package risk

import "time"

// Position is the engine's holding in one outcome token.
type Position struct {
	TokenID   string    `json:"token_id"`
	Outcome   string    `json:"outcome"`
	Size      float64   `json:"size"`
	AvgEntry  float64   `json:"avg_entry"`
	Realized  float64   `json:"realized_pnl"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is a point-in-time view of risk state, published on the state
// telemetry channel and served by the ops API.
type Snapshot struct {
	Stopped       bool       `json:"emergency_stopped"`
	StopReason    string     `json:"stop_reason,omitempty"`
	DailyPnL      float64    `json:"daily_pnl"`
	DailyTrades   int64      `json:"daily_trades"`
	ReservedValue float64    `json:"reserved_notional"`
	Positions     []Position `json:"positions"`
}

// Snapshot captures current positions and daily stats.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	positions := make([]Position, 0, len(m.positions))
	for _, pos := range m.positions {
		if pos.Size > 0 || pos.Realized != 0 {
			positions = append(positions, *pos)
		}
	}
	m.mu.RUnlock()

	m.resMu.Lock()
	reserved := m.reservedNotional
	m.resMu.Unlock()

	return Snapshot{
		Stopped:       m.Stopped(),
		StopReason:    m.StopReason(),
		DailyPnL:      m.DailyPnL(),
		DailyTrades:   m.dailyTrades.Load(),
		ReservedValue: reserved,
		Positions:     positions,
	}
}

// Position returns the holding for a token, zero-valued when flat.
func (m *Manager) Position(tokenID string) Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pos, ok := m.positions[tokenID]; ok {
		return *pos
	}
	return Position{TokenID: tokenID}
}
