package state

import (
	"github.com/google/uuid"
)

// PositionManager tracks open positions by id with an owner index.
type PositionManager struct {
	positions map[uuid.UUID]*Position
	byOwner   map[string][]uuid.UUID
}

func NewPositionManager() *PositionManager {
	return &PositionManager{
		positions: make(map[uuid.UUID]*Position),
		byOwner:   make(map[string][]uuid.UUID),
	}
}

// Create opens a new position object. The id comes from the originating
// command so replay reconstructs the same position identity.
func (pm *PositionManager) Create(id uuid.UUID, owner, market string, side Side, size, avgEntryPrice, margin, nowMs uint64) *Position {
	pos := &Position{
		ID:            id,
		Owner:         owner,
		Market:        market,
		Side:          side,
		Size:          size,
		AvgEntryPrice: avgEntryPrice,
		Margin:        margin,
		LastFundingMs: nowMs,
	}
	pm.positions[pos.ID] = pos
	pm.byOwner[owner] = append(pm.byOwner[owner], pos.ID)
	return pos
}

// Get returns a position by id or nil.
func (pm *PositionManager) Get(id uuid.UUID) *Position {
	return pm.positions[id]
}

// GetOwned returns a position only if it belongs to owner.
func (pm *PositionManager) GetOwned(id uuid.UUID, owner string) *Position {
	pos := pm.positions[id]
	if pos == nil || pos.Owner != owner {
		return nil
	}
	return pos
}

// ByOwner returns all of an owner's positions, inert ones included.
func (pm *PositionManager) ByOwner(owner string) []*Position {
	ids := pm.byOwner[owner]
	out := make([]*Position, 0, len(ids))
	for _, id := range ids {
		if pos := pm.positions[id]; pos != nil {
			out = append(out, pos)
		}
	}
	return out
}

// ByMarket returns all live positions in a market.
func (pm *PositionManager) ByMarket(market string) []*Position {
	out := make([]*Position, 0)
	for _, pos := range pm.positions {
		if pos.Market == market && !pos.IsInert() {
			out = append(out, pos)
		}
	}
	return out
}

// All returns every tracked position.
func (pm *PositionManager) All() []*Position {
	out := make([]*Position, 0, len(pm.positions))
	for _, pos := range pm.positions {
		out = append(out, pos)
	}
	return out
}

// Restore directly installs a position (snapshot restore only).
func (pm *PositionManager) Restore(pos *Position) {
	if _, exists := pm.positions[pos.ID]; !exists {
		pm.byOwner[pos.Owner] = append(pm.byOwner[pos.Owner], pos.ID)
	}
	pm.positions[pos.ID] = pos
}
