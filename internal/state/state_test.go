package state_test

import (
	"testing"

	"github.com/google/uuid"

	"unxcore/internal/fees"
	"unxcore/internal/num"
	"unxcore/internal/state"
)

func newRegistry() *state.Registry {
	return state.NewRegistry(state.RegistryParams{
		Venue:                 "perps",
		Fees:                  fees.Config{TradeFeeBps: 30},
		DefaultInitMarginBps:  1_000,
		DefaultMaintMarginBps: 500,
		MinListIntervalMs:     60_000,
	})
}

// ============================================================================
// Test: Market
// ============================================================================

func TestMarket_TickAligned(t *testing.T) {
	m := &state.Market{TickSize: 50}
	if !m.TickAligned(100) {
		t.Error("100 should align to tick 50")
	}
	if m.TickAligned(120) {
		t.Error("120 should not align to tick 50")
	}

	m.TickSize = 0
	if m.TickAligned(100) {
		t.Error("zero tick size aligns nothing")
	}
}

func TestMarket_UnitPriceGasConversion(t *testing.T) {
	gas := &state.Market{Kind: state.KindGasFuture}
	// index 2_000_000, ref gas 500_000 -> 2_000_000 * 500_000 / 1_000_000
	if got := gas.UnitPrice(2_000_000, 500_000); got != 1_000_000 {
		t.Errorf("gas unit price: got %d, want 1_000_000", got)
	}

	perp := &state.Market{Kind: state.KindPerpetual}
	if got := perp.UnitPrice(2_000_000, 500_000); got != 2_000_000 {
		t.Errorf("perp must trade the index directly, got %d", got)
	}
}

func TestMarket_OpenInterestFloorsAtZero(t *testing.T) {
	m := &state.Market{}
	m.AddOpenInterest(10)
	m.ReduceOpenInterest(25)
	if m.OpenInterest != 0 {
		t.Errorf("open interest: got %d, want 0", m.OpenInterest)
	}
}

// ============================================================================
// Test: Position math
// ============================================================================

func TestPosition_VariationPnl(t *testing.T) {
	long := &state.Position{Side: state.SideLong, AvgEntryPrice: 1_000}
	if got := long.VariationPnl(1_100, 10); got != num.SignedFrom(1_000) {
		t.Errorf("long gain: got %+v", got)
	}
	if got := long.VariationPnl(900, 10); got != num.SignedNeg(1_000) {
		t.Errorf("long loss: got %+v", got)
	}

	short := &state.Position{Side: state.SideShort, AvgEntryPrice: 1_000}
	if got := short.VariationPnl(900, 10); got != num.SignedFrom(1_000) {
		t.Errorf("short gain: got %+v", got)
	}
	if got := short.VariationPnl(1_100, 10); got != num.SignedNeg(1_000) {
		t.Errorf("short loss: got %+v", got)
	}
}

func TestPosition_EquityAndMaintenance(t *testing.T) {
	// Short 100 @ 2_000 with 100_000 margin, mark drops to 1_700:
	// equity = 100_000 + (2_000-1_700)*100 = 130_000.
	pos := &state.Position{
		Side:          state.SideShort,
		Size:          100,
		AvgEntryPrice: 2_000,
		Margin:        100_000,
	}

	equity := pos.Equity(1_700)
	if equity != num.SignedFrom(130_000) {
		t.Errorf("equity: got %+v, want +130_000", equity)
	}

	// maintenance at mark 1_700, 500 bps: 100 * 1_700 * 500 / 10_000 = 8_500
	if got := pos.MaintenanceRequired(1_700, 500); got != 8_500 {
		t.Errorf("maintenance: got %d, want 8_500", got)
	}

	// Deep in-the-money short: maintenance shrinks with the mark and the
	// position stays comfortably solvent.
	deep := &state.Position{
		Side:          state.SideShort,
		Size:          1,
		AvgEntryPrice: 1_000_000,
		Margin:        100_000,
	}
	if got := deep.MaintenanceRequired(500_000, 600); got != 30_000 {
		t.Errorf("deep maintenance: got %d, want 30_000", got)
	}
	if eq := deep.Equity(500_000); !eq.Positive || eq.Magnitude < 30_000 {
		t.Errorf("deep short must be solvent, equity %+v", eq)
	}
}

func TestPosition_InertAfterFullClose(t *testing.T) {
	pos := &state.Position{Size: 10}
	if pos.IsInert() {
		t.Error("sized position is not inert")
	}
	pos.Size = 0
	if !pos.IsInert() {
		t.Error("zero-size position is inert")
	}
}

// ============================================================================
// Test: Registry listing
// ============================================================================

func TestRegistry_ListMarketDefaults(t *testing.T) {
	reg := newRegistry()

	m, err := reg.ListMarket("ETH-PERP", "ETH", state.KindPerpetual, 50, 0, 1_000)
	if err != nil {
		t.Fatalf("list market: %v", err)
	}
	if m.InitMarginBps != 1_000 || m.MaintMarginBps != 500 {
		t.Errorf("margin defaults not applied: init=%d maint=%d", m.InitMarginBps, m.MaintMarginBps)
	}
	if reg.GetMarket("ETH-PERP") != m {
		t.Error("market not registered")
	}
}

func TestRegistry_ListMarketRejects(t *testing.T) {
	reg := newRegistry()

	if _, err := reg.ListMarket("X", "X", state.KindPerpetual, 0, 0, 1_000); err == nil {
		t.Error("zero tick size must be rejected")
	}
	if _, err := reg.ListMarket("ETH-MAR", "ETH", state.KindDatedFuture, 50, 500, 1_000); err == nil {
		t.Error("expiry in the past must be rejected")
	}

	if _, err := reg.ListMarket("ETH-PERP", "ETH", state.KindPerpetual, 50, 0, 1_000); err != nil {
		t.Fatalf("first listing: %v", err)
	}
	if _, err := reg.ListMarket("ETH-PERP", "ETH", state.KindPerpetual, 50, 0, 2_000); err == nil {
		t.Error("duplicate listing must be rejected")
	}

	reg.SetPaused(true)
	if _, err := reg.ListMarket("BTC-PERP", "BTC", state.KindPerpetual, 50, 0, 1_000); err == nil {
		t.Error("paused venue must reject listings")
	}
}

func TestRegistry_ListingThrottle(t *testing.T) {
	reg := newRegistry()

	if _, err := reg.ListMarket("ETH-PERP", "ETH", state.KindPerpetual, 50, 0, 1_000); err != nil {
		t.Fatalf("first listing: %v", err)
	}

	// The symbol slot stays throttled even though the duplicate check would
	// reject anyway; a fresh symbol is not throttled.
	if _, err := reg.ListMarket("BTC-PERP", "BTC", state.KindPerpetual, 50, 0, 2_000); err != nil {
		t.Errorf("different symbol should not be throttled: %v", err)
	}
}

// ============================================================================
// Test: PositionManager
// ============================================================================

func TestPositionManager_CreateAndLookup(t *testing.T) {
	pm := state.NewPositionManager()
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

	pos := pm.Create(id, "0xabc", "ETH-PERP", state.SideLong, 10, 2_000, 2_000, 1_000)
	if pos.ID != id {
		t.Errorf("position id: got %s, want %s", pos.ID, id)
	}
	if pm.Get(id) != pos {
		t.Error("Get should return the created position")
	}
	if pm.GetOwned(id, "0xother") != nil {
		t.Error("GetOwned must enforce ownership")
	}
	if got := pm.ByOwner("0xabc"); len(got) != 1 {
		t.Errorf("ByOwner: got %d positions, want 1", len(got))
	}
}

func TestPositionManager_ByMarketSkipsInert(t *testing.T) {
	pm := state.NewPositionManager()
	a := pm.Create(uuid.New(), "0xabc", "ETH-PERP", state.SideLong, 10, 2_000, 2_000, 0)
	pm.Create(uuid.New(), "0xdef", "ETH-PERP", state.SideShort, 0, 2_000, 0, 0)

	live := pm.ByMarket("ETH-PERP")
	if len(live) != 1 || live[0] != a {
		t.Errorf("ByMarket should return only live positions, got %d", len(live))
	}
}
