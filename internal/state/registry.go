package state

import (
	"fmt"

	"unxcore/internal/fees"
)

// Registry is the per-venue configuration object: one instance each for the
// perpetuals, dated-futures, and gas-futures venues. Created once at venue
// bootstrap, mutated only through admin operations, read by every other
// operation. Version is bumped on every admin mutation so downstream
// consumers can detect configuration changes.
type Registry struct {
	Venue   string
	Paused  bool
	Version uint64

	Fees fees.Config

	// Funding parameters (perpetuals venue).
	FundingIntervalMs uint64
	MaxFundingRateBps uint64
	PremiumWeightBps  uint64

	// Margin defaults applied to newly listed markets (bps of notional).
	DefaultInitMarginBps  uint64
	DefaultMaintMarginBps uint64

	// Listing throttle.
	MinListIntervalMs uint64
	lastListedMs      map[string]uint64

	// Settlement dispute window (dated venues).
	DisputeWindowMs uint64

	markets map[string]*Market
}

// RegistryParams seeds a venue registry at bootstrap.
type RegistryParams struct {
	Venue                 string
	Fees                  fees.Config
	FundingIntervalMs     uint64
	MaxFundingRateBps     uint64
	PremiumWeightBps      uint64
	DefaultInitMarginBps  uint64
	DefaultMaintMarginBps uint64
	MinListIntervalMs     uint64
	DisputeWindowMs       uint64
}

func NewRegistry(p RegistryParams) *Registry {
	return &Registry{
		Venue:                 p.Venue,
		Fees:                  p.Fees,
		FundingIntervalMs:     p.FundingIntervalMs,
		MaxFundingRateBps:     p.MaxFundingRateBps,
		PremiumWeightBps:      p.PremiumWeightBps,
		DefaultInitMarginBps:  p.DefaultInitMarginBps,
		DefaultMaintMarginBps: p.DefaultMaintMarginBps,
		MinListIntervalMs:     p.MinListIntervalMs,
		DisputeWindowMs:       p.DisputeWindowMs,
		lastListedMs:          make(map[string]uint64),
		markets:               make(map[string]*Market),
	}
}

// GetMarket returns a listed market or nil.
func (r *Registry) GetMarket(symbol string) *Market {
	return r.markets[symbol]
}

// Markets returns all listed markets.
func (r *Registry) Markets() []*Market {
	out := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	return out
}

// ListMarket creates a market under the registry's margin defaults. Listing
// is permissionless but rate-limited per symbol by MinListIntervalMs.
func (r *Registry) ListMarket(symbol, underlying string, kind InstrumentKind, tickSize, expiryMs, nowMs uint64) (*Market, error) {
	if r.Paused {
		return nil, fmt.Errorf("venue %s is paused", r.Venue)
	}
	if tickSize == 0 {
		return nil, fmt.Errorf("tick_size must be > 0")
	}
	if _, exists := r.markets[symbol]; exists {
		return nil, fmt.Errorf("market %s already listed", symbol)
	}
	if last, ok := r.lastListedMs[symbol]; ok && nowMs < last+r.MinListIntervalMs {
		return nil, fmt.Errorf("listing throttled for %s: retry after %dms", symbol, last+r.MinListIntervalMs-nowMs)
	}
	if kind == KindDatedFuture || kind == KindGasFuture {
		if expiryMs <= nowMs {
			return nil, fmt.Errorf("expiry %d is not in the future", expiryMs)
		}
	}

	m := &Market{
		Symbol:         symbol,
		Underlying:     underlying,
		Kind:           kind,
		TickSize:       tickSize,
		InitMarginBps:  r.DefaultInitMarginBps,
		MaintMarginBps: r.DefaultMaintMarginBps,
		ExpiryMs:       expiryMs,
	}
	r.markets[symbol] = m
	r.lastListedMs[symbol] = nowMs
	return m, nil
}

// --- Admin setters. Authorization is checked by the caller; the registry
// only applies the mutation and bumps the version. ---

func (r *Registry) SetFees(cfg fees.Config) {
	r.Fees = cfg
	r.Version++
}

func (r *Registry) SetFundingParams(intervalMs, maxRateBps, premiumWeightBps uint64) {
	r.FundingIntervalMs = intervalMs
	r.MaxFundingRateBps = maxRateBps
	r.PremiumWeightBps = premiumWeightBps
	r.Version++
}

func (r *Registry) SetMarginDefaults(initBps, maintBps uint64) {
	r.DefaultInitMarginBps = initBps
	r.DefaultMaintMarginBps = maintBps
	r.Version++
}

func (r *Registry) SetMarketMargins(symbol string, initBps, maintBps uint64) error {
	m := r.GetMarket(symbol)
	if m == nil {
		return fmt.Errorf("unknown market: %s", symbol)
	}
	m.InitMarginBps = initBps
	m.MaintMarginBps = maintBps
	r.Version++
	return nil
}

func (r *Registry) SetPaused(paused bool) {
	r.Paused = paused
	r.Version++
}

func (r *Registry) SetMarketPaused(symbol string, paused bool) error {
	m := r.GetMarket(symbol)
	if m == nil {
		return fmt.Errorf("unknown market: %s", symbol)
	}
	m.Paused = paused
	r.Version++
	return nil
}

func (r *Registry) SetListInterval(intervalMs uint64) {
	r.MinListIntervalMs = intervalMs
	r.Version++
}

func (r *Registry) SetDisputeWindow(windowMs uint64) {
	r.DisputeWindowMs = windowMs
	r.Version++
}

// RestoreMarket directly installs a market (snapshot restore only).
func (r *Registry) RestoreMarket(m *Market) {
	r.markets[m.Symbol] = m
}
