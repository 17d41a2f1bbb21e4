package oracle

import (
	"fmt"
	"sync"
)

// Feed is a live price table updated by an external subscriber and read by
// the core. Updates arrive on the NATS connection's goroutine while the core
// reads from the processing loop, hence the lock.
type Feed struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewFeed() *Feed {
	return &Feed{quotes: make(map[string]Quote)}
}

// Update installs a quote. Quotes older than the one already held are
// ignored so out-of-order delivery cannot roll a price back.
func (f *Feed) Update(symbol string, price, asOfMs uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q, ok := f.quotes[symbol]; ok && q.AsOfMs > asOfMs {
		return
	}
	f.quotes[symbol] = Quote{Price: price, AsOfMs: asOfMs}
}

func (f *Feed) GetPrice(symbol string, maxStalenessMs, nowMs uint64) (uint64, uint64, error) {
	f.mu.RLock()
	q, ok := f.quotes[symbol]
	f.mu.RUnlock()

	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if maxStalenessMs > 0 && nowMs > q.AsOfMs && nowMs-q.AsOfMs > maxStalenessMs {
		return 0, 0, fmt.Errorf("%w: %s quoted at %d, now %d", ErrStalePrice, symbol, q.AsOfMs, nowMs)
	}
	return q.Price, q.AsOfMs, nil
}
