// Package oracle defines the price feed boundary. The core treats every
// returned price as already validated by the feed; it never caches and a
// feed error aborts the enclosing command.
package oracle

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSymbol = errors.New("oracle: unknown symbol")
	ErrStalePrice    = errors.New("oracle: price too stale")
)

// PriceSource supplies validated index prices. maxStalenessMs bounds the age
// of the quote relative to nowMs; implementations return ErrStalePrice when
// the bound is exceeded.
type PriceSource interface {
	GetPrice(symbol string, maxStalenessMs, nowMs uint64) (price uint64, asOfMs uint64, err error)
}

// Static is a fixed price table, used for tests and local runs.
type Static struct {
	prices map[string]Quote
}

type Quote struct {
	Price  uint64
	AsOfMs uint64
}

func NewStatic() *Static {
	return &Static{prices: make(map[string]Quote)}
}

// Set installs or replaces a quote.
func (s *Static) Set(symbol string, price, asOfMs uint64) {
	s.prices[symbol] = Quote{Price: price, AsOfMs: asOfMs}
}

func (s *Static) GetPrice(symbol string, maxStalenessMs, nowMs uint64) (uint64, uint64, error) {
	q, ok := s.prices[symbol]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	if maxStalenessMs > 0 && nowMs > q.AsOfMs && nowMs-q.AsOfMs > maxStalenessMs {
		return 0, 0, fmt.Errorf("%w: %s quoted at %d, now %d", ErrStalePrice, symbol, q.AsOfMs, nowMs)
	}
	return q.Price, q.AsOfMs, nil
}
