package domain

import "github.com/shopspring/decimal"

// BookLevel is a single price level in an orderbook.
type BookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Book is one side of an outcome orderbook.
type Book struct {
	Asks []BookLevel
}

// BestAsk returns the lowest ask with positive size. Venues do not agree on
// level ordering, so all levels are scanned.
func (b Book) BestAsk() (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, lvl := range b.Asks {
		if !lvl.Size.IsPositive() || !lvl.Price.IsPositive() {
			continue
		}
		if !found || lvl.Price.LessThan(best) {
			best = lvl.Price
			found = true
		}
	}
	return best, found
}
