package limitless

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/venue/domain"
)

// market is one entry of GET /markets.
type market struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Question string `json:"question"`
	Active   bool   `json:"active"`
	// ExpirationTimestamp is in milliseconds. Zero when the venue omits it.
	ExpirationTimestamp int64 `json:"expirationTimestamp"`
}

func (m market) title() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Question
}

func (m market) expiry() time.Time {
	if m.ExpirationTimestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.ExpirationTimestamp).UTC()
}

type level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

type bookSide struct {
	Asks []level `json:"asks"`
	Bids []level `json:"bids"`
}

func (s bookSide) book() domain.Book {
	b := domain.Book{Asks: make([]domain.BookLevel, 0, len(s.Asks))}
	for _, l := range s.Asks {
		b.Asks = append(b.Asks, domain.BookLevel{Price: l.Price, Size: l.Size})
	}
	return b
}

// orderbook is the response of GET /markets/{id}/orderbook.
type orderbook struct {
	Yes bookSide `json:"yes"`
	No  bookSide `json:"no"`
}

type orderRequest struct {
	MarketID      string `json:"market_id"`
	Outcome       string `json:"outcome"`
	Side          string `json:"side"`
	Amount        string `json:"amount"`
	Price         string `json:"price"`
	Type          string `json:"type"`
	ClientOrderID string `json:"client_order_id"`
	Maker         string `json:"maker,omitempty"`
}

type orderResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	FilledAmount string `json:"filled_amount"`
	AvgPrice     string `json:"avg_price"`
	Message      string `json:"message"`
}

const (
	statusRejected = "rejected"
)
