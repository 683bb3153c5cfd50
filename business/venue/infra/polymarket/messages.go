package polymarket

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/venue/domain"
)

// endCursor marks the last page of a paginated listing.
const endCursor = "LTE="

type token struct {
	TokenID string          `json:"token_id"`
	Outcome string          `json:"outcome"`
	Price   decimal.Decimal `json:"price"`
}

type market struct {
	ConditionID string  `json:"condition_id"`
	Question    string  `json:"question"`
	Active      bool    `json:"active"`
	Closed      bool    `json:"closed"`
	EndDateISO  string  `json:"end_date_iso"`
	Tokens      []token `json:"tokens"`
}

func (m market) expiry() time.Time {
	if m.EndDateISO == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, m.EndDateISO)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// tokens returns the YES and NO token ids.
func (m market) tokens() (yes, no string, ok bool) {
	for _, t := range m.Tokens {
		switch strings.ToUpper(t.Outcome) {
		case string(domain.OutcomeYes):
			yes = t.TokenID
		case string(domain.OutcomeNo):
			no = t.TokenID
		}
	}
	return yes, no, yes != "" && no != ""
}

type marketsPage struct {
	Data       []market `json:"data"`
	NextCursor string   `json:"next_cursor"`
}

type level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// book is the response of GET /book for one token.
type book struct {
	Market  string  `json:"market"`
	AssetID string  `json:"asset_id"`
	Bids    []level `json:"bids"`
	Asks    []level `json:"asks"`
}

func (b book) toBook() domain.Book {
	out := domain.Book{Asks: make([]domain.BookLevel, 0, len(b.Asks))}
	for _, l := range b.Asks {
		out.Asks = append(out.Asks, domain.BookLevel{Price: l.Price, Size: l.Size})
	}
	return out
}

type signedOrder struct {
	TokenID       string `json:"tokenID"`
	Price         string `json:"price"`
	Size          string `json:"size"`
	Side          string `json:"side"`
	Maker         string `json:"maker,omitempty"`
	ClientOrderID string `json:"clientOrderId"`
}

type orderRequest struct {
	Order     signedOrder `json:"order"`
	Owner     string      `json:"owner,omitempty"`
	OrderType string      `json:"orderType"`
}

type orderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	// For a buy, MakingAmount is the collateral spent and TakingAmount the shares received.
	MakingAmount string `json:"makingAmount"`
	TakingAmount string `json:"takingAmount"`
}
