// Package polymarket implements the venue client for the Polymarket CLOB.
package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/prediction-arb/business/venue/app"
	"github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/business/venue/infra/venuehttp"
	"github.com/fd1az/prediction-arb/internal/apperror"
	"github.com/fd1az/prediction-arb/internal/circuitbreaker"
	"github.com/fd1az/prediction-arb/internal/config"
	"github.com/fd1az/prediction-arb/internal/httpclient"
	"github.com/fd1az/prediction-arb/internal/logger"
	"github.com/fd1az/prediction-arb/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/prediction-arb/business/venue/infra/polymarket"

	// DefaultBaseURL is the public CLOB API.
	DefaultBaseURL = "https://clob.polymarket.com"

	apiKeyHeader    = "POLY_API_KEY"
	marketsEndpoint = "/markets"
	bookEndpoint    = "/book"
	orderEndpoint   = "/order"
	defaultFanOut   = 8
	defaultMaxPages = 10
	breakerName     = "polymarket-quotes"

	statusMatched = "matched"
)

var (
	_ app.VenueClient    = (*Client)(nil)
	_ app.HealthReporter = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the clock used for quote timestamps and title parsing.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithBreakerConfig overrides the quote circuit breaker settings.
func WithBreakerConfig(cfg circuitbreaker.Config) Option {
	return func(c *Client) { c.breakerCfg = &cfg }
}

// Client talks to the Polymarket CLOB REST API.
type Client struct {
	http       httpclient.Client
	cfg        config.VenueConfig
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.CircuitBreaker[[]domain.Quote]
	breakerCfg *circuitbreaker.Config
	log        logger.LoggerInterface
	tracer     trace.Tracer
	now        func() time.Time
}

// NewClient creates a Polymarket client from venue config.
func NewClient(cfg config.VenueConfig, log logger.LoggerInterface, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}

	httpClient, err := venuehttp.NewClient(domain.VenuePolymarket, cfg, apiKeyHeader)
	if err != nil {
		return nil, err
	}

	c := &Client{
		http:    httpClient,
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		log:     log,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	bcfg := circuitbreaker.DefaultConfig(breakerName)
	if c.breakerCfg != nil {
		bcfg = *c.breakerCfg
	}
	bcfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	c.breaker = circuitbreaker.New[[]domain.Quote](bcfg)

	return c, nil
}

// Venue returns the venue identifier.
func (c *Client) Venue() domain.Venue { return domain.VenuePolymarket }

// Healthy reports whether the quote breaker lets calls through.
func (c *Client) Healthy() bool { return c.breaker.Healthy() }

// FetchQuotes pages through active markets and prices the YES and NO
// tokens of each "above" market for the underlying.
func (c *Client) FetchQuotes(ctx context.Context, filter domain.MarketFilter) ([]domain.Quote, error) {
	ctx, span := c.tracer.Start(ctx, "polymarket.fetch_quotes",
		trace.WithAttributes(
			attribute.String("underlying", filter.Underlying),
			attribute.Int("market_ids", len(filter.MarketIDs)),
		),
	)
	defer span.End()

	quotes, err := c.breaker.Execute(func() ([]domain.Quote, error) {
		return c.fetchQuotes(ctx, filter)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("quotes", len(quotes)))
	return quotes, nil
}

type candidate struct {
	market   market
	terms    domain.MarketTerms
	yesToken string
	noToken  string
}

func (c *Client) fetchQuotes(ctx context.Context, filter domain.MarketFilter) ([]domain.Quote, error) {
	markets, err := c.listMarkets(ctx, filter)
	if err != nil {
		return nil, err
	}

	ref := c.now().UTC()
	candidates := make([]candidate, 0, len(markets))
	for _, m := range markets {
		if !m.Active || m.Closed {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Question), "above") {
			continue
		}
		terms, err := domain.ParseTitle(m.Question, filter.Underlying, ref, m.expiry())
		if err != nil {
			c.log.Debug(ctx, "skipping market", "venue", domain.VenuePolymarket, "market", m.ConditionID, "reason", err)
			continue
		}
		yes, no, ok := m.tokens()
		if !ok {
			c.log.Debug(ctx, "skipping market without yes/no tokens", "venue", domain.VenuePolymarket, "market", m.ConditionID)
			continue
		}
		candidates = append(candidates, candidate{market: m, terms: terms, yesToken: yes, noToken: no})
	}

	results := make([]*domain.Quote, len(candidates))
	errs := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(fanOut(c.cfg.MaxConcurrentRequests))
	for i, cand := range candidates {
		g.Go(func() error {
			results[i], errs[i] = c.quoteMarket(ctx, cand)
			return nil
		})
	}
	_ = g.Wait()

	quotes := make([]domain.Quote, 0, len(candidates))
	var firstErr error
	for i, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
			continue
		}
		if errs[i] == nil {
			continue
		}
		if firstErr == nil {
			firstErr = errs[i]
		}
		c.log.Warn(ctx, "orderbook fetch failed", "venue", domain.VenuePolymarket,
			"market", candidates[i].market.ConditionID, "error", errs[i])
	}

	if len(quotes) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return quotes, nil
}

func (c *Client) listMarkets(ctx context.Context, filter domain.MarketFilter) ([]market, error) {
	if len(filter.MarketIDs) > 0 {
		markets := make([]market, 0, len(filter.MarketIDs))
		for _, id := range filter.MarketIDs {
			var m market
			if err := c.get(ctx, marketsEndpoint+"/"+url.PathEscape(id), "market", &m, nil); err != nil {
				if apperror.GetCode(err) == apperror.CodeInvalidResponse {
					continue
				}
				return nil, err
			}
			if m.ConditionID == "" {
				m.ConditionID = id
			}
			markets = append(markets, m)
		}
		return markets, nil
	}

	var (
		markets []market
		cursor  string
	)
	for page := 0; page < c.cfg.MaxPages; page++ {
		var resp marketsPage
		var query map[string]string
		if cursor != "" {
			query = map[string]string{"next_cursor": cursor}
		}
		if err := c.get(ctx, marketsEndpoint, "markets", &resp, query); err != nil {
			return nil, err
		}
		markets = append(markets, resp.Data...)

		cursor = resp.NextCursor
		if cursor == "" || cursor == endCursor {
			return markets, nil
		}
	}

	c.log.Debug(ctx, "market listing truncated", "venue", domain.VenuePolymarket,
		"max_pages", c.cfg.MaxPages, "markets", len(markets))
	return markets, nil
}

func (c *Client) quoteMarket(ctx context.Context, cand candidate) (*domain.Quote, error) {
	var yesBook, noBook book

	var g errgroup.Group
	g.Go(func() error {
		return c.get(ctx, bookEndpoint, "book", &yesBook, map[string]string{"token_id": cand.yesToken})
	})
	g.Go(func() error {
		return c.get(ctx, bookEndpoint, "book", &noBook, map[string]string{"token_id": cand.noToken})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	id := cand.market.ConditionID
	yes, okYes := yesBook.toBook().BestAsk()
	no, okNo := noBook.toBook().BestAsk()
	if !okYes || !okNo {
		c.log.Debug(ctx, "skipping market without two-sided asks", "venue", domain.VenuePolymarket, "market", id)
		return nil, nil
	}

	q, err := domain.NewQuote(domain.VenuePolymarket, id, cand.terms, yes, no, c.now())
	if err != nil {
		c.log.Debug(ctx, "skipping invalid quote", "venue", domain.VenuePolymarket, "market", id, "reason", err)
		return nil, nil
	}
	q = q.WithTokens(cand.yesToken, cand.noToken)
	return &q, nil
}

func (c *Client) get(ctx context.Context, path, endpoint string, result any, query map[string]string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return venuehttp.ClassifyError(domain.VenuePolymarket, "rate limiter wait", err)
	}

	req := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", endpoint)),
		httpclient.WithResponseErrorHandler(venuehttp.ResponseHandler(domain.VenuePolymarket, venuehttp.KindQuote)),
	).SetResult(result)
	for k, v := range query {
		req.SetQueryParam(k, v)
	}

	if _, err := req.Get(ctx, path); err != nil {
		return venuehttp.ClassifyError(domain.VenuePolymarket, "GET "+path, err)
	}
	return nil
}

// PlaceOrder submits a fill-or-kill buy of the intent's outcome token.
func (c *Client) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.Fill, error) {
	ctx, span := c.tracer.Start(ctx, "polymarket.place_order",
		trace.WithAttributes(
			attribute.String("market_id", intent.MarketID),
			attribute.String("token_id", intent.TokenID),
			attribute.String("outcome", string(intent.Outcome)),
			attribute.String("shares", intent.Shares.String()),
			attribute.String("limit_price", intent.LimitPrice.String()),
			attribute.String("client_order_id", intent.ClientOrderID),
		),
	)
	defer span.End()

	if intent.TokenID == "" {
		err := apperror.New(apperror.CodeOrderRejected,
			apperror.WithVenue(string(domain.VenuePolymarket)),
			apperror.WithContext("order intent has no token id for market "+intent.MarketID))
		span.RecordError(err)
		return domain.Fill{}, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return domain.Fill{}, venuehttp.ClassifyError(domain.VenuePolymarket, "rate limiter wait", err)
	}

	body := orderRequest{
		Order: signedOrder{
			TokenID:       intent.TokenID,
			Price:         intent.LimitPrice.String(),
			Size:          intent.Shares.String(),
			Side:          "BUY",
			Maker:         c.cfg.Maker(),
			ClientOrderID: intent.ClientOrderID,
		},
		Owner:     c.cfg.APIKey,
		OrderType: string(intent.Type),
	}

	var resp orderResponse
	_, err := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "order")),
		httpclient.WithResponseErrorHandler(venuehttp.ResponseHandler(domain.VenuePolymarket, venuehttp.KindOrder)),
	).
		SetBody(body).
		SetResult(&resp).
		Post(ctx, orderEndpoint)
	if err != nil {
		err = venuehttp.ClassifyError(domain.VenuePolymarket, "POST "+orderEndpoint, err)
		span.RecordError(err)
		return domain.Fill{}, err
	}

	if !resp.Success {
		code := apperror.CodeOrderRejected
		if venuehttp.IsBalanceMessage(resp.ErrorMsg) {
			code = apperror.CodeInsufficientBalance
		}
		err := apperror.New(code,
			apperror.WithVenue(string(domain.VenuePolymarket)),
			apperror.WithContext(fmt.Sprintf("order %s: %s", intent.ClientOrderID, resp.ErrorMsg)))
		span.RecordError(err)
		return domain.Fill{}, err
	}

	fill := domain.Fill{OrderID: resp.OrderID, FilledAt: c.now()}
	if strings.EqualFold(resp.Status, statusMatched) {
		spent := venuehttp.ParseAmount(resp.MakingAmount)
		fill.Shares = venuehttp.ParseAmount(resp.TakingAmount)
		if fill.IsFilled() {
			fill.AvgPrice = intent.LimitPrice
			if spent.IsPositive() {
				fill.AvgPrice = spent.Div(fill.Shares)
			}
		}
	}

	span.SetAttributes(
		attribute.String("order_id", fill.OrderID),
		attribute.String("status", resp.Status),
		attribute.String("filled", fill.Shares.String()),
	)
	c.log.Info(ctx, "order placed",
		"venue", domain.VenuePolymarket,
		"market", intent.MarketID,
		"outcome", intent.Outcome,
		"order_id", fill.OrderID,
		"status", resp.Status,
		"filled", fill.Shares.String(),
		"avg_price", fill.AvgPrice.String())

	return fill, nil
}

func fanOut(n int) int {
	if n <= 0 {
		return defaultFanOut
	}
	return n
}
