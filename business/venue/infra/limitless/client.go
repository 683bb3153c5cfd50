// Package limitless implements the venue client for Limitless Exchange.
package limitless

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
	tracerName = "github.com/fd1az/prediction-arb/business/venue/infra/limitless"

	// DefaultBaseURL is the public Limitless API.
	DefaultBaseURL = "https://api.limitless.exchange/api-v1"

	apiKeyHeader     = "X-API-Key"
	marketsEndpoint  = "/markets"
	ordersEndpoint   = "/orders"
	defaultFanOut    = 8
	orderSideBuy     = "buy"
	breakerName      = "limitless-quotes"
	marketIDLabelKey = "market_id"
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

// Client talks to the Limitless REST API.
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

// NewClient creates a Limitless client from venue config.
func NewClient(cfg config.VenueConfig, log logger.LoggerInterface, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	httpClient, err := venuehttp.NewClient(domain.VenueLimitless, cfg, apiKeyHeader)
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
func (c *Client) Venue() domain.Venue { return domain.VenueLimitless }

// Healthy reports whether the quote breaker lets calls through.
func (c *Client) Healthy() bool { return c.breaker.Healthy() }

// FetchQuotes lists active markets for the underlying and prices each one
// from its orderbook.
func (c *Client) FetchQuotes(ctx context.Context, filter domain.MarketFilter) ([]domain.Quote, error) {
	ctx, span := c.tracer.Start(ctx, "limitless.fetch_quotes",
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

func (c *Client) fetchQuotes(ctx context.Context, filter domain.MarketFilter) ([]domain.Quote, error) {
	markets, err := c.listMarkets(ctx, filter)
	if err != nil {
		return nil, err
	}

	ref := c.now().UTC()
	type candidate struct {
		market market
		terms  domain.MarketTerms
	}
	candidates := make([]candidate, 0, len(markets))
	for _, m := range markets {
		if !m.Active {
			continue
		}
		terms, err := domain.ParseTitle(m.title(), filter.Underlying, ref, m.expiry())
		if err != nil {
			c.log.Debug(ctx, "skipping market", "venue", domain.VenueLimitless, "market", m.ID, "reason", err)
			continue
		}
		candidates = append(candidates, candidate{market: m, terms: terms})
	}

	results := make([]*domain.Quote, len(candidates))
	errs := make([]error, len(candidates))

	var g errgroup.Group
	g.SetLimit(fanOut(c.cfg.MaxConcurrentRequests))
	for i, cand := range candidates {
		g.Go(func() error {
			q, err := c.quoteMarket(ctx, cand.market.ID, cand.terms)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = q
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
		c.log.Warn(ctx, "orderbook fetch failed", "venue", domain.VenueLimitless,
			"market", candidates[i].market.ID, "error", errs[i])
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
			if m.ID == "" {
				m.ID = id
			}
			markets = append(markets, m)
		}
		return markets, nil
	}

	var markets []market
	query := map[string]string{"active": "true"}
	if err := c.get(ctx, marketsEndpoint, "markets", &markets, query); err != nil {
		return nil, err
	}
	return markets, nil
}

func (c *Client) quoteMarket(ctx context.Context, marketID string, terms domain.MarketTerms) (*domain.Quote, error) {
	var book orderbook
	path := marketsEndpoint + "/" + url.PathEscape(marketID) + "/orderbook"
	if err := c.get(ctx, path, "orderbook", &book, nil); err != nil {
		return nil, err
	}

	yes, okYes := book.Yes.book().BestAsk()
	no, okNo := book.No.book().BestAsk()
	if !okYes || !okNo {
		c.log.Debug(ctx, "skipping market without two-sided asks", "venue", domain.VenueLimitless, "market", marketID)
		return nil, nil
	}

	q, err := domain.NewQuote(domain.VenueLimitless, marketID, terms, yes, no, c.now())
	if err != nil {
		c.log.Debug(ctx, "skipping invalid quote", "venue", domain.VenueLimitless, "market", marketID, "reason", err)
		return nil, nil
	}
	return &q, nil
}

func (c *Client) get(ctx context.Context, path, endpoint string, result any, query map[string]string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return venuehttp.ClassifyError(domain.VenueLimitless, "rate limiter wait", err)
	}

	req := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", endpoint)),
		httpclient.WithResponseErrorHandler(venuehttp.ResponseHandler(domain.VenueLimitless, venuehttp.KindQuote)),
	).SetResult(result)
	for k, v := range query {
		req.SetQueryParam(k, v)
	}

	if _, err := req.Get(ctx, path); err != nil {
		return venuehttp.ClassifyError(domain.VenueLimitless, "GET "+path, err)
	}
	return nil
}

// PlaceOrder submits a fill-or-kill buy order.
func (c *Client) PlaceOrder(ctx context.Context, intent domain.OrderIntent) (domain.Fill, error) {
	ctx, span := c.tracer.Start(ctx, "limitless.place_order",
		trace.WithAttributes(
			attribute.String(marketIDLabelKey, intent.MarketID),
			attribute.String("outcome", string(intent.Outcome)),
			attribute.String("shares", intent.Shares.String()),
			attribute.String("limit_price", intent.LimitPrice.String()),
			attribute.String("client_order_id", intent.ClientOrderID),
		),
	)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return domain.Fill{}, venuehttp.ClassifyError(domain.VenueLimitless, "rate limiter wait", err)
	}

	body := orderRequest{
		MarketID:      intent.MarketID,
		Outcome:       strings.ToLower(string(intent.Outcome)),
		Side:          orderSideBuy,
		Amount:        intent.Shares.String(),
		Price:         intent.LimitPrice.String(),
		Type:          string(intent.Type),
		ClientOrderID: intent.ClientOrderID,
		Maker:         c.cfg.Maker(),
	}

	var resp orderResponse
	_, err := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "orders")),
		httpclient.WithResponseErrorHandler(venuehttp.ResponseHandler(domain.VenueLimitless, venuehttp.KindOrder)),
	).
		SetBody(body).
		SetResult(&resp).
		Post(ctx, ordersEndpoint)
	if err != nil {
		err = venuehttp.ClassifyError(domain.VenueLimitless, "POST "+ordersEndpoint, err)
		span.RecordError(err)
		return domain.Fill{}, err
	}

	if strings.EqualFold(resp.Status, statusRejected) {
		code := apperror.CodeOrderRejected
		if venuehttp.IsBalanceMessage(resp.Message) {
			code = apperror.CodeInsufficientBalance
		}
		err := apperror.New(code,
			apperror.WithVenue(string(domain.VenueLimitless)),
			apperror.WithContext(fmt.Sprintf("order %s: %s", intent.ClientOrderID, resp.Message)))
		span.RecordError(err)
		return domain.Fill{}, err
	}

	fill := domain.Fill{
		OrderID:  resp.ID,
		Shares:   venuehttp.ParseAmount(resp.FilledAmount),
		AvgPrice: venuehttp.ParseAmount(resp.AvgPrice),
		FilledAt: c.now(),
	}
	if fill.IsFilled() && !fill.AvgPrice.IsPositive() {
		fill.AvgPrice = intent.LimitPrice
	}

	span.SetAttributes(
		attribute.String("order_id", fill.OrderID),
		attribute.String("status", resp.Status),
		attribute.String("filled", fill.Shares.String()),
	)
	c.log.Info(ctx, "order placed",
		"venue", domain.VenueLimitless,
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
