package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/apperror"
	"github.com/fd1az/prediction-arb/internal/logger"
)

const (
	tracerName = "github.com/fd1az/prediction-arb/business/venue/app"
	meterName  = "github.com/fd1az/prediction-arb/business/venue/app"
)

// Snapshot is the result of refreshing both venues.
type Snapshot struct {
	A []domain.Quote
	B []domain.Quote
	// Errors holds the fetch failure of each venue that could not be refreshed.
	// That venue's quotes fall back to what is still fresh in the cache.
	Errors map[domain.Venue]error
}

// Err joins all venue errors.
func (s Snapshot) Err() error {
	errs := make([]error, 0, len(s.Errors))
	for _, err := range s.Errors {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type serviceMetrics struct {
	quotesFetched metric.Int64Counter
	fetchErrors   metric.Int64Counter
	lookups       metric.Int64Counter
}

// QuoteService refreshes quotes from both venues into the cache.
type QuoteService struct {
	venueA     VenueClient
	venueB     VenueClient
	cache      *QuoteCache
	underlying string
	log        logger.LoggerInterface

	tracer  trace.Tracer
	metrics *serviceMetrics
}

// NewQuoteService creates a QuoteService. venueA and venueB must be distinct venues.
func NewQuoteService(venueA, venueB VenueClient, cache *QuoteCache, underlying string, log logger.LoggerInterface) (*QuoteService, error) {
	if venueA.Venue() == venueB.Venue() {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("both legs use venue %s", venueA.Venue())))
	}

	s := &QuoteService{
		venueA:     venueA,
		venueB:     venueB,
		cache:      cache,
		underlying: underlying,
		log:        log,
		tracer:     otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *QuoteService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &serviceMetrics{}

	s.metrics.quotesFetched, err = meter.Int64Counter(
		"venue_quotes_fetched_total",
		metric.WithDescription("Quotes received from venues"),
		metric.WithUnit("{quote}"),
	)
	if err != nil {
		return err
	}

	s.metrics.fetchErrors, err = meter.Int64Counter(
		"venue_fetch_errors_total",
		metric.WithDescription("Failed venue quote fetches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.lookups, err = meter.Int64Counter(
		"venue_quote_lookups_total",
		metric.WithDescription("Single market quote lookups by cache result"),
		metric.WithUnit("{lookup}"),
	)
	return err
}

// VenueA returns the venue A client.
func (s *QuoteService) VenueA() VenueClient { return s.venueA }

// VenueB returns the venue B client.
func (s *QuoteService) VenueB() VenueClient { return s.venueB }

// Client returns the client for venue.
func (s *QuoteService) Client(venue domain.Venue) (VenueClient, bool) {
	switch venue {
	case s.venueA.Venue():
		return s.venueA, true
	case s.venueB.Venue():
		return s.venueB, true
	default:
		return nil, false
	}
}

// Refresh fetches both venues concurrently and waits for both.
// A failing venue does not cancel the other.
func (s *QuoteService) Refresh(ctx context.Context) Snapshot {
	ctx, span := s.tracer.Start(ctx, "venue.refresh")
	defer span.End()

	var (
		g          errgroup.Group
		snap       Snapshot
		errA, errB error
	)
	g.Go(func() error {
		snap.A, errA = s.refreshVenue(ctx, s.venueA)
		return nil
	})
	g.Go(func() error {
		snap.B, errB = s.refreshVenue(ctx, s.venueB)
		return nil
	})
	_ = g.Wait()

	if errA != nil || errB != nil {
		snap.Errors = make(map[domain.Venue]error, 2)
		if errA != nil {
			snap.Errors[s.venueA.Venue()] = errA
		}
		if errB != nil {
			snap.Errors[s.venueB.Venue()] = errB
		}
	}

	span.SetAttributes(
		attribute.Int("quotes.a", len(snap.A)),
		attribute.Int("quotes.b", len(snap.B)),
		attribute.Int("venue.errors", len(snap.Errors)),
	)
	return snap
}

func (s *QuoteService) refreshVenue(ctx context.Context, client VenueClient) ([]domain.Quote, error) {
	venue := client.Venue()
	attrs := metric.WithAttributes(attribute.String("venue", string(venue)))

	quotes, err := client.FetchQuotes(ctx, domain.MarketFilter{Underlying: s.underlying})
	if err != nil {
		s.metrics.fetchErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("venue", string(venue)),
			attribute.String("code", string(apperror.GetCode(err))),
		))
		cached := s.cache.Snapshot(venue)
		s.log.Warn(ctx, "venue refresh failed, using cached quotes",
			"venue", venue, "error", err, "cached", len(cached))
		return cached, err
	}

	s.metrics.quotesFetched.Add(ctx, int64(len(quotes)), attrs)
	s.cache.PutAll(quotes)
	s.log.Debug(ctx, "venue refreshed", "venue", venue, "quotes", len(quotes))

	return s.cache.Snapshot(venue), nil
}

// Lookup returns a fresh quote for one market, fetching it on a cache miss.
// The bool is false when the venue no longer lists the market.
func (s *QuoteService) Lookup(ctx context.Context, venue domain.Venue, marketID string) (domain.Quote, bool, error) {
	if q, ok := s.cache.Get(venue, marketID); ok {
		s.metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "hit")))
		return q, true, nil
	}
	s.metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))

	client, ok := s.Client(venue)
	if !ok {
		return domain.Quote{}, false, apperror.Invariant("lookup on unknown venue " + string(venue))
	}

	quotes, err := client.FetchQuotes(ctx, domain.MarketFilter{
		Underlying: s.underlying,
		MarketIDs:  []string{marketID},
	})
	if err != nil {
		return domain.Quote{}, false, err
	}

	var found domain.Quote
	ok = false
	for _, q := range s.cache.PutAll(quotes) {
		if q.MarketID == marketID {
			found, ok = q, true
		}
	}
	return found, ok, nil
}

// Sweep purges expired quotes from the cache.
func (s *QuoteService) Sweep() int {
	return s.cache.SweepExpired()
}
