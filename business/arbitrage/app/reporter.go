package app

import (
	"context"
	"errors"

	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
)

var _ Reporter = (MultiReporter)(nil)

// MultiReporter fans every report out to all reporters in order.
type MultiReporter []Reporter

// Start starts all reporters and stops at the first failure.
func (m MultiReporter) Start(ctx context.Context) error {
	for _, r := range m {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiReporter) ReportOpportunity(ctx context.Context, opp domain.Opportunity) {
	for _, r := range m {
		r.ReportOpportunity(ctx, opp)
	}
}

func (m MultiReporter) ReportTrade(ctx context.Context, res domain.TradeResult) {
	for _, r := range m {
		r.ReportTrade(ctx, res)
	}
}

func (m MultiReporter) ReportLateLeg(ctx context.Context, late domain.LateLeg) {
	for _, r := range m {
		r.ReportLateLeg(ctx, late)
	}
}

// Stop stops every reporter and joins their errors.
func (m MultiReporter) Stop() error {
	var errs []error
	for _, r := range m {
		if err := r.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
