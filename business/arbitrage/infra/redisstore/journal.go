package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/arbitrage/app"
	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	"github.com/fd1az/prediction-arb/internal/apperror"
	"github.com/fd1az/prediction-arb/internal/logger"
)

const (
	DefaultJournalKey    = "arb:exposures"
	defaultJournalMaxLen = 1000
)

var _ app.Reporter = (*Journal)(nil)

// ExposureRecord is one journal entry: an exposed trade or a late fill.
type ExposureRecord struct {
	Kind      string          `json:"kind"`
	TradeID   string          `json:"trade_id"`
	MatchKey  string          `json:"match_key"`
	Direction string          `json:"direction"`
	Venue     string          `json:"venue"`
	MarketID  string          `json:"market_id"`
	Outcome   string          `json:"outcome"`
	Shares    decimal.Decimal `json:"shares"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	Error     string          `json:"error,omitempty"`
	At        time.Time       `json:"at"`
}

const (
	KindExposed  = "exposed"
	KindLateFill = "late_fill"
)

// Journal is a Reporter that keeps the most recent unhedged fills in a Redis
// list, newest first, for operators to reconcile by hand.
type Journal struct {
	rdb    redis.UniversalClient
	key    string
	maxLen int64
	log    logger.LoggerInterface
}

// NewJournal creates a Journal. Empty key and non-positive maxLen use defaults.
func NewJournal(rdb redis.UniversalClient, key string, maxLen int64, log logger.LoggerInterface) *Journal {
	if key == "" {
		key = DefaultJournalKey
	}
	if maxLen <= 0 {
		maxLen = defaultJournalMaxLen
	}
	return &Journal{rdb: rdb, key: key, maxLen: maxLen, log: log}
}

func (j *Journal) Start(context.Context) error { return nil }

func (j *Journal) ReportOpportunity(context.Context, domain.Opportunity) {}

// ReportTrade records the filled leg of an exposed trade.
func (j *Journal) ReportTrade(ctx context.Context, res domain.TradeResult) {
	if res.Status != domain.TradeExposed {
		return
	}
	filled, ok := res.FilledLeg()
	if !ok {
		return
	}
	rec := newRecord(KindExposed, res.ID, res.Opportunity, filled, res.FinishedAt)
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	j.record(ctx, rec)
}

// ReportLateLeg records a leg that filled after the execution timeout.
func (j *Journal) ReportLateLeg(ctx context.Context, late domain.LateLeg) {
	if !late.Leg.Filled() {
		return
	}
	at := late.Leg.Fill.FilledAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	j.record(ctx, newRecord(KindLateFill, late.TradeID, late.Opportunity, late.Leg, at))
}

func (j *Journal) Stop() error { return nil }

func newRecord(kind, tradeID string, opp domain.Opportunity, leg domain.LegResult, at time.Time) ExposureRecord {
	return ExposureRecord{
		Kind:      kind,
		TradeID:   tradeID,
		MatchKey:  opp.Pair.Key.String(),
		Direction: string(opp.Direction),
		Venue:     string(leg.Intent.Venue),
		MarketID:  leg.Intent.MarketID,
		Outcome:   string(leg.Intent.Outcome),
		Shares:    leg.Fill.Shares,
		AvgPrice:  leg.Fill.AvgPrice,
		At:        at,
	}
}

func (j *Journal) record(ctx context.Context, rec ExposureRecord) {
	if err := j.Append(context.WithoutCancel(ctx), rec); err != nil {
		j.log.Error(ctx, "exposure journal write failed", "trade_id", rec.TradeID, "error", err)
	}
}

// Append pushes rec and trims the list to the configured length.
func (j *Journal) Append(ctx context.Context, rec ExposureRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return apperror.Internal(apperror.CodeInternalError, "marshal exposure record", err)
	}

	pipe := j.rdb.TxPipeline()
	pipe.LPush(ctx, j.key, string(raw))
	pipe.LTrim(ctx, j.key, 0, j.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperror.New(apperror.CodePublishFailed,
			apperror.WithContext("append exposure journal"), apperror.WithCause(err))
	}
	return nil
}

// Recent returns up to n records, newest first.
func (j *Journal) Recent(ctx context.Context, n int64) ([]ExposureRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	raws, err := j.rdb.LRange(ctx, j.key, 0, n-1).Result()
	if err != nil {
		return nil, apperror.Internal(apperror.CodeInternalError, "read exposure journal", err)
	}

	out := make([]ExposureRecord, 0, len(raws))
	for _, raw := range raws {
		var rec ExposureRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			j.log.Warn(ctx, "skipping malformed journal entry", "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
