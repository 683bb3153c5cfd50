// Package events publishes trade results to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/business/arbitrage/app"
	"github.com/fd1az/prediction-arb/business/arbitrage/domain"
	"github.com/fd1az/prediction-arb/internal/apperror"
	"github.com/fd1az/prediction-arb/internal/logger"
)

const (
	DefaultTopic = "arb.trades"

	EventTrade   = "trade"
	EventLateLeg = "late_leg"

	headerEventType = "event_type"
)

var _ app.Reporter = (*TradePublisher)(nil)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter creates an async Kafka writer. Delivery failures are logged from
// the completion callback.
func NewWriter(brokers []string, topic string, log logger.LoggerInterface) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error(context.Background(), "trade event delivery failed", "messages", len(msgs), "error", err)
			}
		},
	}
}

// LegEvent is one leg of a published trade.
type LegEvent struct {
	Venue        string          `json:"venue"`
	MarketID     string          `json:"market_id"`
	Outcome      string          `json:"outcome"`
	Status       string          `json:"status"`
	Shares       decimal.Decimal `json:"shares"`
	LimitPrice   decimal.Decimal `json:"limit_price"`
	FilledShares decimal.Decimal `json:"filled_shares"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	OrderID      string          `json:"order_id,omitempty"`
	Attempts     int             `json:"attempts"`
	Error        string          `json:"error,omitempty"`
}

// TradeEvent is the message value for trades and late legs.
type TradeEvent struct {
	Type           string          `json:"type"`
	TradeID        string          `json:"trade_id"`
	Status         string          `json:"status,omitempty"`
	MatchKey       string          `json:"match_key"`
	Direction      string          `json:"direction"`
	Cost           decimal.Decimal `json:"cost"`
	ExpectedProfit decimal.Decimal `json:"expected_profit"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
	LegA           *LegEvent       `json:"leg_a,omitempty"`
	LegB           *LegEvent       `json:"leg_b,omitempty"`
	LateLeg        *LegEvent       `json:"late_leg,omitempty"`
	StartedAt      time.Time       `json:"started_at,omitzero"`
	FinishedAt     time.Time       `json:"finished_at,omitzero"`
	LatencyMs      int64           `json:"latency_ms"`
	Error          string          `json:"error,omitempty"`
}

// TradePublisher is a Reporter that publishes every trade that placed
// orders, and every late leg, keyed by guard key so one event's messages
// stay on one partition.
type TradePublisher struct {
	w   MessageWriter
	log logger.LoggerInterface
}

// NewTradePublisher creates a TradePublisher over w.
func NewTradePublisher(w MessageWriter, log logger.LoggerInterface) *TradePublisher {
	return &TradePublisher{w: w, log: log}
}

func (p *TradePublisher) Start(context.Context) error { return nil }

func (p *TradePublisher) ReportOpportunity(context.Context, domain.Opportunity) {}

// ReportTrade publishes executed trades.
func (p *TradePublisher) ReportTrade(ctx context.Context, res domain.TradeResult) {
	if !res.Status.Executed() {
		return
	}
	ev := TradeEvent{
		Type:           EventTrade,
		TradeID:        res.ID,
		Status:         string(res.Status),
		MatchKey:       res.Opportunity.Pair.Key.String(),
		Direction:      string(res.Opportunity.Direction),
		Cost:           res.Opportunity.Cost,
		ExpectedProfit: res.Opportunity.ExpectedProfit,
		RealizedProfit: res.RealizedProfit,
		LegA:           legEvent(res.LegA),
		LegB:           legEvent(res.LegB),
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
		LatencyMs:      res.Latency.Milliseconds(),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	p.publish(ctx, res.Opportunity.GuardKey(), ev)
}

// ReportLateLeg publishes a leg that resolved after the execution timeout.
func (p *TradePublisher) ReportLateLeg(ctx context.Context, late domain.LateLeg) {
	p.publish(ctx, late.Opportunity.GuardKey(), TradeEvent{
		Type:      EventLateLeg,
		TradeID:   late.TradeID,
		MatchKey:  late.Opportunity.Pair.Key.String(),
		Direction: string(late.Opportunity.Direction),
		Cost:      late.Opportunity.Cost,
		LateLeg:   legEvent(late.Leg),
		LatencyMs: late.Leg.Latency.Milliseconds(),
	})
}

// Stop flushes pending messages and closes the writer.
func (p *TradePublisher) Stop() error {
	if err := p.w.Close(); err != nil {
		return apperror.New(apperror.CodePublishFailed, apperror.WithContext("close kafka writer"), apperror.WithCause(err))
	}
	return nil
}

func (p *TradePublisher) publish(ctx context.Context, key string, ev TradeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error(ctx, "marshal trade event", "trade_id", ev.TradeID, "error", err)
		return
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(ev.Type)}},
		Time:    time.Now().UTC(),
	}
	if err := p.w.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Error(ctx, "publish trade event failed", "trade_id", ev.TradeID, "type", ev.Type, "error", err)
	}
}

func legEvent(leg domain.LegResult) *LegEvent {
	ev := &LegEvent{
		Venue:        string(leg.Intent.Venue),
		MarketID:     leg.Intent.MarketID,
		Outcome:      string(leg.Intent.Outcome),
		Status:       string(leg.Status),
		Shares:       leg.Intent.Shares,
		LimitPrice:   leg.Intent.LimitPrice,
		FilledShares: leg.Fill.Shares,
		AvgPrice:     leg.Fill.AvgPrice,
		OrderID:      leg.Fill.OrderID,
		Attempts:     leg.Attempts,
	}
	if leg.Err != nil {
		ev.Error = leg.Err.Error()
	}
	return ev
}
