package submitter

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"kraken-ladder-go/internal/exchange"
	"kraken-ladder-go/internal/metrics"
	"kraken-ladder-go/internal/models"
)

// ErrEmptyPlan is returned when a plan has no orders.
var ErrEmptyPlan = errors.New("ladder has no orders to submit")

// Submitter sends a plan to the exchange in batches and reports per rung.
type Submitter struct {
	exchange  exchange.Exchange
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// New returns a Submitter. batchSize is clamped to 1..15.
func New(ex exchange.Exchange, batchSize int, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize < 1 || batchSize > exchange.MaxOrdersPerBatch {
		batchSize = exchange.MaxOrdersPerBatch
	}
	return &Submitter{exchange: ex, batchSize: batchSize, logger: logger, now: time.Now}
}

// Submit sends every batch in order. A failed batch marks its rungs failed and
// the remaining batches are still sent. The returned error is only set when
// nothing could be attempted.
func (s *Submitter) Submit(ctx context.Context, plan *Plan, validate bool) (*models.SubmitReport, error) {
	if plan == nil || len(plan.Orders) == 0 {
		return nil, ErrEmptyPlan
	}
	pair := plan.Instrument.Pair

	report := &models.SubmitReport{
		LadderID:  plan.LadderID.String(),
		Pair:      pair,
		Validated: validate,
		Rungs:     make([]models.RungResult, 0, len(plan.Orders)),
		Submitted: s.now().UTC(),
	}

	for b, batch := range Batches(plan.Orders, s.batchSize) {
		started := time.Now()
		results := s.sendBatch(ctx, pair, batch, validate)
		metrics.BatchLatency.WithLabelValues(pair).Observe(time.Since(started).Seconds())

		for i := range results {
			results[i].Batch = b
			if results[i].OK() {
				metrics.RungsSubmitted.WithLabelValues(pair, "ok").Inc()
			} else {
				metrics.RungsSubmitted.WithLabelValues(pair, "failed").Inc()
			}
		}
		report.Rungs = append(report.Rungs, results...)
	}

	logFn := s.logger.Info
	if report.Failed() > 0 {
		logFn = s.logger.Warn
	}
	logFn("ladder submitted",
		zap.String("ladder_id", report.LadderID),
		zap.String("pair", pair),
		zap.Bool("validate", validate),
		zap.Int("rungs", len(report.Rungs)),
		zap.Int("failed", report.Failed()))
	return report, nil
}

// sendBatch returns one result per order, in order.
func (s *Submitter) sendBatch(ctx context.Context, pair string, batch []models.OrderRequest, validate bool) []models.RungResult {
	results := make([]models.RungResult, len(batch))
	for i, o := range batch {
		results[i] = models.RungResult{Rung: o.Rung, ClOrdID: o.ClOrdID}
	}

	fail := func(err error) []models.RungResult {
		s.logger.Error("batch submission failed", zap.String("pair", pair), zap.Int("orders", len(batch)), zap.Error(err))
		for i := range results {
			results[i].Error = err.Error()
		}
		return results
	}

	// AddOrderBatch needs at least two orders.
	if len(batch) < exchange.MinOrdersPerBatch {
		res, err := s.exchange.AddOrder(ctx, pair, batch[0], validate)
		if err != nil {
			return fail(err)
		}
		if len(res.TxID) > 0 {
			results[0].TxID = res.TxID[0]
		}
		results[0].Descr = res.Descr.Order
		results[0].Close = res.Descr.Close
		return results
	}

	res, err := s.exchange.AddOrderBatch(ctx, pair, batch, validate)
	if err != nil {
		return fail(err)
	}
	for i := range results {
		if i >= len(res.Orders) {
			results[i].Error = "missing from exchange response"
			continue
		}
		r := res.Orders[i]
		results[i].TxID = r.TxID
		results[i].Error = r.Error
		if r.Descr != nil {
			results[i].Descr = r.Descr.Order
			results[i].Close = r.Descr.Close
		}
	}
	return results
}
