// Package orders implements the admission-gated bulk submission
// pipeline: load and filter candidate orders, submit the eligible set
// to the trade venue in one call, reconcile the positional response,
// persist outcomes transactionally, and aggregate a per-order
// accounting of the whole batch.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/finclear/oms/internal/events"
	"github.com/finclear/oms/internal/venue"
	"github.com/finclear/oms/pkg/errors"
	"github.com/finclear/oms/pkg/metrics"
	"github.com/finclear/oms/pkg/models"
)

// MaxBatchSize is the largest number of order ids accepted per batch
const MaxBatchSize = 100

// persistAttempts bounds the persistence-layer retry after a successful
// venue call. The venue is never re-called once it has answered.
const persistAttempts = 3

const msgNoVenueResult = "no result returned from trade service for this order"

// Service defines the order operations exposed over HTTP
type Service interface {
	SubmitBatch(ctx context.Context, ids []int64) (*models.BatchSubmitResult, error)
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, int64, error)
}

type service struct {
	logger    *zap.Logger
	repo      *Repository
	venue     venue.BulkSubmitter
	publisher events.Publisher
}

// NewService creates the order service
func NewService(logger *zap.Logger, repo *Repository, submitter venue.BulkSubmitter, publisher events.Publisher) Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &service{
		logger:    logger,
		repo:      repo,
		venue:     submitter,
		publisher: publisher,
	}
}

// outcome is the reconciled result for one eligible order
type outcome struct {
	success      bool
	message      string
	tradeOrderID *int64
}

// SubmitBatch runs one batch through the pipeline. It returns an error
// only for malformed input or a failed candidate load; every outcome
// past that point, including total venue failure, is reported as a
// fully populated BatchSubmitResult with one entry per requested id.
func (s *service) SubmitBatch(ctx context.Context, ids []int64) (*models.BatchSubmitResult, error) {
	if len(ids) == 0 {
		return nil, errors.New(errors.KindValidation, "order id list must not be empty")
	}
	if len(ids) > MaxBatchSize {
		return nil, errors.Newf(errors.KindValidation, "order id list exceeds the maximum of %d entries", MaxBatchSize)
	}

	batchID := uuid.New()
	log := s.logger.With(zap.String("batch_id", batchID.String()), zap.Int("requested", len(ids)))

	plan, err := s.loadAndFilter(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(errors.KindPersistence, "failed to load candidate orders", err)
	}
	log.Info("batch admitted", zap.Int("eligible", len(plan.eligible)))

	if len(plan.eligible) == 0 {
		result := aggregate(plan, nil, "no orders were eligible for submission")
		s.finish(ctx, batchID, log, result)
		return result, nil
	}

	bulkReq, err := buildBulkRequest(plan.eligible)
	if err != nil {
		// The filter should have excluded anything that fails the build
		// check; reaching this point is a batch-level validation
		// failure, reported without touching the venue.
		log.Error("batch build failed after filtering", zap.Error(err))
		result := aggregate(plan, failAllEligible(plan, err.Error()), err.Error())
		s.finish(ctx, batchID, log, result)
		return result, nil
	}

	resp, err := s.venue.SubmitBulk(ctx, bulkReq)
	if err != nil {
		// No local mutation has happened, so the caller may retry the
		// whole batch when the error class allows it.
		log.Warn("venue call failed, no local state mutated",
			zap.Error(err), zap.Bool("retryable", errors.Retryable(err)))
		msg := fmt.Sprintf("batch submission failed: %s", err.Error())
		result := aggregate(plan, failAllEligible(plan, msg), msg)
		s.finish(ctx, batchID, log, result)
		return result, nil
	}

	outcomes := reconcile(plan, resp)
	outcomes = s.persist(ctx, log, plan, outcomes)

	result := aggregate(plan, outcomes, "")
	s.finish(ctx, batchID, log, result)
	return result, nil
}

// buildBulkRequest transforms eligible orders into venue line items in
// eligible order. It re-checks required fields strictly and aborts the
// whole build on the first violation.
func buildBulkRequest(eligible []*models.Order) (*venue.BulkRequest, error) {
	items := make([]venue.TradeOrderItem, 0, len(eligible))
	for _, o := range eligible {
		if !o.SubmittableFieldsPresent() {
			return nil, fmt.Errorf("order %d is missing fields required by the trade venue", o.ID)
		}
		items = append(items, venue.TradeOrderItem{
			OrderID:        o.ID,
			PortfolioID:    o.PortfolioID,
			OrderType:      o.OrderType,
			SecurityID:     o.SecurityID,
			Quantity:       o.Quantity,
			LimitPrice:     o.LimitPrice,
			TradeTimestamp: o.OrderTimestamp,
			BlotterID:      *o.BlotterID,
		})
	}
	return &venue.BulkRequest{TradeOrders: items}, nil
}

// reconcile matches venue results back to eligible orders strictly by
// position. The mapping is built once per batch; positions the venue
// did not answer fail individually without failing the batch.
func reconcile(plan *batchPlan, resp *venue.BulkResponse) []outcome {
	positional := make([]*venue.OrderResult, len(plan.eligible))
	for i := range resp.Results {
		r := &resp.Results[i]
		if r.RequestIndex >= 0 && r.RequestIndex < len(positional) {
			positional[r.RequestIndex] = r
		}
	}

	outcomes := make([]outcome, len(plan.eligible))
	for i := range plan.eligible {
		r := positional[i]
		switch {
		case r == nil:
			outcomes[i] = outcome{message: msgNoVenueResult}
		case r.Status == venue.ResultStatusSuccess && r.TradeOrder != nil:
			id := r.TradeOrder.ID
			outcomes[i] = outcome{success: true, message: "order submitted", tradeOrderID: &id}
		case r.Status == venue.ResultStatusSuccess:
			// Success without a venue-assigned id cannot be persisted.
			outcomes[i] = outcome{message: "trade service reported success without a trade order"}
		default:
			msg := r.Message
			if msg == "" {
				msg = "trade service rejected the order"
			}
			outcomes[i] = outcome{message: msg}
		}
	}
	return outcomes
}

// persist commits every venue-accepted order in one transaction: status
// to SUBMITTED, venue trade order id assigned, version bumped. Each row
// update is guarded on status still being NEW, so a concurrent batch
// that won the race turns this order into an individual failure rather
// than corrupted state.
//
// This is the seam where at-least-once-by-caller retry semantics are
// anchored: the venue call sits strictly outside the transaction, and a
// failed commit is retried here, at the persistence layer only. The
// venue is never re-called with the same batch.
func (s *service) persist(ctx context.Context, log *zap.Logger, plan *batchPlan, outcomes []outcome) []outcome {
	type accepted struct {
		eligibleIdx  int
		orderID      int64
		tradeOrderID int64
	}
	var toPersist []accepted
	for i, o := range outcomes {
		if o.success {
			toPersist = append(toPersist, accepted{
				eligibleIdx:  i,
				orderID:      plan.eligible[i].ID,
				tradeOrderID: *o.tradeOrderID,
			})
		}
	}
	if len(toPersist) == 0 {
		return outcomes
	}

	var lastErr error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		// Conditional-update losses are recomputed per attempt so a
		// rolled-back transaction leaves no stale marks behind.
		var lost []int
		err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
			lost = lost[:0]
			for _, a := range toPersist {
				updated, err := MarkSubmitted(tx, a.orderID, a.tradeOrderID)
				if err != nil {
					return err
				}
				if !updated {
					lost = append(lost, a.eligibleIdx)
				}
			}
			return nil
		})
		if err == nil {
			for _, idx := range lost {
				outcomes[idx] = outcome{message: "order state changed during submission and was not persisted"}
			}
			return outcomes
		}
		lastErr = err
		log.Warn("batch persist attempt failed",
			zap.Int("attempt", attempt), zap.Error(err))
		if attempt < persistAttempts {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
	}

	log.Error("batch persist failed after venue accept; venue will not be re-called",
		zap.Int("accepted", len(toPersist)), zap.Error(lastErr))
	for _, a := range toPersist {
		outcomes[a.eligibleIdx] = outcome{
			message: fmt.Sprintf("order accepted by trade venue (trade order %d) but local persistence failed", a.tradeOrderID),
		}
	}
	return outcomes
}

// failAllEligible produces outcomes marking every eligible order failed
// with the same batch-level message.
func failAllEligible(plan *batchPlan, msg string) []outcome {
	outcomes := make([]outcome, len(plan.eligible))
	for i := range outcomes {
		outcomes[i] = outcome{message: msg}
	}
	return outcomes
}

// aggregate builds the final BatchSubmitResult: one entry per original
// request position, in original order, ineligible positions included.
// Overall status is SUCCESS only when every eligible order succeeded,
// FAILURE when nothing eligible succeeded or the venue was never
// reached, PARTIAL otherwise.
func aggregate(plan *batchPlan, outcomes []outcome, batchMessage string) *models.BatchSubmitResult {
	result := &models.BatchSubmitResult{
		TotalRequested: len(plan.orderIDs),
		Results:        make([]models.PerOrderResult, len(plan.orderIDs)),
	}

	eligibleSucceeded, eligibleFailed := 0, 0
	for i, id := range plan.orderIDs {
		entry := models.PerOrderResult{
			OrderID:      id,
			Status:       models.OrderResultFailed,
			RequestIndex: i,
		}
		sl := plan.slots[i]
		if sl.eligibleIdx < 0 {
			entry.Message = sl.reason
		} else {
			o := outcomes[sl.eligibleIdx]
			entry.Message = o.message
			if o.success {
				entry.Status = models.OrderResultSuccess
				entry.TradeOrderID = o.tradeOrderID
				eligibleSucceeded++
			} else {
				eligibleFailed++
			}
		}
		if entry.Status == models.OrderResultSuccess {
			result.Successful++
		} else {
			result.Failed++
		}
		result.Results[i] = entry
	}

	switch {
	case len(plan.eligible) == 0 || eligibleSucceeded == 0:
		result.Status = models.BatchStatusFailure
	case eligibleFailed == 0:
		result.Status = models.BatchStatusSuccess
	default:
		result.Status = models.BatchStatusPartial
	}

	result.Message = batchMessage
	if result.Message == "" {
		result.Message = fmt.Sprintf("%d of %d orders submitted", result.Successful, result.TotalRequested)
	}
	return result
}

// finish records metrics and emits the completion event for one batch
func (s *service) finish(ctx context.Context, batchID uuid.UUID, log *zap.Logger, result *models.BatchSubmitResult) {
	metrics.BatchesSubmitted.WithLabelValues(result.Status).Inc()
	metrics.BatchOrders.WithLabelValues("success").Add(float64(result.Successful))
	metrics.BatchOrders.WithLabelValues("failed").Add(float64(result.Failed))
	log.Info("batch completed",
		zap.String("status", result.Status),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed))
	// Publishing is best-effort and must not hold up the response, nor
	// die with the request context.
	go s.publisher.PublishBatchResult(context.WithoutCancel(ctx), batchID, result)
}

// CreateOrder stores a new order in NEW status with no trade order id
func (s *service) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	if !req.Quantity.IsPositive() || !req.LimitPrice.IsPositive() {
		return nil, errors.New(errors.KindValidation, "quantity and limit price must be positive")
	}
	order := &models.Order{
		Status:         models.OrderStatusNew,
		PortfolioID:    req.PortfolioID,
		SecurityID:     req.SecurityID,
		OrderType:      req.OrderType,
		Quantity:       req.Quantity,
		LimitPrice:     req.LimitPrice,
		OrderTimestamp: time.Now().UTC(),
		BlotterID:      req.BlotterID,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, errors.Wrap(errors.KindPersistence, "failed to create order", err)
	}
	return order, nil
}

// GetOrder loads one order by id
func (s *service) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf(errors.KindNotFound, "order %d not found", id)
		}
		return nil, errors.Wrap(errors.KindPersistence, "failed to load order", err)
	}
	return order, nil
}

// ListOrders returns a page of orders
func (s *service) ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	found, count, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(errors.KindPersistence, "failed to list orders", err)
	}
	return found, count, nil
}
