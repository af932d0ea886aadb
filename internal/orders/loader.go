package orders

import (
	"context"

	"github.com/finclear/oms/pkg/models"
)

// Reasons an order is excluded from a batch before the venue is called.
// Excluded ids still appear in the final per-order results carrying one
// of these messages.
const (
	reasonNotFound      = "order not found"
	reasonNotNew        = "order is not in NEW status and cannot be submitted"
	reasonAlreadyRouted = "order already has a trade order id"
	reasonMissingFields = "order is missing fields required for submission"
)

// slot maps one position of the original request either to an index in
// the eligible list or to an ineligibility reason.
type slot struct {
	eligibleIdx int
	reason      string
}

// batchPlan is the ordered mapping built once per batch. The eligible
// list preserves request order; venue results are later matched back
// through it by position.
type batchPlan struct {
	orderIDs []int64
	slots    []slot
	eligible []*models.Order
}

// loadAndFilter loads all requested orders in one query and classifies
// every request position independently. Duplicates are not
// deduplicated: each occurrence of an id gets its own slot, and each
// NEW occurrence its own eligible entry.
func (s *service) loadAndFilter(ctx context.Context, ids []int64) (*batchPlan, error) {
	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Order, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}

	plan := &batchPlan{
		orderIDs: ids,
		slots:    make([]slot, len(ids)),
	}
	for i, id := range ids {
		order, ok := byID[id]
		switch {
		case !ok:
			plan.slots[i] = slot{eligibleIdx: -1, reason: reasonNotFound}
		case order.Status != models.OrderStatusNew:
			plan.slots[i] = slot{eligibleIdx: -1, reason: reasonNotNew}
		case order.TradeOrderID != nil:
			plan.slots[i] = slot{eligibleIdx: -1, reason: reasonAlreadyRouted}
		case !order.SubmittableFieldsPresent():
			plan.slots[i] = slot{eligibleIdx: -1, reason: reasonMissingFields}
		default:
			plan.slots[i] = slot{eligibleIdx: len(plan.eligible)}
			plan.eligible = append(plan.eligible, order)
		}
	}
	return plan, nil
}
