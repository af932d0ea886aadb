package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/finclear/oms/pkg/models"
)

// Repository wraps order persistence. The batch pipeline needs one
// read-many query and one conditional multi-row update per batch; the
// thin CRUD surface reuses the same type.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates an order repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new order
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// FindByID loads one order
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}

// FindByIDs loads all requested orders in one query. Ids absent from
// the store are simply absent from the result.
func (r *Repository) FindByIDs(ctx context.Context, ids []int64) ([]*models.Order, error) {
	var found []*models.Order
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	return found, nil
}

// List returns a page of orders newest first
func (r *Repository) List(ctx context.Context, limit, offset int) ([]*models.Order, int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	var found []*models.Order
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset).Find(&found).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return found, count, nil
}

// Transaction runs fn inside one database transaction
func (r *Repository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// MarkSubmitted conditionally flips one order to SUBMITTED and assigns
// its venue trade order id, inside the caller's transaction. The
// status guard makes concurrent batches naming the same order safe: the
// loser of the race affects zero rows and reports failure instead of
// overwriting state.
func MarkSubmitted(tx *gorm.DB, orderID, tradeOrderID int64) (bool, error) {
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusNew).
		Updates(map[string]interface{}{
			"status":         models.OrderStatusSubmitted,
			"trade_order_id": tradeOrderID,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark order %d submitted: %w", orderID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
