package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grin-gateway/models"
)

// OrderRepository defines the order-store operations the gateway needs. The
// storefront platform owns orders; this interface is the gateway's window onto
// them.
type OrderRepository interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	// FindPendingGrinOrders returns pending GRIN-method orders created within
	// [since, until]. Orders older than the window are deliberately excluded.
	FindPendingGrinOrders(ctx context.Context, since, until time.Time) ([]models.Order, error)
	FindGrinOrders(ctx context.Context, page, limit int) ([]models.Order, int64, error)

	// SetPaymentMeta writes the payment reference and GRIN amount in a single
	// transaction so readers never observe one without the other.
	SetPaymentMeta(ctx context.Context, orderID uuid.UUID, reference, grinAmount string) error
	SetMetaValue(ctx context.Context, orderID uuid.UUID, key, value string) error
	GetMeta(ctx context.Context, orderID uuid.UUID) (map[string]string, error)

	MarkPending(ctx context.Context, orderID uuid.UUID, reason string) error
	// CompleteOrder flips pending -> completed with a compare-and-set update
	// and appends the audit note only when this call performed the transition.
	// Returns false when the order was already completed (or otherwise not
	// pending), which callers treat as success.
	CompleteOrder(ctx context.Context, orderID uuid.UUID, note string) (bool, error)
	AddNote(ctx context.Context, orderID uuid.UUID, note string) error
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindPendingGrinOrders(ctx context.Context, since, until time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Where("payment_method = ?", models.PaymentMethodGrin).
		Where("created_at BETWEEN ? AND ?", since, until).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormOrderRepository) FindGrinOrders(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("payment_method = ?", models.PaymentMethodGrin)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *GormOrderRepository) SetPaymentMeta(ctx context.Context, orderID uuid.UUID, reference, grinAmount string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertMeta(tx, orderID, models.MetaPaymentReference, reference); err != nil {
			return err
		}
		return upsertMeta(tx, orderID, models.MetaGrinAmount, grinAmount)
	})
}

func (r *GormOrderRepository) SetMetaValue(ctx context.Context, orderID uuid.UUID, key, value string) error {
	return upsertMeta(r.db.WithContext(ctx), orderID, key, value)
}

func (r *GormOrderRepository) GetMeta(ctx context.Context, orderID uuid.UUID) (map[string]string, error) {
	var rows []models.OrderMeta
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&rows).Error; err != nil {
		return nil, err
	}
	meta := make(map[string]string, len(rows))
	for _, row := range rows {
		meta[row.MetaKey] = row.MetaValue
	}
	return meta, nil
}

func (r *GormOrderRepository) MarkPending(ctx context.Context, orderID uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(map[string]interface{}{
				"status":         models.StatusPending,
				"payment_method": models.PaymentMethodGrin,
			}).Error
		if err != nil {
			return err
		}
		return tx.Create(&models.OrderNote{OrderID: orderID, Note: reason}).Error
	})
}

func (r *GormOrderRepository) CompleteOrder(ctx context.Context, orderID uuid.UUID, note string) (bool, error) {
	completed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", orderID, models.StatusPending).
			Updates(map[string]interface{}{
				"status":       models.StatusCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already completed by a concurrent or earlier pass; no note.
			return nil
		}
		completed = true
		return tx.Create(&models.OrderNote{OrderID: orderID, Note: note}).Error
	})
	return completed, err
}

func (r *GormOrderRepository) AddNote(ctx context.Context, orderID uuid.UUID, note string) error {
	return r.db.WithContext(ctx).Create(&models.OrderNote{OrderID: orderID, Note: note}).Error
}

func upsertMeta(tx *gorm.DB, orderID uuid.UUID, key, value string) error {
	row := models.OrderMeta{OrderID: orderID, MetaKey: key, MetaValue: value}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value", "updated_at"}),
	}).Create(&row).Error
}
