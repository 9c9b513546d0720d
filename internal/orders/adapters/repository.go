package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bookstore/internal/orders/domain"
	"bookstore/pkg/db"
	apperrors "bookstore/pkg/errors"
)

// OrderModel is the GORM model for orders (persistence layer)
type OrderModel struct {
	ID                       string             `gorm:"primaryKey;size:36"`
	StudentName              string             `gorm:"size:200;not null"`
	Cart                     []domain.LineItem  `gorm:"serializer:json;type:jsonb;not null"`
	Total                    decimal.Decimal    `gorm:"type:numeric(12,2);not null"`
	Status                   domain.OrderStatus `gorm:"size:20;not null;default:'pending';index"`
	PaymentProvider          string             `gorm:"size:40"`
	ProviderTransactionID    string             `gorm:"size:100"`
	ProviderConfirmationCode string             `gorm:"size:100"`
	PaymentReference         string             `gorm:"size:100"`
	CreatedAt                time.Time          `gorm:"autoCreateTime;index"`
	UpdatedAt                time.Time          `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// Migrate creates or updates the orders table.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(&OrderModel{})
}

// GormOrderRepository implements OrderRepository on GORM.
// Production runs on PostgreSQL; tests use SQLite.
type GormOrderRepository struct {
	provider db.Provider
}

// NewGormOrderRepository creates a repository over the shared handle
func NewGormOrderRepository(provider db.Provider) *GormOrderRepository {
	return &GormOrderRepository{provider: provider}
}

func (r *GormOrderRepository) conn(ctx context.Context) (*gorm.DB, error) {
	conn, err := r.provider.Get(ctx)
	if err != nil {
		return nil, apperrors.NewInternal("database unavailable", err)
	}
	return conn.WithContext(ctx), nil
}

// Create inserts a new order and assigns its ID
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}

	model := toModel(order)
	model.ID = uuid.New().String()

	if err := conn.Create(model).Error; err != nil {
		return apperrors.NewInternal("failed to create order", err)
	}

	order.ID = model.ID
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID retrieves an order by ID
func (r *GormOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	var model OrderModel
	result := conn.Where("id = ?", id).Take(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.NewOrderNotFound(id)
		}
		return nil, apperrors.NewInternal("failed to get order", result.Error)
	}

	return toDomain(&model), nil
}

// FindPending retrieves the order only while it is pending
func (r *GormOrderRepository) FindPending(ctx context.Context, id string) (*domain.Order, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	var model OrderModel
	result := conn.Where("id = ? AND status = ?", id, domain.OrderStatusPending).Take(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewInternal("failed to get pending order", result.Error)
	}

	return toDomain(&model), nil
}

// ResolvePending sets a terminal status with a single conditional UPDATE.
// Only the caller whose update matched the pending row gets true.
func (r *GormOrderRepository) ResolvePending(ctx context.Context, id string, res domain.Resolution) (bool, error) {
	if !res.Status.IsTerminal() {
		return false, domain.ErrInvalidStatus
	}

	conn, err := r.conn(ctx)
	if err != nil {
		return false, err
	}

	updates := map[string]interface{}{
		"status":     res.Status,
		"updated_at": time.Now().UTC(),
	}
	if res.ProviderTransactionID != "" {
		updates["provider_transaction_id"] = res.ProviderTransactionID
	}
	if res.ProviderConfirmationCode != "" {
		updates["provider_confirmation_code"] = res.ProviderConfirmationCode
	}

	result := conn.Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, domain.OrderStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, apperrors.NewInternal("failed to resolve order", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// List returns orders newest first, optionally filtered by status
func (r *GormOrderRepository) List(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := conn.Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var models []OrderModel
	if err := query.Find(&models).Error; err != nil {
		return nil, apperrors.NewInternal("failed to list orders", err)
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = toDomain(&models[i])
	}
	return orders, nil
}

// Update writes cart and total in one statement. Status is left alone so an
// admin edit never races the payment path's conditional update.
func (r *GormOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}

	model := toModel(order)
	model.UpdatedAt = time.Now().UTC()

	result := conn.Model(&OrderModel{ID: order.ID}).
		Select("cart", "total", "updated_at").
		Updates(model)
	if result.Error != nil {
		return apperrors.NewInternal("failed to update order", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewOrderNotFound(order.ID)
	}

	order.UpdatedAt = model.UpdatedAt
	return nil
}

// Delete removes an order permanently
func (r *GormOrderRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}

	result := conn.Where("id = ?", id).Delete(&OrderModel{})
	if result.Error != nil {
		return apperrors.NewInternal("failed to delete order", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewOrderNotFound(id)
	}
	return nil
}

// toModel converts a domain entity to a GORM model
func toModel(order *domain.Order) *OrderModel {
	cart := order.Cart
	if cart == nil {
		cart = []domain.LineItem{}
	}
	return &OrderModel{
		ID:                       order.ID,
		StudentName:              order.StudentName,
		Cart:                     cart,
		Total:                    order.Total,
		Status:                   order.Status,
		PaymentProvider:          order.PaymentProvider,
		ProviderTransactionID:    order.ProviderTransactionID,
		ProviderConfirmationCode: order.ProviderConfirmationCode,
		PaymentReference:         order.PaymentReference,
		CreatedAt:                order.CreatedAt,
		UpdatedAt:                order.UpdatedAt,
	}
}

// toDomain converts a GORM model to a domain entity
func toDomain(model *OrderModel) *domain.Order {
	return &domain.Order{
		ID:                       model.ID,
		StudentName:              model.StudentName,
		Cart:                     model.Cart,
		Total:                    model.Total,
		Status:                   model.Status,
		PaymentProvider:          model.PaymentProvider,
		ProviderTransactionID:    model.ProviderTransactionID,
		ProviderConfirmationCode: model.ProviderConfirmationCode,
		PaymentReference:         model.PaymentReference,
		CreatedAt:                model.CreatedAt,
		UpdatedAt:                model.UpdatedAt,
	}
}
