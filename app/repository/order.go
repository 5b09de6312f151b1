package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (
			request_id, caller_service, user_id, product_id, price_id,
			status, one_time, provider, provider_subscription_id,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.RequestID,
		order.CallerService,
		order.UserID,
		order.ProductID,
		order.PriceID,
		order.Status,
		order.OneTime,
		order.Provider,
		nullableStringValue(order.ProviderSubscriptionID),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	query := `
		UPDATE orders SET
			status = ?,
			provider_subscription_id = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		order.Status,
		nullableStringValue(order.ProviderSubscriptionID),
		order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	query := `
		SELECT id, request_id, caller_service, user_id, product_id, price_id,
			status, one_time, provider, provider_subscription_id, created_at, updated_at
		FROM orders
		WHERE id = ?
	`
	return scanOrderRow(r.db.QueryRowContext(ctx, query, id))
}

func (r *OrderRepository) FindByCallerRequestID(ctx context.Context, callerService, requestID string) (*entity.Order, error) {
	query := `
		SELECT id, request_id, caller_service, user_id, product_id, price_id,
			status, one_time, provider, provider_subscription_id, created_at, updated_at
		FROM orders
		WHERE caller_service = ? AND request_id = ?
	`
	return scanOrderRow(r.db.QueryRowContext(ctx, query, callerService, requestID))
}

func scanOrderRow(row *sql.Row) (*entity.Order, error) {
	order := &entity.Order{}
	var providerSubscriptionID sql.NullString
	err := row.Scan(
		&order.ID,
		&order.RequestID,
		&order.CallerService,
		&order.UserID,
		&order.ProductID,
		&order.PriceID,
		&order.Status,
		&order.OneTime,
		&order.Provider,
		&providerSubscriptionID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	order.ProviderSubscriptionID = stringPtrFromNull(providerSubscriptionID)
	return order, nil
}

type OrderEventRepository struct {
	db DBTX
}

func NewOrderEventRepository(db DBTX) *OrderEventRepository {
	return &OrderEventRepository{db: db}
}

func (r *OrderEventRepository) Create(ctx context.Context, event *entity.OrderEvent) error {
	query := `
		INSERT INTO order_events (order_id, event_type, old_status, new_status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.OrderID,
		event.EventType,
		nullableInt32Value(event.OldStatus),
		event.NewStatus,
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}
