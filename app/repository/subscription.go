package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var ErrSubscriptionNotFound = errors.New("subscription not found")

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, subscription *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			order_id, user_id, price_id, status, provider, provider_subscription_id,
			anchor_at, current_period_start, current_period_end, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.OrderID,
		subscription.UserID,
		subscription.PriceID,
		subscription.Status,
		subscription.Provider,
		subscription.ProviderSubscriptionID,
		nullableTimeValue(subscription.AnchorAt),
		nullableTimeValue(subscription.CurrentPeriodStart),
		nullableTimeValue(subscription.CurrentPeriodEnd),
		subscription.CreatedAt,
		subscription.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	subscription.ID = uint64(id)
	return nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, subscription *entity.Subscription) error {
	query := `
		UPDATE subscriptions SET
			price_id = ?,
			status = ?,
			provider_subscription_id = ?,
			current_period_start = ?,
			current_period_end = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		subscription.PriceID,
		subscription.Status,
		subscription.ProviderSubscriptionID,
		nullableTimeValue(subscription.CurrentPeriodStart),
		nullableTimeValue(subscription.CurrentPeriodEnd),
		subscription.UpdatedAt,
		subscription.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *SubscriptionRepository) FindByProviderSubscriptionID(ctx context.Context, provider int32, providerSubscriptionID string) (*entity.Subscription, error) {
	query := `
		SELECT id, order_id, user_id, price_id, status, provider, provider_subscription_id,
			anchor_at, current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE provider = ? AND provider_subscription_id = ?
	`

	rows, err := r.db.QueryContext(ctx, query, provider, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanSubscription(rows)
}

// ListActiveByPriceID returns every non-canceled subscription billed on the
// given price. Used to build swap batches.
func (r *SubscriptionRepository) ListActiveByPriceID(ctx context.Context, priceID uint64, limit int32) ([]*entity.Subscription, error) {
	query := `
		SELECT id, order_id, user_id, price_id, status, provider, provider_subscription_id,
			anchor_at, current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE price_id = ? AND status != ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, priceID, entity.SubscriptionStatusCanceled, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Subscription, 0)
	for rows.Next() {
		item, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanSubscription(rows *sql.Rows) (*entity.Subscription, error) {
	subscription := &entity.Subscription{}
	var anchorAt, periodStart, periodEnd sql.NullTime
	if err := rows.Scan(
		&subscription.ID,
		&subscription.OrderID,
		&subscription.UserID,
		&subscription.PriceID,
		&subscription.Status,
		&subscription.Provider,
		&subscription.ProviderSubscriptionID,
		&anchorAt,
		&periodStart,
		&periodEnd,
		&subscription.CreatedAt,
		&subscription.UpdatedAt,
	); err != nil {
		return nil, err
	}
	subscription.AnchorAt = timePtrFromNull(anchorAt)
	subscription.CurrentPeriodStart = timePtrFromNull(periodStart)
	subscription.CurrentPeriodEnd = timePtrFromNull(periodEnd)
	return subscription, nil
}
