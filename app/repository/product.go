package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var ErrProductNotFound = errors.New("product not found")

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (name, description, active, provider, provider_product_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		product.Name,
		nullableStringValue(product.Description),
		product.Active,
		product.Provider,
		nullableStringValue(product.ProviderProductID),
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	product.ID = uint64(id)

	for _, price := range product.Prices {
		price.ProductID = product.ID
		if err := r.createPrice(ctx, price); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProductRepository) createPrice(ctx context.Context, price *entity.Price) error {
	query := `
		INSERT INTO prices (product_id, unit_amount_cents, currency, billing_interval, interval_count, provider_price_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		price.ProductID,
		price.UnitAmountCents,
		price.Currency,
		price.Interval,
		price.IntervalCount,
		nullableStringValue(price.ProviderPriceID),
		price.CreatedAt,
		price.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	price.ID = uint64(id)
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, product *entity.Product) error {
	query := `
		UPDATE products SET
			name = ?,
			description = ?,
			active = ?,
			provider = ?,
			provider_product_id = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		product.Name,
		nullableStringValue(product.Description),
		product.Active,
		product.Provider,
		nullableStringValue(product.ProviderProductID),
		product.UpdatedAt,
		product.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	for _, price := range product.Prices {
		if err := r.updatePrice(ctx, price); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProductRepository) updatePrice(ctx context.Context, price *entity.Price) error {
	if price.ID == 0 {
		return r.createPrice(ctx, price)
	}

	query := `
		UPDATE prices SET
			unit_amount_cents = ?,
			currency = ?,
			billing_interval = ?,
			interval_count = ?,
			provider_price_id = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		price.UnitAmountCents,
		price.Currency,
		price.Interval,
		price.IntervalCount,
		nullableStringValue(price.ProviderPriceID),
		price.UpdatedAt,
		price.ID,
	)
	return err
}

func (r *ProductRepository) FindByID(ctx context.Context, id uint64) (*entity.Product, error) {
	query := `
		SELECT id, name, description, active, provider, provider_product_id, created_at, updated_at
		FROM products
		WHERE id = ?
	`

	product := &entity.Product{}
	var description, providerProductID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&description,
		&product.Active,
		&product.Provider,
		&providerProductID,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	product.Description = stringPtrFromNull(description)
	product.ProviderProductID = stringPtrFromNull(providerProductID)

	prices, err := r.pricesForProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	product.Prices = prices
	return product, nil
}

func (r *ProductRepository) FindPriceByID(ctx context.Context, id uint64) (*entity.Price, error) {
	query := `
		SELECT id, product_id, unit_amount_cents, currency, billing_interval, interval_count, provider_price_id, created_at, updated_at
		FROM prices
		WHERE id = ?
	`

	price := &entity.Price{}
	var providerPriceID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&price.ID,
		&price.ProductID,
		&price.UnitAmountCents,
		&price.Currency,
		&price.Interval,
		&price.IntervalCount,
		&providerPriceID,
		&price.CreatedAt,
		&price.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	price.ProviderPriceID = stringPtrFromNull(providerPriceID)
	return price, nil
}

func (r *ProductRepository) pricesForProduct(ctx context.Context, productID uint64) ([]*entity.Price, error) {
	query := `
		SELECT id, product_id, unit_amount_cents, currency, billing_interval, interval_count, provider_price_id, created_at, updated_at
		FROM prices
		WHERE product_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Price, 0)
	for rows.Next() {
		price := &entity.Price{}
		var providerPriceID sql.NullString
		if err := rows.Scan(
			&price.ID,
			&price.ProductID,
			&price.UnitAmountCents,
			&price.Currency,
			&price.Interval,
			&price.IntervalCount,
			&providerPriceID,
			&price.CreatedAt,
			&price.UpdatedAt,
		); err != nil {
			return nil, err
		}
		price.ProviderPriceID = stringPtrFromNull(providerPriceID)
		items = append(items, price)
	}
	return items, rows.Err()
}
