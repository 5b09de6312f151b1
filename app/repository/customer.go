package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

var (
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrCustomerAlreadyExists = errors.New("customer already exists")
)

// CustomerRepository stores user-to-gateway customer links. A unique key on
// (user_id, provider) enforces at most one gateway customer per user.
type CustomerRepository struct {
	db DBTX
}

func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *entity.Customer) error {
	query := `
		INSERT INTO customers (
			user_id, provider, provider_customer_id, default_payment_method_id, synced,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		customer.UserID,
		customer.Provider,
		customer.ProviderCustomerID,
		nullableStringValue(customer.DefaultPaymentMethodID),
		customer.Synced,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrCustomerAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	customer.ID = uint64(id)
	return nil
}

func (r *CustomerRepository) Update(ctx context.Context, customer *entity.Customer) error {
	query := `
		UPDATE customers SET
			provider_customer_id = ?,
			default_payment_method_id = ?,
			synced = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		customer.ProviderCustomerID,
		nullableStringValue(customer.DefaultPaymentMethodID),
		customer.Synced,
		customer.UpdatedAt,
		customer.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func (r *CustomerRepository) FindByUserID(ctx context.Context, provider int32, userID uint64) (*entity.Customer, error) {
	query := `
		SELECT id, user_id, provider, provider_customer_id, default_payment_method_id, synced,
			created_at, updated_at
		FROM customers
		WHERE provider = ? AND user_id = ?
	`

	customer := &entity.Customer{}
	var defaultMethod sql.NullString
	err := r.db.QueryRowContext(ctx, query, provider, userID).Scan(
		&customer.ID,
		&customer.UserID,
		&customer.Provider,
		&customer.ProviderCustomerID,
		&defaultMethod,
		&customer.Synced,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	customer.DefaultPaymentMethodID = stringPtrFromNull(defaultMethod)
	return customer, nil
}
