package repository

import (
	"context"

	"github.com/spec-kit/repairshop-service/internal/domain"
)

// CustomerRepository resolves and creates customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Customer, error)
}

type customerRepository struct {
	db DB
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (name, phone, email)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, customer.Name, customer.Phone, customer.Email).
		Scan(&customer.ID, &customer.CreatedAt)
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const query = `SELECT id, name, phone, email, created_at FROM customers WHERE id=$1`
	var customer domain.Customer
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&customer.ID, &customer.Name, &customer.Phone, &customer.Email, &customer.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) GetByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	const query = `SELECT id, name, phone, email, created_at FROM customers WHERE phone=$1`
	var customer domain.Customer
	if err := r.db.QueryRow(ctx, query, phone).Scan(
		&customer.ID, &customer.Name, &customer.Phone, &customer.Email, &customer.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &customer, nil
}

// LocationRepository resolves named locations.
type LocationRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Location, error)
	List(ctx context.Context) ([]domain.Location, error)
}

type locationRepository struct {
	db DB
}

func (r *locationRepository) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	const query = `SELECT id, name, is_workshop FROM locations WHERE id=$1`
	var location domain.Location
	if err := r.db.QueryRow(ctx, query, id).Scan(&location.ID, &location.Name, &location.IsWorkshop); err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *locationRepository) List(ctx context.Context) ([]domain.Location, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, is_workshop FROM locations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Location
	for rows.Next() {
		var location domain.Location
		if err := rows.Scan(&location.ID, &location.Name, &location.IsWorkshop); err != nil {
			return nil, err
		}
		result = append(result, location)
	}
	return result, rows.Err()
}

// PaymentMethodRepository resolves settlement channels.
type PaymentMethodRepository interface {
	GetByID(ctx context.Context, id string) (*domain.PaymentMethod, error)
}

type paymentMethodRepository struct {
	db DB
}

func (r *paymentMethodRepository) GetByID(ctx context.Context, id string) (*domain.PaymentMethod, error) {
	const query = `SELECT id, name, is_user_selectable FROM payment_methods WHERE id=$1`
	var method domain.PaymentMethod
	if err := r.db.QueryRow(ctx, query, id).Scan(&method.ID, &method.Name, &method.UserSelectable); err != nil {
		return nil, err
	}
	return &method, nil
}

// PaymentCategoryRepository resolves payment categories.
type PaymentCategoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.PaymentCategory, error)
	GetOrCreateByName(ctx context.Context, name string) (*domain.PaymentCategory, error)
}

type paymentCategoryRepository struct {
	db DB
}

func (r *paymentCategoryRepository) GetByID(ctx context.Context, id string) (*domain.PaymentCategory, error) {
	const query = `SELECT id, name FROM payment_categories WHERE id=$1`
	var category domain.PaymentCategory
	if err := r.db.QueryRow(ctx, query, id).Scan(&category.ID, &category.Name); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *paymentCategoryRepository) GetOrCreateByName(ctx context.Context, name string) (*domain.PaymentCategory, error) {
	const query = `
        INSERT INTO payment_categories (name) VALUES ($1)
        ON CONFLICT (name) DO UPDATE SET name=EXCLUDED.name
        RETURNING id, name`
	var category domain.PaymentCategory
	if err := r.db.QueryRow(ctx, query, name).Scan(&category.ID, &category.Name); err != nil {
		return nil, err
	}
	return &category, nil
}
