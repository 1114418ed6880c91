package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the querier subset shared by *pgxpool.Pool and pgx.Tx, so the same
// repository code runs inside and outside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles all repositories plus the transaction boundary. Services
// never open transactions themselves; they call WithinTx and receive a
// tx-scoped Store.
type Store interface {
	Tasks() TaskRepository
	Activities() ActivityRepository
	Payments() PaymentRepository
	Adjustments() CostAdjustmentRepository
	Users() UserRepository
	Customers() CustomerRepository
	Locations() LocationRepository
	Methods() PaymentMethodRepository
	Categories() PaymentCategoryRepository

	WithinTx(ctx context.Context, fn func(Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DB
}

// NewStore builds a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Tasks() TaskRepository               { return &taskRepository{db: s.db} }
func (s *pgStore) Activities() ActivityRepository      { return &activityRepository{db: s.db} }
func (s *pgStore) Payments() PaymentRepository         { return &paymentRepository{db: s.db} }
func (s *pgStore) Adjustments() CostAdjustmentRepository {
	return &costAdjustmentRepository{db: s.db}
}
func (s *pgStore) Users() UserRepository           { return &userRepository{db: s.db} }
func (s *pgStore) Customers() CustomerRepository   { return &customerRepository{db: s.db} }
func (s *pgStore) Locations() LocationRepository   { return &locationRepository{db: s.db} }
func (s *pgStore) Methods() PaymentMethodRepository {
	return &paymentMethodRepository{db: s.db}
}
func (s *pgStore) Categories() PaymentCategoryRepository {
	return &paymentCategoryRepository{db: s.db}
}

// WithinTx runs fn against a tx-scoped Store. A nested call reuses the
// ambient transaction.
func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &pgStore{pool: nil, db: tx}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
