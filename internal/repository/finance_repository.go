package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repairshop-service/internal/domain"
)

// PaymentRepository stores ledger payment entries.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	ListByTask(ctx context.Context, taskID string) ([]domain.Payment, error)
	ListInWindow(ctx context.Context, from, to time.Time) ([]domain.Payment, error)
}

type paymentRepository struct {
	db DB
}

// NewPaymentRepository builds the repository.
func NewPaymentRepository(db DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	const query = `
        INSERT INTO payments (task_id, amount, date, method_id, category_id, description)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		payment.TaskID,
		payment.Amount,
		payment.Date,
		payment.MethodID,
		payment.CategoryID,
		payment.Description,
	).Scan(&payment.ID, &payment.CreatedAt)
}

func (r *paymentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM payments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *paymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	const query = `
        SELECT id, task_id, amount, date, method_id, category_id, description, created_at
        FROM payments WHERE id=$1`
	var payment domain.Payment
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&payment.ID,
		&payment.TaskID,
		&payment.Amount,
		&payment.Date,
		&payment.MethodID,
		&payment.CategoryID,
		&payment.Description,
		&payment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) ListByTask(ctx context.Context, taskID string) ([]domain.Payment, error) {
	const query = `
        SELECT id, task_id, amount, date, method_id, category_id, description, created_at
        FROM payments WHERE task_id=$1 ORDER BY date DESC, created_at DESC`
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func (r *paymentRepository) ListInWindow(ctx context.Context, from, to time.Time) ([]domain.Payment, error) {
	const query = `
        SELECT id, task_id, amount, date, method_id, category_id, description, created_at
        FROM payments WHERE date >= $1 AND date <= $2 ORDER BY date ASC`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayments(rows)
}

func scanPayments(rows pgx.Rows) ([]domain.Payment, error) {
	var result []domain.Payment
	for rows.Next() {
		var payment domain.Payment
		if err := rows.Scan(
			&payment.ID,
			&payment.TaskID,
			&payment.Amount,
			&payment.Date,
			&payment.MethodID,
			&payment.CategoryID,
			&payment.Description,
			&payment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, payment)
	}
	return result, rows.Err()
}

// CostAdjustmentRepository stores itemized cost modifications.
type CostAdjustmentRepository interface {
	Create(ctx context.Context, adjustment *domain.CostAdjustment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.CostAdjustment, error)
	ListByTask(ctx context.Context, taskID string) ([]domain.CostAdjustment, error)
	UpdateStatus(ctx context.Context, id string, status domain.ApprovalStatus, approverID string) error
}

type costAdjustmentRepository struct {
	db DB
}

// NewCostAdjustmentRepository builds the repository.
func NewCostAdjustmentRepository(db DB) CostAdjustmentRepository {
	return &costAdjustmentRepository{db: db}
}

func (r *costAdjustmentRepository) Create(ctx context.Context, adjustment *domain.CostAdjustment) error {
	const query = `
        INSERT INTO cost_adjustments (task_id, description, amount, cost_type, status, requester_id, approver_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		adjustment.TaskID,
		adjustment.Description,
		adjustment.Amount,
		adjustment.CostType,
		adjustment.Status,
		adjustment.RequesterID,
		adjustment.ApproverID,
	).Scan(&adjustment.ID, &adjustment.CreatedAt)
}

func (r *costAdjustmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM cost_adjustments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *costAdjustmentRepository) GetByID(ctx context.Context, id string) (*domain.CostAdjustment, error) {
	const query = `
        SELECT id, task_id, description, amount, cost_type, status, requester_id, approver_id, created_at
        FROM cost_adjustments WHERE id=$1`
	var adjustment domain.CostAdjustment
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&adjustment.ID,
		&adjustment.TaskID,
		&adjustment.Description,
		&adjustment.Amount,
		&adjustment.CostType,
		&adjustment.Status,
		&adjustment.RequesterID,
		&adjustment.ApproverID,
		&adjustment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &adjustment, nil
}

func (r *costAdjustmentRepository) ListByTask(ctx context.Context, taskID string) ([]domain.CostAdjustment, error) {
	const query = `
        SELECT id, task_id, description, amount, cost_type, status, requester_id, approver_id, created_at
        FROM cost_adjustments WHERE task_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CostAdjustment
	for rows.Next() {
		var adjustment domain.CostAdjustment
		if err := rows.Scan(
			&adjustment.ID,
			&adjustment.TaskID,
			&adjustment.Description,
			&adjustment.Amount,
			&adjustment.CostType,
			&adjustment.Status,
			&adjustment.RequesterID,
			&adjustment.ApproverID,
			&adjustment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, adjustment)
	}
	return result, rows.Err()
}

func (r *costAdjustmentRepository) UpdateStatus(ctx context.Context, id string, status domain.ApprovalStatus, approverID string) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE cost_adjustments SET status=$1, approver_id=$2 WHERE id=$3`,
		status, approverID, id,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
