package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repairshop-service/internal/domain"
)

const taskColumns = `id, ticket_number, status, urgency, customer_id, created_by, assigned_to, sent_out_by,
    brand_id, device_model, serial_number, description,
    estimated_cost, total_cost, paid_amount, payment_status, current_location,
    workshop_status, workshop_location_id, workshop_technician_id, original_technician_id, original_location,
    workshop_sent_at, workshop_returned_at, qc_rejected_at, qc_rejected_by,
    date_in, approved_at, paid_date, date_out, version, created_at, updated_at`

// TaskFilter captures listing parameters.
type TaskFilter struct {
	Statuses         []domain.TaskStatus
	ExcludeStatuses  []domain.TaskStatus
	NotPaymentStatus *domain.PaymentStatus
	AssignedTo       *string
	CustomerID       *string
	HasTechnician    *bool
	SearchTerm       *string
	CreatedFrom      *time.Time
	CreatedTo        *time.Time
	Limit            int
	Offset           int
}

// TaskRepository encapsulates task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	// Update persists the task only when the stored version matches
	// task.Version; on success the version is incremented in place.
	Update(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	GetByTicketNumber(ctx context.Context, ticketNumber string) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int, error)
	EarliestIntakeYear(ctx context.Context) (int, bool, error)
	LastTicketNumberWithPrefix(ctx context.Context, prefix string) (string, bool, error)
}

type taskRepository struct {
	db DB
}

// NewTaskRepository instantiates the repository over a querier.
func NewTaskRepository(db DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (ticket_number, status, urgency, customer_id, created_by, assigned_to,
            brand_id, device_model, serial_number, description,
            estimated_cost, total_cost, paid_amount, payment_status, current_location, date_in)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING id, version, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		task.TicketNumber,
		task.Status,
		task.Urgency,
		task.CustomerID,
		task.CreatedBy,
		task.AssignedTo,
		task.BrandID,
		task.DeviceModel,
		task.SerialNumber,
		task.Description,
		task.EstimatedCost,
		task.TotalCost,
		task.PaidAmount,
		task.PaymentStatus,
		task.CurrentLocation,
		task.DateIn,
	).Scan(&task.ID, &task.Version, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET status=$1, urgency=$2, assigned_to=$3, sent_out_by=$4,
            brand_id=$5, device_model=$6, serial_number=$7, description=$8,
            estimated_cost=$9, total_cost=$10, paid_amount=$11, payment_status=$12, current_location=$13,
            workshop_status=$14, workshop_location_id=$15, workshop_technician_id=$16,
            original_technician_id=$17, original_location=$18, workshop_sent_at=$19, workshop_returned_at=$20,
            qc_rejected_at=$21, qc_rejected_by=$22,
            approved_at=$23, paid_date=$24, date_out=$25,
            version=version+1, updated_at=NOW()
        WHERE id=$26 AND version=$27`
	cmd, err := r.db.Exec(ctx, query,
		task.Status,
		task.Urgency,
		task.AssignedTo,
		task.SentOutBy,
		task.BrandID,
		task.DeviceModel,
		task.SerialNumber,
		task.Description,
		task.EstimatedCost,
		task.TotalCost,
		task.PaidAmount,
		task.PaymentStatus,
		task.CurrentLocation,
		task.WorkshopStatus,
		task.WorkshopLocationID,
		task.WorkshopTechnicianID,
		task.OriginalTechnicianID,
		task.OriginalLocation,
		task.WorkshopSentAt,
		task.WorkshopReturnedAt,
		task.QCRejectedAt,
		task.QCRejectedBy,
		task.ApprovedAt,
		task.PaidDate,
		task.DateOut,
		task.ID,
		task.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	task.Version++
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return r.fetchSingle(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
}

func (r *taskRepository) GetByTicketNumber(ctx context.Context, ticketNumber string) (*domain.Task, error) {
	return r.fetchSingle(ctx, `SELECT `+taskColumns+` FROM tasks WHERE ticket_number=$1`, ticketNumber)
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *taskRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Task, error) {
	var task domain.Task
	if err := scanTask(r.db.QueryRow(ctx, query, arg), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]domain.Task, error) {
	builder := filterBuilder(sq.Select(strings.Split(taskColumns, ",")...).From("tasks"), filter).
		OrderBy("created_at DESC")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}
	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *taskRepository) Count(ctx context.Context, filter TaskFilter) (int, error) {
	query, args, err := filterBuilder(sq.Select("COUNT(*)").From("tasks"), filter).
		PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *taskRepository) EarliestIntakeYear(ctx context.Context) (int, bool, error) {
	// The aggregate always yields one row; on an empty table the value is
	// SQL NULL, so scan through a pointer.
	var year *int
	err := r.db.QueryRow(ctx, `SELECT EXTRACT(YEAR FROM MIN(created_at))::int FROM tasks`).Scan(&year)
	if err != nil {
		return 0, false, err
	}
	if year == nil {
		return 0, false, nil
	}
	return *year, true, nil
}

func (r *taskRepository) LastTicketNumberWithPrefix(ctx context.Context, prefix string) (string, bool, error) {
	var ticketNumber string
	err := r.db.QueryRow(ctx,
		`SELECT ticket_number FROM tasks WHERE ticket_number LIKE $1 ORDER BY ticket_number DESC LIMIT 1`,
		prefix+"-%",
	).Scan(&ticketNumber)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return ticketNumber, true, nil
}

func filterBuilder(builder sq.SelectBuilder, filter TaskFilter) sq.SelectBuilder {
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}
	if len(filter.ExcludeStatuses) > 0 {
		builder = builder.Where(sq.NotEq{"status": filter.ExcludeStatuses})
	}
	if filter.NotPaymentStatus != nil {
		builder = builder.Where(sq.NotEq{"payment_status": *filter.NotPaymentStatus})
	}
	if filter.AssignedTo != nil {
		builder = builder.Where(sq.Eq{"assigned_to": *filter.AssignedTo})
	}
	if filter.CustomerID != nil {
		builder = builder.Where(sq.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.HasTechnician != nil {
		if *filter.HasTechnician {
			builder = builder.Where("assigned_to IS NOT NULL")
		} else {
			builder = builder.Where("assigned_to IS NULL")
		}
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		builder = builder.Where(
			sq.Or{
				sq.Like{"LOWER(ticket_number)": search},
				sq.Like{"LOWER(serial_number)": search},
				sq.Like{"LOWER(device_model)": search},
			},
		)
	}
	if filter.CreatedFrom != nil {
		builder = builder.Where(sq.GtOrEq{"created_at": *filter.CreatedFrom})
	}
	if filter.CreatedTo != nil {
		builder = builder.Where(sq.LtOrEq{"created_at": *filter.CreatedTo})
	}
	return builder
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var result []domain.Task
	for rows.Next() {
		var task domain.Task
		if err := scanTask(rows, &task); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

func scanTask(row pgx.Row, task *domain.Task) error {
	return row.Scan(
		&task.ID,
		&task.TicketNumber,
		&task.Status,
		&task.Urgency,
		&task.CustomerID,
		&task.CreatedBy,
		&task.AssignedTo,
		&task.SentOutBy,
		&task.BrandID,
		&task.DeviceModel,
		&task.SerialNumber,
		&task.Description,
		&task.EstimatedCost,
		&task.TotalCost,
		&task.PaidAmount,
		&task.PaymentStatus,
		&task.CurrentLocation,
		&task.WorkshopStatus,
		&task.WorkshopLocationID,
		&task.WorkshopTechnicianID,
		&task.OriginalTechnicianID,
		&task.OriginalLocation,
		&task.WorkshopSentAt,
		&task.WorkshopReturnedAt,
		&task.QCRejectedAt,
		&task.QCRejectedBy,
		&task.DateIn,
		&task.ApprovedAt,
		&task.PaidDate,
		&task.DateOut,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
}
