package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repairshop-service/internal/domain"
)

// ActivityRepository stores the append-only task event log. There is no
// update or delete; the log is the audit trail.
type ActivityRepository interface {
	Append(ctx context.Context, activity *domain.TaskActivity) error
	ListByTask(ctx context.Context, taskID string) ([]domain.TaskActivity, error)
	// TaskIDsWithActivity returns the distinct tasks that have at least one
	// entry of the given type inside [from, to].
	TaskIDsWithActivity(ctx context.Context, activityType domain.ActivityType, from, to time.Time) ([]string, error)
	// ListByTypesInWindow returns entries of the given types inside the
	// window, across all tasks, ordered by timestamp then insertion id.
	ListByTypesInWindow(ctx context.Context, types []domain.ActivityType, from, to time.Time) ([]domain.TaskActivity, error)
}

type activityRepository struct {
	db DB
}

// NewActivityRepository builds the repository.
func NewActivityRepository(db DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Append(ctx context.Context, activity *domain.TaskActivity) error {
	const query = `
        INSERT INTO task_activities (task_id, user_id, type, message, timestamp)
        VALUES ($1,$2,$3,$4, COALESCE($5, NOW()))
        RETURNING id, timestamp`
	var ts *time.Time
	if !activity.Timestamp.IsZero() {
		ts = &activity.Timestamp
	}
	return r.db.QueryRow(ctx, query,
		activity.TaskID,
		activity.UserID,
		activity.Type,
		activity.Message,
		ts,
	).Scan(&activity.ID, &activity.Timestamp)
}

func (r *activityRepository) ListByTask(ctx context.Context, taskID string) ([]domain.TaskActivity, error) {
	const query = `
        SELECT id, task_id, user_id, type, message, timestamp
        FROM task_activities WHERE task_id=$1 ORDER BY timestamp ASC, id ASC`
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows)
}

func (r *activityRepository) TaskIDsWithActivity(ctx context.Context, activityType domain.ActivityType, from, to time.Time) ([]string, error) {
	const query = `
        SELECT DISTINCT task_id FROM task_activities
        WHERE type=$1 AND timestamp >= $2 AND timestamp <= $3`
	rows, err := r.db.Query(ctx, query, activityType, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *activityRepository) ListByTypesInWindow(ctx context.Context, types []domain.ActivityType, from, to time.Time) ([]domain.TaskActivity, error) {
	const query = `
        SELECT id, task_id, user_id, type, message, timestamp
        FROM task_activities
        WHERE type = ANY($1) AND timestamp >= $2 AND timestamp <= $3
        ORDER BY timestamp ASC, id ASC`
	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}
	rows, err := r.db.Query(ctx, query, typeNames, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivities(rows)
}

func scanActivities(rows pgx.Rows) ([]domain.TaskActivity, error) {
	var result []domain.TaskActivity
	for rows.Next() {
		var activity domain.TaskActivity
		if err := rows.Scan(
			&activity.ID,
			&activity.TaskID,
			&activity.UserID,
			&activity.Type,
			&activity.Message,
			&activity.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, activity)
	}
	return result, rows.Err()
}
