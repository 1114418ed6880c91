package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repairshop-service/internal/domain"
)

// CreateTaskRequest is the device intake payload. Either customer_id or the
// phone of a new/known customer must be given.
type CreateTaskRequest struct {
	CustomerID    *string `json:"customer_id"`
	CustomerName  string  `json:"customer_name"`
	CustomerPhone string  `json:"customer_phone"`
	CustomerEmail string  `json:"customer_email" validate:"omitempty,email"`

	BrandID      *string `json:"brand_id"`
	DeviceModel  string  `json:"device_model" validate:"required"`
	SerialNumber string  `json:"serial_number"`
	Description  string  `json:"description" validate:"required"`

	Urgency       domain.TaskUrgency `json:"urgency" validate:"omitempty,oneof=Low Medium High"`
	EstimatedCost decimal.Decimal    `json:"estimated_cost"`
	Location      string             `json:"location"`
	TechnicianID  *string            `json:"technician_id"`
}

// UpdateTaskRequest carries partial field edits.
type UpdateTaskRequest struct {
	Urgency         *domain.TaskUrgency   `json:"urgency" validate:"omitempty,oneof=Low Medium High"`
	Description     *string               `json:"description"`
	DeviceModel     *string               `json:"device_model"`
	SerialNumber    *string               `json:"serial_number"`
	BrandID         *string               `json:"brand_id"`
	CurrentLocation *string               `json:"current_location"`
	EstimatedCost   *decimal.Decimal      `json:"estimated_cost"`
	PaymentStatus   *domain.PaymentStatus `json:"payment_status" validate:"omitempty,oneof=Unpaid 'Partially Paid' 'Fully Paid' Refunded"`
}

// TransitionRequest asks for a status change.
type TransitionRequest struct {
	Status       domain.TaskStatus `json:"status" validate:"required"`
	TechnicianID *string           `json:"technician_id"`
	Notes        string            `json:"notes"`
}

// WorkshopSendRequest hands a task to an external workshop.
type WorkshopSendRequest struct {
	LocationID   string `json:"location_id" validate:"required"`
	TechnicianID string `json:"technician_id" validate:"required"`
}

// WorkshopReturnRequest closes the workshop detour.
type WorkshopReturnRequest struct {
	Outcome domain.WorkshopStatus `json:"outcome" validate:"required,oneof=Solved 'Not Solved'"`
}

// AddActivityRequest appends a free-form log entry.
type AddActivityRequest struct {
	Type    domain.ActivityType `json:"type" validate:"required"`
	Message string              `json:"message" validate:"required"`
}

// TaskSummary is the listing row.
type TaskSummary struct {
	ID              string               `json:"id"`
	TicketNumber    string               `json:"ticket_number"`
	Status          domain.TaskStatus    `json:"status"`
	Urgency         domain.TaskUrgency   `json:"urgency"`
	CustomerID      string               `json:"customer_id"`
	AssignedTo      *string              `json:"assigned_to"`
	DeviceModel     string               `json:"device_model"`
	SerialNumber    string               `json:"serial_number"`
	TotalCost       decimal.Decimal      `json:"total_cost"`
	PaidAmount      decimal.Decimal      `json:"paid_amount"`
	PaymentStatus   domain.PaymentStatus `json:"payment_status"`
	CurrentLocation string               `json:"current_location"`
	DateIn          time.Time            `json:"date_in"`
	DateOut         *time.Time           `json:"date_out"`
}

// TaskDetailResponse is the single-task view.
type TaskDetailResponse struct {
	TaskSummary
	CreatedBy          string                 `json:"created_by"`
	BrandID            *string                `json:"brand_id"`
	Description        string                 `json:"description"`
	EstimatedCost      decimal.Decimal        `json:"estimated_cost"`
	OutstandingBalance decimal.Decimal        `json:"outstanding_balance"`
	WorkshopStatus     *domain.WorkshopStatus `json:"workshop_status"`
	WorkshopSentAt     *time.Time             `json:"workshop_sent_at"`
	WorkshopReturnedAt *time.Time             `json:"workshop_returned_at"`
	QCRejectedAt       *time.Time             `json:"qc_rejected_at"`
	ApprovedAt         *time.Time             `json:"approved_at"`
	PaidDate           *time.Time             `json:"paid_date"`
	Version            int64                  `json:"version"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// ActivityResponse is one event-log entry.
type ActivityResponse struct {
	ID        int64               `json:"id"`
	UserID    *string             `json:"user_id"`
	Type      domain.ActivityType `json:"type"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
}

// Pagination is the listing envelope.
type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// NewPagination derives the envelope from the page request and total count.
func NewPagination(page, pageSize, totalItems int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages := (totalItems + pageSize - 1) / pageSize
	return Pagination{
		CurrentPage: page,
		PageSize:    pageSize,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1 && totalItems > 0,
	}
}

// NewTaskSummary maps the aggregate to its listing row.
func NewTaskSummary(task *domain.Task) TaskSummary {
	return TaskSummary{
		ID:              task.ID,
		TicketNumber:    task.TicketNumber,
		Status:          task.Status,
		Urgency:         task.Urgency,
		CustomerID:      task.CustomerID,
		AssignedTo:      task.AssignedTo,
		DeviceModel:     task.DeviceModel,
		SerialNumber:    task.SerialNumber,
		TotalCost:       task.TotalCost,
		PaidAmount:      task.PaidAmount,
		PaymentStatus:   task.PaymentStatus,
		CurrentLocation: task.CurrentLocation,
		DateIn:          task.DateIn,
		DateOut:         task.DateOut,
	}
}

// NewTaskDetail maps the aggregate to the single-task view.
func NewTaskDetail(task *domain.Task) TaskDetailResponse {
	return TaskDetailResponse{
		TaskSummary:        NewTaskSummary(task),
		CreatedBy:          task.CreatedBy,
		BrandID:            task.BrandID,
		Description:        task.Description,
		EstimatedCost:      task.EstimatedCost,
		OutstandingBalance: task.OutstandingBalance(),
		WorkshopStatus:     task.WorkshopStatus,
		WorkshopSentAt:     task.WorkshopSentAt,
		WorkshopReturnedAt: task.WorkshopReturnedAt,
		QCRejectedAt:       task.QCRejectedAt,
		ApprovedAt:         task.ApprovedAt,
		PaidDate:           task.PaidDate,
		Version:            task.Version,
		CreatedAt:          task.CreatedAt,
		UpdatedAt:          task.UpdatedAt,
	}
}

// NewActivityResponse maps a log entry.
func NewActivityResponse(activity *domain.TaskActivity) ActivityResponse {
	return ActivityResponse{
		ID:        activity.ID,
		UserID:    activity.UserID,
		Type:      activity.Type,
		Message:   activity.Message,
		Timestamp: activity.Timestamp,
	}
}
