package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repairshop-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTaskCreated              EventType = "task_created"
	EventTaskStatusChanged        EventType = "task_status_changed"
	EventTaskAssigned             EventType = "task_assigned"
	EventTaskQCRejected           EventType = "task_qc_rejected"
	EventTaskSentToWorkshop       EventType = "task_sent_to_workshop"
	EventTaskReturnedFromWorkshop EventType = "task_returned_from_workshop"
	EventPaymentRecorded          EventType = "payment_recorded"
	EventCostAdjusted             EventType = "cost_adjusted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TaskID    string      `json:"task_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TaskCreatedPayload payload.
type TaskCreatedPayload struct {
	TicketNumber string             `json:"ticket_number"`
	Status       domain.TaskStatus  `json:"status"`
	Urgency      domain.TaskUrgency `json:"urgency"`
	CustomerID   string             `json:"customer_id"`
}

// TaskStatusChangedPayload payload.
type TaskStatusChangedPayload struct {
	OldStatus domain.TaskStatus `json:"old_status"`
	NewStatus domain.TaskStatus `json:"new_status"`
	Notes     string            `json:"notes,omitempty"`
}

// TaskAssignedPayload payload.
type TaskAssignedPayload struct {
	OldTechnicianID *string `json:"old_technician_id,omitempty"`
	NewTechnicianID *string `json:"new_technician_id,omitempty"`
}

// WorkshopPayload payload for send/return events.
type WorkshopPayload struct {
	LocationID   *string                `json:"location_id,omitempty"`
	TechnicianID *string                `json:"technician_id,omitempty"`
	Outcome      *domain.WorkshopStatus `json:"outcome,omitempty"`
}

// PaymentRecordedPayload payload.
type PaymentRecordedPayload struct {
	PaymentID     string               `json:"payment_id"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
}

// CostAdjustedPayload payload.
type CostAdjustedPayload struct {
	AdjustmentID string          `json:"adjustment_id"`
	CostType     domain.CostType `json:"cost_type"`
	Amount       decimal.Decimal `json:"amount"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}
