package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskStatus enumerates lifecycle states for repair tasks.
type TaskStatus string

const (
	TaskStatusPending        TaskStatus = "Pending"
	TaskStatusInProgress     TaskStatus = "In Progress"
	TaskStatusAwaitingParts  TaskStatus = "Awaiting Parts"
	TaskStatusCompleted      TaskStatus = "Completed"
	TaskStatusReadyForPickup TaskStatus = "Ready for Pickup"
	TaskStatusPickedUp       TaskStatus = "Picked Up"
	TaskStatusTerminated     TaskStatus = "Terminated"
)

// IsTerminal reports whether no further lifecycle transitions are expected.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusPickedUp || s == TaskStatusTerminated
}

// TaskUrgency enumerates customer urgency.
type TaskUrgency string

const (
	TaskUrgencyLow    TaskUrgency = "Low"
	TaskUrgencyMedium TaskUrgency = "Medium"
	TaskUrgencyHigh   TaskUrgency = "High"
)

// PaymentStatus is derived from the ledger, never set directly except by
// accountants.
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "Unpaid"
	PaymentStatusPartiallyPaid PaymentStatus = "Partially Paid"
	PaymentStatusFullyPaid     PaymentStatus = "Fully Paid"
	PaymentStatusRefunded      PaymentStatus = "Refunded"
)

// WorkshopStatus tracks the off-site workshop detour.
type WorkshopStatus string

const (
	WorkshopStatusInWorkshop WorkshopStatus = "In Workshop"
	WorkshopStatusSolved     WorkshopStatus = "Solved"
	WorkshopStatusNotSolved  WorkshopStatus = "Not Solved"
)

// Task is the aggregate for a repair ticket, tracked from intake to pickup.
type Task struct {
	ID           string
	TicketNumber string
	Status       TaskStatus
	Urgency      TaskUrgency

	CustomerID string
	CreatedBy  string
	AssignedTo *string
	SentOutBy  *string

	BrandID      *string
	DeviceModel  string
	SerialNumber string
	Description  string

	EstimatedCost decimal.Decimal
	TotalCost     decimal.Decimal
	PaidAmount    decimal.Decimal
	PaymentStatus PaymentStatus

	CurrentLocation string

	WorkshopStatus       *WorkshopStatus
	WorkshopLocationID   *string
	WorkshopTechnicianID *string
	OriginalTechnicianID *string
	OriginalLocation     *string
	WorkshopSentAt       *time.Time
	WorkshopReturnedAt   *time.Time

	QCRejectedAt *time.Time
	QCRejectedBy *string

	DateIn     time.Time
	ApprovedAt *time.Time
	PaidDate   *time.Time
	DateOut    *time.Time

	// Version guards against lost updates; every successful write
	// increments it.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OutstandingBalance is total cost less everything paid so far.
func (t *Task) OutstandingBalance() decimal.Decimal {
	return t.TotalCost.Sub(t.PaidAmount)
}

// InWorkshop reports whether the task is currently at a workshop.
func (t *Task) InWorkshop() bool {
	return t.WorkshopStatus != nil && *t.WorkshopStatus == WorkshopStatusInWorkshop
}
