package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/repairshop-service/internal/domain"
)

// AddPaymentRequest records a ledger entry. task_id is omitted for
// standalone expenditures.
type AddPaymentRequest struct {
	TaskID       *string         `json:"task_id"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	Date         *time.Time      `json:"date"`
	MethodID     string          `json:"method_id" validate:"required"`
	CategoryID   *string         `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Description  string          `json:"description"`
}

// AddAdjustmentRequest records an itemized cost change.
type AddAdjustmentRequest struct {
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	CostType    domain.CostType `json:"cost_type" validate:"required,oneof=Additive Subtractive Inclusive"`
}

// ResolveAdjustmentRequest approves or rejects a pending adjustment.
type ResolveAdjustmentRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

// PaymentResponse is one ledger entry.
type PaymentResponse struct {
	ID          string          `json:"id"`
	TaskID      *string         `json:"task_id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	MethodID    string          `json:"method_id"`
	CategoryID  *string         `json:"category_id"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AdjustmentResponse is one cost adjustment.
type AdjustmentResponse struct {
	ID          string                `json:"id"`
	TaskID      string                `json:"task_id"`
	Description string                `json:"description"`
	Amount      decimal.Decimal       `json:"amount"`
	CostType    domain.CostType       `json:"cost_type"`
	Status      domain.ApprovalStatus `json:"status"`
	RequesterID *string               `json:"requester_id"`
	ApproverID  *string               `json:"approver_id"`
	CreatedAt   time.Time             `json:"created_at"`
}

// FinancialSummaryResponse is the reconciled money view of one task.
type FinancialSummaryResponse struct {
	TaskID             string               `json:"task_id"`
	TotalCost          decimal.Decimal      `json:"total_cost"`
	PaidAmount         decimal.Decimal      `json:"paid_amount"`
	OutstandingBalance decimal.Decimal      `json:"outstanding_balance"`
	PaymentStatus      domain.PaymentStatus `json:"payment_status"`
	PaidDate           *time.Time           `json:"paid_date"`
	Payments           []PaymentResponse    `json:"payments"`
	Adjustments        []AdjustmentResponse `json:"adjustments"`
}

// NewPaymentResponse maps a ledger entry.
func NewPaymentResponse(payment *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          payment.ID,
		TaskID:      payment.TaskID,
		Amount:      payment.Amount,
		Date:        payment.Date,
		MethodID:    payment.MethodID,
		CategoryID:  payment.CategoryID,
		Description: payment.Description,
		CreatedAt:   payment.CreatedAt,
	}
}

// NewAdjustmentResponse maps a cost adjustment.
func NewAdjustmentResponse(adjustment *domain.CostAdjustment) AdjustmentResponse {
	return AdjustmentResponse{
		ID:          adjustment.ID,
		TaskID:      adjustment.TaskID,
		Description: adjustment.Description,
		Amount:      adjustment.Amount,
		CostType:    adjustment.CostType,
		Status:      adjustment.Status,
		RequesterID: adjustment.RequesterID,
		ApproverID:  adjustment.ApproverID,
		CreatedAt:   adjustment.CreatedAt,
	}
}
