package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostType classifies how an adjustment affects the billed total.
type CostType string

const (
	CostTypeAdditive    CostType = "Additive"
	CostTypeSubtractive CostType = "Subtractive"
	// Inclusive items are itemization only and never change total cost.
	CostTypeInclusive CostType = "Inclusive"
)

// ApprovalStatus tracks the optional adjustment approval workflow.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// CostAdjustment is one itemized modification to a task's billed cost.
type CostAdjustment struct {
	ID          string
	TaskID      string
	Description string
	Amount      decimal.Decimal
	CostType    CostType
	Status      ApprovalStatus
	RequesterID *string
	ApproverID  *string
	CreatedAt   time.Time
}

// Payment is a ledger entry. Amount is signed: negative amounts are refunds
// or expenditures. TaskID is nil for standalone expenditures.
type Payment struct {
	ID          string
	TaskID      *string
	Amount      decimal.Decimal
	Date        time.Time
	MethodID    string
	CategoryID  *string
	Description string
	CreatedAt   time.Time
}

// PaymentMethod is a named settlement channel (cash, card, ...).
type PaymentMethod struct {
	ID             string
	Name           string
	UserSelectable bool
}

// PaymentCategory buckets payments for reporting.
type PaymentCategory struct {
	ID   string
	Name string
}
