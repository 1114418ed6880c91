package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/repairshop-service/internal/domain"
	"github.com/spec-kit/repairshop-service/internal/events"
	"github.com/spec-kit/repairshop-service/internal/repository"
	"github.com/spec-kit/repairshop-service/pkg/util/errorutil"
)

// defaultPaymentCategory buckets task payments that arrive without an
// explicit category.
const defaultPaymentCategory = "Tech Support"

// LedgerService owns payments, cost adjustments and the derived financial
// state of tasks. Totals are never patched in place; every mutation
// re-derives them from the ledger inside the same transaction.
type LedgerService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	now        func() time.Time
}

// LedgerDependencies bundles collaborators for the ledger service.
type LedgerDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Now        func() time.Time
}

// NewLedgerService wires the ledger service.
func NewLedgerService(deps LedgerDependencies) *LedgerService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &LedgerService{store: deps.Store, dispatcher: deps.Dispatcher, now: now}
}

// AddPaymentInput describes a ledger entry. TaskID is nil for standalone
// expenditures such as rent or parts restocking.
type AddPaymentInput struct {
	TaskID       *string
	Amount       decimal.Decimal
	Date         *time.Time
	MethodID     string
	CategoryID   *string
	CategoryName string
	Description  string
}

// AddAdjustmentInput describes an itemized cost modification.
type AddAdjustmentInput struct {
	TaskID      string
	Description string
	Amount      decimal.Decimal
	CostType    domain.CostType
}

// FinancialSummary is the reconciled money view of one task.
type FinancialSummary struct {
	TaskID             string
	TotalCost          decimal.Decimal
	PaidAmount         decimal.Decimal
	OutstandingBalance decimal.Decimal
	PaymentStatus      domain.PaymentStatus
	PaidDate           *time.Time
	Payments           []domain.Payment
	Adjustments        []domain.CostAdjustment
}

var paymentRoles = map[domain.Role]bool{
	domain.RoleFrontDesk:  true,
	domain.RoleAccountant: true,
}

// AddPayment records a payment and, for task payments, reconciles the task's
// totals in the same transaction.
func (s *LedgerService) AddPayment(ctx context.Context, actor domain.Actor, input AddPaymentInput) (*domain.Payment, error) {
	if !paymentRoles[actor.Role] && !actor.Role.Privileged() {
		return nil, errorutil.NewForbidden("role cannot record payments")
	}
	if input.Amount.IsZero() {
		return nil, errorutil.NewValidationError("payment amount cannot be zero", nil)
	}
	if input.TaskID == nil && input.Description == "" {
		return nil, errorutil.NewValidationError("standalone entries require a description", nil)
	}

	var (
		payment   *domain.Payment
		published []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Methods().GetByID(ctx, input.MethodID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorutil.NewNotFound("payment method", map[string]any{"method_id": input.MethodID})
			}
			return err
		}

		categoryID, err := s.resolveCategory(ctx, tx, input)
		if err != nil {
			return err
		}

		date := s.now()
		if input.Date != nil {
			date = *input.Date
		}

		payment = &domain.Payment{
			TaskID:      input.TaskID,
			Amount:      input.Amount,
			Date:        date,
			MethodID:    input.MethodID,
			CategoryID:  categoryID,
			Description: input.Description,
		}

		if input.TaskID == nil {
			return tx.Payments().Create(ctx, payment)
		}

		task, err := tx.Tasks().GetByID(ctx, *input.TaskID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorutil.NewNotFound("task", map[string]any{"task_id": *input.TaskID})
			}
			return err
		}
		if payment.Description == "" {
			payment.Description = fmt.Sprintf("Payment for task %s", task.TicketNumber)
		}
		if err := tx.Payments().Create(ctx, payment); err != nil {
			return err
		}
		if err := s.reconcile(ctx, tx, task); err != nil {
			return err
		}

		published = append(published, s.newEvent(events.EventPaymentRecorded, task.ID, actor, events.PaymentRecordedPayload{
			PaymentID:     payment.ID,
			Amount:        payment.Amount,
			PaymentStatus: task.PaymentStatus,
		}))
		return nil
	})
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	s.publish(ctx, published)
	return payment, nil
}

// DeletePayment removes a ledger entry and re-reconciles the affected task.
func (s *LedgerService) DeletePayment(ctx context.Context, actor domain.Actor, paymentID string) error {
	if actor.Role != domain.RoleAccountant && !actor.Role.Privileged() {
		return errorutil.NewForbidden("role cannot delete payments")
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		payment, err := tx.Payments().GetByID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorutil.NewNotFound("payment", map[string]any{"payment_id": paymentID})
			}
			return err
		}
		if err := tx.Payments().Delete(ctx, paymentID); err != nil {
			return err
		}
		if payment.TaskID == nil {
			return nil
		}
		task, err := tx.Tasks().GetByID(ctx, *payment.TaskID)
		if err != nil {
			return err
		}
		return s.reconcile(ctx, tx, task)
	})
	return errorutil.MapError(err)
}

// AddAdjustment records an itemized cost change. Adjustments from
// unprivileged roles start Pending and only count once approved.
func (s *LedgerService) AddAdjustment(ctx context.Context, actor domain.Actor, input AddAdjustmentInput) (*domain.CostAdjustment, error) {
	switch input.CostType {
	case domain.CostTypeAdditive, domain.CostTypeSubtractive, domain.CostTypeInclusive:
	default:
		return nil, errorutil.NewValidationError(
			fmt.Sprintf("unknown cost type %q", input.CostType), nil)
	}
	if !input.Amount.IsPositive() {
		return nil, errorutil.NewValidationError("adjustment amount must be positive", nil)
	}
	if input.Description == "" {
		return nil, errorutil.NewValidationError("adjustment description is required", nil)
	}

	var (
		adjustment *domain.CostAdjustment
		published  []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		task, err := tx.Tasks().GetByID(ctx, input.TaskID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorutil.NewNotFound("task", map[string]any{"task_id": input.TaskID})
			}
			return err
		}

		adjustment = &domain.CostAdjustment{
			TaskID:      task.ID,
			Description: input.Description,
			Amount:      input.Amount,
			CostType:    input.CostType,
			Status:      domain.ApprovalPending,
			RequesterID: &actor.ID,
		}
		if actor.Role.Privileged() {
			adjustment.Status = domain.ApprovalApproved
			adjustment.ApproverID = &actor.ID
		}
		if err := tx.Adjustments().Create(ctx, adjustment); err != nil {
			return err
		}
		if err := s.reconcile(ctx, tx, task); err != nil {
			return err
		}

		published = append(published, s.newEvent(events.EventCostAdjusted, task.ID, actor, events.CostAdjustedPayload{
			AdjustmentID: adjustment.ID,
			CostType:     adjustment.CostType,
			Amount:       adjustment.Amount,
			TotalCost:    task.TotalCost,
		}))
		return nil
	})
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	s.publish(ctx, published)
	return adjustment, nil
}

// ResolveAdjustment approves or rejects a pending adjustment. Managers only.
func (s *LedgerService) ResolveAdjustment(ctx context.Context, actor domain.Actor, adjustmentID string, approve bool) (*domain.CostAdjustment, error) {
	if !actor.Role.Privileged() {
		return nil, errorutil.NewForbidden("only managers can resolve cost adjustments")
	}
	var adjustment *domain.CostAdjustment
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		adjustment, err = tx.Adjustments().GetByID(ctx, adjustmentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorutil.NewNotFound("cost adjustment", map[string]any{"adjustment_id": adjustmentID})
			}
			return err
		}
		if adjustment.Status != domain.ApprovalPending {
			return errorutil.NewConflict("adjustment is already resolved",
				map[string]any{"adjustment_id": adjustmentID, "status": adjustment.Status})
		}

		status := domain.ApprovalApproved
		if !approve {
			status = domain.ApprovalRejected
		}
		if err := tx.Adjustments().UpdateStatus(ctx, adjustmentID, status, actor.ID); err != nil {
			return err
		}
		adjustment.Status = status
		adjustment.ApproverID = &actor.ID

		task, err := tx.Tasks().GetByID(ctx, adjustment.TaskID)
		if err != nil {
			return err
		}
		return s.reconcile(ctx, tx, task)
	})
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	return adjustment, nil
}

// DeleteAdjustment removes an adjustment and re-reconciles the task.
func (s *LedgerService) DeleteAdjustment(ctx context.Context, actor domain.Actor, adjustmentID string) error {
	if !actor.Role.Privileged() {
		return errorutil.NewForbidden("only managers can delete cost adjustments")
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		adjustment, err := tx.Adjustments().GetByID(ctx, adjustmentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errorutil.NewNotFound("cost adjustment", map[string]any{"adjustment_id": adjustmentID})
			}
			return err
		}
		if err := tx.Adjustments().Delete(ctx, adjustmentID); err != nil {
			return err
		}
		task, err := tx.Tasks().GetByID(ctx, adjustment.TaskID)
		if err != nil {
			return err
		}
		return s.reconcile(ctx, tx, task)
	})
	return errorutil.MapError(err)
}

// TaskFinancials returns the reconciled money view of a task.
func (s *LedgerService) TaskFinancials(ctx context.Context, taskID string) (*FinancialSummary, error) {
	task, err := s.store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("task", map[string]any{"task_id": taskID})
		}
		return nil, errorutil.MapError(err)
	}
	payments, err := s.store.Payments().ListByTask(ctx, taskID)
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	adjustments, err := s.store.Adjustments().ListByTask(ctx, taskID)
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	return &FinancialSummary{
		TaskID:             task.ID,
		TotalCost:          task.TotalCost,
		PaidAmount:         task.PaidAmount,
		OutstandingBalance: task.OutstandingBalance(),
		PaymentStatus:      task.PaymentStatus,
		PaidDate:           task.PaidDate,
		Payments:           payments,
		Adjustments:        adjustments,
	}, nil
}

// ListPayments returns ledger entries inside the window. With standaloneOnly
// set it is the shop expenditure view.
func (s *LedgerService) ListPayments(ctx context.Context, actor domain.Actor, from, to time.Time, standaloneOnly bool) ([]domain.Payment, error) {
	if actor.Role != domain.RoleAccountant && !actor.Role.Privileged() {
		return nil, errorutil.NewForbidden("role cannot browse the payment ledger")
	}
	payments, err := s.store.Payments().ListInWindow(ctx, from, to)
	if err != nil {
		return nil, errorutil.MapError(err)
	}
	if !standaloneOnly {
		return payments, nil
	}
	filtered := payments[:0]
	for _, payment := range payments {
		if payment.TaskID == nil {
			filtered = append(filtered, payment)
		}
	}
	return filtered, nil
}

func (s *LedgerService) resolveCategory(ctx context.Context, tx repository.Store, input AddPaymentInput) (*string, error) {
	if input.CategoryID != nil {
		category, err := tx.Categories().GetByID(ctx, *input.CategoryID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, errorutil.NewNotFound("payment category", map[string]any{"category_id": *input.CategoryID})
			}
			return nil, err
		}
		return &category.ID, nil
	}
	name := input.CategoryName
	if name == "" {
		if input.TaskID == nil {
			return nil, nil
		}
		name = defaultPaymentCategory
	}
	category, err := tx.Categories().GetOrCreateByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return &category.ID, nil
}

// reconcile re-derives totals from the ledger and persists the task.
func (s *LedgerService) reconcile(ctx context.Context, tx repository.Store, task *domain.Task) error {
	if err := recomputeLedger(ctx, tx, task, s.now()); err != nil {
		return err
	}
	if err := tx.Tasks().Update(ctx, task); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorutil.NewStaleVersion(task.ID)
		}
		return err
	}
	return nil
}

// recomputeLedger rebuilds TotalCost, PaidAmount and PaymentStatus from the
// estimated cost, the approved adjustments and the payments on record. It
// mutates the task in place; the caller persists it.
func recomputeLedger(ctx context.Context, tx repository.Store, task *domain.Task, now time.Time) error {
	adjustments, err := tx.Adjustments().ListByTask(ctx, task.ID)
	if err != nil {
		return err
	}
	total := task.EstimatedCost
	for _, adjustment := range adjustments {
		if adjustment.Status != domain.ApprovalApproved {
			continue
		}
		switch adjustment.CostType {
		case domain.CostTypeAdditive:
			total = total.Add(adjustment.Amount)
		case domain.CostTypeSubtractive:
			total = total.Sub(adjustment.Amount)
		}
		// Inclusive adjustments itemize work already covered by the
		// estimate and never move the total.
	}

	payments, err := tx.Payments().ListByTask(ctx, task.ID)
	if err != nil {
		return err
	}
	paid := decimal.Zero
	for _, payment := range payments {
		paid = paid.Add(payment.Amount)
	}

	task.TotalCost = total
	task.PaidAmount = paid

	switch {
	case paid.IsZero():
		task.PaymentStatus = domain.PaymentStatusUnpaid
		task.PaidDate = nil
	case paid.LessThan(total):
		task.PaymentStatus = domain.PaymentStatusPartiallyPaid
		task.PaidDate = nil
	case paid.Equal(total):
		task.PaymentStatus = domain.PaymentStatusFullyPaid
		if task.PaidDate == nil {
			task.PaidDate = &now
		}
	default:
		task.PaymentStatus = domain.PaymentStatusRefunded
		task.PaidDate = nil
	}
	return nil
}

func (s *LedgerService) newEvent(eventType events.EventType, taskID string, actor domain.Actor, payload any) events.Event {
	return events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TaskID:    taskID,
		Actor:     events.Actor{UserID: actor.ID, Role: actor.Role},
		Timestamp: s.now(),
		Payload:   payload,
	}
}

func (s *LedgerService) publish(ctx context.Context, published []events.Event) {
	for _, event := range published {
		_ = s.dispatcher.Publish(ctx, event)
	}
}
