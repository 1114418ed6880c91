package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repairshop-service/internal/api/dto"
	"github.com/spec-kit/repairshop-service/internal/service"
	apperrors "github.com/spec-kit/repairshop-service/pkg/util/errorutil"
)

// FinanceHandler manages payments and cost adjustments.
type FinanceHandler struct {
	ledger *service.LedgerService
}

// NewFinanceHandler constructs handler.
func NewFinanceHandler(ledger *service.LedgerService) *FinanceHandler {
	return &FinanceHandler{ledger: ledger}
}

// AddPayment POST /payments.
func (h *FinanceHandler) AddPayment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AddPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	payment, err := h.ledger.AddPayment(c.Context(), actor, service.AddPaymentInput{
		TaskID:       req.TaskID,
		Amount:       req.Amount,
		Date:         req.Date,
		MethodID:     req.MethodID,
		CategoryID:   req.CategoryID,
		CategoryName: req.CategoryName,
		Description:  req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPaymentResponse(payment)})
}

// DeletePayment DELETE /payments/:id.
func (h *FinanceHandler) DeletePayment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.ledger.DeletePayment(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListPayments GET /payments.
func (h *FinanceHandler) ListPayments(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	from, to, err := parseWindow(c)
	if err != nil {
		return err
	}
	payments, err := h.ledger.ListPayments(c.Context(), actor, from, to, c.QueryBool("standalone", false))
	if err != nil {
		return err
	}
	items := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, dto.NewPaymentResponse(&payments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddAdjustment POST /tasks/:id/adjustments.
func (h *FinanceHandler) AddAdjustment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AddAdjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	adjustment, err := h.ledger.AddAdjustment(c.Context(), actor, service.AddAdjustmentInput{
		TaskID:      c.Params("id"),
		Description: req.Description,
		Amount:      req.Amount,
		CostType:    req.CostType,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAdjustmentResponse(adjustment)})
}

// ResolveAdjustment POST /adjustments/:id/resolve.
func (h *FinanceHandler) ResolveAdjustment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ResolveAdjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	adjustment, err := h.ledger.ResolveAdjustment(c.Context(), actor, c.Params("id"), *req.Approve)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAdjustmentResponse(adjustment)})
}

// DeleteAdjustment DELETE /adjustments/:id.
func (h *FinanceHandler) DeleteAdjustment(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.ledger.DeleteAdjustment(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// TaskFinancials GET /tasks/:id/financials.
func (h *FinanceHandler) TaskFinancials(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	summary, err := h.ledger.TaskFinancials(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	response := dto.FinancialSummaryResponse{
		TaskID:             summary.TaskID,
		TotalCost:          summary.TotalCost,
		PaidAmount:         summary.PaidAmount,
		OutstandingBalance: summary.OutstandingBalance,
		PaymentStatus:      summary.PaymentStatus,
		PaidDate:           summary.PaidDate,
		Payments:           make([]dto.PaymentResponse, 0, len(summary.Payments)),
		Adjustments:        make([]dto.AdjustmentResponse, 0, len(summary.Adjustments)),
	}
	for i := range summary.Payments {
		response.Payments = append(response.Payments, dto.NewPaymentResponse(&summary.Payments[i]))
	}
	for i := range summary.Adjustments {
		response.Adjustments = append(response.Adjustments, dto.NewAdjustmentResponse(&summary.Adjustments[i]))
	}
	return c.JSON(fiber.Map{"data": response})
}

func parseWindow(c *fiber.Ctx) (time.Time, time.Time, error) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("from and to are required", nil)
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("invalid from timestamp", nil)
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("invalid to timestamp", nil)
	}
	return from, to, nil
}
