package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repairshop-service/internal/api/dto"
	"github.com/spec-kit/repairshop-service/internal/auth"
	"github.com/spec-kit/repairshop-service/internal/domain"
	"github.com/spec-kit/repairshop-service/internal/service"
	apperrors "github.com/spec-kit/repairshop-service/pkg/util/errorutil"
)

const defaultPageSize = 20

// TasksHandler manages task lifecycle endpoints.
type TasksHandler struct {
	tasks *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(tasks *service.TaskService) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

// Create POST /tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	task, err := h.tasks.Create(c.Context(), actor, service.CreateTaskInput{
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		BrandID:       req.BrandID,
		DeviceModel:   req.DeviceModel,
		SerialNumber:  req.SerialNumber,
		Description:   req.Description,
		Urgency:       req.Urgency,
		EstimatedCost: req.EstimatedCost,
		Location:      req.Location,
		TechnicianID:  req.TechnicianID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// List GET /tasks.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	input, page, pageSize := parseTaskListQuery(c)
	tasks, total, err := h.tasks.List(c.Context(), actor, input)
	if err != nil {
		return err
	}
	items := make([]dto.TaskSummary, 0, len(tasks))
	for i := range tasks {
		items = append(items, dto.NewTaskSummary(&tasks[i]))
	}
	return c.JSON(fiber.Map{
		"data":       items,
		"pagination": dto.NewPagination(page, pageSize, total),
	})
}

// Get GET /tasks/:id. Ticket numbers are accepted in place of ids.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	ref := c.Params("id")
	task, err := h.tasks.Get(c.Context(), ref)
	if err != nil {
		if byTicket, ticketErr := h.tasks.GetByTicketNumber(c.Context(), ref); ticketErr == nil {
			task = byTicket
		} else {
			return err
		}
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// Update PATCH /tasks/:id.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	task, err := h.tasks.Update(c.Context(), actor, c.Params("id"), service.UpdateTaskInput{
		Urgency:         req.Urgency,
		Description:     req.Description,
		DeviceModel:     req.DeviceModel,
		SerialNumber:    req.SerialNumber,
		BrandID:         req.BrandID,
		CurrentLocation: req.CurrentLocation,
		EstimatedCost:   req.EstimatedCost,
		PaymentStatus:   req.PaymentStatus,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// Delete DELETE /tasks/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	if err := h.tasks.Delete(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangeStatus POST /tasks/:id/status.
func (h *TasksHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	task, err := h.tasks.ChangeStatus(c.Context(), actor, c.Params("id"), service.TransitionInput{
		NewStatus:    req.Status,
		TechnicianID: req.TechnicianID,
		Notes:        req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// AllowedTransitions GET /tasks/:id/transitions.
func (h *TasksHandler) AllowedTransitions(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	statuses, err := h.tasks.AllowedTransitions(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": statuses})
}

// SendToWorkshop POST /tasks/:id/workshop.
func (h *TasksHandler) SendToWorkshop(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.WorkshopSendRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	task, err := h.tasks.SendToWorkshop(c.Context(), actor, c.Params("id"), service.WorkshopSendInput{
		LocationID:   req.LocationID,
		TechnicianID: req.TechnicianID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// ReturnFromWorkshop POST /tasks/:id/workshop/return.
func (h *TasksHandler) ReturnFromWorkshop(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.WorkshopReturnRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	task, err := h.tasks.ReturnFromWorkshop(c.Context(), actor, c.Params("id"), req.Outcome)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTaskDetail(task)})
}

// AddActivity POST /tasks/:id/activities.
func (h *TasksHandler) AddActivity(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.AddActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	activity, err := h.tasks.AddActivity(c.Context(), actor, c.Params("id"), req.Type, req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewActivityResponse(activity)})
}

// ListActivities GET /tasks/:id/activities.
func (h *TasksHandler) ListActivities(c *fiber.Ctx) error {
	if _, err := requireActor(c); err != nil {
		return err
	}
	activities, err := h.tasks.Activities(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ActivityResponse, 0, len(activities))
	for i := range activities {
		items = append(items, dto.NewActivityResponse(&activities[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListDebts GET /tasks/debts.
func (h *TasksHandler) ListDebts(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	page, pageSize := parsePage(c)
	tasks, total, err := h.tasks.ListDebts(c.Context(), actor, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.TaskSummary, 0, len(tasks))
	for i := range tasks {
		items = append(items, dto.NewTaskSummary(&tasks[i]))
	}
	return c.JSON(fiber.Map{
		"data":       items,
		"pagination": dto.NewPagination(page, pageSize, total),
	})
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func parsePage(c *fiber.Ctx) (page, pageSize int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize = c.QueryInt("page_size", defaultPageSize)
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func parseTaskListQuery(c *fiber.Ctx) (service.TaskListInput, int, int) {
	input := service.TaskListInput{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			input.Statuses = append(input.Statuses, domain.TaskStatus(strings.TrimSpace(part)))
		}
	}
	if c.QueryBool("open_only", false) {
		input.ExcludeStatuses = []domain.TaskStatus{domain.TaskStatusPickedUp, domain.TaskStatusTerminated}
	}
	if customerID := c.Query("customer_id"); customerID != "" {
		input.CustomerID = &customerID
	}
	if technicianID := c.Query("technician_id"); technicianID != "" {
		input.AssignedTo = &technicianID
	}
	input.Unassigned = c.QueryBool("unassigned", false)
	if search := c.Query("search"); search != "" {
		input.SearchTerm = &search
	}
	if fromStr := c.Query("created_from"); fromStr != "" {
		if ts, err := time.Parse(time.RFC3339, fromStr); err == nil {
			input.CreatedFrom = &ts
		}
	}
	if toStr := c.Query("created_to"); toStr != "" {
		if ts, err := time.Parse(time.RFC3339, toStr); err == nil {
			input.CreatedTo = &ts
		}
	}
	page, pageSize := parsePage(c)
	input.Limit = pageSize
	input.Offset = (page - 1) * pageSize
	return input, page, pageSize
}
